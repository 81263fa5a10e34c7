package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floxi-finance/floxi-keeper/database/models"
)

// UpdateLastIndexedBlock stores the last block handled by a subscription.
func (db *Database) UpdateLastIndexedBlock(ctx context.Context, subscription string, blockNumber uint64) error {
	filter := bson.D{{Key: "subscription", Value: subscription}}
	update := bson.D{{
		Key: "$set",
		Value: bson.D{{
			Key: "block_number", Value: blockNumber,
		}},
	}}

	_, err := db.collection(lastIndexedBlockCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update last indexed block: %w", err)
	}

	return nil
}

// GetLastIndexedBlock returns 0 when the subscription has no cursor yet.
func (db *Database) GetLastIndexedBlock(ctx context.Context, subscription string) (uint64, error) {
	var result models.LastIndexedBlock
	err := db.collection(lastIndexedBlockCollection).FindOne(ctx, bson.D{{Key: "subscription", Value: subscription}}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last indexed block: %w", err)
	}

	db.logger.Debug("last indexed block", "subscription", subscription, "block", result.BlockNumber)

	return result.BlockNumber, nil
}

func (db *Database) GetLastIndexedBlocks(ctx context.Context) ([]models.LastIndexedBlock, error) {
	return find[models.LastIndexedBlock](ctx, db.collection(lastIndexedBlockCollection), bson.D{},
		options.Find().SetSort(bson.D{{Key: "subscription", Value: 1}}))
}
