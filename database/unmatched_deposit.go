package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floxi-finance/floxi-keeper/database/models"
)

func (db *Database) UpsertUnmatchedDeposits(ctx context.Context, deposits []models.UnmatchedDeposit) error {
	if len(deposits) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(deposits))
	for i, d := range deposits {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: d.ID}}).
			SetReplacement(d).
			SetUpsert(true)
	}

	_, err := db.collection(unmatchedDepositsCollection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert unmatched deposits: %w", err)
	}
	return nil
}

func (db *Database) DeleteUnmatchedDeposits(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := db.collection(unmatchedDepositsCollection).DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return fmt.Errorf("failed to delete unmatched deposits: %w", err)
	}
	return nil
}

func (db *Database) GetUnmatchedDeposits(ctx context.Context) ([]models.UnmatchedDeposit, error) {
	return find[models.UnmatchedDeposit](ctx, db.collection(unmatchedDepositsCollection), bson.D{},
		options.Find().SetSort(bson.D{{Key: "block_number", Value: 1}, {Key: "log_index", Value: 1}}))
}

func (db *Database) ListUnmatchedDeposits(ctx context.Context, page, pageSize int64) (*models.PaginatedResult, error) {
	return paginate[models.UnmatchedDeposit](ctx, db.collection(unmatchedDepositsCollection), bson.D{},
		bson.D{{Key: "block_number", Value: -1}}, page, pageSize)
}
