package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floxi-finance/floxi-keeper/database/models"
)

func (db *Database) UpsertPassenger(ctx context.Context, passenger models.Passenger) error {
	return db.upsert(ctx, passengersCollection, bson.D{{Key: "index", Value: passenger.Index}}, passenger)
}

// DeletePassengersByBatch removes every passenger that departed in batchHash.
func (db *Database) DeletePassengersByBatch(ctx context.Context, batchHash string) error {
	_, err := db.collection(passengersCollection).DeleteMany(ctx, bson.D{{Key: "batch_hash", Value: batchHash}})
	if err != nil {
		return fmt.Errorf("failed to delete passengers: %w", err)
	}
	return nil
}

func (db *Database) GetPassengers(ctx context.Context, status string) ([]models.Passenger, error) {
	return find[models.Passenger](ctx, db.collection(passengersCollection), statusFilter(status),
		options.Find().SetSort(bson.D{{Key: "block_number", Value: 1}}))
}

func (db *Database) ListPassengers(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error) {
	return paginate[models.Passenger](ctx, db.collection(passengersCollection), statusFilter(filter.Status),
		bson.D{{Key: "block_number", Value: -1}}, page, pageSize)
}
