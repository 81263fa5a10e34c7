package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floxi-finance/floxi-keeper/database/models"
)

// UpsertCompletedWithdrawals writes all entries in one unordered bulk write.
func (db *Database) UpsertCompletedWithdrawals(ctx context.Context, withdrawals []models.CompletedWithdrawal) error {
	if len(withdrawals) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(withdrawals))
	for i, w := range withdrawals {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: w.ID}}).
			SetReplacement(w).
			SetUpsert(true)
	}

	_, err := db.collection(completedWithdrawalsCollection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert completed withdrawals: %w", err)
	}
	return nil
}

func (db *Database) DeleteCompletedWithdrawals(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := db.collection(completedWithdrawalsCollection).DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return fmt.Errorf("failed to delete completed withdrawals: %w", err)
	}
	return nil
}

func (db *Database) GetCompletedWithdrawals(ctx context.Context, status string) ([]models.CompletedWithdrawal, error) {
	return find[models.CompletedWithdrawal](ctx, db.collection(completedWithdrawalsCollection), statusFilter(status),
		options.Find().SetSort(bson.D{{Key: "block_number", Value: 1}, {Key: "log_index", Value: 1}}))
}

func (db *Database) ListCompletedWithdrawals(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error) {
	return paginate[models.CompletedWithdrawal](ctx, db.collection(completedWithdrawalsCollection), statusFilter(filter.Status),
		bson.D{{Key: "block_number", Value: -1}}, page, pageSize)
}
