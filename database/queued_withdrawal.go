package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floxi-finance/floxi-keeper/database/models"
)

func (db *Database) UpsertQueuedWithdrawal(ctx context.Context, withdrawal models.QueuedWithdrawal) error {
	return db.upsert(ctx, queuedWithdrawalsCollection, bson.D{{Key: "nonce", Value: withdrawal.Nonce}}, withdrawal)
}

func (db *Database) DeleteQueuedWithdrawal(ctx context.Context, nonce string) error {
	return db.deleteOne(ctx, queuedWithdrawalsCollection, bson.D{{Key: "nonce", Value: nonce}})
}

func (db *Database) GetQueuedWithdrawals(ctx context.Context) ([]models.QueuedWithdrawal, error) {
	return find[models.QueuedWithdrawal](ctx, db.collection(queuedWithdrawalsCollection), bson.D{},
		options.Find().SetSort(bson.D{{Key: "start_block", Value: 1}}))
}

func (db *Database) ListQueuedWithdrawals(ctx context.Context, page, pageSize int64) (*models.PaginatedResult, error) {
	return paginate[models.QueuedWithdrawal](ctx, db.collection(queuedWithdrawalsCollection), bson.D{},
		bson.D{{Key: "start_block", Value: 1}}, page, pageSize)
}
