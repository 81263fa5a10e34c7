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

func withdrawalRequestKey(account, nonce string) bson.D {
	return bson.D{{Key: "account", Value: account}, {Key: "nonce", Value: nonce}}
}

func (db *Database) UpsertWithdrawalRequest(ctx context.Context, request models.WithdrawalRequest) error {
	return db.upsert(ctx, withdrawalRequestsCollection, withdrawalRequestKey(request.Account, request.Nonce), request)
}

// GetWithdrawalRequest returns nil when the request is unknown.
func (db *Database) GetWithdrawalRequest(ctx context.Context, account, nonce string) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	err := db.collection(withdrawalRequestsCollection).FindOne(ctx, withdrawalRequestKey(account, nonce)).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return &request, nil
}

// GetWithdrawalRequests returns every request with the given status, or all
// requests when status is empty.
func (db *Database) GetWithdrawalRequests(ctx context.Context, status string) ([]models.WithdrawalRequest, error) {
	return find[models.WithdrawalRequest](ctx, db.collection(withdrawalRequestsCollection), statusFilter(status),
		options.Find().SetSort(bson.D{{Key: "block_number", Value: 1}}))
}

func (db *Database) ListWithdrawalRequests(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error) {
	query := statusFilter(filter.Status)
	if filter.From != "" {
		query = append(query, bson.E{Key: "account", Value: filter.From})
	}
	return paginate[models.WithdrawalRequest](ctx, db.collection(withdrawalRequestsCollection), query,
		bson.D{{Key: "block_number", Value: -1}}, page, pageSize)
}
