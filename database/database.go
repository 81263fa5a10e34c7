package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floxi-finance/floxi-keeper/database/models"
)

type Database struct {
	client       *mongo.Client
	databaseName string
	logger       *slog.Logger
}

type DatabaseOpts struct {
	URI          string
	DatabaseName string
	Logger       *slog.Logger
}

const (
	withdrawalRequestsCollection   = "withdrawal_requests"
	queuedWithdrawalsCollection    = "queued_withdrawals"
	passengersCollection           = "passengers"
	completedWithdrawalsCollection = "completed_withdrawals"
	unmatchedDepositsCollection    = "unmatched_deposits"
	lastIndexedBlockCollection     = "last_indexed_block"

	defaultTimeout = 10 * time.Second
)

func NewDatabase(opts DatabaseOpts) (*Database, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetMaxConnecting(5).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		client:       client,
		databaseName: opts.DatabaseName,
		logger:       opts.Logger,
	}, nil
}

func (db *Database) Disconnect(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *Database) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

func (db *Database) CreateIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		withdrawalRequestsCollection: {
			{
				Keys:    bson.D{{Key: "account", Value: 1}, {Key: "nonce", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		queuedWithdrawalsCollection: {
			{
				Keys:    bson.D{{Key: "nonce", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		passengersCollection: {
			{
				Keys:    bson.D{{Key: "index", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "batch_hash", Value: 1}}},
		},
		completedWithdrawalsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "batch_id", Value: 1}}},
		},
		unmatchedDepositsCollection: {
			{Keys: bson.D{{Key: "block_number", Value: 1}, {Key: "log_index", Value: 1}}},
		},
		lastIndexedBlockCollection: {
			{
				Keys:    bson.D{{Key: "subscription", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for name, idx := range indexes {
		if _, err := db.collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}

	return nil
}

func (db *Database) collection(name string) *mongo.Collection {
	return db.client.Database(db.databaseName).Collection(name)
}

// upsert replaces the document matching filter, inserting it when missing.
func (db *Database) upsert(ctx context.Context, name string, filter bson.D, doc interface{}) error {
	_, err := db.collection(name).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", name, err)
	}
	return nil
}

func (db *Database) deleteOne(ctx context.Context, name string, filter bson.D) error {
	_, err := db.collection(name).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", name, err)
	}
	return nil
}

func find[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return items, nil
}

func paginate[T any](ctx context.Context, coll *mongo.Collection, filter bson.D, sort bson.D, page, pageSize int64) (*models.PaginatedResult, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", coll.Name(), err)
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)

	items, err := find[T](ctx, coll, filter, opts)
	if err != nil {
		return nil, err
	}

	return &models.PaginatedResult{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func statusFilter(status string) bson.D {
	if status == "" {
		return bson.D{}
	}
	return bson.D{{Key: "status", Value: status}}
}
