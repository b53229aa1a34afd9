// Package mongo persists the ledger in MongoDB. Units of work are
// multi-document transactions, so the server must run as a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

const (
	customersCollection    = "customers"
	transactionsCollection = "transactions"

	defaultServerSelectionTimeout = 5 * time.Second

	// writeConflict is the server code for a concurrent transactional write.
	writeConflict = 112
	// transientTxnLabel marks a transaction the server aborted and the
	// client may retry from the start.
	transientTxnLabel = "TransientTransactionError"

	mobileIndex = "customers_mobile"
)

type MongoLedgerStore struct {
	client       *mongo.Client
	customers    *mongo.Collection
	transactions *mongo.Collection
	logger       *zap.Logger
}

// Open connects to uri, ensures the indexes exist in database and returns
// the store.
func Open(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoLedgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(defaultServerSelectionTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	s := NewMongoLedgerStore(client, database, logger)
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// NewMongoLedgerStore wraps a connected client. Call EnsureIndexes before
// relying on uniqueness of mobiles and idempotency keys.
func NewMongoLedgerStore(client *mongo.Client, database string, logger *zap.Logger) *MongoLedgerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := client.Database(database)
	return &MongoLedgerStore{
		client:       client,
		customers:    db.Collection(customersCollection),
		transactions: db.Collection(transactionsCollection),
		logger:       logger,
	}
}

// EnsureIndexes creates the unique and lookup indexes if they are missing.
func (s *MongoLedgerStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.customers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetName(mobileIndex).SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: customer indexes: %w", err)
	}

	_, err = s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{
			Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "idempotency_key", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: transaction indexes: %w", err)
	}
	s.logger.Debug("mongo indexes ensured")
	return nil
}

func (s *MongoLedgerStore) Begin(ctx context.Context) (interfaces.UnitOfWork, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongo: start session: %w", err)
	}
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txOpts); err != nil {
		sess.EndSession(ctx)
		return nil, fmt.Errorf("mongo: start transaction: %w", err)
	}
	return &unit{store: s, sess: sess}, nil
}

func (s *MongoLedgerStore) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	return findCustomer(ctx, s.customers, id)
}

func (s *MongoLedgerStore) ListCustomersByOwner(ctx context.Context, ownerID string) ([]models.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.customers.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []customerDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	customers := make([]models.Customer, 0, len(docs))
	for _, d := range docs {
		c, err := d.model()
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, nil
}

func (s *MongoLedgerStore) GetTransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := s.transactions.Find(ctx, bson.M{"customer_id": customerID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	txs := make([]models.Transaction, 0, len(docs))
	for _, d := range docs {
		t, err := d.model()
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func (s *MongoLedgerStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// Drop removes both collections. Used by tests and local resets.
func (s *MongoLedgerStore) Drop(ctx context.Context) error {
	if err := s.transactions.Drop(ctx); err != nil {
		return err
	}
	return s.customers.Drop(ctx)
}

func findCustomer(ctx context.Context, coll *mongo.Collection, id string) (models.Customer, error) {
	var doc customerDoc
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Customer{}, fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	if err != nil {
		return models.Customer{}, err
	}
	return doc.model()
}

// isDuplicateMobile reports a duplicate key on the mobile index. An _id
// collision is also a duplicate key error but names the _id_ index.
func isDuplicateMobile(err error) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "index: "+mobileIndex+" ")
}

// isWriteConflict reports a transactional conflict with another session.
func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(writeConflict) || se.HasErrorLabel(transientTxnLabel)
}

var _ interfaces.LedgerStore = (*MongoLedgerStore)(nil)
