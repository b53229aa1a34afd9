package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// unit runs every operation inside one session transaction.
type unit struct {
	store *MongoLedgerStore
	sess  mongo.Session
	done  bool
}

func (u *unit) ctx(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.sess)
}

func (u *unit) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	c, err := findCustomer(u.ctx(ctx), u.store.customers, id)
	return c, u.translate(err)
}

func (u *unit) InsertCustomer(ctx context.Context, c models.Customer) error {
	doc, err := newCustomerDoc(c)
	if err != nil {
		return err
	}
	_, err = u.store.customers.InsertOne(u.ctx(ctx), doc)
	if isDuplicateMobile(err) {
		return fmt.Errorf("%w: %s", models.ErrDuplicateMobile, c.Mobile)
	}
	return u.translate(err)
}

func (u *unit) SaveCustomer(ctx context.Context, c models.Customer) error {
	doc, err := newCustomerDoc(c)
	if err != nil {
		return err
	}
	res, err := u.store.customers.UpdateOne(u.ctx(ctx), bson.M{"_id": c.ID}, bson.M{"$set": bson.M{
		"name":           doc.Name,
		"mobile":         doc.Mobile,
		"address":        doc.Address,
		"due_amount":     doc.DueAmount,
		"advance_amount": doc.AdvanceAmount,
		"net_balance":    doc.NetBalance,
		"updated_at":     doc.UpdatedAt,
	}})
	if isDuplicateMobile(err) {
		return fmt.Errorf("%w: %s", models.ErrDuplicateMobile, c.Mobile)
	}
	if err != nil {
		return u.translate(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", models.ErrCustomerNotFound, c.ID)
	}
	return nil
}

func (u *unit) DeleteCustomer(ctx context.Context, id string) error {
	res, err := u.store.customers.DeleteOne(u.ctx(ctx), bson.M{"_id": id})
	if err != nil {
		return u.translate(err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	return nil
}

func (u *unit) CountTransactions(ctx context.Context, customerID string) (int, error) {
	n, err := u.store.transactions.CountDocuments(u.ctx(ctx), bson.M{"customer_id": customerID})
	return int(n), u.translate(err)
}

func (u *unit) FindTransactionByKey(ctx context.Context, customerID, key string) (models.Transaction, bool, error) {
	var doc transactionDoc
	err := u.store.transactions.FindOne(u.ctx(ctx), bson.M{"customer_id": customerID, "idempotency_key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, u.translate(err)
	}
	t, err := doc.model()
	if err != nil {
		return models.Transaction{}, false, err
	}
	return t, true, nil
}

// CreateTransaction bumps the customer's sequence, which also makes any
// concurrent unit touching the customer fail with a write conflict.
func (u *unit) CreateTransaction(ctx context.Context, t models.Transaction) error {
	sctx := u.ctx(ctx)

	var seq struct {
		TxSeq int64 `bson:"tx_seq"`
	}
	err := u.store.customers.FindOneAndUpdate(sctx,
		bson.M{"_id": t.CustomerID},
		bson.M{"$inc": bson.M{"tx_seq": 1}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"tx_seq": 1}),
	).Decode(&seq)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", models.ErrCustomerNotFound, t.CustomerID)
	}
	if err != nil {
		return u.translate(err)
	}

	doc, err := newTransactionDoc(t, seq.TxSeq)
	if err != nil {
		return err
	}
	_, err = u.store.transactions.InsertOne(sctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: idempotency key %q already used", models.ErrConflict, t.IdempotencyKey)
	}
	return u.translate(err)
}

func (u *unit) Commit(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("%w: unit of work already finished", models.ErrCommitFailure)
	}
	u.done = true
	defer u.sess.EndSession(context.WithoutCancel(ctx))

	return u.translate(u.sess.CommitTransaction(ctx))
}

// Abort aborts the session transaction. Safe to call after Commit.
func (u *unit) Abort(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	ctx = context.WithoutCancel(ctx)
	defer u.sess.EndSession(ctx)

	// A failed write has already aborted the transaction on the server.
	if err := u.sess.AbortTransaction(ctx); err != nil {
		u.store.logger.Debug("abort transaction", zap.Error(err))
	}
	return nil
}

func (u *unit) translate(err error) error {
	if err == nil {
		return nil
	}
	if isWriteConflict(err) {
		return fmt.Errorf("%w: %w", models.ErrConflict, err)
	}
	return err
}
