package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/lock"
	"github.com/sheikh-saqib/khata-ledger/internal/metrics"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
	"github.com/sheikh-saqib/khata-ledger/internal/models/events"
)

// Ledger applies transactions to customer balances. Each apply reads the
// customer, reconciles the balance and writes the transaction together with
// the new balance in one unit of work.
type Ledger struct {
	store     interfaces.LedgerStore // any storage implementation
	locker    interfaces.Locker      // serializes work per customer
	publisher interfaces.EventPublisher
	topic     string
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithLocker replaces the default in-process per-customer lock.
func WithLocker(l interfaces.Locker) Option {
	return func(led *Ledger) { led.locker = l }
}

// WithPublisher emits a TransactionRecorded event on topic after every commit.
func WithPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(led *Ledger) {
		led.publisher = p
		led.topic = topic
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(led *Ledger) { led.logger = logger }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) { led.now = now }
}

// NewLedger creates a Ledger over store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		locker: lock.NewLocal(),
		topic:  events.TransactionRecordedTopic,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// ApplyRequest asks for money to be recorded against a customer.
type ApplyRequest struct {
	CustomerID  string
	Type        models.TransactionType
	Amount      decimal.Decimal
	Description string
	// Date defaults to the time of the apply.
	Date time.Time
	// IdempotencyKey, when set, makes retries of the same request return the
	// original transaction instead of recording a new one.
	IdempotencyKey string
}

func (r ApplyRequest) validate() error {
	switch {
	case strings.TrimSpace(r.CustomerID) == "":
		return fmt.Errorf("%w: customer id is required", models.ErrValidation)
	case !r.Type.Valid():
		return fmt.Errorf("%w: transaction type must be %q or %q", models.ErrValidation, models.TransactionGiven, models.TransactionReceived)
	}
	return models.CheckAmount(r.Amount)
}

// ApplyResult is what ApplyTransaction committed, or found already committed
// when Replayed is set.
type ApplyResult struct {
	Transaction models.Transaction
	Customer    models.Customer
	Replayed    bool
}

// ApplyTransaction records req and updates the customer's due and advance
// amounts atomically. On error nothing has been written.
func (l *Ledger) ApplyTransaction(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	start := time.Now()
	defer func() { metrics.ApplyDuration.Observe(time.Since(start).Seconds()) }()

	if err := req.validate(); err != nil {
		metrics.ApplyFailures.WithLabelValues(metrics.ReasonValidation).Inc()
		return ApplyResult{}, err
	}

	var result ApplyResult
	err := l.inUnit(ctx, req.CustomerID, func(ctx context.Context, unit interfaces.UnitOfWork) error {
		var err error
		result, err = l.apply(ctx, unit, req)
		return err
	})
	if err != nil {
		metrics.ApplyFailures.WithLabelValues(failureReason(err)).Inc()
		if errors.Is(err, models.ErrCommitFailure) {
			l.logger.Warn("apply transaction failed",
				zap.String("customer_id", req.CustomerID),
				zap.String("type", string(req.Type)),
				zap.Error(err))
		}
		return ApplyResult{}, fmt.Errorf("apply transaction for customer %s: %w", req.CustomerID, err)
	}

	if result.Replayed {
		metrics.TransactionsReplayed.Inc()
		return result, nil
	}

	metrics.TransactionsApplied.WithLabelValues(string(result.Transaction.Type)).Inc()
	l.logger.Info("transaction applied",
		zap.String("transaction_id", result.Transaction.ID),
		zap.String("customer_id", result.Customer.ID),
		zap.String("type", string(result.Transaction.Type)),
		zap.String("amount", result.Transaction.Amount.String()),
		zap.String("net_balance", result.Customer.NetBalance.String()))

	l.publish(ctx, result)
	return result, nil
}

// apply reconciles the customer's balance and stages the transaction and
// the new balance in unit. inUnit commits them.
func (l *Ledger) apply(ctx context.Context, unit interfaces.UnitOfWork, req ApplyRequest) (ApplyResult, error) {
	customer, err := unit.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return ApplyResult{}, storeFailure("load customer", err)
	}

	if req.IdempotencyKey != "" {
		prev, found, err := unit.FindTransactionByKey(ctx, customer.ID, req.IdempotencyKey)
		if err != nil {
			return ApplyResult{}, storeFailure("look up idempotency key", err)
		}
		if found {
			if prev.Type != req.Type || !prev.Amount.Equal(req.Amount) {
				return ApplyResult{}, fmt.Errorf("%w: idempotency key %q was used for a different transaction", models.ErrConflict, req.IdempotencyKey)
			}
			return ApplyResult{Transaction: prev, Customer: customer, Replayed: true}, nil
		}
	}

	updated, err := reconcile(customer, req.Type, req.Amount)
	if err != nil {
		return ApplyResult{}, err
	}

	now := l.now().UTC()
	updated.UpdatedAt = now

	date := req.Date
	if date.IsZero() {
		date = now
	}
	tx := models.Transaction{
		ID:             l.newID(),
		OwnerID:        customer.OwnerID,
		CustomerID:     customer.ID,
		Type:           req.Type,
		Amount:         req.Amount,
		Description:    strings.TrimSpace(req.Description),
		Date:           date,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}
	if err := tx.Validate(); err != nil {
		return ApplyResult{}, err
	}

	if err := unit.CreateTransaction(ctx, tx); err != nil {
		return ApplyResult{}, storeFailure("create transaction", err)
	}
	if err := unit.SaveCustomer(ctx, updated); err != nil {
		return ApplyResult{}, storeFailure("save customer", err)
	}

	return ApplyResult{Transaction: tx, Customer: updated}, nil
}

// publish hands the committed result to the event publisher. The commit is
// already durable, so a failure is reported but does not fail the apply.
func (l *Ledger) publish(ctx context.Context, res ApplyResult) {
	if l.publisher == nil {
		return
	}
	event := events.TransactionRecorded{
		TransactionID: res.Transaction.ID,
		OwnerID:       res.Transaction.OwnerID,
		CustomerID:    res.Transaction.CustomerID,
		Type:          string(res.Transaction.Type),
		Amount:        res.Transaction.Amount,
		DueAmount:     res.Customer.DueAmount,
		AdvanceAmount: res.Customer.AdvanceAmount,
		NetBalance:    res.Customer.NetBalance,
		OccurredAt:    res.Transaction.CreatedAt,
	}
	if err := l.publisher.Publish(context.WithoutCancel(ctx), l.topic, res.Transaction.CustomerID, event); err != nil {
		metrics.EventPublishFailures.Inc()
		l.logger.Warn("publish transaction event failed",
			zap.String("transaction_id", res.Transaction.ID),
			zap.String("topic", l.topic),
			zap.Error(err))
	}
}

// Statement is a customer's transaction history with their current net balance.
type Statement struct {
	CustomerID   string               `json:"customerId"`
	Transactions []models.Transaction `json:"transactions"`
	NetBalance   decimal.Decimal      `json:"netBalance"`
}

// NoTransactions reports a customer that exists but has no history yet.
func (s Statement) NoTransactions() bool { return len(s.Transactions) == 0 }

// GetTransactionsForCustomer returns every transaction recorded for the
// customer, in insertion order, with the customer's net balance.
func (l *Ledger) GetTransactionsForCustomer(ctx context.Context, customerID string) (Statement, error) {
	if strings.TrimSpace(customerID) == "" {
		return Statement{}, fmt.Errorf("%w: customer id is required", models.ErrValidation)
	}

	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return Statement{}, fmt.Errorf("get transactions for customer %s: %w", customerID, err)
	}

	txs, err := l.store.GetTransactionsByCustomer(ctx, customerID)
	if err != nil {
		return Statement{}, fmt.Errorf("get transactions for customer %s: %w", customerID, err)
	}

	return Statement{
		CustomerID:   customer.ID,
		Transactions: txs,
		NetBalance:   customer.NetBalance,
	}, nil
}

func customerLockKey(id string) string { return "customer:" + id }

// commitFailure marks err as a failure of the atomic phase.
func commitFailure(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrCommitFailure, step, err)
}

// storeFailure keeps domain errors reported by a store as they are and
// classifies everything else as a commit failure.
func storeFailure(step string, err error) error {
	switch {
	case errors.Is(err, models.ErrCustomerNotFound),
		errors.Is(err, models.ErrDuplicateMobile),
		errors.Is(err, models.ErrCustomerHasTransactions),
		errors.Is(err, models.ErrValidation):
		return err
	}
	return commitFailure(step, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return metrics.ReasonValidation
	case errors.Is(err, models.ErrCustomerNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, models.ErrConflict):
		return metrics.ReasonConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ReasonCancelled
	default:
		return metrics.ReasonCommit
	}
}
