package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/ledger"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
	"github.com/sheikh-saqib/khata-ledger/internal/models/events"
	"github.com/sheikh-saqib/khata-ledger/internal/storage/memory"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// faultyStore wraps a store and injects failures into its units.
type faultyStore struct {
	interfaces.LedgerStore
	failCreate error
	failSave   error
	failCommit error
}

func (s *faultyStore) Begin(ctx context.Context) (interfaces.UnitOfWork, error) {
	u, err := s.LedgerStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyUnit{UnitOfWork: u, store: s}, nil
}

type faultyUnit struct {
	interfaces.UnitOfWork
	store *faultyStore
}

func (u *faultyUnit) CreateTransaction(ctx context.Context, tx models.Transaction) error {
	if u.store.failCreate != nil {
		return u.store.failCreate
	}
	return u.UnitOfWork.CreateTransaction(ctx, tx)
}

func (u *faultyUnit) SaveCustomer(ctx context.Context, c models.Customer) error {
	if u.store.failSave != nil {
		return u.store.failSave
	}
	return u.UnitOfWork.SaveCustomer(ctx, c)
}

func (u *faultyUnit) Commit(ctx context.Context) error {
	if u.store.failCommit != nil {
		return u.store.failCommit
	}
	return u.UnitOfWork.Commit(ctx)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	events []events.TransactionRecorded
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(events.TransactionRecorded))
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newTestLedger(t *testing.T, store interfaces.LedgerStore, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	opts = append([]ledger.Option{ledger.WithClock(func() time.Time { return fixedNow })}, opts...)
	return ledger.NewLedger(store, opts...)
}

func createCustomer(t *testing.T, l *ledger.Ledger, mobile string) models.Customer {
	t.Helper()
	c, err := l.CreateCustomer(context.Background(), ledger.NewCustomerRequest{
		OwnerID: "owner-1",
		Name:    "Ravi Kumar",
		Mobile:  mobile,
		Address: "MG Road",
	})
	require.NoError(t, err)
	return c
}

// setBalance drives a customer to the given state through the engine itself.
func setBalance(t *testing.T, l *ledger.Ledger, id string, typ models.TransactionType, amount string) {
	t.Helper()
	_, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{CustomerID: id, Type: typ, Amount: dec(amount)})
	require.NoError(t, err)
}

func assertBalance(t *testing.T, c models.Customer, due, advance, net string) {
	t.Helper()
	assert.True(t, c.DueAmount.Equal(dec(due)), "due = %s, want %s", c.DueAmount, due)
	assert.True(t, c.AdvanceAmount.Equal(dec(advance)), "advance = %s, want %s", c.AdvanceAmount, advance)
	assert.True(t, c.NetBalance.Equal(dec(net)), "net = %s, want %s", c.NetBalance, net)
}

func TestApplyTransaction_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, l *ledger.Ledger, id string)
		typ    models.TransactionType
		amount string
		due    string
		adv    string
		net    string
	}{
		{
			name:   "given from zero",
			setup:  func(*testing.T, *ledger.Ledger, string) {},
			typ:    models.TransactionGiven,
			amount: "100",
			due:    "100", adv: "0", net: "-100",
		},
		{
			name: "received reduces due",
			setup: func(t *testing.T, l *ledger.Ledger, id string) {
				setBalance(t, l, id, models.TransactionGiven, "100")
			},
			typ:    models.TransactionReceived,
			amount: "40",
			due:    "60", adv: "0", net: "-60",
		},
		{
			name:   "overpayment with nothing due",
			setup:  func(*testing.T, *ledger.Ledger, string) {},
			typ:    models.TransactionReceived,
			amount: "50",
			due:    "0", adv: "50", net: "50",
		},
		{
			name: "given drains advance then adds due",
			setup: func(t *testing.T, l *ledger.Ledger, id string) {
				setBalance(t, l, id, models.TransactionReceived, "30")
			},
			typ:    models.TransactionGiven,
			amount: "50",
			due:    "20", adv: "0", net: "-20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewMemoryLedgerStore()
			l := newTestLedger(t, store)
			c := createCustomer(t, l, "9000000001")
			tt.setup(t, l, c.ID)

			res, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{
				CustomerID:  c.ID,
				Type:        tt.typ,
				Amount:      dec(tt.amount),
				Description: "  groceries  ",
			})
			require.NoError(t, err)
			assertBalance(t, res.Customer, tt.due, tt.adv, tt.net)

			stored, err := store.GetCustomer(context.Background(), c.ID)
			require.NoError(t, err)
			assertBalance(t, stored, tt.due, tt.adv, tt.net)

			assert.False(t, res.Replayed)
			assert.Equal(t, c.OwnerID, res.Transaction.OwnerID)
			assert.Equal(t, c.ID, res.Transaction.CustomerID)
			assert.Equal(t, tt.typ, res.Transaction.Type)
			assert.Equal(t, "groceries", res.Transaction.Description)
			assert.Equal(t, fixedNow, res.Transaction.Date)
		})
	}
}

func TestApplyTransaction_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  func(id string) ledger.ApplyRequest
	}{
		{"zero amount", func(id string) ledger.ApplyRequest {
			return ledger.ApplyRequest{CustomerID: id, Type: models.TransactionGiven, Amount: decimal.Zero}
		}},
		{"negative amount", func(id string) ledger.ApplyRequest {
			return ledger.ApplyRequest{CustomerID: id, Type: models.TransactionReceived, Amount: dec("-5")}
		}},
		{"huge exponent", func(id string) ledger.ApplyRequest {
			return ledger.ApplyRequest{CustomerID: id, Type: models.TransactionGiven, Amount: dec("1e10000000")}
		}},
		{"tiny exponent", func(id string) ledger.ApplyRequest {
			return ledger.ApplyRequest{CustomerID: id, Type: models.TransactionReceived, Amount: dec("1e-10000000")}
		}},
		{"too many decimal places", func(id string) ledger.ApplyRequest {
			return ledger.ApplyRequest{CustomerID: id, Type: models.TransactionGiven, Amount: dec("10.12345")}
		}},
		{"unknown type", func(id string) ledger.ApplyRequest {
			return ledger.ApplyRequest{CustomerID: id, Type: "lent", Amount: dec("5")}
		}},
		{"empty customer", func(string) ledger.ApplyRequest {
			return ledger.ApplyRequest{CustomerID: " ", Type: models.TransactionGiven, Amount: dec("5")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewMemoryLedgerStore()
			l := newTestLedger(t, store)
			c := createCustomer(t, l, "9000000001")

			_, err := l.ApplyTransaction(context.Background(), tt.req(c.ID))
			require.ErrorIs(t, err, models.ErrValidation)

			stored, err := store.GetCustomer(context.Background(), c.ID)
			require.NoError(t, err)
			assertBalance(t, stored, "0", "0", "0")
			assert.Empty(t, store.Transactions())
		})
	}
}

func TestApplyTransaction_CustomerNotFound(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := newTestLedger(t, store)

	_, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{
		CustomerID: "does-not-exist",
		Type:       models.TransactionGiven,
		Amount:     dec("10"),
	})
	require.ErrorIs(t, err, models.ErrCustomerNotFound)
	assert.NotErrorIs(t, err, models.ErrCommitFailure)
	assert.Empty(t, store.Transactions())
}

func TestApplyTransaction_Conservation(t *testing.T) {
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	c := createCustomer(t, l, "9000000001")

	setBalance(t, l, c.ID, models.TransactionGiven, "123.45")
	res, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{CustomerID: c.ID, Type: models.TransactionReceived, Amount: dec("123.45")})
	require.NoError(t, err)
	assertBalance(t, res.Customer, "0", "0", "0")
}

func TestApplyTransaction_AtomicOnStoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	tests := []struct {
		name  string
		store func(s *faultyStore)
	}{
		{"customer update fails", func(s *faultyStore) { s.failSave = boom }},
		{"transaction insert fails", func(s *faultyStore) { s.failCreate = boom }},
		{"commit fails", func(s *faultyStore) { s.failCommit = boom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.NewMemoryLedgerStore()
			faulty := &faultyStore{LedgerStore: mem}
			l := newTestLedger(t, faulty)
			c := createCustomer(t, l, "9000000001")
			tt.store(faulty)

			_, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{CustomerID: c.ID, Type: models.TransactionGiven, Amount: dec("10")})
			require.ErrorIs(t, err, models.ErrCommitFailure)
			require.ErrorIs(t, err, boom)

			assert.Empty(t, mem.Transactions(), "no transaction may survive a failed apply")
			stored, err := mem.GetCustomer(context.Background(), c.ID)
			require.NoError(t, err)
			assertBalance(t, stored, "0", "0", "0")
		})
	}
}

func TestApplyTransaction_CancelledContext(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := newTestLedger(t, store)
	c := createCustomer(t, l, "9000000001")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.ApplyTransaction(ctx, ledger.ApplyRequest{CustomerID: c.ID, Type: models.TransactionGiven, Amount: dec("10")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Transactions())
}

func TestApplyTransaction_Idempotency(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := newTestLedger(t, store)
	c := createCustomer(t, l, "9000000001")

	req := ledger.ApplyRequest{CustomerID: c.ID, Type: models.TransactionGiven, Amount: dec("100"), IdempotencyKey: "req-1"}

	first, err := l.ApplyTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := l.ApplyTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assertBalance(t, second.Customer, "100", "0", "-100")
	assert.Len(t, store.Transactions(), 1)

	req.Amount = dec("99")
	_, err = l.ApplyTransaction(context.Background(), req)
	require.ErrorIs(t, err, models.ErrConflict)
	assert.Len(t, store.Transactions(), 1)
}

func TestApplyTransaction_ConcurrentSameCustomer(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := newTestLedger(t, store)
	c := createCustomer(t, l, "9000000001")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ := models.TransactionGiven
			if i%5 == 0 {
				typ = models.TransactionReceived
			}
			_, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{CustomerID: c.ID, Type: typ, Amount: dec("2")})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 40 given and 10 received of 2 each: net -60.
	stored, err := store.GetCustomer(context.Background(), c.ID)
	require.NoError(t, err)
	assertBalance(t, stored, "60", "0", "-60")
	assert.Len(t, store.Transactions(), n)
}

func TestApplyTransaction_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), ledger.WithPublisher(pub, "ledger-events"))
	c := createCustomer(t, l, "9000000001")

	res, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{CustomerID: c.ID, Type: models.TransactionGiven, Amount: dec("25")})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "ledger-events", pub.topics[0])
	assert.Equal(t, c.ID, pub.keys[0])
	ev := pub.events[0]
	assert.Equal(t, res.Transaction.ID, ev.TransactionID)
	assert.Equal(t, "given", ev.Type)
	assert.True(t, ev.NetBalance.Equal(dec("-25")))
}

func TestApplyTransaction_PublishFailureKeepsCommit(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	store := memory.NewMemoryLedgerStore()
	l := newTestLedger(t, store, ledger.WithPublisher(pub, "ledger-events"))
	c := createCustomer(t, l, "9000000001")

	_, err := l.ApplyTransaction(context.Background(), ledger.ApplyRequest{CustomerID: c.ID, Type: models.TransactionGiven, Amount: dec("25")})
	require.NoError(t, err)
	assert.Len(t, store.Transactions(), 1)
}

func TestApplyTransaction_ReplayDoesNotPublish(t *testing.T) {
	pub := &recordingPublisher{}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), ledger.WithPublisher(pub, "t"))
	c := createCustomer(t, l, "9000000001")

	req := ledger.ApplyRequest{CustomerID: c.ID, Type: models.TransactionReceived, Amount: dec("5"), IdempotencyKey: "k"}
	for i := 0; i < 3; i++ {
		_, err := l.ApplyTransaction(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Len(t, pub.events, 1)
}

func TestGetTransactionsForCustomer(t *testing.T) {
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	c := createCustomer(t, l, "9000000001")

	stmt, err := l.GetTransactionsForCustomer(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, stmt.NoTransactions())
	assert.True(t, stmt.NetBalance.IsZero())

	for i := 1; i <= 3; i++ {
		setBalance(t, l, c.ID, models.TransactionGiven, fmt.Sprint(i*10))
	}

	stmt, err = l.GetTransactionsForCustomer(context.Background(), c.ID)
	require.NoError(t, err)
	assert.False(t, stmt.NoTransactions())
	require.Len(t, stmt.Transactions, 3)
	assert.True(t, stmt.Transactions[0].Amount.Equal(dec("10")))
	assert.True(t, stmt.Transactions[2].Amount.Equal(dec("30")))
	assert.True(t, stmt.NetBalance.Equal(dec("-60")))

	_, err = l.GetTransactionsForCustomer(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)

	_, err = l.GetTransactionsForCustomer(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrValidation)
}
