// Package storetest holds the behaviour every interfaces.LedgerStore must
// share. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/ledger"
	"github.com/sheikh-saqib/khata-ledger/internal/lock"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) interfaces.LedgerStore

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, interfaces.LedgerStore)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"DuplicateMobile", testDuplicateMobile},
		{"AbortDiscardsWrites", testAbortDiscardsWrites},
		{"AbortAfterCommit", testAbortAfterCommit},
		{"ListByOwner", testListByOwner},
		{"TransactionOrder", testTransactionOrder},
		{"IdempotencyKey", testIdempotencyKey},
		{"DeleteCustomer", testDeleteCustomer},
		{"LedgerRoundTrip", testLedgerRoundTrip},
		{"LedgerConcurrentApply", testLedgerConcurrentApply},
		{"LedgerConcurrentApplyUnlocked", testLedgerConcurrentApplyUnlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var base = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func seed(t *testing.T, s interfaces.LedgerStore, id, owner, mobile string) models.Customer {
	t.Helper()
	ctx := context.Background()

	c, err := models.NewCustomer(id, owner, "Ravi "+id, mobile, "Market Road", base)
	require.NoError(t, err)

	u, err := s.Begin(ctx)
	require.NoError(t, err)
	defer u.Abort(ctx)
	require.NoError(t, u.InsertCustomer(ctx, c))
	require.NoError(t, u.Commit(ctx))
	return c
}

func record(id string, c models.Customer, typ models.TransactionType, amount int64, key string, at time.Time) models.Transaction {
	return models.Transaction{
		ID:             id,
		OwnerID:        c.OwnerID,
		CustomerID:     c.ID,
		Type:           typ,
		Amount:         decimal.NewFromInt(amount),
		Description:    "entry " + id,
		Date:           at,
		IdempotencyKey: key,
		CreatedAt:      at,
	}
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), "%s = %s, want %d", field, got, want)
}

func testInsertAndGet(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	want := seed(t, s, "c1", "owner-1", "9000000001")

	got, err := s.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Mobile, got.Mobile)
	assert.Equal(t, "Market Road", got.Address)
	assert.True(t, got.CreatedAt.Equal(base))
	assertAmount(t, 0, got.NetBalance, "net")

	_, err = s.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)

	u, err := s.Begin(ctx)
	require.NoError(t, err)
	defer u.Abort(ctx)
	_, err = u.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
}

func testDuplicateMobile(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	seed(t, s, "c1", "owner-1", "9000000001")

	dup, err := models.NewCustomer("c2", "owner-2", "Asha", "9000000001", "", base)
	require.NoError(t, err)

	u, err := s.Begin(ctx)
	require.NoError(t, err)
	// Stores may reject at the write or at commit.
	err = u.InsertCustomer(ctx, dup)
	if err == nil {
		err = u.Commit(ctx)
	}
	assert.ErrorIs(t, err, models.ErrDuplicateMobile)
	require.NoError(t, u.Abort(ctx))

	_, err = s.GetCustomer(ctx, "c2")
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
}

func testAbortDiscardsWrites(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := seed(t, s, "c1", "owner-1", "9000000001")

	u, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := u.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, u.CreateTransaction(ctx, record("t1", c, models.TransactionGiven, 10, "", base)))
	locked.DueAmount = decimal.NewFromInt(10)
	locked.RecomputeNet()
	require.NoError(t, u.SaveCustomer(ctx, locked))
	require.NoError(t, u.Abort(ctx))

	txs, err := s.GetTransactionsByCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assertAmount(t, 0, got.DueAmount, "due")
}

func testAbortAfterCommit(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := seed(t, s, "c1", "owner-1", "9000000001")

	u, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, u.CreateTransaction(ctx, record("t1", c, models.TransactionGiven, 10, "", base)))
	require.NoError(t, u.Commit(ctx))
	require.NoError(t, u.Abort(ctx))

	txs, err := s.GetTransactionsByCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func testListByOwner(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	seed(t, s, "c1", "owner-1", "9000000001")
	seed(t, s, "c2", "owner-1", "9000000002")
	seed(t, s, "c3", "owner-2", "9000000003")

	mine, err := s.ListCustomersByOwner(ctx, "owner-1")
	require.NoError(t, err)
	ids := make([]string, 0, len(mine))
	for _, c := range mine {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)

	none, err := s.ListCustomersByOwner(ctx, "owner-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTransactionOrder(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := seed(t, s, "c1", "owner-1", "9000000001")
	other := seed(t, s, "c2", "owner-1", "9000000002")

	// Dates deliberately out of order; statements follow insertion.
	for i, id := range []string{"t1", "t2", "t3"} {
		u, err := s.Begin(ctx)
		require.NoError(t, err)
		at := base.Add(-time.Duration(i) * time.Hour)
		require.NoError(t, u.CreateTransaction(ctx, record(id, c, models.TransactionGiven, int64(10*(i+1)), "", at)))
		require.NoError(t, u.CreateTransaction(ctx, record(id+"-other", other, models.TransactionReceived, 1, "", at)))
		require.NoError(t, u.Commit(ctx))
	}

	txs, err := s.GetTransactionsByCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for i, id := range []string{"t1", "t2", "t3"} {
		assert.Equal(t, id, txs[i].ID)
		assert.Equal(t, models.TransactionGiven, txs[i].Type)
		assertAmount(t, int64(10*(i+1)), txs[i].Amount, "amount")
	}
	assert.True(t, txs[1].Date.Equal(base.Add(-time.Hour)))
	assert.Equal(t, "entry t1", txs[0].Description)
}

func testIdempotencyKey(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := seed(t, s, "c1", "owner-1", "9000000001")

	u, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, u.CreateTransaction(ctx, record("t1", c, models.TransactionGiven, 10, "key-1", base)))
	require.NoError(t, u.Commit(ctx))

	u, err = s.Begin(ctx)
	require.NoError(t, err)

	found, ok, err := u.FindTransactionByKey(ctx, c.ID, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t1", found.ID)
	assert.Equal(t, "key-1", found.IdempotencyKey)

	_, ok, err = u.FindTransactionByKey(ctx, c.ID, "key-2")
	require.NoError(t, err)
	assert.False(t, ok)

	err = u.CreateTransaction(ctx, record("t2", c, models.TransactionGiven, 10, "key-1", base))
	if err == nil {
		err = u.Commit(ctx)
	}
	assert.ErrorIs(t, err, models.ErrConflict)
	require.NoError(t, u.Abort(ctx))

	// Transactions without a key never collide.
	u2, err := s.Begin(ctx)
	require.NoError(t, err)
	defer u2.Abort(ctx)
	require.NoError(t, u2.CreateTransaction(ctx, record("t3", c, models.TransactionGiven, 1, "", base)))
	require.NoError(t, u2.CreateTransaction(ctx, record("t4", c, models.TransactionGiven, 1, "", base)))
	require.NoError(t, u2.Commit(ctx))
}

func testDeleteCustomer(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := seed(t, s, "c1", "owner-1", "9000000001")

	u, err := s.Begin(ctx)
	require.NoError(t, err)
	n, err := u.CountTransactions(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, u.DeleteCustomer(ctx, c.ID))
	require.NoError(t, u.Commit(ctx))

	_, err = s.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)

	// The mobile is free again.
	seed(t, s, "c2", "owner-1", "9000000001")
}

func testLedgerRoundTrip(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	l := ledger.NewLedger(s, ledger.WithClock(func() time.Time { return base }))

	c, err := l.CreateCustomer(ctx, ledger.NewCustomerRequest{OwnerID: "owner-1", Name: "Ravi", Mobile: "9000000001"})
	require.NoError(t, err)

	steps := []struct {
		typ     models.TransactionType
		amount  int64
		due     int64
		advance int64
	}{
		{models.TransactionReceived, 100, 0, 100},
		{models.TransactionGiven, 30, 0, 70},
		{models.TransactionGiven, 100, 30, 0},
		{models.TransactionReceived, 50, 0, 20},
	}
	for i, step := range steps {
		res, err := l.ApplyTransaction(ctx, ledger.ApplyRequest{
			CustomerID: c.ID,
			Type:       step.typ,
			Amount:     decimal.NewFromInt(step.amount),
		})
		require.NoError(t, err, "step %d", i)
		assertAmount(t, step.due, res.Customer.DueAmount, "due")
		assertAmount(t, step.advance, res.Customer.AdvanceAmount, "advance")
	}

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assertAmount(t, 20, got.NetBalance, "net")

	stmt, err := l.GetTransactionsForCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, stmt.Transactions, len(steps))
	assertAmount(t, 20, stmt.NetBalance, "statement net")

	err = l.DeleteCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, models.ErrCustomerHasTransactions)
}

func testLedgerConcurrentApply(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	l := ledger.NewLedger(s)

	c, err := l.CreateCustomer(ctx, ledger.NewCustomerRequest{OwnerID: "owner-1", Name: "Ravi", Mobile: "9000000001"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ := models.TransactionGiven
			if i%2 == 1 {
				typ = models.TransactionReceived
			}
			_, err := l.ApplyTransaction(ctx, ledger.ApplyRequest{
				CustomerID:     c.ID,
				Type:           typ,
				Amount:         decimal.NewFromInt(int64(i + 1)),
				IdempotencyKey: fmt.Sprintf("k-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// received sums to 2+4+...+20 = 110, given to 1+3+...+19 = 100
	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assertAmount(t, 10, got.NetBalance, "net")
	require.NoError(t, got.CheckBalance())

	txs, err := s.GetTransactionsByCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, txs, n)
}

// testLedgerConcurrentApplyUnlocked leaves isolation to the store alone.
// An apply may lose a race with ErrConflict, but no committed apply is lost.
func testLedgerConcurrentApplyUnlocked(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	l := ledger.NewLedger(s, ledger.WithLocker(lock.Noop{}))

	c, err := l.CreateCustomer(ctx, ledger.NewCustomerRequest{OwnerID: "owner-1", Name: "Ravi", Mobile: "9000000001"})
	require.NoError(t, err)

	const n = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyTransaction(ctx, ledger.ApplyRequest{
				CustomerID: c.ID,
				Type:       models.TransactionGiven,
				Amount:     decimal.NewFromInt(1),
			})
			if err != nil {
				assert.ErrorIs(t, err, models.ErrConflict)
				return
			}
			mu.Lock()
			applied++
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Positive(t, applied)

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assertAmount(t, applied, got.DueAmount, "due")
	assertAmount(t, -applied, got.NetBalance, "net")

	txs, err := s.GetTransactionsByCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, txs, int(applied))
}
