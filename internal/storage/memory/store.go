package memory

import (
	"context" // request-scoped cancellation for units of work
	"fmt"
	"sync" // guards the maps shared by concurrent units

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces" // LedgerStore / UnitOfWork contract
	"github.com/sheikh-saqib/khata-ledger/internal/models"                // Customer, Transaction, sentinel errors
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Units buffer their writes and apply them under one lock at commit, after
// checking that no customer they read has changed since (optimistic
// snapshot isolation on the customer row).
type MemoryLedgerStore struct {
	mu           sync.Mutex                 // protects everything below
	customers    map[string]models.Customer // customer id -> customer
	versions     map[string]uint64          // customer id -> bumped on every write
	mobiles      map[string]string          // mobile -> customer id, enforces uniqueness
	transactions []models.Transaction       // append-only, insertion order
	nextVersion  uint64
}

// NewMemoryLedgerStore creates and returns an empty MemoryLedgerStore.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		customers:    make(map[string]models.Customer),
		versions:     make(map[string]uint64),
		mobiles:      make(map[string]string),
		transactions: make([]models.Transaction, 0),
	}
}

// Begin starts a unit of work. Nothing is locked until Commit.
func (m *MemoryLedgerStore) Begin(ctx context.Context) (interfaces.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unit{
		store: m,
		reads: make(map[string]uint64),
		saves: make(map[string]models.Customer),
	}, nil
}

// GetCustomer returns a committed customer.
func (m *MemoryLedgerStore) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	m.mu.Lock()         // lock to read a consistent snapshot
	defer m.mu.Unlock() // unlock automatically at the end

	c, ok := m.customers[id]
	if !ok {
		return models.Customer{}, fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	return c, nil
}

// ListCustomersByOwner returns the owner's customers in no particular order.
func (m *MemoryLedgerStore) ListCustomersByOwner(ctx context.Context, ownerID string) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Customer
	for _, c := range m.customers {
		if c.OwnerID == ownerID {
			result = append(result, c)
		}
	}
	return result, nil
}

// GetTransactionsByCustomer returns the customer's transactions in the
// order they were committed.
func (m *MemoryLedgerStore) GetTransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Transaction
	for _, t := range m.transactions {
		if t.CustomerID == customerID {
			result = append(result, t)
		}
	}
	return result, nil
}

// Transactions returns a copy of every committed transaction.
// Useful for tests and debugging.
func (m *MemoryLedgerStore) Transactions() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.Transaction, len(m.transactions))
	copy(copied, m.transactions) // copy so callers can't modify internal state
	return copied
}

// Close is a no-op; memory is released with the store.
func (m *MemoryLedgerStore) Close() error { return nil }

// unit buffers the writes of one unit of work.
type unit struct {
	store   *MemoryLedgerStore
	reads   map[string]uint64 // customer id -> version observed at first read
	inserts []models.Customer
	saves   map[string]models.Customer
	deletes []string
	txs     []models.Transaction
	done    bool
}

func (u *unit) checkOpen() error {
	if u.done {
		return fmt.Errorf("%w: unit of work already finished", models.ErrCommitFailure)
	}
	return nil
}

func (u *unit) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	if err := u.checkOpen(); err != nil {
		return models.Customer{}, err
	}
	if c, ok := u.saves[id]; ok {
		return c, nil
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	c, ok := u.store.customers[id]
	if !ok {
		return models.Customer{}, fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	if _, seen := u.reads[id]; !seen {
		u.reads[id] = u.store.versions[id]
	}
	return c, nil
}

func (u *unit) InsertCustomer(ctx context.Context, c models.Customer) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	u.inserts = append(u.inserts, c)
	return nil
}

func (u *unit) SaveCustomer(ctx context.Context, c models.Customer) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	if _, seen := u.reads[c.ID]; !seen {
		// Writing a row the unit never read: pin the current version now.
		if _, err := u.GetCustomer(ctx, c.ID); err != nil {
			return err
		}
	}
	u.saves[c.ID] = c
	return nil
}

func (u *unit) DeleteCustomer(ctx context.Context, id string) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	if _, seen := u.reads[id]; !seen {
		if _, err := u.GetCustomer(ctx, id); err != nil {
			return err
		}
	}
	u.deletes = append(u.deletes, id)
	return nil
}

func (u *unit) CountTransactions(ctx context.Context, customerID string) (int, error) {
	if err := u.checkOpen(); err != nil {
		return 0, err
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	n := 0
	for _, t := range u.store.transactions {
		if t.CustomerID == customerID {
			n++
		}
	}
	for _, t := range u.txs {
		if t.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (u *unit) FindTransactionByKey(ctx context.Context, customerID, key string) (models.Transaction, bool, error) {
	if err := u.checkOpen(); err != nil {
		return models.Transaction{}, false, err
	}
	for _, t := range u.txs {
		if t.CustomerID == customerID && t.IdempotencyKey == key {
			return t, true, nil
		}
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if t, ok := u.store.findByKeyLocked(customerID, key); ok {
		return t, true, nil
	}
	return models.Transaction{}, false, nil
}

func (u *unit) CreateTransaction(ctx context.Context, tx models.Transaction) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	u.txs = append(u.txs, tx)
	return nil
}

// Commit validates every buffered write against the current state and then
// applies all of them, or none.
func (u *unit) Commit(ctx context.Context) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	u.done = true
	if err := ctx.Err(); err != nil {
		return err
	}

	m := u.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := u.checkLocked(); err != nil {
		return err
	}

	for _, c := range u.inserts {
		m.putLocked(c)
	}
	for _, c := range u.saves {
		m.putLocked(c)
	}
	for _, id := range u.deletes {
		if c, ok := m.customers[id]; ok {
			delete(m.mobiles, c.Mobile)
		}
		delete(m.customers, id)
		delete(m.versions, id)
	}
	m.transactions = append(m.transactions, u.txs...)
	return nil
}

// checkLocked runs every commit-time check. Caller holds m.mu.
func (u *unit) checkLocked() error {
	m := u.store

	for id, seen := range u.reads {
		if m.versions[id] != seen {
			return fmt.Errorf("%w: customer %s changed since it was read", models.ErrConflict, id)
		}
	}

	claimed := make(map[string]string) // mobile -> id, within this unit
	claim := func(c models.Customer) error {
		if owner, ok := m.mobiles[c.Mobile]; ok && owner != c.ID {
			return fmt.Errorf("%w: %s", models.ErrDuplicateMobile, c.Mobile)
		}
		if owner, ok := claimed[c.Mobile]; ok && owner != c.ID {
			return fmt.Errorf("%w: %s", models.ErrDuplicateMobile, c.Mobile)
		}
		claimed[c.Mobile] = c.ID
		return nil
	}
	for _, c := range u.inserts {
		if _, exists := m.customers[c.ID]; exists {
			return fmt.Errorf("%w: customer %s already exists", models.ErrConflict, c.ID)
		}
		if err := claim(c); err != nil {
			return err
		}
	}
	for _, c := range u.saves {
		if err := claim(c); err != nil {
			return err
		}
	}

	for i, t := range u.txs {
		if t.IdempotencyKey == "" {
			continue
		}
		if _, ok := m.findByKeyLocked(t.CustomerID, t.IdempotencyKey); ok {
			return fmt.Errorf("%w: idempotency key %q already used", models.ErrConflict, t.IdempotencyKey)
		}
		for _, other := range u.txs[:i] {
			if other.CustomerID == t.CustomerID && other.IdempotencyKey == t.IdempotencyKey {
				return fmt.Errorf("%w: idempotency key %q repeated in unit", models.ErrConflict, t.IdempotencyKey)
			}
		}
	}
	return nil
}

// Abort discards the buffered writes. Safe to call after Commit.
func (u *unit) Abort(ctx context.Context) error {
	u.done = true
	u.inserts, u.saves, u.deletes, u.txs = nil, nil, nil, nil
	return nil
}

// putLocked stores c and bumps its version. Caller holds m.mu.
func (m *MemoryLedgerStore) putLocked(c models.Customer) {
	if old, ok := m.customers[c.ID]; ok && old.Mobile != c.Mobile {
		delete(m.mobiles, old.Mobile)
	}
	m.nextVersion++
	m.customers[c.ID] = c
	m.versions[c.ID] = m.nextVersion
	m.mobiles[c.Mobile] = c.ID
}

// findByKeyLocked looks up a committed transaction. Caller holds m.mu.
func (m *MemoryLedgerStore) findByKeyLocked(customerID, key string) (models.Transaction, bool) {
	for _, t := range m.transactions {
		if t.CustomerID == customerID && t.IdempotencyKey == key {
			return t, true
		}
	}
	return models.Transaction{}, false
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
