package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// Store is a LedgerStore over a *sql.DB. Each unit of work is one database
// transaction.
type Store struct {
	db      *sql.DB
	dialect Dialect
	q       queries
}

type queries struct {
	getCustomer       string
	lockCustomer      string
	listCustomers     string
	insertCustomer    string
	saveCustomer      string
	deleteCustomer    string
	countTransactions string
	findByKey         string
	insertTransaction string
	listTransactions  string
}

// New wraps db. The schema must already exist.
func New(db *sql.DB, d Dialect) *Store {
	get := `SELECT ` + customerColumns + ` FROM customers WHERE id = ?`
	return &Store{
		db:      db,
		dialect: d,
		q: queries{
			getCustomer:   d.rebind(get),
			lockCustomer:  d.rebind(get + d.LockClause),
			listCustomers: d.rebind(`SELECT ` + customerColumns + ` FROM customers WHERE owner_id = ? ORDER BY created_at, id`),
			insertCustomer: d.rebind(`INSERT INTO customers (` + customerColumns + `)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			saveCustomer: d.rebind(`UPDATE customers SET name = ?, mobile = ?, address = ?,
				due_amount = ?, advance_amount = ?, net_balance = ?, updated_at = ? WHERE id = ?`),
			deleteCustomer:    d.rebind(`DELETE FROM customers WHERE id = ?`),
			countTransactions: d.rebind(`SELECT COUNT(*) FROM transactions WHERE customer_id = ?`),
			findByKey: d.rebind(`SELECT ` + transactionColumns + ` FROM transactions
				WHERE customer_id = ? AND idempotency_key = ?`),
			insertTransaction: d.rebind(`INSERT INTO transactions (` + transactionColumns + `)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			listTransactions: d.rebind(`SELECT ` + transactionColumns + ` FROM transactions
				WHERE customer_id = ? ORDER BY seq`),
		},
	}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Begin(ctx context.Context) (interfaces.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.dialect.Name, err)
	}
	return &unit{store: s, tx: tx}, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, s.q.getCustomer, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	return c, err
}

func (s *Store) ListCustomersByOwner(ctx context.Context, ownerID string) ([]models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, s.q.listCustomers, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetTransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.q.listTransactions, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) Close() error { return s.db.Close() }

type unit struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

// GetCustomer reads and locks the row for the rest of the unit.
func (u *unit) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	c, err := scanCustomer(u.tx.QueryRowContext(ctx, u.store.q.lockCustomer, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	return c, err
}

func (u *unit) InsertCustomer(ctx context.Context, c models.Customer) error {
	d := u.store.dialect
	_, err := u.tx.ExecContext(ctx, u.store.q.insertCustomer,
		c.ID, c.OwnerID, c.Name, c.Mobile, c.Address,
		c.DueAmount, c.AdvanceAmount, c.NetBalance,
		d.time(c.CreatedAt), d.time(c.UpdatedAt))
	if err != nil && d.IsDuplicateMobile(err) {
		return fmt.Errorf("%w: %s", models.ErrDuplicateMobile, c.Mobile)
	}
	return err
}

func (u *unit) SaveCustomer(ctx context.Context, c models.Customer) error {
	d := u.store.dialect
	res, err := u.tx.ExecContext(ctx, u.store.q.saveCustomer,
		c.Name, c.Mobile, c.Address,
		c.DueAmount, c.AdvanceAmount, c.NetBalance,
		d.time(c.UpdatedAt), c.ID)
	if err != nil {
		if d.IsDuplicateMobile(err) {
			return fmt.Errorf("%w: %s", models.ErrDuplicateMobile, c.Mobile)
		}
		return err
	}
	return requireRow(res, c.ID)
}

func (u *unit) DeleteCustomer(ctx context.Context, id string) error {
	res, err := u.tx.ExecContext(ctx, u.store.q.deleteCustomer, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (u *unit) CountTransactions(ctx context.Context, customerID string) (int, error) {
	var n int
	err := u.tx.QueryRowContext(ctx, u.store.q.countTransactions, customerID).Scan(&n)
	return n, err
}

func (u *unit) FindTransactionByKey(ctx context.Context, customerID, key string) (models.Transaction, bool, error) {
	t, err := scanTransaction(u.tx.QueryRowContext(ctx, u.store.q.findByKey, customerID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, err
	}
	return t, true, nil
}

func (u *unit) CreateTransaction(ctx context.Context, t models.Transaction) error {
	d := u.store.dialect
	_, err := u.tx.ExecContext(ctx, u.store.q.insertTransaction,
		t.ID, t.OwnerID, t.CustomerID, string(t.Type), t.Amount, t.Description,
		d.time(t.Date), nullable(t.IdempotencyKey), d.time(t.CreatedAt))
	if err != nil && d.IsUniqueViolation(err) {
		return fmt.Errorf("%w: idempotency key %q already used", models.ErrConflict, t.IdempotencyKey)
	}
	return err
}

func (u *unit) Commit(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("%w: unit of work already finished", models.ErrCommitFailure)
	}
	u.done = true
	return u.tx.Commit()
}

// Abort rolls back. Safe to call after Commit.
func (u *unit) Abort(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	return nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
