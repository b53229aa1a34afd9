// Package sqlite persists the ledger in a single SQLite file using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sheikh-saqib/khata-ledger/internal/storage/sqlstore"
)

// FileName is the database file created inside the data directory.
const FileName = "khata.db"

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per Exec.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id             TEXT PRIMARY KEY,
			owner_id       TEXT NOT NULL,
			name           TEXT NOT NULL,
			mobile         TEXT NOT NULL UNIQUE,
			address        TEXT NOT NULL DEFAULT '',
			due_amount     TEXT NOT NULL DEFAULT '0',
			advance_amount TEXT NOT NULL DEFAULT '0',
			net_balance    TEXT NOT NULL DEFAULT '0',
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_owner ON customers(owner_id)`,

		// seq keeps insertion order for statements
		`CREATE TABLE IF NOT EXISTS transactions (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL UNIQUE,
			owner_id        TEXT NOT NULL,
			customer_id     TEXT NOT NULL REFERENCES customers(id) ON DELETE RESTRICT,
			type            TEXT NOT NULL CHECK(type IN ('given', 'received')),
			amount          TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			date            TEXT NOT NULL,
			idempotency_key TEXT,
			created_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idempotency
			ON transactions(customer_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	}
}

// Dialect describes SQLite to sqlstore. Units run as BEGIN IMMEDIATE, so the
// customer read needs no lock clause.
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	EncodeTime: func(t time.Time) any {
		return t.UTC().Format(timeLayout)
	},
	IsUniqueViolation: isUniqueViolation,
	IsDuplicateMobile: isDuplicateMobile,
}

// Open creates dir if needed, opens dir/khata.db and applies Migrations.
func Open(ctx context.Context, dir string) (*sqlstore.Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}
	dsn := "file:" + filepath.Join(dir, FileName) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.New(db, Dialect), nil
}

// Migrate applies every statement of Migrations. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migration %d: %w", i, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// isDuplicateMobile matches the column SQLite names in the message, e.g.
// "UNIQUE constraint failed: customers.mobile". Primary key collisions
// carry their own code.
func isDuplicateMobile(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) &&
		se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
		strings.Contains(se.Error(), "customers.mobile")
}
