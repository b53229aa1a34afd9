package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/khata-ledger/internal/storage/sqlstore"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
)

const (
	// uniqueViolation is the SQLSTATE for unique_violation.
	uniqueViolation = "23505"
	// mobileConstraint is named in migrations/000001_create_ledger.up.sql.
	mobileConstraint = "customers_mobile_key"
)

// Dialect describes PostgreSQL to sqlstore. The customer row is locked with
// FOR UPDATE for the rest of the unit.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Numbered:          true,
	LockClause:        " FOR UPDATE",
	IsUniqueViolation: isUniqueViolation,
	IsDuplicateMobile: isDuplicateMobile,
}

type PostgresLedgerStore struct {
	*sqlstore.Store
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		Store: sqlstore.New(db, Dialect),
	}
}

// Open connects to dsn, applies pending migrations and returns the store.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresLedgerStore, error) {
	if err := Migrate(dsn, logger); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return NewPostgresLedgerStore(db), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isDuplicateMobile(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == mobileConstraint
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
