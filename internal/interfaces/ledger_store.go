package interfaces

import (
	"context"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// LedgerStore holds customers and their transactions. Writes only happen
// through a UnitOfWork obtained from Begin.
type LedgerStore interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	GetCustomer(ctx context.Context, id string) (models.Customer, error)
	ListCustomersByOwner(ctx context.Context, ownerID string) ([]models.Customer, error)
	GetTransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error)
	Close() error
}

// UnitOfWork groups reads and writes that become durable together on Commit
// or not at all. A customer read through GetCustomer is isolated from other
// units until Commit or Abort.
//
// Abort after Commit is a no-op, so callers can always defer Abort.
type UnitOfWork interface {
	GetCustomer(ctx context.Context, id string) (models.Customer, error)
	InsertCustomer(ctx context.Context, c models.Customer) error
	SaveCustomer(ctx context.Context, c models.Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	CountTransactions(ctx context.Context, customerID string) (int, error)
	FindTransactionByKey(ctx context.Context, customerID, key string) (models.Transaction, bool, error)
	CreateTransaction(ctx context.Context, tx models.Transaction) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}
