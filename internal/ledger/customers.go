package ledger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// NewCustomerRequest carries the owner-supplied fields of a new customer.
type NewCustomerRequest struct {
	OwnerID string
	Name    string
	Mobile  string
	Address string
}

// CustomerUpdate changes descriptive fields only; nil leaves a field as is.
// Balances are never accepted from callers.
type CustomerUpdate struct {
	Name    *string
	Mobile  *string
	Address *string
}

// CreateCustomer registers a customer with zero balances.
func (l *Ledger) CreateCustomer(ctx context.Context, req NewCustomerRequest) (models.Customer, error) {
	c, err := models.NewCustomer(l.newID(), req.OwnerID, req.Name, req.Mobile, req.Address, l.now().UTC())
	if err != nil {
		return models.Customer{}, err
	}

	unit, err := l.store.Begin(ctx)
	if err != nil {
		return models.Customer{}, commitFailure("begin unit", err)
	}
	defer unit.Abort(context.WithoutCancel(ctx))

	if err := unit.InsertCustomer(ctx, c); err != nil {
		return models.Customer{}, fmt.Errorf("create customer: %w", storeFailure("insert customer", err))
	}
	if err := unit.Commit(ctx); err != nil {
		return models.Customer{}, fmt.Errorf("create customer: %w", storeFailure("commit", err))
	}

	l.logger.Info("customer created", zap.String("customer_id", c.ID), zap.String("owner_id", c.OwnerID))
	return c, nil
}

// GetCustomer returns the customer with id.
func (l *Ledger) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return models.Customer{}, fmt.Errorf("%w: customer id is required", models.ErrValidation)
	}
	return l.store.GetCustomer(ctx, id)
}

// ListCustomers returns every customer belonging to ownerID.
func (l *Ledger) ListCustomers(ctx context.Context, ownerID string) ([]models.Customer, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", models.ErrValidation)
	}
	return l.store.ListCustomersByOwner(ctx, ownerID)
}

// UpdateCustomer changes a customer's name, mobile or address. It runs under
// the same per-customer lock as ApplyTransaction so it never overwrites a
// balance written concurrently.
func (l *Ledger) UpdateCustomer(ctx context.Context, id string, upd CustomerUpdate) (models.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return models.Customer{}, fmt.Errorf("%w: customer id is required", models.ErrValidation)
	}

	var updated models.Customer
	err := l.inUnit(ctx, id, func(ctx context.Context, unit interfaces.UnitOfWork) error {
		c, err := unit.GetCustomer(ctx, id)
		if err != nil {
			return storeFailure("load customer", err)
		}
		if upd.Name != nil {
			c.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Mobile != nil {
			c.Mobile = strings.TrimSpace(*upd.Mobile)
		}
		if upd.Address != nil {
			c.Address = strings.TrimSpace(*upd.Address)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		c.UpdatedAt = l.now().UTC()

		if err := unit.SaveCustomer(ctx, c); err != nil {
			return storeFailure("save customer", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return models.Customer{}, fmt.Errorf("update customer %s: %w", id, err)
	}
	return updated, nil
}

// DeleteCustomer removes a customer that has no recorded transactions.
// Customers with history are kept so their transactions never dangle.
func (l *Ledger) DeleteCustomer(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: customer id is required", models.ErrValidation)
	}

	err := l.inUnit(ctx, id, func(ctx context.Context, unit interfaces.UnitOfWork) error {
		if _, err := unit.GetCustomer(ctx, id); err != nil {
			return storeFailure("load customer", err)
		}
		n, err := unit.CountTransactions(ctx, id)
		if err != nil {
			return storeFailure("count transactions", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d transaction(s)", models.ErrCustomerHasTransactions, n)
		}
		if err := unit.DeleteCustomer(ctx, id); err != nil {
			return storeFailure("delete customer", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}

	l.logger.Info("customer deleted", zap.String("customer_id", id))
	return nil
}
