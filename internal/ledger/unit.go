package ledger

import (
	"context"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
)

// inUnit runs fn inside a unit of work while holding the customer's lock and
// commits when fn succeeds. The unit is aborted on every other path, so fn
// must not call Commit or Abort itself.
func (l *Ledger) inUnit(ctx context.Context, customerID string, fn func(context.Context, interfaces.UnitOfWork) error) error {
	ran := false
	err := l.locker.WithLock(ctx, customerLockKey(customerID), func(ctx context.Context) error {
		ran = true

		unit, err := l.store.Begin(ctx)
		if err != nil {
			return commitFailure("begin unit", err)
		}
		defer unit.Abort(context.WithoutCancel(ctx))

		if err := fn(ctx, unit); err != nil {
			return err
		}
		if err := unit.Commit(ctx); err != nil {
			return storeFailure("commit", err)
		}
		return nil
	})
	if err != nil && !ran {
		return commitFailure("acquire customer lock", err)
	}
	return err
}
