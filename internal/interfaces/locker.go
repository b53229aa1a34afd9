package interfaces

import "context"

// Locker serializes work on a key across callers.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}
