package interfaces

import "context"

// EventPublisher delivers domain events to downstream consumers. The key
// keeps events for the same customer in order.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}
