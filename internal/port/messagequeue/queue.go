// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes one message from a subscription.
type Handler func(subject string, data []byte) error

// Queue is the port interface for the event stream.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler Handler) (func(), error)
	Close() error
}
