// Package broadcast defines the real-time client broadcast port (interface).
package broadcast

import "context"

// Broadcaster pushes typed events to all connected operator clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
	ConnectionCount() int
}
