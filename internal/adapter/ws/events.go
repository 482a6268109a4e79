package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventApprovalRequested = "approval.requested"
	EventApprovalResolved  = "approval.resolved"
	EventHandoff           = "handoff.recorded"
	EventRunStatus         = "run.status"
)

// HandoffEvent is broadcast when a handoff between agents is recorded.
type HandoffEvent struct {
	RunID     string `json:"run_id"`
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	Reason    string `json:"reason"`
	Hop       int    `json:"hop"`
}

// RunStatusEvent is broadcast when an orchestration run changes state.
type RunStatusEvent struct {
	RunID    string `json:"run_id"`
	Status   string `json:"status"` // "started", "completed", "failed"
	Agent    string `json:"agent,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
