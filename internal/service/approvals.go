package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	syotel "github.com/switchyardlabs/switchyard/internal/adapter/otel"
	"github.com/switchyardlabs/switchyard/internal/adapter/ws"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
	"github.com/switchyardlabs/switchyard/internal/port/broadcast"
	"github.com/switchyardlabs/switchyard/internal/port/messagequeue"
)

// ApprovalService manages pending human approvals. When the gate pauses an
// action the request is broadcast to connected operators and published to
// the event stream, then the caller blocks until a human resolves it or the
// timeout elapses. Timeouts deny without recording a decision; only explicit
// human verdicts feed the learned confidence.
type ApprovalService struct {
	gate    *GateService
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	metrics *syotel.Metrics // optional
	timeout time.Duration

	pending sync.Map // approval ID -> *pendingApproval
}

type resolution struct {
	approved bool
	feedback string
}

type pendingApproval struct {
	action hitl.Action
	ch     chan resolution
}

// ApprovalRequest is the payload broadcast to operators for a paused action.
type ApprovalRequest struct {
	ID            string         `json:"id"`
	ActionType    string         `json:"action_type"`
	ActionDetails map[string]any `json:"action_details,omitempty"`
	Targets       []string       `json:"targets,omitempty"`
	Reason        string         `json:"reason"`
	Confidence    float64        `json:"confidence"`
	RequestedAt   time.Time      `json:"requested_at"`
}

// ApprovalResult is the payload published after a resolution or timeout.
type ApprovalResult struct {
	ID         string `json:"id"`
	ActionType string `json:"action_type"`
	Approved   bool   `json:"approved"`
	Feedback   string `json:"feedback,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
}

// NewApprovalService creates an ApprovalService. hub and queue may be nil
// (headless runs); requests then simply wait out the timeout.
func NewApprovalService(gate *GateService, hub broadcast.Broadcaster, queue messagequeue.Queue, metrics *syotel.Metrics, timeout time.Duration) *ApprovalService {
	return &ApprovalService{
		gate:    gate,
		hub:     hub,
		queue:   queue,
		metrics: metrics,
		timeout: timeout,
	}
}

// Await publishes the approval request and blocks until a human resolves it,
// the timeout elapses (deny, no decision recorded), or ctx is cancelled.
func (s *ApprovalService) Await(ctx context.Context, action hitl.Action, reason string, confidence float64) (bool, error) {
	id := uuid.NewString()
	pa := &pendingApproval{
		action: action,
		ch:     make(chan resolution, 1),
	}
	s.pending.Store(id, pa)
	defer s.pending.Delete(id)

	req := ApprovalRequest{
		ID:            id,
		ActionType:    action.Type,
		ActionDetails: action.Details,
		Targets:       action.Targets,
		Reason:        reason,
		Confidence:    confidence,
		RequestedAt:   time.Now().UTC(),
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventApprovalRequested, req)
	}
	s.publish(ctx, "approvals.requested", req)
	if s.metrics != nil {
		s.metrics.GatePauses.Add(ctx, 1)
	}

	slog.Info("approval requested",
		"approval_id", id,
		"action_type", action.Type,
		"reason", reason,
		"confidence", confidence,
	)

	select {
	case res := <-pa.ch:
		if _, err := s.gate.RecordDecision(ctx, action, res.approved, res.feedback); err != nil {
			// The human verdict still stands even if persistence failed.
			slog.Error("failed to record approval decision", "approval_id", id, "error", err)
		}
		if s.metrics != nil {
			if res.approved {
				s.metrics.Approvals.Add(ctx, 1)
			} else {
				s.metrics.Rejections.Add(ctx, 1)
			}
		}
		result := ApprovalResult{ID: id, ActionType: action.Type, Approved: res.approved, Feedback: res.feedback}
		if s.hub != nil {
			s.hub.BroadcastEvent(ctx, ws.EventApprovalResolved, result)
		}
		s.publish(ctx, "approvals.resolved", result)
		return res.approved, nil

	case <-time.After(s.timeout):
		slog.Warn("approval timed out, denying", "approval_id", id, "action_type", action.Type)
		result := ApprovalResult{ID: id, ActionType: action.Type, Approved: false, TimedOut: true}
		if s.hub != nil {
			s.hub.BroadcastEvent(ctx, ws.EventApprovalResolved, result)
		}
		s.publish(ctx, "approvals.resolved", result)
		return false, nil

	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve delivers a human verdict to the waiting action. Returns false when
// the approval ID is unknown or already resolved.
func (s *ApprovalService) Resolve(id string, approved bool, feedback string) bool {
	v, ok := s.pending.LoadAndDelete(id)
	if !ok {
		return false
	}
	pa := v.(*pendingApproval)
	pa.ch <- resolution{approved: approved, feedback: feedback}
	return true
}

// Pending returns the currently waiting approval requests.
func (s *ApprovalService) Pending() []ApprovalRequest {
	var out []ApprovalRequest
	s.pending.Range(func(key, value any) bool {
		pa := value.(*pendingApproval)
		out = append(out, ApprovalRequest{
			ID:         key.(string),
			ActionType: pa.action.Type,
			Targets:    pa.action.Targets,
		})
		return true
	})
	return out
}

func (s *ApprovalService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("approval event publish failed", "subject", subject, "error", err)
	}
}
