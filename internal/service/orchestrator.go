package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	syotel "github.com/switchyardlabs/switchyard/internal/adapter/otel"
	"github.com/switchyardlabs/switchyard/internal/adapter/ws"
	"github.com/switchyardlabs/switchyard/internal/domain"
	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
	"github.com/switchyardlabs/switchyard/internal/port/broadcast"
	"github.com/switchyardlabs/switchyard/internal/port/database"
	"github.com/switchyardlabs/switchyard/internal/port/invoker"
	"github.com/switchyardlabs/switchyard/internal/port/messagequeue"
)

// OrchestratorService runs handoff chains: it invokes an agent, inspects the
// result for a handoff declaration, and follows the chain until an agent
// terminates or a bound is hit. With max handoffs N an execution invokes at
// most N+1 agents.
type OrchestratorService struct {
	registry  *RegistryService
	invoker   invoker.Invoker
	store     database.Store
	queue     messagequeue.Queue  // optional
	hub       broadcast.Broadcaster // optional
	parser    HandoffParser
	gate      *GateService     // optional, pauses risky handoffs
	approvals *ApprovalService // optional, required when gate is set
	metrics   *syotel.Metrics  // optional
}

// NewOrchestratorService creates an OrchestratorService. queue, hub, gate and
// approvals may be nil.
func NewOrchestratorService(
	registry *RegistryService,
	inv invoker.Invoker,
	store database.Store,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	parser HandoffParser,
	gate *GateService,
	approvals *ApprovalService,
	metrics *syotel.Metrics,
) *OrchestratorService {
	return &OrchestratorService{
		registry:  registry,
		invoker:   inv,
		store:     store,
		queue:     queue,
		hub:       hub,
		parser:    parser,
		gate:      gate,
		approvals: approvals,
		metrics:   metrics,
	}
}

// ExecuteWithHandoffs runs the chain starting at initialAgent. The task map
// is the initial run context; each handoff merges the declaration's context
// enrichment into it before the next agent runs. maxHandoffs bounds the
// number of transfers, not invocations: maxHandoffs 0 still runs the initial
// agent once.
//
// Terminal failures return a *handoff.ChainError carrying the partial chain.
func (s *OrchestratorService) ExecuteWithHandoffs(ctx context.Context, initialAgent string, task map[string]any, maxHandoffs int) (*handoff.ChainResult, error) {
	current, ok := s.registry.Lookup(initialAgent)
	if !ok {
		return nil, &handoff.ChainError{
			Err:   fmt.Errorf("initial agent %q: %w", initialAgent, domain.ErrAgentNotFound),
			Agent: initialAgent,
		}
	}

	runID := uuid.NewString()
	runCtx := make(map[string]any, len(task))
	for k, v := range task {
		runCtx[k] = v
	}

	var chain []handoff.Record
	slog.Info("run started", "run_id", runID, "agent", current.Name, "max_handoffs", maxHandoffs)

	for {
		res, err := s.invoker.Invoke(ctx, current.SourcePath, runCtx)
		if err != nil {
			return nil, &handoff.ChainError{
				Err:   fmt.Errorf("invoke agent %s: %w", current.Name, err),
				Agent: current.Name,
				Hops:  len(chain),
				Chain: chain,
			}
		}

		decl := res.Handoff
		if decl == nil && res.RawText != "" && s.parser != nil {
			decl = s.parser.Parse(res.RawText)
		}
		if decl == nil {
			slog.Info("run completed", "run_id", runID, "final_agent", current.Name, "handoffs", len(chain))
			return &handoff.ChainResult{
				RunID:         runID,
				FinalOutput:   res.Output,
				Chain:         chain,
				TotalHandoffs: len(chain),
			}, nil
		}

		if err := decl.Validate(); err != nil {
			return nil, &handoff.ChainError{
				Err:   fmt.Errorf("agent %s declared invalid handoff: %w", current.Name, err),
				Agent: current.Name,
				Hops:  len(chain),
				Chain: chain,
			}
		}

		next, ok := s.registry.Lookup(decl.ToAgent)
		if !ok {
			return nil, &handoff.ChainError{
				Err:   fmt.Errorf("handoff target %q: %w", decl.ToAgent, domain.ErrAgentNotFound),
				Agent: current.Name,
				Hops:  len(chain),
				Chain: chain,
			}
		}

		if len(chain) == maxHandoffs {
			return nil, &handoff.ChainError{
				Err:   fmt.Errorf("agent %s requested handoff to %s: %w", current.Name, next.Name, domain.ErrMaxHandoffs),
				Agent: current.Name,
				Hops:  len(chain),
				Chain: chain,
			}
		}

		if err := s.gateHandoff(ctx, current.Name, next.Name, decl.Reason); err != nil {
			return nil, &handoff.ChainError{
				Err:   err,
				Agent: current.Name,
				Hops:  len(chain),
				Chain: chain,
			}
		}

		_, hopSpan := syotel.StartHandoffSpan(ctx, current.Name, next.Name)

		rec := handoff.Record{
			ID:          uuid.NewString(),
			RunID:       runID,
			FromAgent:   current.Name,
			ToAgent:     next.Name,
			Reason:      decl.Reason,
			ContextSize: len(decl.Context),
			CreatedAt:   time.Now().UTC(),
		}
		// History is statistics, not correctness: a failed write never
		// stops the chain.
		if s.store != nil {
			if err := s.store.CreateHandoffRecord(ctx, &rec); err != nil {
				slog.Warn("handoff record write failed", "run_id", runID, "error", err)
			}
		}
		s.announceHandoff(ctx, rec, len(chain)+1)

		for k, v := range decl.Context {
			runCtx[k] = v
		}
		runCtx["previous_agent"] = current.Name
		runCtx["handoff_reason"] = decl.Reason

		chain = append(chain, rec)
		hopSpan.End()
		slog.Info("handoff", "run_id", runID, "from", rec.FromAgent, "to", rec.ToAgent, "hop", len(chain))
		current = next
	}
}

// gateHandoff runs the HITL gate over the proposed transfer when the gate is
// configured. A denial or timeout aborts the chain with ErrApprovalDenied.
func (s *OrchestratorService) gateHandoff(ctx context.Context, from, to, reason string) error {
	if s.gate == nil {
		return nil
	}

	action := hitl.Action{
		Type: "agent_handoff",
		Details: map[string]any{
			"from_agent": from,
			"to_agent":   to,
			"reason":     reason,
		},
	}
	s.gate.RecordAttempt()

	pause, why, confidence := s.gate.Evaluate(ctx, action, nil)
	if !pause {
		return nil
	}
	if s.approvals == nil {
		return fmt.Errorf("handoff %s -> %s paused (%s) with no approval channel: %w", from, to, why, domain.ErrApprovalDenied)
	}

	approved, err := s.approvals.Await(ctx, action, why, confidence)
	if err != nil {
		return fmt.Errorf("await approval for handoff %s -> %s: %w", from, to, err)
	}
	if !approved {
		return fmt.Errorf("handoff %s -> %s: %w", from, to, domain.ErrApprovalDenied)
	}
	return nil
}

// announceHandoff pushes the transfer to operators and the event stream.
func (s *OrchestratorService) announceHandoff(ctx context.Context, rec handoff.Record, hop int) {
	if s.metrics != nil {
		s.metrics.Handoffs.Add(ctx, 1)
	}
	ev := ws.HandoffEvent{
		RunID:     rec.RunID,
		FromAgent: rec.FromAgent,
		ToAgent:   rec.ToAgent,
		Reason:    rec.Reason,
		Hop:       hop,
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventHandoff, ev)
	}
	if s.queue != nil {
		if data, err := json.Marshal(ev); err == nil {
			if err := s.queue.Publish(ctx, "handoffs.recorded", data); err != nil {
				slog.Warn("handoff event publish failed", "run_id", rec.RunID, "error", err)
			}
		}
	}
}

// History returns the recorded handoffs for a run.
func (s *OrchestratorService) History(ctx context.Context, runID string) ([]handoff.Record, error) {
	return s.store.ListHandoffRecords(ctx, runID)
}

// PathStats returns aggregate from->to transfer counts, most frequent first.
func (s *OrchestratorService) PathStats(ctx context.Context, limit int) ([]handoff.PathStat, error) {
	return s.store.HandoffPathStats(ctx, limit)
}
