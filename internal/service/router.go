package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	syotel "github.com/switchyardlabs/switchyard/internal/adapter/otel"
	"github.com/switchyardlabs/switchyard/internal/adapter/ws"
	"github.com/switchyardlabs/switchyard/internal/domain"
	"github.com/switchyardlabs/switchyard/internal/domain/complexity"
	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
	"github.com/switchyardlabs/switchyard/internal/domain/intent"
	"github.com/switchyardlabs/switchyard/internal/port/broadcast"
)

// TriageAgent is the fallback entry point when no detected domain has a
// registered specialist.
const TriageAgent = "triage"

// RouteResult is the outcome of one routed request: the analysis that drove
// the routing plus the executed chain.
type RouteResult struct {
	Intent       *intent.Intent         `json:"intent"`
	Assessment   *complexity.Assessment `json:"assessment"`
	Strategy     complexity.Strategy    `json:"strategy"`
	InitialAgent string                 `json:"initial_agent"`
	Execution    *handoff.ChainResult   `json:"execution"`
}

// RouterService is the front door: it classifies a request, scores its
// complexity, picks an initial agent and strategy, and executes the handoff
// chain. Concurrent runs are capped by a weighted semaphore.
type RouterService struct {
	classifier   *ClassifierService
	complexity   *ComplexityService
	registry     *RegistryService
	orchestrator *OrchestratorService
	hub          broadcast.Broadcaster // optional
	metrics      *syotel.Metrics       // optional

	maxHandoffs int
	sem         *semaphore.Weighted
}

// NewRouterService creates a RouterService. maxConcurrent bounds in-flight
// executions; callers past the cap block in Route until a slot frees.
func NewRouterService(
	classifier *ClassifierService,
	cx *ComplexityService,
	registry *RegistryService,
	orchestrator *OrchestratorService,
	hub broadcast.Broadcaster,
	metrics *syotel.Metrics,
	maxHandoffs, maxConcurrent int,
) *RouterService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RouterService{
		classifier:   classifier,
		complexity:   cx,
		registry:     registry,
		orchestrator: orchestrator,
		hub:          hub,
		metrics:      metrics,
		maxHandoffs:  maxHandoffs,
		sem:          semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Analyze runs classification and complexity scoring without executing
// anything. Used by the dry-run endpoints and MCP tools.
func (s *RouterService) Analyze(text string) (*intent.Intent, *complexity.Assessment, complexity.Strategy) {
	in := s.classifier.Classify(text)
	assessment := s.complexity.Analyze(text, in.Domains, in.Category, in.Entities)
	in.AdjustForComplexity(assessment.Score)
	strategy := s.complexity.SuggestStrategy(assessment, in.Domains)
	return in, assessment, strategy
}

// Route analyzes the request and executes the resulting handoff chain.
func (s *RouterService) Route(ctx context.Context, text string) (*RouteResult, error) {
	in, assessment, strategy := s.Analyze(text)

	initial, err := s.pickInitialAgent(in)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire run slot: %w", err)
	}
	defer s.sem.Release(1)

	ctx, span := syotel.StartRunSpan(ctx, initial, string(in.Category), string(strategy))
	defer span.End()

	start := time.Now()
	if s.metrics != nil {
		s.metrics.RunsStarted.Add(ctx, 1)
		s.metrics.ComplexityScore.Record(ctx, int64(assessment.Score))
	}

	slog.Info("routing request",
		"category", in.Category,
		"domains", in.Domains,
		"score", assessment.Score,
		"strategy", strategy,
		"initial_agent", initial,
	)

	task := map[string]any{
		"request":    text,
		"category":   string(in.Category),
		"domains":    in.Domains,
		"complexity": assessment.Score,
		"strategy":   string(strategy),
		"entities":   in.Entities,
	}

	execution, err := s.orchestrator.ExecuteWithHandoffs(ctx, initial, task, s.maxHandoffs)
	if err != nil {
		span.RecordError(err)
		if s.metrics != nil {
			s.metrics.RunsFailed.Add(ctx, 1)
		}
		s.announce(ctx, ws.RunStatusEvent{Status: "failed", Agent: initial, Strategy: string(strategy), Error: err.Error()})
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RunsCompleted.Add(ctx, 1)
		s.metrics.RunDuration.Record(ctx, time.Since(start).Seconds())
	}
	s.announce(ctx, ws.RunStatusEvent{RunID: execution.RunID, Status: "completed", Agent: initial, Strategy: string(strategy)})

	return &RouteResult{
		Intent:       in,
		Assessment:   assessment,
		Strategy:     strategy,
		InitialAgent: initial,
		Execution:    execution,
	}, nil
}

// pickInitialAgent maps the detected domains onto the registry: the first
// (alphabetical) domain with a registered specialist wins, then the triage
// fallback.
func (s *RouterService) pickInitialAgent(in *intent.Intent) (string, error) {
	domains := in.NonGeneralDomains()
	sort.Strings(domains)

	for _, d := range domains {
		if entry, ok := s.registry.Lookup(d); ok {
			return entry.Name, nil
		}
	}
	if entry, ok := s.registry.Lookup(TriageAgent); ok {
		return entry.Name, nil
	}
	return "", fmt.Errorf("no specialist for domains %v and no %q agent registered: %w", domains, TriageAgent, domain.ErrAgentNotFound)
}

func (s *RouterService) announce(ctx context.Context, ev ws.RunStatusEvent) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventRunStatus, ev)
	}
}
