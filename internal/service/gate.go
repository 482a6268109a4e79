package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/switchyardlabs/switchyard/internal/config"
	"github.com/switchyardlabs/switchyard/internal/domain"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
	"github.com/switchyardlabs/switchyard/internal/port/cache"
	"github.com/switchyardlabs/switchyard/internal/port/database"
)

// GateService is the adaptive HITL gate. It decides per action whether
// execution may proceed autonomously or must pause for human approval,
// blending static risk priors with the learned approval history.
type GateService struct {
	store database.Store
	cache cache.Cache // optional L1 for learned-confidence reads
	cfg   *config.Gate

	now func() time.Time

	mu     sync.Mutex
	recent []time.Time // sliding rate-limit window, process-local
}

// NewGateService creates a GateService. cache may be nil.
func NewGateService(store database.Store, c cache.Cache, cfg *config.Gate) *GateService {
	return &GateService{
		store: store,
		cache: c,
		cfg:   cfg,
		now:   time.Now,
	}
}

// exactRisk is consulted before the substring heuristics.
var exactRisk = map[string]hitl.RiskCategory{
	"file_read":         hitl.RiskSafe,
	"dns_lookup":        hitl.RiskSafe,
	"ticket_lookup":     hitl.RiskSafe,
	"file_write":        hitl.RiskModerate,
	"ticket_update":     hitl.RiskModerate,
	"dns_record_create": hitl.RiskModerate,
	"file_delete":       hitl.RiskDestructive,
	"dns_record_delete": hitl.RiskDestructive,
	"user_offboard":     hitl.RiskDestructive,
	"git_push_force":    hitl.RiskCritical,
	"database_drop":     hitl.RiskCritical,
	"factory_reset":     hitl.RiskCritical,
}

// alwaysPause lists action types that pause regardless of any computed or
// learned confidence.
var alwaysPause = map[string]struct{}{
	"git_push_force":   {},
	"database_drop":    {},
	"recursive_delete": {},
}

// substring heuristics, checked in order after the exact table misses.
var riskHeuristics = []struct {
	substrings []string
	category   hitl.RiskCategory
}{
	{[]string{"read", "get", "list", "search", "query"}, hitl.RiskSafe},
	{[]string{"write", "create", "update", "insert"}, hitl.RiskModerate},
	{[]string{"delete", "remove", "drop"}, hitl.RiskDestructive},
	{[]string{"force", "reset_hard", "truncate"}, hitl.RiskCritical},
}

// ClassifyRisk maps an action type to its risk category: exact table first,
// then substring heuristics, defaulting to moderate.
func ClassifyRisk(actionType string) hitl.RiskCategory {
	if cat, ok := exactRisk[actionType]; ok {
		return cat
	}
	lower := strings.ToLower(actionType)
	for _, h := range riskHeuristics {
		for _, sub := range h.substrings {
			if strings.Contains(lower, sub) {
				return h.category
			}
		}
	}
	return hitl.RiskModerate
}

// ShouldPause decides whether the proposed action must wait for human
// approval. The decision is advisory: a pause is always reversible by the
// human response, never a silent block.
func (s *GateService) ShouldPause(ctx context.Context, action hitl.Action, actx *hitl.ActionContext) (bool, string) {
	pause, reason, _ := s.Evaluate(ctx, action, actx)
	return pause, reason
}

// Evaluate is ShouldPause plus the computed confidence, for callers that
// need to record it (the approval workflow).
func (s *GateService) Evaluate(ctx context.Context, action hitl.Action, actx *hitl.ActionContext) (pause bool, reason string, confidence float64) {
	cat := ClassifyRisk(action.Type)
	confidence = s.Confidence(ctx, action.Type, actx)

	if _, ok := alwaysPause[action.Type]; ok {
		return true, fmt.Sprintf("action type %q always requires approval", action.Type), confidence
	}

	if len(action.Targets) > s.cfg.BulkThreshold {
		return true, fmt.Sprintf("bulk operation on %d targets (limit %d)", len(action.Targets), s.cfg.BulkThreshold), confidence
	}

	if s.overRateLimit() {
		return true, fmt.Sprintf("more than %d actions in the last %s", s.cfg.RateLimit, s.cfg.RateWindow), confidence
	}

	if confidence < s.cfg.ConfidenceThreshold {
		return true, fmt.Sprintf("confidence %.2f below threshold %.2f (%s risk)", confidence, s.cfg.ConfidenceThreshold, cat), confidence
	}

	return false, fmt.Sprintf("confidence %.2f meets threshold %.2f (%s risk)", confidence, s.cfg.ConfidenceThreshold, cat), confidence
}

// Confidence computes the [0,1] estimate for proceeding autonomously:
// the category prior, blended 0.3/0.7 with the learned confidence once any
// decision history exists, then context multipliers.
func (s *GateService) Confidence(ctx context.Context, actionType string, actx *hitl.ActionContext) float64 {
	conf := ClassifyRisk(actionType).BasePrior()

	if learned := s.learnedConfidence(ctx, actionType); learned != nil && learned.Observed() {
		conf = 0.3*conf + 0.7*learned.Confidence
	}

	if actx != nil {
		switch strings.ToLower(actx.Environment) {
		case "production":
			conf *= 0.7
		case "development":
			conf *= 1.1
		}
		lowerPath := strings.ToLower(actx.Path)
		for _, risky := range []string{"production", "prod", "main", "master"} {
			if strings.Contains(lowerPath, risky) {
				conf *= 0.8
				break
			}
		}
	}

	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// RecordDecision appends the human verdict and recomputes the learned
// confidence row for the action type. Store failures surface to the caller.
func (s *GateService) RecordDecision(ctx context.Context, action hitl.Action, approved bool, feedback string) (*hitl.LearnedConfidence, error) {
	d := &hitl.Decision{
		ID:               uuid.NewString(),
		ActionType:       action.Type,
		ActionDetails:    action.Details,
		Approved:         approved,
		Feedback:         feedback,
		ConfidenceAtTime: s.Confidence(ctx, action.Type, nil),
		CreatedAt:        s.now().UTC(),
	}

	row, err := s.store.RecordOutcome(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("record decision for %s: %w", action.Type, err)
	}

	s.cacheLearned(ctx, row)

	slog.Info("HITL decision recorded",
		"action_type", action.Type,
		"approved", approved,
		"learned_confidence", row.Confidence,
		"approvals", row.ApprovalCount,
		"rejections", row.RejectionCount,
	)
	return row, nil
}

// RecordAttempt adds the action to the sliding rate-limit window. Called
// once per proposed action, before evaluation.
func (s *GateService) RecordAttempt() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	s.recent = append(s.recent, now)
}

func (s *GateService) overRateLimit() bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	return len(s.recent) > s.cfg.RateLimit
}

// pruneLocked drops window entries older than the rate window.
// Caller holds s.mu.
func (s *GateService) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.cfg.RateWindow)
	i := 0
	for ; i < len(s.recent); i++ {
		if s.recent[i].After(cutoff) {
			break
		}
	}
	s.recent = s.recent[i:]
}

// learnedConfidence reads the row through the cache. A missing row or any
// read failure yields nil: the gate then falls back to the static prior.
func (s *GateService) learnedConfidence(ctx context.Context, actionType string) *hitl.LearnedConfidence {
	key := "confidence:" + actionType

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var row hitl.LearnedConfidence
			if json.Unmarshal(data, &row) == nil {
				return &row
			}
		}
	}

	row, err := s.store.GetLearnedConfidence(ctx, actionType)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("learned confidence read failed", "action_type", actionType, "error", err)
		}
		return nil
	}

	s.cacheLearned(ctx, row)
	return row
}

func (s *GateService) cacheLearned(ctx context.Context, row *hitl.LearnedConfidence) {
	if s.cache == nil || row == nil {
		return
	}
	if data, err := json.Marshal(row); err == nil {
		_ = s.cache.Set(ctx, "confidence:"+row.ActionType, data, 5*time.Minute)
	}
}
