// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
)

// Store is the port interface for decision/history persistence.
//
// HandoffRecord and Decision writes are append-only. The learned-confidence
// upsert must recompute confidence = approvals/(approvals+rejections)
// atomically per action_type row; no cross-row transactions are required.
type Store interface {
	// Handoff history (append-only, best-effort, statistics only)
	CreateHandoffRecord(ctx context.Context, rec *handoff.Record) error
	ListHandoffRecords(ctx context.Context, runID string) ([]handoff.Record, error)
	HandoffPathStats(ctx context.Context, limit int) ([]handoff.PathStat, error)

	// HITL decisions
	CreateDecision(ctx context.Context, d *hitl.Decision) error
	ListDecisions(ctx context.Context, actionType string, limit int) ([]hitl.Decision, error)

	// Learned confidence, keyed by action_type.
	// GetLearnedConfidence returns domain.ErrNotFound for unseen types.
	// RecordOutcome appends the decision and recomputes the row in one
	// transaction, returning the updated row.
	GetLearnedConfidence(ctx context.Context, actionType string) (*hitl.LearnedConfidence, error)
	RecordOutcome(ctx context.Context, d *hitl.Decision) (*hitl.LearnedConfidence, error)
}
