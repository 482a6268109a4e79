package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/switchyardlabs/switchyard/internal/domain"
	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Handoff history ---

func (s *Store) CreateHandoffRecord(ctx context.Context, rec *handoff.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO handoff_records (id, run_id, from_agent, to_agent, reason, context_size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.RunID, rec.FromAgent, rec.ToAgent, rec.Reason, rec.ContextSize, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create handoff record: %w", err)
	}
	return nil
}

func (s *Store) ListHandoffRecords(ctx context.Context, runID string) ([]handoff.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, from_agent, to_agent, reason, context_size, created_at
		 FROM handoff_records WHERE run_id = $1 ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list handoff records: %w", err)
	}
	defer rows.Close()

	var records []handoff.Record
	for rows.Next() {
		var r handoff.Record
		if err := rows.Scan(&r.ID, &r.RunID, &r.FromAgent, &r.ToAgent, &r.Reason, &r.ContextSize, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan handoff record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) HandoffPathStats(ctx context.Context, limit int) ([]handoff.PathStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT from_agent, to_agent, COUNT(*) AS n
		 FROM handoff_records
		 GROUP BY from_agent, to_agent
		 ORDER BY n DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("handoff path stats: %w", err)
	}
	defer rows.Close()

	var stats []handoff.PathStat
	for rows.Next() {
		var st handoff.PathStat
		if err := rows.Scan(&st.FromAgent, &st.ToAgent, &st.Count); err != nil {
			return nil, fmt.Errorf("scan path stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// --- HITL decisions ---

func (s *Store) CreateDecision(ctx context.Context, d *hitl.Decision) error {
	detailsJSON, err := marshalDetails(d.ActionDetails)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO action_decisions (id, action_type, action_details, approved, feedback, confidence_at_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.ActionType, detailsJSON, d.Approved, d.Feedback, d.ConfidenceAtTime, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create decision: %w", err)
	}
	return nil
}

func (s *Store) ListDecisions(ctx context.Context, actionType string, limit int) ([]hitl.Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, action_type, action_details, approved, feedback, confidence_at_time, created_at
		 FROM action_decisions
		 WHERE ($1 = '' OR action_type = $1)
		 ORDER BY created_at DESC
		 LIMIT $2`, actionType, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []hitl.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// --- Learned confidence ---

func (s *Store) GetLearnedConfidence(ctx context.Context, actionType string) (*hitl.LearnedConfidence, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT action_type, confidence, approval_count, rejection_count, last_updated
		 FROM learned_confidence WHERE action_type = $1`, actionType)

	var l hitl.LearnedConfidence
	err := row.Scan(&l.ActionType, &l.Confidence, &l.ApprovalCount, &l.RejectionCount, &l.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("learned confidence %s: %w", actionType, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get learned confidence %s: %w", actionType, err)
	}
	return &l, nil
}

// RecordOutcome appends the decision and recomputes the learned-confidence
// row in one transaction. The upsert keeps confidence equal to
// approvals/(approvals+rejections) under concurrent writers.
func (s *Store) RecordOutcome(ctx context.Context, d *hitl.Decision) (*hitl.LearnedConfidence, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	detailsJSON, err := marshalDetails(d.ActionDetails)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO action_decisions (id, action_type, action_details, approved, feedback, confidence_at_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.ActionType, detailsJSON, d.Approved, d.Feedback, d.ConfidenceAtTime, d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}

	approvalInc := 0
	rejectionInc := 0
	if d.Approved {
		approvalInc = 1
	} else {
		rejectionInc = 1
	}

	var l hitl.LearnedConfidence
	err = tx.QueryRow(ctx,
		`INSERT INTO learned_confidence (action_type, confidence, approval_count, rejection_count, last_updated)
		 VALUES ($1, $2::float / ($2 + $3), $2, $3, $4)
		 ON CONFLICT (action_type) DO UPDATE SET
		   approval_count = learned_confidence.approval_count + $2,
		   rejection_count = learned_confidence.rejection_count + $3,
		   confidence = (learned_confidence.approval_count + $2)::float
		                / (learned_confidence.approval_count + $2 + learned_confidence.rejection_count + $3),
		   last_updated = $4
		 RETURNING action_type, confidence, approval_count, rejection_count, last_updated`,
		d.ActionType, approvalInc, rejectionInc, d.CreatedAt,
	).Scan(&l.ActionType, &l.Confidence, &l.ApprovalCount, &l.RejectionCount, &l.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("upsert learned confidence: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit outcome: %w", err)
	}
	return &l, nil
}

// --- Scanners ---

type scannable interface {
	Scan(dest ...any) error
}

func scanDecision(row scannable) (hitl.Decision, error) {
	var d hitl.Decision
	var detailsJSON []byte
	err := row.Scan(&d.ID, &d.ActionType, &detailsJSON, &d.Approved, &d.Feedback, &d.ConfidenceAtTime, &d.CreatedAt)
	if err != nil {
		return d, fmt.Errorf("scan decision: %w", err)
	}
	if detailsJSON != nil {
		if err := json.Unmarshal(detailsJSON, &d.ActionDetails); err != nil {
			return d, fmt.Errorf("unmarshal action details: %w", err)
		}
	}
	return d, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal action details: %w", err)
	}
	return data, nil
}
