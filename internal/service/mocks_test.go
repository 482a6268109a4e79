package service

import (
	"context"
	"sync"

	"github.com/switchyardlabs/switchyard/internal/domain"
	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
	"github.com/switchyardlabs/switchyard/internal/port/messagequeue"
)

// mockStore is an in-memory database.Store for service tests.
type mockStore struct {
	mu        sync.Mutex
	records   []handoff.Record
	decisions []hitl.Decision
	learned   map[string]*hitl.LearnedConfidence

	recordErr  error // forced CreateHandoffRecord failure
	outcomeErr error // forced RecordOutcome failure
}

func newMockStore() *mockStore {
	return &mockStore{learned: make(map[string]*hitl.LearnedConfidence)}
}

func (m *mockStore) CreateHandoffRecord(_ context.Context, rec *handoff.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockStore) ListHandoffRecords(_ context.Context, runID string) ([]handoff.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []handoff.Record
	for _, r := range m.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) HandoffPathStats(_ context.Context, limit int) ([]handoff.PathStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[[2]string]int)
	for _, r := range m.records {
		counts[[2]string{r.FromAgent, r.ToAgent}]++
	}
	var out []handoff.PathStat
	for k, c := range counts {
		out = append(out, handoff.PathStat{FromAgent: k[0], ToAgent: k[1], Count: c})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) CreateDecision(_ context.Context, d *hitl.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, *d)
	return nil
}

func (m *mockStore) ListDecisions(_ context.Context, actionType string, limit int) ([]hitl.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hitl.Decision
	for _, d := range m.decisions {
		if actionType == "" || d.ActionType == actionType {
			out = append(out, d)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) GetLearnedConfidence(_ context.Context, actionType string) (*hitl.LearnedConfidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.learned[actionType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *mockStore) RecordOutcome(_ context.Context, d *hitl.Decision) (*hitl.LearnedConfidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomeErr != nil {
		return nil, m.outcomeErr
	}
	m.decisions = append(m.decisions, *d)

	row, ok := m.learned[d.ActionType]
	if !ok {
		row = &hitl.LearnedConfidence{ActionType: d.ActionType, Confidence: hitl.SeedConfidence}
		m.learned[d.ActionType] = row
	}
	if d.Approved {
		row.ApprovalCount++
	} else {
		row.RejectionCount++
	}
	row.Confidence = float64(row.ApprovalCount) / float64(row.ApprovalCount+row.RejectionCount)
	row.LastUpdated = d.CreatedAt
	cp := *row
	return &cp, nil
}

// mockHub records broadcast events.
type mockHub struct {
	mu     sync.Mutex
	events []string
}

func (m *mockHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

func (m *mockHub) ConnectionCount() int { return 0 }

// mockQueue records published subjects.
type mockQueue struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockQueue) Publish(_ context.Context, subject string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Close() error { return nil }
