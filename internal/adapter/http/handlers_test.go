package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/switchyardlabs/switchyard/internal/adapter/ws"
	"github.com/switchyardlabs/switchyard/internal/config"
	"github.com/switchyardlabs/switchyard/internal/domain"
	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
	"github.com/switchyardlabs/switchyard/internal/port/invoker"
	"github.com/switchyardlabs/switchyard/internal/service"
)

// stubStore is an in-memory database.Store for handler tests.
type stubStore struct {
	records   []handoff.Record
	decisions []hitl.Decision
	learned   map[string]*hitl.LearnedConfidence
}

func newStubStore() *stubStore {
	return &stubStore{learned: make(map[string]*hitl.LearnedConfidence)}
}

func (s *stubStore) CreateHandoffRecord(_ context.Context, rec *handoff.Record) error {
	s.records = append(s.records, *rec)
	return nil
}

func (s *stubStore) ListHandoffRecords(_ context.Context, runID string) ([]handoff.Record, error) {
	var out []handoff.Record
	for _, r := range s.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) HandoffPathStats(_ context.Context, _ int) ([]handoff.PathStat, error) {
	counts := map[string]*handoff.PathStat{}
	for _, r := range s.records {
		key := r.FromAgent + ">" + r.ToAgent
		if st, ok := counts[key]; ok {
			st.Count++
		} else {
			counts[key] = &handoff.PathStat{FromAgent: r.FromAgent, ToAgent: r.ToAgent, Count: 1}
		}
	}
	var out []handoff.PathStat
	for _, st := range counts {
		out = append(out, *st)
	}
	return out, nil
}

func (s *stubStore) CreateDecision(_ context.Context, d *hitl.Decision) error {
	s.decisions = append(s.decisions, *d)
	return nil
}

func (s *stubStore) ListDecisions(_ context.Context, actionType string, limit int) ([]hitl.Decision, error) {
	var out []hitl.Decision
	for _, d := range s.decisions {
		if actionType == "" || d.ActionType == actionType {
			out = append(out, d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) GetLearnedConfidence(_ context.Context, actionType string) (*hitl.LearnedConfidence, error) {
	row, ok := s.learned[actionType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *stubStore) RecordOutcome(_ context.Context, d *hitl.Decision) (*hitl.LearnedConfidence, error) {
	s.decisions = append(s.decisions, *d)
	row, ok := s.learned[d.ActionType]
	if !ok {
		row = &hitl.LearnedConfidence{ActionType: d.ActionType}
		s.learned[d.ActionType] = row
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

// newTestServer wires the full handler stack over a temp agent registry.
func newTestServer(t *testing.T, agents ...string) (*chi.Mux, *stubStore) {
	t.Helper()

	dir := t.TempDir()
	for _, name := range agents {
		path := filepath.Join(dir, name+".md")
		if err := os.WriteFile(path, []byte("# "+name+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	registry, err := service.NewRegistryService(dir)
	if err != nil {
		t.Fatal(err)
	}

	store := newStubStore()
	cfg := config.Defaults()
	gate := service.NewGateService(store, nil, &cfg.Gate)
	approvals := service.NewApprovalService(gate, nil, nil, nil, 50*time.Millisecond)

	inv := invoker.Func(func(_ context.Context, _ string, _ map[string]any) (*invoker.Result, error) {
		return &invoker.Result{Output: map[string]any{"status": "done"}}, nil
	})
	orch := service.NewOrchestratorService(registry, inv, store, nil, nil, service.NewBlockParser(), gate, approvals, nil)
	router := service.NewRouterService(
		service.NewClassifierService(),
		service.NewComplexityService(),
		registry, orch, nil, nil, 5, 4,
	)

	h := &Handlers{
		Router:       router,
		Orchestrator: orch,
		Registry:     registry,
		Gate:         gate,
		Approvals:    approvals,
		Store:        store,
		Hub:          ws.NewHub(),
	}
	r := chi.NewRouter()
	MountRoutes(r, h)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestVersionRoot(t *testing.T) {
	r, _ := newTestServer(t, "triage")
	rec := doJSON(t, r, http.MethodGet, "/api/v1/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "version") {
		t.Errorf("status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestClassifyEndpoint(t *testing.T) {
	r, _ := newTestServer(t, "triage")
	rec := doJSON(t, r, http.MethodPost, "/api/v1/classify", map[string]string{
		"text": "Setup SPF record for example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %q", rec.Code, rec.Body.String())
	}

	got := decode[map[string]any](t, rec)
	if got["category"] != "operational_task" {
		t.Errorf("category = %v, want operational_task", got["category"])
	}
}

func TestClassifyMissingText(t *testing.T) {
	r, _ := newTestServer(t, "triage")
	rec := doJSON(t, r, http.MethodPost, "/api/v1/classify", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	r, _ := newTestServer(t, "triage")
	rec := doJSON(t, r, http.MethodPost, "/api/v1/analyze", map[string]string{
		"text": "Check the DNS settings",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %q", rec.Code, rec.Body.String())
	}

	got := decode[map[string]any](t, rec)
	for _, key := range []string{"intent", "assessment", "strategy"} {
		if _, ok := got[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
}

func TestRouteEndpoint(t *testing.T) {
	r, _ := newTestServer(t, "dns", "triage")
	rec := doJSON(t, r, http.MethodPost, "/api/v1/route", map[string]string{
		"text": "Setup SPF record for example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %q", rec.Code, rec.Body.String())
	}

	got := decode[map[string]any](t, rec)
	if got["initial_agent"] != "dns" {
		t.Errorf("initial_agent = %v, want dns", got["initial_agent"])
	}
	if got["execution"] == nil {
		t.Error("execution missing from route result")
	}
}

func TestRouteNoAgent(t *testing.T) {
	r, _ := newTestServer(t, "unrelated")
	rec := doJSON(t, r, http.MethodPost, "/api/v1/route", map[string]string{
		"text": "Setup SPF record for example.com",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListAgents(t *testing.T) {
	r, _ := newTestServer(t, "dns", "network", "triage")
	rec := doJSON(t, r, http.MethodGet, "/api/v1/agents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	agents := decode[[]map[string]any](t, rec)
	if len(agents) != 3 {
		t.Errorf("agents = %d, want 3", len(agents))
	}
}

func TestListApprovalsEmpty(t *testing.T) {
	r, _ := newTestServer(t, "triage")
	rec := doJSON(t, r, http.MethodGet, "/api/v1/approvals", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty JSON array", rec.Body.String())
	}
}

func TestResolveApprovalUnknown(t *testing.T) {
	r, _ := newTestServer(t, "triage")
	rec := doJSON(t, r, http.MethodPost, "/api/v1/approvals/nope", map[string]any{"approved": true})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	r, _ := newTestServer(t, "triage")

	t.Run("critical action pauses", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/v1/gate/evaluate", map[string]any{
			"action": map[string]any{"type": "git_push_force"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body %q", rec.Code, rec.Body.String())
		}
		got := decode[map[string]any](t, rec)
		if got["pause"] != true {
			t.Errorf("pause = %v, want true", got["pause"])
		}
		if got["risk"] != "critical" {
			t.Errorf("risk = %v, want critical", got["risk"])
		}
	})

	t.Run("safe action passes", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/v1/gate/evaluate", map[string]any{
			"action": map[string]any{"type": "file_read"},
		})
		got := decode[map[string]any](t, rec)
		if got["pause"] != false {
			t.Errorf("pause = %v, want false", got["pause"])
		}
	})

	t.Run("missing action type", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/v1/gate/evaluate", map[string]any{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetConfidenceEndpoint(t *testing.T) {
	r, _ := newTestServer(t, "triage")
	rec := doJSON(t, r, http.MethodGet, "/api/v1/gate/confidence/file_read", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got := decode[map[string]any](t, rec)
	if got["base_prior"] != 0.95 {
		t.Errorf("base_prior = %v, want 0.95", got["base_prior"])
	}
	if got["risk"] != "safe" {
		t.Errorf("risk = %v, want safe", got["risk"])
	}
}

func TestHandoffStats(t *testing.T) {
	r, store := newTestServer(t, "triage")
	store.records = []handoff.Record{
		{RunID: "r1", FromAgent: "dns", ToAgent: "security"},
		{RunID: "r2", FromAgent: "dns", ToAgent: "security"},
	}

	rec := doJSON(t, r, http.MethodGet, "/api/v1/handoffs/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := decode[[]map[string]any](t, rec)
	if len(stats) != 1 {
		t.Fatalf("stats = %v, want one aggregated path", stats)
	}
	if stats[0]["count"] != float64(2) {
		t.Errorf("count = %v, want 2", stats[0]["count"])
	}
}

func TestRunHandoffs(t *testing.T) {
	r, store := newTestServer(t, "triage")
	store.records = []handoff.Record{
		{RunID: "r1", FromAgent: "dns", ToAgent: "security", Reason: "escalate"},
		{RunID: "r2", FromAgent: "a", ToAgent: "b"},
	}

	rec := doJSON(t, r, http.MethodGet, "/api/v1/runs/r1/handoffs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	records := decode[[]map[string]any](t, rec)
	if len(records) != 1 || records[0]["reason"] != "escalate" {
		t.Errorf("records = %v", records)
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t, "dns", "triage")
	rec := doJSON(t, r, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got := decode[map[string]any](t, rec)
	if got["status"] != "ok" {
		t.Errorf("status = %v", got["status"])
	}
	if got["agents"] != float64(2) {
		t.Errorf("agents = %v, want 2", got["agents"])
	}
}
