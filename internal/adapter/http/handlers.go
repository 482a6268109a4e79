package http

import (
	"net/http"
	"strconv"

	"github.com/switchyardlabs/switchyard/internal/adapter/ws"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
	"github.com/switchyardlabs/switchyard/internal/port/database"
	"github.com/switchyardlabs/switchyard/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Router       *service.RouterService
	Orchestrator *service.OrchestratorService
	Registry     *service.RegistryService
	Gate         *service.GateService
	Approvals    *service.ApprovalService
	Store        database.Store
	Hub          *ws.Hub
}

type textRequest struct {
	Text string `json:"text"`
}

// ClassifyRequest runs intent classification only. Dry-run, nothing executes.
func (h *Handlers) ClassifyRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[textRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Text, "text") {
		return
	}

	in, _, _ := h.Router.Analyze(req.Text)
	writeJSON(w, http.StatusOK, in)
}

// AnalyzeRequest runs classification plus complexity scoring and strategy
// selection without executing anything.
func (h *Handlers) AnalyzeRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[textRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Text, "text") {
		return
	}

	in, assessment, strategy := h.Router.Analyze(req.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"intent":     in,
		"assessment": assessment,
		"strategy":   strategy,
	})
}

// RouteRequest analyzes the request and executes the resulting handoff chain.
// The call blocks until the chain finishes, fails, or a gate pause resolves.
func (h *Handlers) RouteRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[textRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Text, "text") {
		return
	}

	res, err := h.Router.Route(r.Context(), req.Text)
	if err != nil {
		writeDomainError(w, err, "routing failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListAgents returns the registered agents in sorted order.
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.List())
}

// ListApprovals returns the approvals currently awaiting a human verdict.
func (h *Handlers) ListApprovals(w http.ResponseWriter, _ *http.Request) {
	pending := h.Approvals.Pending()
	if pending == nil {
		pending = []service.ApprovalRequest{}
	}
	writeJSON(w, http.StatusOK, pending)
}

type resolveRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// ResolveApproval delivers a human verdict to a waiting action.
func (h *Handlers) ResolveApproval(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[resolveRequest](w, r)
	if !ok {
		return
	}

	if !h.Approvals.Resolve(id, req.Approved, req.Feedback) {
		writeError(w, http.StatusNotFound, "approval not found or already resolved")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "approved": req.Approved})
}

type evaluateRequest struct {
	Action  hitl.Action         `json:"action"`
	Context *hitl.ActionContext `json:"context,omitempty"`
}

// EvaluateAction asks the gate whether an action would pause, without
// executing it or counting against the rate window.
func (h *Handlers) EvaluateAction(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[evaluateRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Action.Type, "action.type") {
		return
	}

	pause, reason, confidence := h.Gate.Evaluate(r.Context(), req.Action, req.Context)
	writeJSON(w, http.StatusOK, map[string]any{
		"pause":      pause,
		"reason":     reason,
		"confidence": confidence,
		"risk":       service.ClassifyRisk(req.Action.Type),
	})
}

// GetConfidence returns the current blended confidence for an action type.
func (h *Handlers) GetConfidence(w http.ResponseWriter, r *http.Request) {
	actionType := urlParam(r, "type")
	risk := service.ClassifyRisk(actionType)
	writeJSON(w, http.StatusOK, map[string]any{
		"action_type": actionType,
		"risk":        risk,
		"base_prior":  risk.BasePrior(),
		"confidence":  h.Gate.Confidence(r.Context(), actionType, nil),
	})
}

// ListDecisions returns recorded approval decisions, optionally filtered by
// action type.
func (h *Handlers) ListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	decisions, err := h.Store.ListDecisions(r.Context(), r.URL.Query().Get("action_type"), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if decisions == nil {
		decisions = []hitl.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// HandoffStats returns the most traveled from->to agent paths.
func (h *Handlers) HandoffStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Orchestrator.PathStats(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RunHandoffs returns the persisted handoff chain for one run.
func (h *Handlers) RunHandoffs(w http.ResponseWriter, r *http.Request) {
	records, err := h.Orchestrator.History(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Health reports liveness plus a few cheap gauges.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"agents":         h.Registry.Len(),
		"ws_connections": h.Hub.ConnectionCount(),
	})
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
