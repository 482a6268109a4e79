// Package hitl provides domain models for the adaptive human-in-the-loop
// gate: proposed actions, risk categories, recorded decisions, and the
// learned per-action-type confidence.
package hitl

import "time"

// RiskCategory classifies how dangerous an action type is before any
// approval history is taken into account.
type RiskCategory string

// Risk categories, from least to most dangerous.
const (
	RiskSafe        RiskCategory = "safe"
	RiskModerate    RiskCategory = "moderate"
	RiskDestructive RiskCategory = "destructive"
	RiskCritical    RiskCategory = "critical"
)

// BasePrior returns the static confidence prior for a risk category.
func (r RiskCategory) BasePrior() float64 {
	switch r {
	case RiskSafe:
		return 0.95
	case RiskModerate:
		return 0.70
	case RiskDestructive:
		return 0.40
	case RiskCritical:
		return 0.10
	default:
		return 0.70
	}
}

// Action is a proposed operation submitted to the gate.
type Action struct {
	Type    string         `json:"type"`
	Details map[string]any `json:"details,omitempty"`
	Targets []string       `json:"targets,omitempty"`
}

// ActionContext carries the environment the action would execute in.
type ActionContext struct {
	Environment string `json:"environment,omitempty"` // "production", "development", ...
	Path        string `json:"path,omitempty"`
}

// Decision is the persisted record of a human verdict on a paused action.
type Decision struct {
	ID               string         `json:"id"`
	ActionType       string         `json:"action_type"`
	ActionDetails    map[string]any `json:"action_details,omitempty"`
	Approved         bool           `json:"approved"`
	Feedback         string         `json:"feedback,omitempty"`
	ConfidenceAtTime float64        `json:"confidence_at_time"`
	CreatedAt        time.Time      `json:"created_at"`
}

// LearnedConfidence is the single mutable cross-request row per action type.
// Confidence is always approvals/(approvals+rejections); an unseen action
// type seeds at 0.5.
type LearnedConfidence struct {
	ActionType     string    `json:"action_type"`
	Confidence     float64   `json:"confidence"`
	ApprovalCount  int       `json:"approval_count"`
	RejectionCount int       `json:"rejection_count"`
	LastUpdated    time.Time `json:"last_updated"`
}

// SeedConfidence is the confidence assigned before any decision is recorded.
const SeedConfidence = 0.5

// Observed reports whether any human decision has been recorded for this row.
func (l *LearnedConfidence) Observed() bool {
	return l.ApprovalCount+l.RejectionCount > 0
}
