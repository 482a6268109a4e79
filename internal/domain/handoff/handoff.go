// Package handoff provides domain models for agent-to-agent handoffs
// within an orchestration run.
package handoff

import (
	"errors"
	"fmt"
	"time"
)

// Declaration is an explicit agent-to-agent handoff with enrichment context.
// It is produced by an agent invocation, consumed by the orchestrator within
// the same run, and never persisted on its own.
type Declaration struct {
	ToAgent   string         `json:"to_agent"`
	Reason    string         `json:"reason"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Validate checks that a Declaration has all required fields.
func (d *Declaration) Validate() error {
	if d.ToAgent == "" {
		return errors.New("to_agent is required")
	}
	if d.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}

// Record is the persisted, append-only log entry for one completed hop.
// Records feed path statistics only; they are never read back to change
// orchestration behavior.
type Record struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	FromAgent   string    `json:"from_agent"`
	ToAgent     string    `json:"to_agent"`
	Reason      string    `json:"reason"`
	ContextSize int       `json:"context_size"`
	CreatedAt   time.Time `json:"created_at"`
}

// PathStat aggregates how often one agent handed off to another.
type PathStat struct {
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	Count     int    `json:"count"`
}

// ChainResult is the outcome of a completed orchestration run.
type ChainResult struct {
	RunID         string         `json:"run_id"`
	FinalOutput   map[string]any `json:"final_output"`
	Chain         []Record       `json:"handoff_chain"`
	TotalHandoffs int            `json:"total_handoffs"`
}

// ChainError is a terminal orchestration failure. It carries the agent that
// was active and the partial chain accumulated so far for diagnostics.
type ChainError struct {
	Err   error
	Agent string
	Hops  int
	Chain []Record
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("handoff chain failed at agent %q after %d hop(s): %v", e.Agent, e.Hops, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}
