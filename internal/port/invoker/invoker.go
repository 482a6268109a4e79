// Package invoker defines the agent execution port (interface).
//
// The actual agent body is opaque to the core: an LLM call, a subprocess,
// or an RPC, whatever the host application supplies. The orchestrator only
// needs the structured result, plus the raw text for the legacy handoff
// block fallback.
package invoker

import (
	"context"

	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
)

// Result is the tagged outcome of one agent invocation: output alone means
// the chain terminates; a non-nil Handoff names the next agent.
type Result struct {
	Output  map[string]any       `json:"output"`
	RawText string               `json:"raw_text,omitempty"`
	Handoff *handoff.Declaration `json:"handoff,omitempty"`
}

// Invoker executes a single agent against the accumulated run context.
// The call blocks until the agent finishes; callers bound wall-clock time
// through ctx.
type Invoker interface {
	Invoke(ctx context.Context, locator string, runContext map[string]any) (*Result, error)
}

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, locator string, runContext map[string]any) (*Result, error)

// Invoke implements Invoker.
func (f Func) Invoke(ctx context.Context, locator string, runContext map[string]any) (*Result, error) {
	return f(ctx, locator, runContext)
}
