package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/switchyardlabs/switchyard/internal/port/invoker"
)

// invokeSubjectPrefix is where agent workers listen for invocation requests.
const invokeSubjectPrefix = "agents.invoke."

// Invoker implements the agent execution port over NATS request/reply.
// Workers subscribe to agents.invoke.<agent>, load the definition named in
// the request, and reply with a structured invocation result.
type Invoker struct {
	nc *nats.Conn
}

// NewInvoker creates a NATS-backed Invoker on an existing connection.
func NewInvoker(nc *nats.Conn) *Invoker {
	return &Invoker{nc: nc}
}

// invokeRequest is the wire format sent to a worker.
type invokeRequest struct {
	Definition string         `json:"definition"`
	RunContext map[string]any `json:"run_context"`
}

// Invoke sends the run context to the worker for the agent whose definition
// file is locator and blocks for the reply. The context deadline bounds the
// wall-clock wait.
func (i *Invoker) Invoke(ctx context.Context, locator string, runContext map[string]any) (*invoker.Result, error) {
	payload, err := json.Marshal(invokeRequest{
		Definition: locator,
		RunContext: runContext,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invoke request: %w", err)
	}

	subject := invokeSubjectPrefix + subjectToken(locator)
	msg, err := i.nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", subject, err)
	}

	var res invoker.Result
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		// Workers that reply with plain text still feed the block parser.
		return &invoker.Result{RawText: string(msg.Data)}, nil
	}
	return &res, nil
}

// subjectToken derives the per-agent subject token from the definition file
// name. Dots would split NATS subjects, so they are replaced.
func subjectToken(locator string) string {
	base := filepath.Base(locator)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.ToLower(base), ".", "_")
}
