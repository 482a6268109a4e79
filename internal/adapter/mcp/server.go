// Package mcp exposes the routing engine over the Model Context Protocol so
// AI agents can classify requests, check complexity, and read gate state.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/switchyardlabs/switchyard/internal/domain/agent"
	"github.com/switchyardlabs/switchyard/internal/domain/complexity"
	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
	"github.com/switchyardlabs/switchyard/internal/domain/intent"
)

// Analyzer runs classification and complexity scoring without executing.
type Analyzer interface {
	Analyze(text string) (*intent.Intent, *complexity.Assessment, complexity.Strategy)
}

// StatsReader reads aggregated handoff path statistics.
type StatsReader interface {
	PathStats(ctx context.Context, limit int) ([]handoff.PathStat, error)
}

// ConfidenceReader computes the gate's current confidence for an action type.
type ConfidenceReader interface {
	Confidence(ctx context.Context, actionType string, actx *hitl.ActionContext) float64
}

// AgentLister lists the registered agents.
type AgentLister interface {
	List() []agent.Entry
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps holds the service dependencies the MCP tools call into.
// Nil entries disable the corresponding tools with an error result.
type ServerDeps struct {
	Analyzer         Analyzer
	StatsReader      StatsReader
	ConfidenceReader ConfidenceReader
	AgentLister      AgentLister
}

// Server wraps an MCP server exposing Switchyard tools and resources over
// streamable HTTP.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(true, true),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the MCP HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
