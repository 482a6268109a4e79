package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/switchyardlabs/switchyard/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.classifyRequestTool(),
		s.assessComplexityTool(),
		s.getHandoffStatsTool(),
		s.getConfidenceTool(),
	)
}

func (s *Server) classifyRequestTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("classify_request",
		mcplib.WithDescription("Classify a user request into an intent category with detected domains and entities"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("The request text to classify"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleClassifyRequest,
	}
}

func (s *Server) assessComplexityTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("assess_complexity",
		mcplib.WithDescription("Score a request's complexity and suggest an orchestration strategy"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("The request text to assess"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleAssessComplexity,
	}
}

func (s *Server) getHandoffStatsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_handoff_stats",
		mcplib.WithDescription("Get the most traveled agent-to-agent handoff paths"),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of paths to return (default 20)"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetHandoffStats,
	}
}

func (s *Server) getConfidenceTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_confidence",
		mcplib.WithDescription("Get the gate's current confidence and risk category for an action type"),
		mcplib.WithString("action_type",
			mcplib.Required(),
			mcplib.Description("The action type to look up, e.g. dns_record_delete"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetConfidence,
	}
}

func (s *Server) handleClassifyRequest(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Analyzer == nil {
		return mcplib.NewToolResultError("analyzer not configured"), nil
	}
	text, ok := req.GetArguments()["text"].(string)
	if !ok || text == "" {
		return mcplib.NewToolResultError("text is required"), nil
	}
	in, _, _ := s.deps.Analyzer.Analyze(text)
	data, err := json.Marshal(in)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal intent", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleAssessComplexity(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Analyzer == nil {
		return mcplib.NewToolResultError("analyzer not configured"), nil
	}
	text, ok := req.GetArguments()["text"].(string)
	if !ok || text == "" {
		return mcplib.NewToolResultError("text is required"), nil
	}
	_, assessment, strategy := s.deps.Analyzer.Analyze(text)
	data, err := json.Marshal(map[string]any{
		"assessment": assessment,
		"strategy":   strategy,
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal assessment", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetHandoffStats(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.StatsReader == nil {
		return mcplib.NewToolResultError("stats reader not configured"), nil
	}
	limit := 20
	if n, ok := req.GetArguments()["limit"].(float64); ok && n >= 1 {
		limit = int(n)
	}
	stats, err := s.deps.StatsReader.PathStats(ctx, limit)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to get handoff stats", err), nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal handoff stats", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetConfidence(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.ConfidenceReader == nil {
		return mcplib.NewToolResultError("confidence reader not configured"), nil
	}
	actionType, ok := req.GetArguments()["action_type"].(string)
	if !ok || actionType == "" {
		return mcplib.NewToolResultError("action_type is required"), nil
	}
	risk := service.ClassifyRisk(actionType)
	data, err := json.Marshal(map[string]any{
		"action_type": actionType,
		"risk":        risk,
		"base_prior":  risk.BasePrior(),
		"confidence":  s.deps.ConfidenceReader.Confidence(ctx, actionType, nil),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal confidence", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
