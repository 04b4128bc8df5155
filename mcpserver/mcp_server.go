// Package mcpserver exposes run_embedding as a Model Context Protocol tool.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/internal/version"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

// ToolName is the name agents call.
const ToolName = "run_embedding"

// MCPServer wraps the embedding service and exposes it via Model Context Protocol
type MCPServer struct {
	svc    *service.Service
	logger *zap.SugaredLogger
	server *server.MCPServer
}

// New creates an MCP server with the run_embedding tool registered.
func New(svc *service.Service, log *zap.SugaredLogger) *MCPServer {
	if log == nil {
		log = logger.ComponentLogger("mcp")
	}
	s := &MCPServer{svc: svc, logger: log}
	s.server = server.NewMCPServer(
		"rtsne",
		version.Get().Version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Tool describes run_embedding.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Embed a numeric matrix into a low-dimensional space with t-SNE. "+
			"Returns the embedding Y (one row per input row) and optimisation diagnostics."),
		mcp.WithArray(tsne.ArgMatrix,
			mcp.Required(),
			mcp.Description("Input rows (observations) as arrays of numbers; every row must have the same length"),
			mcp.Items(map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "number"},
			}),
		),
		mcp.WithNumber(tsne.ArgTargetDims,
			mcp.Description("Output dimensionality (default from config, usually 2)"),
		),
		mcp.WithNumber(tsne.ArgPerplexity,
			mcp.Description("Effective number of neighbours; must be below rows - 1"),
		),
		mcp.WithNumber(tsne.ArgTheta,
			mcp.Description("Barnes-Hut tolerance in [0,1]; 0 computes exact gradients"),
		),
		mcp.WithNumber(tsne.ArgNumThreads,
			mcp.Description("Worker threads"),
		),
		mcp.WithNumber(tsne.ArgMaxIter,
			mcp.Description("Number of optimisation iterations"),
		),
	)
}

func (s *MCPServer) registerTools() {
	s.server.AddTool(Tool(), s.handleRunEmbedding)
}

// handleRunEmbedding handles run_embedding tool calls. Embedding failures
// are tool errors so the agent sees the message; they are not protocol errors.
func (s *MCPServer) handleRunEmbedding(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Embed(ctx, request.GetArguments(), service.SourceMCP, nil)
	if err != nil {
		s.logger.Debugw("Tool call failed", "tool", ToolName, logger.FieldError, err)
		return mcp.NewToolResultError(describeError(err)), nil
	}

	data, err := json.Marshal(out.Result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func describeError(err error) string {
	switch {
	case tsne.IsArgumentTypeError(err):
		return "Invalid argument: " + err.Error()
	case tsne.IsNativeComputationError(err):
		return "Embedding failed: " + err.Error()
	default:
		return err.Error()
	}
}

// Serve serves MCP over stdin/stdout until the client disconnects.
func (s *MCPServer) Serve() error {
	return server.ServeStdio(s.server)
}
