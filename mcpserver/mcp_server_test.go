package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/internal/backend"
	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/tsne"
)

func newServer(t *testing.T) *MCPServer {
	log := zaptest.NewLogger(t).Sugar()
	b, err := backend.Open(am.EmbeddingConfig{Backend: am.BackendGo}, log)
	require.NoError(t, err)
	svc := service.New(b, nil, tsne.Params{TargetDims: 2, Perplexity: 2, Theta: 0.5, NumThreads: 1, MaxIter: 50}, log)
	return New(svc, log)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = ToolName
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestHandleRunEmbedding(t *testing.T) {
	s := newServer(t)
	matrix := []any{
		[]any{0.0, 0.0}, []any{0.1, 0.0}, []any{5.0, 5.0},
		[]any{5.1, 5.0}, []any{0.0, 0.2}, []any{5.0, 5.2},
	}

	res, err := s.handleRunEmbedding(context.Background(), call(map[string]any{
		"matrix":      matrix,
		"target_dims": 1.0,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	y := out[tsne.EmbeddingKey].([]any)
	assert.Len(t, y, 6)
	assert.Len(t, y[0], 1)
}

func TestHandleRunEmbedding_ToolErrors(t *testing.T) {
	s := newServer(t)

	res, err := s.handleRunEmbedding(context.Background(), call(map[string]any{"matrix": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Invalid argument")

	res, err = s.handleRunEmbedding(context.Background(), call(map[string]any{
		"matrix":     []any{[]any{1.0}, []any{2.0}, []any{3.0}},
		"perplexity": 30.0,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Embedding failed")
}

func TestTool(t *testing.T) {
	tool := Tool()
	assert.Equal(t, ToolName, tool.Name)
	assert.Contains(t, tool.InputSchema.Required, tsne.ArgMatrix)
	for _, arg := range []string{tsne.ArgTargetDims, tsne.ArgPerplexity, tsne.ArgTheta, tsne.ArgNumThreads, tsne.ArgMaxIter} {
		assert.Contains(t, tool.InputSchema.Properties, arg)
	}
}
