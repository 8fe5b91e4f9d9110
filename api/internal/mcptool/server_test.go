package mcptool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcast/api/internal/fallback"
	"mathcast/api/internal/ocr"
	"mathcast/api/internal/problem"
)

type fakeOCR struct{ text string }

func (f fakeOCR) Name() string { return "fake" }
func (f fakeOCR) ExtractText(context.Context, []byte) (ocr.Text, error) {
	return ocr.Text{Content: f.text, Confidence: 0.9, Engine: "fake"}, nil
}

func newServer(t *testing.T, o ocr.Extractor) *Server {
	t.Helper()
	s, err := NewServer(ServerOptions{ServerVersion: "test", Solver: fallback.New(fallback.Config{}), OCR: o})
	require.NoError(t, err)
	return s
}

func call(t *testing.T, s *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	for _, tool := range s.tools {
		if tool.Name == name {
			res, err := tool.Handler(context.Background(), req)
			require.NoError(t, err)
			require.Len(t, res.Content, 1)
			txt, ok := res.Content[0].(mcp.TextContent)
			require.True(t, ok)
			return txt.Text, res.IsError
		}
	}
	t.Fatalf("no tool %s", name)
	return "", false
}

func TestToolSchemas(t *testing.T) {
	s := newServer(t, nil)
	require.Len(t, s.tools, 2)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(s.tools[0].RawInputSchema, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["properties"], "text")
	assert.Equal(t, []any{"text"}, schema["required"])

	require.NoError(t, json.Unmarshal(s.tools[1].RawInputSchema, &schema))
	assert.Contains(t, schema["properties"], "image_b64")
}

func TestClassifyTool(t *testing.T) {
	s := newServer(t, nil)
	out, isErr := call(t, s, ToolClassify, map[string]any{"text": "Find the derivative of x^3 + 2x"})
	require.False(t, isErr, out)
	var p problem.Problem
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, problem.Derivative, p.Type)

	out, isErr = call(t, s, ToolClassify, map[string]any{"text": "  "})
	assert.True(t, isErr)
	assert.Equal(t, "text is required", out)
}

func TestSolveToolText(t *testing.T) {
	s := newServer(t, nil)
	out, isErr := call(t, s, ToolSolve, map[string]any{"text": "Solve for x: 2x + 5 = 13"})
	require.False(t, isErr, out)
	var res SolveResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "4", res.Solution.FinalAnswer)
	assert.Equal(t, problem.LocalSymbolic, res.Solution.Provider)
	require.Len(t, res.Attempts, 1)
	assert.Empty(t, res.OCRText)
}

func TestSolveToolImage(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF})

	out, isErr := call(t, newServer(t, nil), ToolSolve, map[string]any{"image_b64": img})
	assert.True(t, isErr)
	assert.Contains(t, out, "OCR engine")

	out, isErr = call(t, newServer(t, fakeOCR{text: "x^2 - 5x + 6 = 0"}), ToolSolve, map[string]any{"image_b64": img})
	require.False(t, isErr, out)
	var res SolveResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "2, 3", res.Solution.FinalAnswer)
	assert.Equal(t, "x^2 - 5x + 6 = 0", res.OCRText)

	out, isErr = call(t, newServer(t, nil), ToolSolve, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "required")
}

func TestNewServerNeedsSolver(t *testing.T) {
	_, err := NewServer(ServerOptions{})
	assert.Error(t, err)
}
