// Package mcptool exposes the classifier and the solver chain as MCP tools
// over stdio.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mathcast/api/internal/ocr"
	"mathcast/api/internal/problem"
	"mathcast/api/internal/progress"
	"mathcast/api/internal/reasoning"
	"mathcast/api/internal/util"
)

const (
	ToolClassify = "classify_problem"
	ToolSolve    = "solve_problem"

	DescClassify = "Classify a math problem statement and extract its expression and variables."
	DescSolve    = "Solve a math problem step by step. Pass the statement as text or a photo as base64."
)

type ClassifyArgs struct {
	Text string `json:"text" jsonschema_description:"Problem statement as plain text"`
}

type SolveArgs struct {
	Text     string `json:"text,omitempty" jsonschema_description:"Problem statement as plain text"`
	ImageB64 string `json:"image_b64,omitempty" jsonschema_description:"Photo of the problem as base64 or a data URL; used when text is empty"`
}

type SolveResult struct {
	Problem  problem.Problem     `json:"problem"`
	Solution problem.Solution    `json:"solution"`
	Attempts []reasoning.Attempt `json:"attempts"`
	OCRText  string              `json:"ocr_text,omitempty"`
}

type Solver interface {
	SolveTraced(ctx context.Context, p problem.Problem, sink progress.Sink) (problem.Solution, []reasoning.Attempt)
}

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Solver        Solver
	// OCR is optional; without it solve_problem accepts text only.
	OCR ocr.Extractor
}

type Tool struct {
	mcp.Tool
	Handler server.ToolHandlerFunc
}

type Server struct {
	*server.MCPServer
	tools []Tool
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Solver == nil {
		return nil, errors.New("mcptool: solver is required")
	}
	if opts.ServerName == "" {
		opts.ServerName = "mathcast"
	}
	h := &handlers{solver: opts.Solver, ocr: opts.OCR}

	classify, err := NewTool(ToolClassify, DescClassify, h.classify)
	if err != nil {
		return nil, err
	}
	solve, err := NewTool(ToolSolve, DescSolve, h.solve)
	if err != nil {
		return nil, err
	}

	s := &Server{
		MCPServer: server.NewMCPServer(opts.ServerName, opts.ServerVersion, server.WithToolCapabilities(false)),
		tools:     []Tool{classify, solve},
	}
	for _, t := range s.tools {
		s.AddTool(t.Tool, t.Handler)
	}
	return s, nil
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer)
}

// NewTool wraps a typed handler. The input schema is reflected from R; the
// result is returned as JSON text, and handler errors become tool errors
// rather than protocol errors.
func NewTool[R any, T any](name, desc string, handler func(ctx context.Context, req R) (*T, error)) (Tool, error) {
	var zero R
	schema, err := util.SchemaOf(&zero, false)
	if err != nil {
		return Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}
	delete(schema, "$schema")
	raw, err := json.Marshal(schema)
	if err != nil {
		return Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}

	return Tool{
		Tool: mcp.NewToolWithRawSchema(name, desc, raw),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var req R
			if err := request.BindArguments(&req); err != nil {
				return nil, err
			}
			var final string
			var isError bool
			if resp, err := handler(ctx, req); err != nil {
				isError = true
				final = err.Error()
			} else if js, err := json.Marshal(resp); err != nil {
				isError = true
				final = err.Error()
			} else {
				final = string(js)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(final)},
				IsError: isError,
			}, nil
		},
	}, nil
}

type handlers struct {
	solver Solver
	ocr    ocr.Extractor
}

func (h *handlers) classify(_ context.Context, req ClassifyArgs) (*problem.Problem, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text is required")
	}
	p := problem.Classify(req.Text)
	return &p, nil
}

func (h *handlers) solve(ctx context.Context, req SolveArgs) (*SolveResult, error) {
	text := strings.TrimSpace(req.Text)
	var ocrText string
	if text == "" {
		if req.ImageB64 == "" {
			return nil, errors.New("text or image_b64 is required")
		}
		if h.ocr == nil {
			return nil, errors.New("image input needs an OCR engine; pass text instead")
		}
		img, _, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
		if err != nil {
			return nil, fmt.Errorf("bad image_b64: %w", err)
		}
		t, err := h.ocr.ExtractText(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("could not read image text: %w", err)
		}
		if text = strings.TrimSpace(t.Content); text == "" {
			return nil, fmt.Errorf("could not read image text: %w", ocr.ErrNoText)
		}
		ocrText = text
	}

	p := problem.Classify(text)
	sol, attempts := h.solver.SolveTraced(ctx, p, nil)
	return &SolveResult{Problem: p, Solution: sol, Attempts: attempts, OCRText: ocrText}, nil
}
