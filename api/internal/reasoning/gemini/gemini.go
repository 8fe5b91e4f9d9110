package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mathcast/api/internal/problem"
	"mathcast/api/internal/reasoning"
)

type Engine struct {
	APIKey  string
	Model   string
	Retries int
	Prompts *reasoning.PromptStore

	// extra client options, appended after the API key
	opts []option.ClientOption
}

func New(apiKey, model string, retries int, prompts *reasoning.PromptStore) *Engine {
	if retries < 0 {
		retries = 0
	}
	return &Engine{
		APIKey:  strings.TrimSpace(apiKey),
		Model:   strings.TrimSpace(model),
		Retries: retries,
		Prompts: prompts,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Solve asks Gemini for a JSON solution. Transport errors are retried
// Retries times; a reply that arrives but cannot be used is not.
func (e *Engine) Solve(ctx context.Context, p problem.Problem) (problem.Solution, error) {
	if e.APIKey == "" {
		return problem.Solution{}, errors.New("GEMINI_API_KEY is empty")
	}
	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return problem.Solution{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return problem.Solution{}, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(e.Prompts.System())},
	}

	var lastErr error
	for attempt := 0; attempt <= e.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return problem.Solution{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
		}
		resp, err := m.GenerateContent(ctx, genai.Text(reasoning.UserPrompt(p)))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return problem.Solution{}, ctx.Err()
			}
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return problem.Solution{}, fmt.Errorf("gemini: %w: empty response", reasoning.ErrRejected)
		}
		sol, err := reasoning.DecodeSolution(txt)
		if err != nil {
			return problem.Solution{}, fmt.Errorf("gemini: %w", err)
		}
		return sol, nil
	}
	return problem.Solution{}, fmt.Errorf("gemini: %w", lastErr)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
