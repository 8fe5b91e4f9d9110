// Package chatmodel is the secondary reasoning backend. It talks to any
// chat model Eino has a component for and expects the same JSON reply as
// the primary backend.
package chatmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"mathcast/api/internal/problem"
	"mathcast/api/internal/reasoning"
)

type Type string

const (
	TypeUnknown   Type = ""
	TypeOpenAI    Type = "openai"
	TypeDeepSeek  Type = "deepseek"
	TypeDashScope Type = "dashscope"
	TypeClaude    Type = "claude"
	TypeOllama    Type = "ollama"
	TypeARK       Type = "ark"
)

const (
	deepSeekBaseURL  = "https://api.deepseek.com"
	dashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultMaxTokens = 4096
)

// ParseType accepts the vendor names and their common aliases.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return TypeOpenAI
	case "deepseek":
		return TypeDeepSeek
	case "qwen", "dashscope", "tongyi":
		return TypeDashScope
	case "claude", "anthropic":
		return TypeClaude
	case "ollama":
		return TypeOllama
	case "ark", "doubao":
		return TypeARK
	}
	return TypeUnknown
}

type Config struct {
	Type      string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func (c Config) validate() (Type, error) {
	t := ParseType(c.Type)
	if t == TypeUnknown {
		return t, fmt.Errorf("chatmodel: unsupported model type %q", c.Type)
	}
	if strings.TrimSpace(c.Model) == "" {
		return t, errors.New("chatmodel: model name is empty")
	}
	if t != TypeOllama && strings.TrimSpace(c.APIKey) == "" {
		return t, fmt.Errorf("chatmodel: %s needs an API key", t)
	}
	return t, nil
}

type Engine struct {
	kind    Type
	model   string
	chat    model.BaseChatModel
	Prompts *reasoning.PromptStore
}

// New builds the Eino chat model named by cfg.Type.
func New(ctx context.Context, cfg Config, prompts *reasoning.PromptStore) (*Engine, error) {
	t, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	temp := float32(0)

	var chat model.BaseChatModel
	switch t {
	case TypeOpenAI, TypeDeepSeek:
		baseURL := cfg.BaseURL
		if baseURL == "" && t == TypeDeepSeek {
			baseURL = deepSeekBaseURL
		}
		m, e := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     baseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: &temp,
			MaxTokens:   &cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		chat, err = m, e
	case TypeDashScope:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = dashScopeBaseURL
		}
		m, e := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL:     baseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: &temp,
			MaxTokens:   &cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		chat, err = m, e
	case TypeClaude:
		var baseURL *string
		if cfg.BaseURL != "" {
			baseURL = &cfg.BaseURL
		}
		m, e := claude.NewChatModel(ctx, &claude.Config{
			BaseURL:     baseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: &temp,
			MaxTokens:   cfg.MaxTokens,
		})
		chat, err = m, e
	case TypeOllama:
		m, e := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		chat, err = m, e
	case TypeARK:
		m, e := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: &temp,
			MaxTokens:   &cfg.MaxTokens,
		})
		chat, err = m, e
	}
	if err != nil {
		return nil, fmt.Errorf("chatmodel: init %s: %w", t, err)
	}
	return NewWithModel(t, cfg.Model, chat, prompts), nil
}

// NewWithModel wraps an already constructed chat model.
func NewWithModel(t Type, modelName string, chat model.BaseChatModel, prompts *reasoning.PromptStore) *Engine {
	return &Engine{kind: t, model: modelName, chat: chat, Prompts: prompts}
}

func (e *Engine) Name() string     { return "chatmodel/" + string(e.kind) }
func (e *Engine) GetModel() string { return e.model }

func (e *Engine) Solve(ctx context.Context, p problem.Problem) (problem.Solution, error) {
	if e.chat == nil {
		return problem.Solution{}, errors.New("chatmodel: model is nil")
	}
	msgs := []*schema.Message{
		schema.SystemMessage(e.Prompts.System()),
		schema.UserMessage(reasoning.UserPrompt(p)),
	}
	out, err := e.chat.Generate(ctx, msgs)
	if err != nil {
		if ctx.Err() != nil {
			return problem.Solution{}, ctx.Err()
		}
		return problem.Solution{}, fmt.Errorf("chatmodel %s: %w", e.kind, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return problem.Solution{}, fmt.Errorf("chatmodel %s: %w: empty response", e.kind, reasoning.ErrRejected)
	}
	sol, err := reasoning.DecodeSolution(out.Content)
	if err != nil {
		return problem.Solution{}, fmt.Errorf("chatmodel %s: %w", e.kind, err)
	}
	return sol, nil
}
