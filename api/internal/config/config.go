package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Primary AI (Gemini)
	GeminiAPIKey     string
	GeminiModel      string
	PrimaryAITimeout time.Duration
	PrimaryAIRetries int
	PrimaryAIRPS     float64

	// Secondary AI (any Eino chat model)
	SecondaryAIType    string
	SecondaryAIBaseURL string
	SecondaryAIAPIKey  string
	SecondaryAIModel   string
	SecondaryAITimeout time.Duration
	SecondaryAIRPS     float64

	PromptDir string

	// OCR
	OCREngines      []string
	YCOAuthToken    string
	YCFolderID      string
	MistralAPIKey   string
	MistralOCRModel string

	// Render
	RenderURL     string
	RenderTimeout time.Duration
	OutputDir     string

	// Jobs
	MaxWorkers     int
	MaxUploadBytes int64
	TaskRetention  time.Duration

	// HTTP rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// Telegram
	TelegramBotToken string
	WebhookURL       string
	PollInterval     time.Duration
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func envList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, fallback), ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load reads the environment. Missing optional keys fall back to defaults;
// nothing here is fatal.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8000"),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		PrimaryAITimeout: envDur("PRIMARY_AI_TIMEOUT", 30*time.Second),
		PrimaryAIRetries: envInt("PRIMARY_AI_RETRIES", 1),
		PrimaryAIRPS:     envFloat("PRIMARY_AI_RPS", 0),

		SecondaryAIType:    getEnv("SECONDARY_AI_TYPE", ""),
		SecondaryAIBaseURL: getEnv("SECONDARY_AI_BASE_URL", ""),
		SecondaryAIAPIKey:  getEnv("SECONDARY_AI_API_KEY", ""),
		SecondaryAIModel:   getEnv("SECONDARY_AI_MODEL", ""),
		SecondaryAITimeout: envDur("SECONDARY_AI_TIMEOUT", 30*time.Second),
		SecondaryAIRPS:     envFloat("SECONDARY_AI_RPS", 0),

		PromptDir: getEnv("PROMPT_DIR", ""),

		OCREngines:      envList("OCR_ENGINES", "yandex"),
		YCOAuthToken:    getEnv("YC_OAUTH_TOKEN", ""),
		YCFolderID:      getEnv("YC_FOLDER_ID", ""),
		MistralAPIKey:   getEnv("MISTRAL_API_KEY", ""),
		MistralOCRModel: getEnv("MISTRAL_OCR_MODEL", "mistral-ocr-latest"),

		RenderURL:     getEnv("RENDER_URL", ""),
		RenderTimeout: envDur("RENDER_TIMEOUT", 5*time.Minute),
		OutputDir:     getEnv("OUTPUT_DIR", "output"),

		MaxWorkers:     envInt("MAX_WORKERS", 4),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 16<<20)),
		TaskRetention:  envDur("TASK_RETENTION", 0),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		PollInterval:     envDur("POLL_INTERVAL", 2*time.Second),
	}
}

// LoadBot is Load for the Telegram binary, which cannot start without a
// bot token.
func LoadBot() *Config {
	c := Load()
	c.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
	return c
}

var knownOCR = map[string]bool{"yandex": true, "mistral": true, "gemini": true}

var knownSecondary = map[string]bool{
	"openai": true, "gpt": true, "deepseek": true, "qwen": true, "dashscope": true, "tongyi": true,
	"claude": true, "anthropic": true, "ollama": true, "ark": true, "doubao": true,
}

func (c *Config) Validate() error {
	var errs []error
	if c.MaxWorkers < 1 {
		errs = append(errs, errors.New("MAX_WORKERS must be at least 1"))
	}
	if len(c.OCREngines) == 0 {
		errs = append(errs, errors.New("OCR_ENGINES is empty"))
	}
	for _, e := range c.OCREngines {
		switch {
		case !knownOCR[e]:
			errs = append(errs, fmt.Errorf("OCR_ENGINES: unknown engine %q", e))
		case e == "yandex" && (c.YCOAuthToken == "" || c.YCFolderID == ""):
			errs = append(errs, errors.New("yandex OCR needs YC_OAUTH_TOKEN and YC_FOLDER_ID"))
		case e == "mistral" && c.MistralAPIKey == "":
			errs = append(errs, errors.New("mistral OCR needs MISTRAL_API_KEY"))
		case e == "gemini" && c.GeminiAPIKey == "":
			errs = append(errs, errors.New("gemini OCR needs GEMINI_API_KEY"))
		}
	}
	if t := strings.ToLower(c.SecondaryAIType); t != "" {
		if !knownSecondary[t] {
			errs = append(errs, fmt.Errorf("SECONDARY_AI_TYPE: unsupported %q", c.SecondaryAIType))
		}
		if c.SecondaryAIModel == "" {
			errs = append(errs, errors.New("SECONDARY_AI_MODEL is required with SECONDARY_AI_TYPE"))
		}
	}
	return errors.Join(errs...)
}

// PrimaryEnabled reports whether the Gemini link is configured.
func (c *Config) PrimaryEnabled() bool { return c.GeminiAPIKey != "" }

// SecondaryEnabled reports whether the chat-model link is configured.
func (c *Config) SecondaryEnabled() bool { return c.SecondaryAIType != "" }
