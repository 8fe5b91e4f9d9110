// Package app assembles the pipeline from configuration. The HTTP server,
// the Telegram bot and the MCP server all start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"mathcast/api/internal/config"
	"mathcast/api/internal/fallback"
	"mathcast/api/internal/ocr"
	ocrgemini "mathcast/api/internal/ocr/gemini"
	"mathcast/api/internal/ocr/mistral"
	"mathcast/api/internal/ocr/yandex"
	"mathcast/api/internal/pipeline"
	"mathcast/api/internal/problem"
	"mathcast/api/internal/reasoning"
	"mathcast/api/internal/reasoning/chatmodel"
	"mathcast/api/internal/reasoning/gemini"
	"mathcast/api/internal/render"
	"mathcast/api/internal/store"
	"mathcast/api/internal/tracker"
)

type App struct {
	Config  *config.Config
	DB      *sql.DB // nil without a DSN
	Tracker *tracker.Tracker
	Service *pipeline.Service
	Solver  *fallback.Solver
	OCR     *ocr.Manager // nil when no engine has credentials
	History *store.HistoryRepo
	Tasks   *store.TaskRepo

	prompts *reasoning.PromptStore
}

// New builds every collaborator. Storage is optional: without a DSN tasks
// live in memory only and history is off.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, prompts: reasoning.NewPromptStore(cfg.PromptDir)}

	var topts []tracker.Option
	var history pipeline.HistorySaver
	if dsn := store.ResolveDSN(); dsn != "" {
		db, err := store.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Printf("db connected: %s", store.SafeDSNSummary(dsn))
		a.DB = db
		a.History = store.NewHistoryRepo(db)
		a.Tasks = store.NewTaskRepo(db)
		topts = append(topts, tracker.WithPersister(a.Tasks))
		history = a.History
	} else {
		log.Printf("db: no DSN configured, history disabled")
	}

	solver, err := BuildSolver(ctx, cfg, a.prompts)
	if err != nil {
		_ = a.prompts.Close()
		_ = a.closeStores()
		return nil, err
	}
	a.Solver = solver
	a.OCR = BuildOCR(cfg)
	a.Tracker = tracker.New(topts...)

	d := &pipeline.Driver{
		Tracker:  a.Tracker,
		Solver:   solver,
		Renderer: BuildRenderer(cfg),
		History:  history,
	}
	if a.OCR != nil {
		d.OCR = a.OCR.Default()
	}
	a.Service = pipeline.NewService(d, cfg.MaxWorkers, cfg.MaxUploadBytes)
	return a, nil
}

// BuildSolver wires the provider chain. An AI link without credentials is
// left out and the chain skips it.
func BuildSolver(ctx context.Context, cfg *config.Config, prompts *reasoning.PromptStore) (*fallback.Solver, error) {
	fc := fallback.Config{
		PrimaryTimeout:   cfg.PrimaryAITimeout,
		SecondaryTimeout: cfg.SecondaryAITimeout,
	}
	if cfg.PrimaryEnabled() {
		fc.Primary = reasoning.NewProvider(problem.PrimaryAI,
			gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.PrimaryAIRetries, prompts),
			reasoning.WithRateLimit(cfg.PrimaryAIRPS, 1))
		log.Printf("solver: primary AI gemini/%s", cfg.GeminiModel)
	}
	if cfg.SecondaryEnabled() {
		eng, err := chatmodel.New(ctx, chatmodel.Config{
			Type:    cfg.SecondaryAIType,
			BaseURL: cfg.SecondaryAIBaseURL,
			APIKey:  cfg.SecondaryAIAPIKey,
			Model:   cfg.SecondaryAIModel,
			Timeout: cfg.SecondaryAITimeout,
		}, prompts)
		if err != nil {
			return nil, fmt.Errorf("secondary AI: %w", err)
		}
		fc.Secondary = reasoning.NewProvider(problem.SecondaryAI, eng, reasoning.WithRateLimit(cfg.SecondaryAIRPS, 1))
		log.Printf("solver: secondary AI %s/%s", eng.Name(), cfg.SecondaryAIModel)
	}
	return fallback.New(fc), nil
}

// BuildOCR returns a manager whose default reads with every configured
// engine and keeps the best text. Engines missing credentials are skipped.
func BuildOCR(cfg *config.Config) *ocr.Manager {
	var engines []ocr.Extractor
	for _, name := range cfg.OCREngines {
		switch name {
		case "yandex":
			if cfg.YCOAuthToken == "" || cfg.YCFolderID == "" {
				log.Printf("ocr: yandex skipped, no credentials")
				continue
			}
			engines = append(engines, yandex.New(cfg.YCOAuthToken, cfg.YCFolderID))
		case "mistral":
			if cfg.MistralAPIKey == "" {
				log.Printf("ocr: mistral skipped, no MISTRAL_API_KEY")
				continue
			}
			engines = append(engines, mistral.New(cfg.MistralAPIKey, cfg.MistralOCRModel))
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				log.Printf("ocr: gemini skipped, no GEMINI_API_KEY")
				continue
			}
			engines = append(engines, ocrgemini.New(cfg.GeminiAPIKey, cfg.GeminiModel))
		default:
			log.Printf("ocr: unknown engine %q skipped", name)
		}
	}
	switch len(engines) {
	case 0:
		return nil
	case 1:
		return ocr.NewManager(engines[0])
	}
	return ocr.NewManager(ocr.NewBest(engines...), engines...)
}

func BuildRenderer(cfg *config.Config) render.Renderer {
	if cfg.RenderURL != "" {
		log.Printf("render: service at %s", cfg.RenderURL)
		return render.NewClient(cfg.RenderURL, cfg.RenderTimeout)
	}
	log.Printf("render: writing storyboards to %s", cfg.OutputDir)
	return render.NewManifestWriter(cfg.OutputDir)
}

// Run starts the background janitors and blocks until ctx is done.
func (a *App) Run(ctx context.Context) {
	go a.Tracker.RunJanitor(ctx, a.Config.TaskRetention)
	if a.History != nil && a.Config.TaskRetention > 0 {
		go a.purgeHistory(ctx)
	}
	<-ctx.Done()
}

func (a *App) purgeHistory(ctx context.Context) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// history outlives tasks by a wide margin
			n, err := a.History.PurgeOlderThan(ctx, 30*a.Config.TaskRetention)
			if err != nil {
				log.Printf("history purge: %v", err)
			} else if n > 0 {
				log.Printf("history purge: %d entries", n)
			}
		}
	}
}

// Ping checks the database; without one it always succeeds.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

// Close drains running jobs, then releases the stores.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Service != nil {
		if err := a.Service.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("service shutdown: %w", err))
		}
	}
	if err := a.prompts.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
