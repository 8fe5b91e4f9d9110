package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mathcast/api/internal/app"
	"mathcast/api/internal/config"
	"mathcast/api/internal/handle"
	"mathcast/api/internal/httpserver"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	go a.Run(ctx)

	opts := handle.Options{
		Ping:           a.Ping,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimitEvery: cfg.RateLimitEvery,
		RateLimitBurst: cfg.RateLimitBurst,
	}
	if a.Tasks != nil {
		opts.Tasks = a.Tasks
	}
	if a.History != nil {
		opts.History = a.History
	}
	h := handle.New(a.Service, opts)
	go h.CleanupLimiters(ctx, 5*time.Minute)

	log.Printf("mathcast api (workers: %d, ocr: %v)", cfg.MaxWorkers, cfg.OCREngines)
	if err := httpserver.Serve(ctx, "0.0.0.0:"+cfg.Port, h.Routes(), httpserver.DefaultTimeouts); err != nil {
		log.Printf("http: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
