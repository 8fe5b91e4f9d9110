package main

import (
	"context"
	"log"
	"os"

	"mathcast/api/internal/app"
	"mathcast/api/internal/config"
	"mathcast/api/internal/mcptool"
	"mathcast/api/internal/reasoning"
)

var version = "dev"

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	cfg := config.Load()
	prompts := reasoning.NewPromptStore(cfg.PromptDir)
	defer prompts.Close()

	solver, err := app.BuildSolver(context.Background(), cfg, prompts)
	if err != nil {
		log.Fatalf("solver: %v", err)
	}
	opts := mcptool.ServerOptions{ServerName: "mathcast", ServerVersion: version, Solver: solver}
	if m := app.BuildOCR(cfg); m != nil {
		opts.OCR = m.Default()
	}

	svr, err := mcptool.NewServer(opts)
	if err != nil {
		log.Fatalf("mcp: %v", err)
	}
	if err := svr.ServeStdio(); err != nil {
		log.Fatalf("mcp: %v", err)
	}
}
