// Command server is the HTTP entry point of the snippet runner.
//
// Configuration comes from snippet-runner.yaml and RUNNER_* environment
// variables (see internal/config); -config names a file explicitly.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/snippet-runner/internal/app"
	"github.com/sakif/snippet-runner/internal/config"
	"github.com/sakif/snippet-runner/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a snippet-runner.yaml config file")
	flag.Parse()

	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if cfg.Storage.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.Storage.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	eng, cleanup := app.NewEngine(context.Background(), cfg, logger)
	defer cleanup()

	srv, err := server.New(cfg, eng, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		cleanup()
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		cleanup()
		os.Exit(1)
	}
}
