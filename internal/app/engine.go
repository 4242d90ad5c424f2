// Package app assembles the execution engine from configuration. Both the
// HTTP server and the CLI start here.
package app

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/sakif/snippet-runner/internal/config"
	"github.com/sakif/snippet-runner/internal/engine"
	"github.com/sakif/snippet-runner/internal/executor/javascript"
	"github.com/sakif/snippet-runner/internal/executor/preview"
	"github.com/sakif/snippet-runner/internal/executor/python"
	"github.com/sakif/snippet-runner/internal/executor/python/docker"
	"github.com/sakif/snippet-runner/internal/executor/python/wasm"
)

// pythonRuntime is a python.Runtime that holds resources.
type pythonRuntime interface {
	python.Runtime
	Close() error
}

// NewEngine builds every executor cfg asks for. A Python backend that fails
// to start is logged and left out, so Python runs report the not-loaded
// message instead of stopping the process. The returned func releases the
// backend.
func NewEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, func()) {
	js := javascript.New(javascript.Config{
		Timeout:          cfg.Execution.Timeout,
		MaxCallStackSize: cfg.JavaScript.MaxCallStack,
	}, logger)

	rt := startPython(ctx, cfg, logger)

	adapterCfg := python.Config{Timeout: cfg.Execution.Timeout}
	if fsys, ok := stdlib(cfg.Python.StdlibDir); ok {
		adapterCfg.Modules = fsys
	} else if cfg.Python.StdlibDir != "" {
		logger.Warn("python.stdlib_dir not readable, imports use the interpreter's own modules",
			slog.String("dir", cfg.Python.StdlibDir))
	}

	// A nil pythonRuntime must reach NewAdapter as a nil python.Runtime.
	adapter := python.NewAdapter(nil, adapterCfg, logger)
	cleanup := func() {}
	if rt != nil {
		adapter = python.NewAdapter(rt, adapterCfg, logger)
		cleanup = func() {
			if err := rt.Close(); err != nil {
				logger.Warn("closing python runtime", slog.String("error", err.Error()))
			}
		}
	}

	eng := engine.New(engine.Executors{
		JavaScript: js,
		Python:     adapter,
		Preview:    preview.New(),
	}, logger)
	return eng, cleanup
}

func startPython(ctx context.Context, cfg *config.Config, logger *slog.Logger) pythonRuntime {
	switch cfg.Python.Backend {
	case config.BackendDocker:
		rt, err := docker.New(ctx, docker.Config{
			Image:       cfg.Docker.Image,
			MemoryLimit: cfg.Docker.MemoryLimit,
			CPULimit:    cfg.Docker.CPULimit,
			PoolSize:    cfg.Docker.PoolSize,
		}, logger)
		if err != nil {
			logger.Warn("docker python backend unavailable, python runs will fail",
				slog.String("error", err.Error()))
			return nil
		}
		return rt

	case config.BackendWasm:
		rt, err := wasm.New(ctx, wasm.Config{
			WasmPath:         cfg.Python.WasmPath,
			MemoryLimitPages: cfg.Python.MemoryLimitPages,
		}, logger)
		if err != nil {
			logger.Warn("wasm python backend unavailable, python runs will fail",
				slog.String("path", cfg.Python.WasmPath),
				slog.String("error", err.Error()))
			return nil
		}
		return rt
	}

	logger.Info("python backend disabled")
	return nil
}

// stdlib reports whether dir can back module resolution.
func stdlib(dir string) (fs.FS, bool) {
	if dir == "" {
		return nil, false
	}
	fsys := os.DirFS(dir)
	if _, err := fs.Stat(fsys, "."); err != nil {
		return nil, false
	}
	return fsys, true
}
