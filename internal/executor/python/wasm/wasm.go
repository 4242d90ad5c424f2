// Package wasm runs Python programs on a WASI build of the interpreter using
// wazero. Guests get no network, no host filesystem beyond the module mount
// and no environment besides PYTHONPATH.
package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/sakif/snippet-runner/internal/executor/python"
)

// ModuleMount is where the module resolver is mounted inside the guest.
const ModuleMount = "/lib"

// Config holds the wazero runtime settings.
type Config struct {
	// WasmPath is the interpreter binary, e.g. a WASI CPython or RustPython build.
	WasmPath string
	// MemoryLimitPages caps guest memory in 64KiB pages. Zero keeps wazero's default.
	MemoryLimitPages uint32
}

// Runtime is a python.Runtime backed by a compiled WASI module.
type Runtime struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	logger   *slog.Logger

	mu     sync.Mutex
	opts   python.Options
	closed bool
}

var _ python.Runtime = (*Runtime)(nil)

// New loads and compiles the interpreter at cfg.WasmPath.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Runtime, error) {
	bin, err := os.ReadFile(cfg.WasmPath)
	if err != nil {
		return nil, fmt.Errorf("read interpreter: %w", err)
	}
	return NewFromBinary(ctx, bin, cfg, logger)
}

// NewFromBinary compiles an interpreter that is already in memory.
func NewFromBinary(ctx context.Context, bin []byte, cfg Config, logger *slog.Logger) (*Runtime, error) {
	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile interpreter: %w", err)
	}

	logger.Info("python wasm runtime ready", slog.Int("binaryBytes", len(bin)))
	return &Runtime{runtime: rt, compiled: compiled, logger: logger}, nil
}

// Configure records the options for the next RunMain.
func (r *Runtime) Configure(opts python.Options) error {
	if opts.Dialect != python.Python3 {
		return fmt.Errorf("wasm: unsupported dialect %d", opts.Dialect)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
	return nil
}

// RunMain instantiates a fresh guest and runs prog as its main module.
func (r *Runtime) RunMain(ctx context.Context, prog python.Program) error {
	r.mu.Lock()
	opts := r.opts
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return errors.New("wasm: runtime closed")
	}

	var stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithStdout(sinkWriter(opts.Output)).
		WithStderr(&stderr).
		WithArgs("python", "-c", prog.Source).
		WithName("")

	if opts.Modules != nil {
		if _, err := fs.Stat(opts.Modules, "."); err == nil {
			cfg = cfg.
				WithFSConfig(wazero.NewFSConfig().WithFSMount(opts.Modules, ModuleMount)).
				WithEnv("PYTHONPATH", ModuleMount)
		}
	}

	mod, err := r.runtime.InstantiateModule(ctx, r.compiled, cfg)
	if mod != nil {
		defer mod.Close(context.Background())
	}

	if ctx.Err() != nil {
		return fmt.Errorf("wasm: %w", ctx.Err())
	}

	var exitErr *sys.ExitError
	if err == nil || (errors.As(err, &exitErr) && exitErr.ExitCode() == 0) {
		if stderr.Len() > 0 && opts.Output != nil {
			opts.Output(stderr.String())
		}
		return nil
	}
	if exitErr != nil {
		return python.ParseTraceback(stderr.String(), prog.Name)
	}
	return fmt.Errorf("wasm: %w", err)
}

// Close releases the compiled module and the wazero runtime.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.runtime.Close(context.Background())
}

// sinkWriter adapts an output callback to io.Writer.
type sinkWriter func(string)

func (w sinkWriter) Write(p []byte) (int, error) {
	if w != nil {
		w(string(p))
	}
	return len(p), nil
}
