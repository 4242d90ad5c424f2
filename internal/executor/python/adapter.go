package python

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/snippet-runner/internal/executor"
)

const (
	// NotLoadedMessage is reported when no interpreter runtime was supplied.
	NotLoadedMessage = "Python execution environment not loaded. Please check the python.backend setting or restart the service."
	// SuccessMessage is reported when a program finishes without printing.
	SuccessMessage = "Code executed successfully."
)

// Config holds adapter settings.
type Config struct {
	// Timeout bounds a single run. Zero disables it.
	Timeout time.Duration
	// Modules backs import resolution. It may be nil.
	Modules fs.FS
}

// Adapter runs Python snippets on an injected Runtime, one at a time.
type Adapter struct {
	mu      sync.Mutex
	runtime Runtime
	config  Config
	logger  *slog.Logger
}

// NewAdapter creates an Adapter. rt may be nil, in which case every run
// reports a configuration error.
func NewAdapter(rt Runtime, cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{runtime: rt, config: cfg, logger: logger}
}

var _ executor.Executor = (*Adapter)(nil)

// Available reports whether an interpreter runtime is loaded.
func (a *Adapter) Available() bool {
	return a.runtime != nil
}

// Execute implements executor.Executor. It never returns an error.
func (a *Adapter) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	res := a.Run(ctx, req.Code)
	return &res, nil
}

// Run executes code as the main module and returns everything it printed.
func (a *Adapter) Run(ctx context.Context, code string) executor.ExecutionResult {
	if a.runtime == nil {
		res := executor.Console(NotLoadedMessage, true)
		res.ErrorKind = executor.ErrorConfiguration
		return res
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	out := &outputBuffer{}
	err := a.runtime.Configure(Options{
		Output:  out.write,
		Modules: resolverFS{base: a.config.Modules},
		Dialect: Python3,
	})
	if err != nil {
		a.logger.Error("failed to configure python runtime", slog.String("error", err.Error()))
		res := executor.Console(err.Error(), true)
		res.ErrorKind = executor.ErrorConfiguration
		return res
	}

	err = a.runtime.RunMain(ctx, Program{Name: ProgramName, Source: code})
	switch {
	case err == nil:
		text := out.String()
		if text == "" {
			text = SuccessMessage
		}
		return executor.Console(text, false)

	case ctx.Err() != nil:
		return a.interrupted(ctx, out.String())

	default:
		var ierr *InterpreterError
		if !errors.As(err, &ierr) {
			a.logger.Warn("python runtime failed", slog.String("error", err.Error()))
		}
		res := executor.Console(err.Error(), true)
		res.ErrorKind = executor.ErrorInterpreter
		return res
	}
}

func (a *Adapter) interrupted(ctx context.Context, partial string) executor.ExecutionResult {
	line := "Error: Execution cancelled: " + ctx.Err().Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		line = "Error: Execution timed out"
		if a.config.Timeout > 0 {
			line = fmt.Sprintf("Error: Execution timed out after %s", a.config.Timeout)
		}
	}

	content := line
	if partial != "" {
		content = strings.TrimRight(partial, "\n") + "\n" + line
	}
	res := executor.Console(content, true)
	res.ErrorKind = executor.ErrorTimeout
	return res
}

// outputBuffer collects stdout chunks. Backends may write from their own
// goroutines.
type outputBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (o *outputBuffer) write(chunk string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.WriteString(chunk)
}

func (o *outputBuffer) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}
