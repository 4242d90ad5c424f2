// Package engine routes snippets to the executor for their language and
// records outcomes in a Result Store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/sakif/snippet-runner/internal/executor"
	"github.com/sakif/snippet-runner/internal/executor/python"
)

// Executors holds one executor per supported language. A nil Python executor
// means no interpreter runtime is loaded.
type Executors struct {
	JavaScript executor.Executor
	Python     executor.Executor
	Preview    executor.Executor
}

// Recorder is the part of a Result Store the engine drives.
type Recorder interface {
	StartRun() string
	Complete(runID string, res executor.ExecutionResult) bool
}

// Engine is the Language Dispatcher.
type Engine struct {
	executors Executors
	logger    *slog.Logger
}

// New creates an Engine.
func New(executors Executors, logger *slog.Logger) *Engine {
	return &Engine{executors: executors, logger: logger}
}

var _ executor.Executor = (*Engine)(nil)

// Execute implements executor.Executor. It never returns an error.
func (e *Engine) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	res := e.Dispatch(ctx, req)
	return &res, nil
}

// Dispatch runs req on the executor for its language. Every failure,
// including an executor panic, is reported inside the result.
func (e *Engine) Dispatch(ctx context.Context, req executor.ExecutionRequest) (res executor.ExecutionResult) {
	start := time.Now()
	lang := executor.ParseLanguage(req.Language)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("executor panicked",
				slog.String("language", lang.String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			res = executor.Console(fmt.Sprintf("Error: %v", r), true)
			res.ErrorKind = executor.ErrorRuntime
		}
		res.Duration = time.Since(start)
	}()

	if lang == executor.Unsupported {
		res = executor.Console(executor.UnsupportedMessage(req.Language), false)
		res.ErrorKind = executor.ErrorUnsupported
		return res
	}

	exec := e.route(lang)
	if exec == nil {
		if lang == executor.Python {
			res = executor.Console(python.NotLoadedMessage, true)
		} else {
			res = executor.Console(fmt.Sprintf("No executor configured for %s.", lang), true)
		}
		res.ErrorKind = executor.ErrorConfiguration
		return res
	}

	out, err := exec.Execute(ctx, req)
	if err != nil {
		e.logger.Error("executor failed",
			slog.String("language", lang.String()),
			slog.String("error", err.Error()),
		)
		res = executor.Console("Error: "+err.Error(), true)
		res.ErrorKind = executor.ErrorRuntime
		return res
	}
	if out == nil {
		res = executor.Console("Error: executor returned no result", true)
		res.ErrorKind = executor.ErrorRuntime
		return res
	}
	return *out
}

// Run shows the placeholder in rec, dispatches req and completes rec with the
// outcome. A run that is no longer current still replaces the held result.
func (e *Engine) Run(ctx context.Context, rec Recorder, req executor.ExecutionRequest) executor.ExecutionResult {
	runID := rec.StartRun()

	res := e.Dispatch(ctx, req)
	res.RunID = runID

	if !rec.Complete(runID, res) {
		e.logger.Info("run completed after a newer run started", slog.String("runId", runID))
	}
	e.logger.Debug("run completed",
		slog.String("runId", runID),
		slog.String("language", executor.NormalizeTag(req.Language)),
		slog.Bool("isError", res.IsError),
		slog.String("errorKind", string(res.ErrorKind)),
		slog.Duration("duration", res.Duration),
	)
	return res
}

// PythonAvailable reports whether Python snippets can run.
func (e *Engine) PythonAvailable() bool {
	if e.executors.Python == nil {
		return false
	}
	if a, ok := e.executors.Python.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

func (e *Engine) route(lang executor.Language) executor.Executor {
	switch lang {
	case executor.JavaScript:
		return e.executors.JavaScript
	case executor.Python:
		return e.executors.Python
	case executor.HTMLCSS:
		return e.executors.Preview
	default:
		return nil
	}
}
