package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-runner/internal/executor"
)

// Runner is the stateless execution surface of the run service.
type Runner interface {
	Execute(ctx context.Context, req executor.ExecutionRequest) (executor.ExecutionResult, error)
}

// ExecuteHandler runs one snippet without a session.
type ExecuteHandler struct {
	runner Runner
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(runner Runner, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		runner: runner,
		logger: logger,
	}
}

// HandleExecute runs the posted snippet and returns its ExecutionResult.
// Snippet failures are part of the result and still answer 200.
//
// HTTP: POST /api/execute
// REQUEST BODY: {"code": "console.log(1)", "language": "js"}
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.ExecutionRequest
	if !decodeJSON(w, r, &req) {
		h.logger.Warn("invalid execution request body")
		return
	}

	result, err := h.runner.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
