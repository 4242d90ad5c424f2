package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/snippet-runner/internal/apperror"
	"github.com/sakif/snippet-runner/internal/engine"
	"github.com/sakif/snippet-runner/internal/executor"
	"github.com/sakif/snippet-runner/internal/repository"
	"github.com/sakif/snippet-runner/internal/session"
)

// Engine is the execution surface RunService needs.
type Engine interface {
	Dispatch(ctx context.Context, req executor.ExecutionRequest) executor.ExecutionResult
	Run(ctx context.Context, rec engine.Recorder, req executor.ExecutionRequest) executor.ExecutionResult
}

// Sessions looks up a session's Result Store.
type Sessions interface {
	Get(id string) (*session.Store, error)
}

// RunService validates run requests and drives the engine, either
// statelessly or against a session's Result Store.
type RunService struct {
	engine        Engine
	sessions      Sessions
	snippets      repository.SnippetRepository
	maxCodeLength int
	logger        *slog.Logger
}

// NewRunService creates a RunService. A non-positive maxCodeLength selects
// MaxCodeLength.
func NewRunService(eng Engine, sessions Sessions, snippets repository.SnippetRepository, maxCodeLength int, logger *slog.Logger) *RunService {
	if maxCodeLength <= 0 {
		maxCodeLength = MaxCodeLength
	}
	return &RunService{
		engine:        eng,
		sessions:      sessions,
		snippets:      snippets,
		maxCodeLength: maxCodeLength,
		logger:        logger,
	}
}

// Validate checks req before it reaches an executor.
func (s *RunService) Validate(req executor.ExecutionRequest) error {
	if strings.TrimSpace(req.Code) == "" {
		return apperror.ValidationFailed("code", "code cannot be empty")
	}
	return validateCode(req.Code, s.maxCodeLength)
}

// Execute runs req without touching any session.
func (s *RunService) Execute(ctx context.Context, req executor.ExecutionRequest) (executor.ExecutionResult, error) {
	if err := s.Validate(req); err != nil {
		return executor.ExecutionResult{}, err
	}
	res := s.engine.Dispatch(ctx, req)
	s.logResult("", req.Language, res)
	return res, nil
}

// RunInSession runs req and records the outcome in the session's store.
func (s *RunService) RunInSession(ctx context.Context, sessionID string, req executor.ExecutionRequest) (executor.ExecutionResult, error) {
	if err := s.Validate(req); err != nil {
		return executor.ExecutionResult{}, err
	}
	store, err := s.sessions.Get(sessionID)
	if err != nil {
		return executor.ExecutionResult{}, err
	}

	res := s.engine.Run(ctx, store, req)
	s.logResult(sessionID, req.Language, res)
	return res, nil
}

// RunSnippet loads a saved snippet and runs it in the session.
func (s *RunService) RunSnippet(ctx context.Context, sessionID, snippetID string) (executor.ExecutionResult, error) {
	if s.snippets == nil {
		return executor.ExecutionResult{}, apperror.NotFound("snippet", snippetID)
	}
	snippet, err := s.snippets.GetByID(ctx, strings.TrimSpace(snippetID))
	if err != nil {
		return executor.ExecutionResult{}, err
	}
	return s.RunInSession(ctx, sessionID, executor.ExecutionRequest{
		Code:     snippet.Code,
		Language: snippet.Language,
	})
}

func (s *RunService) logResult(sessionID, language string, res executor.ExecutionResult) {
	attrs := []any{
		slog.String("language", executor.NormalizeTag(language)),
		slog.String("kind", string(res.Kind)),
		slog.Bool("isError", res.IsError),
		slog.Duration("duration", res.Duration),
	}
	if sessionID != "" {
		attrs = append(attrs, slog.String("sessionId", sessionID), slog.String("runId", res.RunID))
	}
	if res.ErrorKind != "" {
		attrs = append(attrs, slog.String("errorKind", string(res.ErrorKind)))
	}
	s.logger.Info("snippet executed", attrs...)
}
