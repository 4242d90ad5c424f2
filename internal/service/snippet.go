// Package service holds the business rules between the HTTP handlers and
// storage or execution.
//
// Handlers parse requests and write responses; services validate input,
// enforce limits and orchestrate repositories and the engine; repositories
// talk SQL. Services return apperror values and never know about HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippet-runner/internal/apperror"
	"github.com/sakif/snippet-runner/internal/model"
	"github.com/sakif/snippet-runner/internal/repository"
)

const (
	MaxSnippetNameLength = 100
	MaxLanguageTagLength = 32
	MaxCodeLength        = 100000
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// SnippetInput carries the user-editable fields of a snippet.
type SnippetInput struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// SnippetService manages saved snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

// NewSnippetService creates a SnippetService on top of repo.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and saves a new snippet. The language tag is required but
// not checked against the runnable set; unknown tags degrade when run.
func (s *SnippetService) Create(ctx context.Context, in SnippetInput) (*model.Snippet, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "snippet name is required")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	lang := strings.TrimSpace(in.Language)
	if lang == "" {
		return nil, apperror.ValidationFailed("language", "snippet language is required")
	}
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateCode(in.Code, MaxCodeLength); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Name:        name,
		Language:    lang,
		Code:        in.Code,
		Description: strings.TrimSpace(in.Description),
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
		slog.String("language", snippet.Language),
	)
	return snippet, nil
}

// GetByID returns apperror.ErrNotFound if the snippet doesn't exist.
func (s *SnippetService) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List pages through snippets, optionally filtered by language tag. Limits
// are clamped to 1..MaxListLimit.
func (s *SnippetService) List(ctx context.Context, limit, offset int, language string) ([]model.Snippet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(offset, 0)

	snippets, err := s.repo.List(ctx, repository.ListOptions{
		Limit:    limit,
		Offset:   offset,
		Language: strings.TrimSpace(language),
	})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Update fetches the snippet, applies in and saves it. Empty name and
// language keep their current values; code and description are always
// replaced.
func (s *SnippetService) Update(ctx context.Context, id string, in SnippetInput) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		if err := validateName(name); err != nil {
			return nil, err
		}
		snippet.Name = name
	}
	if lang := strings.TrimSpace(in.Language); lang != "" {
		if err := validateLanguage(lang); err != nil {
			return nil, err
		}
		snippet.Language = lang
	}
	if err := validateCode(in.Code, MaxCodeLength); err != nil {
		return nil, err
	}
	snippet.Code = in.Code
	snippet.Description = strings.TrimSpace(in.Description)

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
	)
	return snippet, nil
}

// Delete removes a snippet by ID.
func (s *SnippetService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

func validateName(name string) error {
	if len(name) > MaxSnippetNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("snippet name must be %d characters or less", MaxSnippetNameLength))
	}
	return nil
}

func validateLanguage(lang string) error {
	if len(lang) > MaxLanguageTagLength {
		return apperror.ValidationFailed("language",
			fmt.Sprintf("language tag must be %d characters or less", MaxLanguageTagLength))
	}
	return nil
}

func validateCode(code string, limit int) error {
	if limit > 0 && len(code) > limit {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", limit))
	}
	return nil
}
