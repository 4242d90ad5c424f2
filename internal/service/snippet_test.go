package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-runner/internal/apperror"
	"github.com/sakif/snippet-runner/internal/model"
	"github.com/sakif/snippet-runner/internal/repository"
)

// mockSnippetRepo is an in-memory repository.SnippetRepository.
type mockSnippetRepo struct {
	snippets  map[string]*model.Snippet
	nextID    int
	lastList  repository.ListOptions
	createErr error
}

func newMockRepo() *mockSnippetRepo {
	return &mockSnippetRepo{snippets: make(map[string]*model.Snippet)}
}

func (m *mockSnippetRepo) Create(_ context.Context, snippet *model.Snippet) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	snippet.ID = fmt.Sprintf("mock-%d", m.nextID)
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	snippet, ok := m.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	result := *snippet
	return &result, nil
}

func (m *mockSnippetRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	m.lastList = opts
	result := make([]model.Snippet, 0, len(m.snippets))
	for _, s := range m.snippets {
		if opts.Language != "" && !strings.EqualFold(s.Language, opts.Language) {
			continue
		}
		result = append(result, *s)
	}
	if opts.Offset >= len(result) {
		return []model.Snippet{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockSnippetRepo) Update(_ context.Context, snippet *model.Snippet) error {
	if _, ok := m.snippets[snippet.ID]; !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(m.snippets, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T) (*SnippetService, *mockSnippetRepo) {
	t.Helper()
	repo := newMockRepo()
	return NewSnippetService(repo, testLogger()), repo
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		svc, repo := newTestService(t)
		snippet, err := svc.Create(ctx, SnippetInput{
			Name:        "  Hello  ",
			Language:    " js ",
			Code:        `console.log("hi")`,
			Description: "  greets  ",
		})
		require.NoError(t, err)

		assert.Equal(t, "Hello", snippet.Name)
		assert.Equal(t, "js", snippet.Language)
		assert.Equal(t, "greets", snippet.Description)
		assert.Len(t, repo.snippets, 1)
	})

	tests := []struct {
		name  string
		in    SnippetInput
		field string
	}{
		{name: "empty name", in: SnippetInput{Name: "  ", Language: "js"}, field: "name"},
		{name: "long name", in: SnippetInput{Name: strings.Repeat("a", MaxSnippetNameLength+1), Language: "js"}, field: "name"},
		{name: "missing language", in: SnippetInput{Name: "x"}, field: "language"},
		{name: "long language", in: SnippetInput{Name: "x", Language: strings.Repeat("l", MaxLanguageTagLength+1)}, field: "language"},
		{name: "long code", in: SnippetInput{Name: "x", Language: "py", Code: strings.Repeat("c", MaxCodeLength+1)}, field: "code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)
			_, err := svc.Create(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, repo.snippets)
		})
	}

	t.Run("unsupported language tag is accepted", func(t *testing.T) {
		svc, _ := newTestService(t)
		snippet, err := svc.Create(ctx, SnippetInput{Name: "rust", Language: "rust", Code: "fn main() {}"})
		require.NoError(t, err)
		assert.Equal(t, "rust", snippet.Language)
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.createErr = errors.New("disk full")
		_, err := svc.Create(ctx, SnippetInput{Name: "x", Language: "js"})
		assert.ErrorContains(t, err, "creating snippet")
	})
}

func TestGetByID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, SnippetInput{Name: "find me", Language: "py", Code: "x = 1"})
	require.NoError(t, err)

	found, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "find me", found.Name)

	_, err = svc.GetByID(ctx, "   ")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.GetByID(ctx, "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestList(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	for _, lang := range []string{"js", "py", "JS"} {
		_, err := svc.Create(ctx, SnippetInput{Name: "s", Language: lang})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, 0, -5, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, DefaultListLimit, repo.lastList.Limit)
	assert.Equal(t, 0, repo.lastList.Offset)

	_, err = svc.List(ctx, 1000, 0, "")
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, repo.lastList.Limit)

	js, err := svc.List(ctx, 10, 0, " js ")
	require.NoError(t, err)
	assert.Len(t, js, 2)
	assert.Equal(t, "js", repo.lastList.Language)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, SnippetInput{Name: "orig", Language: "js", Code: "a", Description: "d"})
	require.NoError(t, err)

	t.Run("keeps name and language when empty", func(t *testing.T) {
		updated, err := svc.Update(ctx, created.ID, SnippetInput{Code: "b"})
		require.NoError(t, err)
		assert.Equal(t, "orig", updated.Name)
		assert.Equal(t, "js", updated.Language)
		assert.Equal(t, "b", updated.Code)
		assert.Empty(t, updated.Description)
	})

	t.Run("changes language", func(t *testing.T) {
		updated, err := svc.Update(ctx, created.ID, SnippetInput{Language: "python", Code: "print(1)"})
		require.NoError(t, err)
		assert.Equal(t, "python", updated.Language)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Update(ctx, "missing", SnippetInput{Code: "x"})
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := svc.Update(ctx, created.ID, SnippetInput{Name: strings.Repeat("n", MaxSnippetNameLength+1)})
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, SnippetInput{Name: "bye", Language: "css"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Empty(t, repo.snippets)

	assert.True(t, errors.Is(svc.Delete(ctx, created.ID), apperror.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, ""), apperror.ErrValidation))
}
