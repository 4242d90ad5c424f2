package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-runner/internal/apperror"
	"github.com/sakif/snippet-runner/internal/model"
	"github.com/sakif/snippet-runner/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSnippet(t *testing.T, db *DB, name, language, code string) *model.Snippet {
	t.Helper()
	snippet := &model.Snippet{Name: name, Language: language, Code: code}
	require.NoError(t, db.Create(context.Background(), snippet))
	return snippet
}

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	snippet := &model.Snippet{Name: "Hello World", Language: "js", Code: `console.log("hello")`}
	require.NoError(t, db.Create(context.Background(), snippet))

	assert.NotEmpty(t, snippet.ID)
	assert.False(t, snippet.CreatedAt.IsZero())
	assert.False(t, snippet.UpdatedAt.IsZero())

	found, err := db.GetByID(context.Background(), snippet.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", found.Name)
	assert.Equal(t, "js", found.Language)
	assert.Equal(t, `console.log("hello")`, found.Code)
}

func TestCreate_KeepsLanguageTagVerbatim(t *testing.T) {
	db := newTestDB(t)
	created := createTestSnippet(t, db, "rusty", " Rust ", "fn main() {}")

	found, err := db.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, " Rust ", found.Language)
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "nonexistent-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	empty, err := db.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	createTestSnippet(t, db, "first", "js", "a")
	createTestSnippet(t, db, "second", "python", "b")
	createTestSnippet(t, db, "third", "JS", "c")

	all, err := db.List(ctx, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	js, err := db.List(ctx, repository.ListOptions{Limit: 10, Language: "js"})
	require.NoError(t, err)
	assert.Len(t, js, 2, "language filter is case-insensitive")
	for _, s := range js {
		assert.NotEqual(t, "python", s.Language)
	}
}

func TestList_Pagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for range 5 {
		createTestSnippet(t, db, "snippet", "py", "pass")
	}

	page1, err := db.List(ctx, repository.ListOptions{Limit: 2, Offset: 0})
	require.NoError(t, err)
	page2, err := db.List(ctx, repository.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	page3, err := db.List(ctx, repository.ListOptions{Limit: 2, Offset: 4})
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 2)
	assert.Len(t, page3, 1)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestList_DefaultLimit(t *testing.T) {
	db := newTestDB(t)

	for range 25 {
		createTestSnippet(t, db, "snippet", "html", "<p>")
	}

	snippets, err := db.List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, snippets, 20)
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	original := createTestSnippet(t, db, "original", "js", "console.log(1)")

	original.Name = "updated"
	original.Language = "python"
	original.Code = "print(2)"
	require.NoError(t, db.Update(ctx, original))

	found, err := db.GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", found.Name)
	assert.Equal(t, "python", found.Language)
	assert.Equal(t, "print(2)", found.Code)
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(context.Background(), &model.Snippet{ID: "nonexistent", Name: "test"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	snippet := createTestSnippet(t, db, "to delete", "js", "")

	require.NoError(t, db.Delete(ctx, snippet.ID))

	_, err := db.GetByID(ctx, snippet.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	assert.True(t, errors.Is(db.Delete(ctx, snippet.ID), apperror.ErrNotFound))
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.migrate())
	require.NoError(t, db.migrate())

	createTestSnippet(t, db, "after remigrate", "css", "p {}")
}
