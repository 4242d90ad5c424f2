// Package repository declares the storage interfaces the service layer
// depends on.
package repository

import (
	"context"

	"github.com/sakif/snippet-runner/internal/model"
)

// ListOptions pages and filters a snippet listing.
type ListOptions struct {
	Limit  int
	Offset int
	// Language, when set, keeps only snippets whose tag matches it
	// case-insensitively.
	Language string
}

// SnippetRepository persists saved snippets.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}
