package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-runner/internal/apperror"
	"github.com/sakif/snippet-runner/internal/model"
	"github.com/sakif/snippet-runner/internal/repository"
)

var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, name, language, code, description, created_at, updated_at`

// Create inserts snippet, filling in its ID and timestamps.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()

	now := time.Now()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.Name,
		snippet.Language,
		snippet.Code,
		snippet.Description,
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound when no snippet has id.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`,
		id,
	)

	snippet, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return snippet, nil
}

// List returns snippets newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	query := `SELECT ` + snippetColumns + ` FROM snippets`
	args := make([]any, 0, 3)
	if lang := strings.TrimSpace(opts.Language); lang != "" {
		query += ` WHERE language = ? COLLATE NOCASE`
		args = append(args, lang)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// Update overwrites the mutable fields of snippet and bumps UpdatedAt.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET name = ?, language = ?, code = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Name,
		snippet.Language,
		snippet.Code,
		snippet.Description,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}
	return expectOneRow(result, snippet.ID)
}

// Delete removes the snippet with id.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("snippet", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*model.Snippet, error) {
	var s model.Snippet
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Language,
		&s.Code,
		&s.Description,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
