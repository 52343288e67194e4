// Package postgres provides a Postgres-backed implementation of the snippet repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
	"github.com/roguepikachu/nibb/pkg/logger"
)

// SnippetRepository implements repository.SnippetRepository using Postgres.
type SnippetRepository struct {
	pool *pgxpool.Pool
}

// NewSnippetRepository creates a new Postgres-backed snippet repository.
func NewSnippetRepository(pool *pgxpool.Pool) *SnippetRepository {
	return &SnippetRepository{pool: pool}
}

// EnsureSchema creates required tables if they don't exist.
func (r *SnippetRepository) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS snippets (
    name TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tags JSONB NOT NULL DEFAULT '[]'::jsonb,
    language TEXT NOT NULL DEFAULT '',
    visibility TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_snippets_tags_gin ON snippets USING GIN (tags);
`
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return err
	}
	logger.Info(ctx, "postgres schema ensured")
	return nil
}

const selectColumns = `SELECT name, content, description, tags, language, visibility FROM snippets`

const upsert = `
INSERT INTO snippets (name, content, description, tags, language, visibility)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)
ON CONFLICT (name) DO UPDATE SET
    content = EXCLUDED.content,
    description = EXCLUDED.description,
    tags = EXCLUDED.tags,
    language = EXCLUDED.language,
    visibility = EXCLUDED.visibility
`

// Get retrieves a snippet by its name from Postgres.
func (r *SnippetRepository) Get(ctx context.Context, name string) (domain.Snippet, error) {
	s, err := scanSnippet(r.pool.QueryRow(ctx, selectColumns+` WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snippet{}, repository.ErrNotFound
		}
		return domain.Snippet{}, fmt.Errorf("query snippet: %w", err)
	}
	return s, nil
}

// Put inserts the snippet or replaces the row with the same name.
func (r *SnippetRepository) Put(ctx context.Context, s domain.Snippet) error {
	args, err := upsertArgs(s)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsert, args...); err != nil {
		return fmt.Errorf("upsert snippet: %w", err)
	}
	return nil
}

// Delete removes the row with the given name.
func (r *SnippetRepository) Delete(ctx context.Context, name string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM snippets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns every snippet ordered by name.
func (r *SnippetRepository) List(ctx context.Context) ([]domain.Snippet, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()
	res := make([]domain.Snippet, 0)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		res = append(res, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return res, nil
}

// ReplaceAll truncates and refills the table in one transaction.
func (r *SnippetRepository) ReplaceAll(ctx context.Context, items []domain.Snippet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM snippets`); err != nil {
		return fmt.Errorf("clear snippets: %w", err)
	}
	batch := &pgx.Batch{}
	for _, s := range items {
		args, err := upsertArgs(s)
		if err != nil {
			return err
		}
		batch.Queue(upsert, args...)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert snippets: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertArgs(s domain.Snippet) ([]any, error) {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return []any{s.Name, s.Content, s.Description, string(tagsJSON), string(s.Language), s.Visibility}, nil
}

func scanSnippet(row pgx.Row) (domain.Snippet, error) {
	var (
		s        domain.Snippet
		tagsRaw  []byte
		language string
	)
	if err := row.Scan(&s.Name, &s.Content, &s.Description, &tagsRaw, &language, &s.Visibility); err != nil {
		return domain.Snippet{}, err
	}
	s.Language = domain.FileType(language)
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &s.Tags); err != nil {
			return domain.Snippet{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(s.Tags) == 0 {
		s.Tags = nil
	}
	return s, nil
}

var _ repository.SnippetRepository = (*SnippetRepository)(nil)
