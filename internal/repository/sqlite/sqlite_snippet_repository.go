// Package sqlite provides a SQLite-backed implementation of the snippet repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
	"github.com/roguepikachu/nibb/pkg/logger"
)

// SnippetRepository persists snippets in a single SQLite table. Tags are a JSON array column.
type SnippetRepository struct {
	db *sql.DB
}

// NewSnippetRepository wires a SQLite-backed implementation of the repository.
func NewSnippetRepository(db *sql.DB) *SnippetRepository {
	return &SnippetRepository{db: db}
}

// EnsureSchema creates the snippets table on first run.
func (r *SnippetRepository) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS snippets (
    name        TEXT PRIMARY KEY,
    content     TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tags        TEXT NOT NULL DEFAULT '[]',
    language    TEXT NOT NULL DEFAULT '',
    visibility  TEXT NOT NULL DEFAULT ''
)`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Debug(ctx, "sqlite schema ensured")
	return nil
}

const selectColumns = `SELECT name, content, description, tags, language, visibility FROM snippets`

const upsert = `
INSERT INTO snippets (name, content, description, tags, language, visibility)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    content = excluded.content,
    description = excluded.description,
    tags = excluded.tags,
    language = excluded.language,
    visibility = excluded.visibility`

type scanner interface {
	Scan(dest ...any) error
}

func (r *SnippetRepository) Get(ctx context.Context, name string) (domain.Snippet, error) {
	s, err := scanSnippet(r.db.QueryRowContext(ctx, selectColumns+` WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snippet{}, repository.ErrNotFound
		}
		return domain.Snippet{}, fmt.Errorf("query snippet: %w", err)
	}
	return s, nil
}

func (r *SnippetRepository) Put(ctx context.Context, s domain.Snippet) error {
	args, err := upsertArgs(s)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, upsert, args...); err != nil {
		return fmt.Errorf("upsert snippet: %w", err)
	}
	return nil
}

func (r *SnippetRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM snippets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns all snippets; SQLite's default BINARY collation gives byte-wise order.
func (r *SnippetRepository) List(ctx context.Context) ([]domain.Snippet, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY name`)
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
	return res, rows.Err()
}

// ReplaceAll clears and refills the table inside one transaction.
func (r *SnippetRepository) ReplaceAll(ctx context.Context, items []domain.Snippet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snippets`); err != nil {
		return fmt.Errorf("clear snippets: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, s := range items {
		args, err := upsertArgs(s)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %q: %w", s.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
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

func scanSnippet(row scanner) (domain.Snippet, error) {
	var (
		s        domain.Snippet
		tagsRaw  string
		language string
	)
	if err := row.Scan(&s.Name, &s.Content, &s.Description, &tagsRaw, &language, &s.Visibility); err != nil {
		return domain.Snippet{}, err
	}
	s.Language = domain.FileType(language)
	if err := json.Unmarshal([]byte(tagsRaw), &s.Tags); err != nil {
		return domain.Snippet{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if len(s.Tags) == 0 {
		s.Tags = nil
	}
	return s, nil
}

var _ repository.SnippetRepository = (*SnippetRepository)(nil)
