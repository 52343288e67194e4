// Package repository defines the storage contract every snippet backend satisfies.
package repository

import (
	"context"
	"errors"

	"github.com/roguepikachu/nibb/internal/domain"
)

// ErrNotFound is returned by backends when no snippet has the requested name.
var ErrNotFound = errors.New("snippet not found")

// SnippetRepository is the persistence contract keyed by snippet name.
// ReplaceAll must be atomic: on error the previous contents stay untouched.
type SnippetRepository interface {
	Get(ctx context.Context, name string) (domain.Snippet, error)
	Put(ctx context.Context, s domain.Snippet) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.Snippet, error)
	ReplaceAll(ctx context.Context, items []domain.Snippet) error
}
