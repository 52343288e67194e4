// Package memory provides an in-memory implementation of the snippet repository.
package memory

import (
	"context"
	"sync"

	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
)

// SnippetRepository keeps snippets in a map. Nothing survives the process.
type SnippetRepository struct {
	mu     sync.RWMutex
	byName map[string]domain.Snippet
}

// Option configures the repository.
type Option func(*SnippetRepository)

// WithItems seeds the repository with the provided snippets (by name).
func WithItems(items ...domain.Snippet) Option {
	return func(r *SnippetRepository) {
		for _, s := range items {
			r.byName[s.Name] = s.Clone()
		}
	}
}

// NewSnippetRepository creates a new in-memory repo.
func NewSnippetRepository(opts ...Option) *SnippetRepository {
	r := &SnippetRepository{byName: make(map[string]domain.Snippet)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SnippetRepository) Get(_ context.Context, name string) (domain.Snippet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[name]; ok {
		return s.Clone(), nil
	}
	return domain.Snippet{}, repository.ErrNotFound
}

func (r *SnippetRepository) Put(_ context.Context, s domain.Snippet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[s.Name] = s.Clone()
	return nil
}

func (r *SnippetRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return repository.ErrNotFound
	}
	delete(r.byName, name)
	return nil
}

func (r *SnippetRepository) List(_ context.Context) ([]domain.Snippet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]domain.Snippet, 0, len(r.byName))
	for _, s := range r.byName {
		items = append(items, s.Clone())
	}
	domain.SortByName(items)
	return items, nil
}

// ReplaceAll builds the new map first and swaps it in under the lock.
func (r *SnippetRepository) ReplaceAll(_ context.Context, items []domain.Snippet) error {
	next := make(map[string]domain.Snippet, len(items))
	for _, s := range items {
		next[s.Name] = s.Clone()
	}
	r.mu.Lock()
	r.byName = next
	r.mu.Unlock()
	return nil
}

// Len returns the number of stored snippets.
func (r *SnippetRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

var _ repository.SnippetRepository = (*SnippetRepository)(nil)
