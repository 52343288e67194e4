// Package service contains the snippet store used by the C boundary and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
	"github.com/roguepikachu/nibb/pkg/logger"
)

// Service owns one backend and serialises access to it: writers are exclusive,
// readers share. Inputs and outputs are deep copies, so callers never alias stored values.
type Service struct {
	mu   sync.RWMutex
	repo repository.SnippetRepository
}

// NewService creates a new Service over the given SnippetRepository.
func NewService(repo repository.SnippetRepository) *Service {
	return &Service{repo: repo}
}

// classify turns a backend error into a typed one.
func classify(op, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Wrap(domain.KindNotFound, op, name, err)
	}
	return domain.Wrap(domain.KindStorage, op, name, err)
}

// Get returns the snippet stored under name. An empty name is never stored, so it is NotFound.
func (s *Service) Get(ctx context.Context, name string) (domain.Snippet, error) {
	const op = "get"
	if name == "" {
		return domain.Snippet{}, domain.Wrap(domain.KindNotFound, op, name, repository.ErrNotFound)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snip, err := s.repo.Get(ctx, name)
	if err != nil {
		return domain.Snippet{}, classify(op, name, err)
	}
	return snip.Clone(), nil
}

// Put inserts or wholesale replaces the snippet with the same name.
func (s *Service) Put(ctx context.Context, snip domain.Snippet) error {
	if err := domain.ValidateSnippet(snip); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Put(ctx, snip.Clone()); err != nil {
		return classify("put", snip.Name, err)
	}
	logger.Debug(ctx, "stored snippet %q", snip.Name)
	return nil
}

// Delete removes the snippet stored under name.
func (s *Service) Delete(ctx context.Context, name string) error {
	const op = "delete"
	if name == "" {
		return domain.Wrap(domain.KindNotFound, op, name, repository.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, name); err != nil {
		return classify(op, name, err)
	}
	logger.Debug(ctx, "deleted snippet %q", name)
	return nil
}

// List returns every snippet sorted by name, byte-wise. Never nil.
func (s *Service) List(ctx context.Context) ([]domain.Snippet, error) {
	s.mu.RLock()
	items, err := s.repo.List(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, classify("list", "", err)
	}
	items = domain.CloneAll(items)
	if items == nil {
		items = []domain.Snippet{}
	}
	domain.SortByName(items)
	return items, nil
}

// ReplaceAll swaps the whole collection for items. The batch is validated
// before the backend is touched, so a rejected batch leaves the store as it was.
func (s *Service) ReplaceAll(ctx context.Context, items []domain.Snippet) error {
	if err := domain.ValidateBatch(items); err != nil {
		return err
	}
	batch := domain.CloneAll(items)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.ReplaceAll(ctx, batch); err != nil {
		return classify("replace all", "", err)
	}
	logger.Info(ctx, "replaced collection with %d snippets", len(batch))
	return nil
}

// Rename moves the snippet stored under from to the name to. The target name must be free.
// Both steps run under the write lock; if the old entry cannot be removed the new one is dropped again.
func (s *Service) Rename(ctx context.Context, from, to string) error {
	const op = "rename"
	if from == "" {
		return domain.Wrap(domain.KindNotFound, op, from, repository.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snip, err := s.repo.Get(ctx, from)
	if err != nil {
		return classify(op, from, err)
	}
	if from == to {
		return nil
	}
	snip.Name = to
	if err := domain.ValidateSnippet(snip); err != nil {
		return err
	}
	switch _, err := s.repo.Get(ctx, to); {
	case err == nil:
		return domain.Errorf(domain.KindValidation, op, "snippet %q already exists", to)
	case !errors.Is(err, repository.ErrNotFound):
		return classify(op, to, err)
	}
	if err := s.repo.Put(ctx, snip); err != nil {
		return classify(op, to, err)
	}
	if err := s.repo.Delete(ctx, from); err != nil {
		if rbErr := s.repo.Delete(ctx, to); rbErr != nil {
			logger.Error(ctx, "undo rename %q -> %q: %v", from, to, rbErr)
		}
		return classify(op, from, err)
	}
	logger.Info(ctx, "renamed snippet %q to %q", from, to)
	return nil
}

// Tag adds and removes tags on one snippet and returns the result.
// Added tags keep their order and are not duplicated; removing a missing tag is a no-op.
func (s *Service) Tag(ctx context.Context, name string, add, remove []string) (domain.Snippet, error) {
	const op = "tag"
	if name == "" {
		return domain.Snippet{}, domain.Wrap(domain.KindNotFound, op, name, repository.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snip, err := s.repo.Get(ctx, name)
	if err != nil {
		return domain.Snippet{}, classify(op, name, err)
	}
	drop := make(map[string]bool, len(remove))
	for _, t := range remove {
		drop[t] = true
	}
	seen := make(map[string]bool, len(snip.Tags)+len(add))
	tags := make([]string, 0, len(snip.Tags)+len(add))
	for _, t := range append(append([]string{}, snip.Tags...), add...) {
		if drop[t] || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) == 0 {
		tags = nil
	}
	snip.Tags = tags
	if err := domain.ValidateSnippet(snip); err != nil {
		return domain.Snippet{}, err
	}
	if err := s.repo.Put(ctx, snip); err != nil {
		return domain.Snippet{}, classify(op, name, err)
	}
	return snip.Clone(), nil
}

// Search ranks snippets whose name, description, tags or content fuzzily match query,
// best match first. Equal scores keep name order. An empty query returns everything.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Snippet, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return items, nil
	}
	haystacks := make([]string, len(items))
	for i, it := range items {
		haystacks[i] = strings.Join([]string{it.Name, it.Description, strings.Join(it.Tags, " "), it.Content}, " ")
	}
	ranks := fuzzy.RankFindNormalizedFold(query, haystacks)
	sort.Stable(ranks)
	found := make([]domain.Snippet, 0, len(ranks))
	for _, r := range ranks {
		found = append(found, items[r.OriginalIndex])
	}
	return found, nil
}

// Export writes the whole collection to w as a JSON array.
func (s *Service) Export(ctx context.Context, w io.Writer, pretty bool) (int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	data, err := domain.EncodeSnippets(items, pretty)
	if err != nil {
		return 0, domain.Wrap(domain.KindInternal, "export", "", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return 0, domain.Wrap(domain.KindStorage, "export", "", fmt.Errorf("write: %w", err))
	}
	return len(items), nil
}

// Import replaces the collection with the JSON array read from r.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, domain.Wrap(domain.KindStorage, "import", "", fmt.Errorf("read: %w", err))
	}
	items, err := domain.DecodeSnippets(data)
	if err != nil {
		return 0, err
	}
	if err := s.ReplaceAll(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}
