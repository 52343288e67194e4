// Package badger provides a Badger-backed implementation of the snippet repository.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
)

var prefix = []byte("snippet/")

func key(name string) []byte {
	return append(append([]byte{}, prefix...), name...)
}

// SnippetRepository stores JSON-encoded snippets under "snippet/<name>" keys.
// Badger iterates keys in byte order, so List needs no sort.
type SnippetRepository struct {
	db *badger.DB
}

// NewSnippetRepository wraps an open badger database.
func NewSnippetRepository(db *badger.DB) *SnippetRepository {
	return &SnippetRepository{db: db}
}

func (r *SnippetRepository) Get(_ context.Context, name string) (domain.Snippet, error) {
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.Snippet{}, repository.ErrNotFound
		}
		return domain.Snippet{}, fmt.Errorf("badger get: %w", err)
	}
	s, err := domain.DecodeSnippet(value)
	if err != nil {
		return domain.Snippet{}, fmt.Errorf("decode %q: %w", name, err)
	}
	return s, nil
}

func (r *SnippetRepository) Put(_ context.Context, s domain.Snippet) error {
	value, err := domain.EncodeSnippet(s)
	if err != nil {
		return err
	}
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(s.Name), value)
	}); err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

func (r *SnippetRepository) Delete(_ context.Context, name string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

func (r *SnippetRepository) List(_ context.Context) ([]domain.Snippet, error) {
	items := make([]domain.Snippet, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			s, err := domain.DecodeSnippet(value)
			if err != nil {
				return fmt.Errorf("decode %q: %w", item.KeyCopy(nil), err)
			}
			items = append(items, s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list: %w", err)
	}
	return items, nil
}

// ReplaceAll deletes every snippet key and writes the batch in one transaction.
// Batches that outgrow a single transaction fail with badger.ErrTxnTooBig and leave the store untouched.
func (r *SnippetRepository) ReplaceAll(_ context.Context, items []domain.Snippet) error {
	values := make([][]byte, len(items))
	for i, s := range items {
		v, err := domain.EncodeSnippet(s)
		if err != nil {
			return err
		}
		values[i] = v
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var old [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			old = append(old, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range old {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for i, s := range items {
			if err := txn.Set(key(s.Name), values[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger replace all: %w", err)
	}
	return nil
}

var _ repository.SnippetRepository = (*SnippetRepository)(nil)
