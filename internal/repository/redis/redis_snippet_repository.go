// Package redis provides a Redis-backed implementation of the snippet repository.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
)

const indexKey = "snippets:index"

func keySnippet(name string) string { return "snippet:" + name }

// SnippetRepository implements repository.SnippetRepository using Redis as backend.
// Each snippet is a JSON string; a set holds the names so List needs no SCAN.
type SnippetRepository struct {
	client *redis.Client
}

// NewSnippetRepository creates a new Redis-backed snippet repository.
func NewSnippetRepository(client *redis.Client) *SnippetRepository {
	return &SnippetRepository{client: client}
}

// Get retrieves a snippet by its name from Redis.
func (r *SnippetRepository) Get(ctx context.Context, name string) (domain.Snippet, error) {
	val, err := r.client.Get(ctx, keySnippet(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snippet{}, repository.ErrNotFound
		}
		return domain.Snippet{}, fmt.Errorf("redis get: %w", err)
	}
	s, err := domain.DecodeSnippet(val)
	if err != nil {
		return domain.Snippet{}, fmt.Errorf("decode %s: %w", keySnippet(name), err)
	}
	return s, nil
}

// Put stores the snippet and its index entry in one MULTI block.
func (r *SnippetRepository) Put(ctx context.Context, s domain.Snippet) error {
	data, err := domain.EncodeSnippet(s)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keySnippet(s.Name), data, 0)
		pipe.SAdd(ctx, indexKey, s.Name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Delete removes the snippet and its index entry.
func (r *SnippetRepository) Delete(ctx context.Context, name string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keySnippet(name))
		pipe.SRem(ctx, indexKey, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if del.Val() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns every indexed snippet sorted by name.
func (r *SnippetRepository) List(ctx context.Context) ([]domain.Snippet, error) {
	names, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis index: %w", err)
	}
	if len(names) == 0 {
		return []domain.Snippet{}, nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = keySnippet(n)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	items := make([]domain.Snippet, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// index entry without a value; Put and Delete keep them paired
			continue
		}
		s, err := domain.DecodeSnippet([]byte(str))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		items = append(items, s)
	}
	domain.SortByName(items)
	return items, nil
}

// ReplaceAll swaps the whole collection inside WATCH/MULTI so a concurrent
// writer aborts the swap instead of interleaving with it.
func (r *SnippetRepository) ReplaceAll(ctx context.Context, items []domain.Snippet) error {
	payloads := make(map[string][]byte, len(items))
	for _, s := range items {
		data, err := domain.EncodeSnippet(s)
		if err != nil {
			return err
		}
		payloads[s.Name] = data
	}
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := tx.SMembers(ctx, indexKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, n := range old {
				pipe.Del(ctx, keySnippet(n))
			}
			pipe.Del(ctx, indexKey)
			for name, data := range payloads {
				pipe.Set(ctx, keySnippet(name), data, 0)
				pipe.SAdd(ctx, indexKey, name)
			}
			return nil
		})
		return err
	}, indexKey)
	if err != nil {
		return fmt.Errorf("redis replace all: %w", err)
	}
	return nil
}

var _ repository.SnippetRepository = (*SnippetRepository)(nil)
