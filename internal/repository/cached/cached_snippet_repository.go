// Package cached provides a caching wrapper over a primary repository using Redis.
package cached

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
	"github.com/roguepikachu/nibb/pkg/logger"
)

const keyPrefix = "nibb:cache:"

// key helpers
func keySnippet(name string) string { return keyPrefix + "snippet:" + name }
func keyList() string                { return keyPrefix + "list" }

// SnippetRepository is a cache-aside repository combining Redis with a primary store.
// The primary is authoritative; cache failures only cost a round trip.
type SnippetRepository struct {
	primary repository.SnippetRepository
	redis   *redis.Client
	ttl     time.Duration
}

// NewSnippetRepository creates a new cached repository.
func NewSnippetRepository(primary repository.SnippetRepository, redis *redis.Client, ttl time.Duration) *SnippetRepository {
	return &SnippetRepository{primary: primary, redis: redis, ttl: ttl}
}

// Get attempts Redis then falls back to primary.
func (r *SnippetRepository) Get(ctx context.Context, name string) (domain.Snippet, error) {
	if val, err := r.redis.Get(ctx, keySnippet(name)).Bytes(); err == nil {
		if s, decErr := domain.DecodeSnippet(val); decErr == nil {
			return s, nil
		}
	}
	s, err := r.primary.Get(ctx, name)
	if err != nil {
		return domain.Snippet{}, err
	}
	r.store(ctx, s)
	return s, nil
}

// Put writes through to primary and refreshes the cached copy.
func (r *SnippetRepository) Put(ctx context.Context, s domain.Snippet) error {
	if err := r.primary.Put(ctx, s); err != nil {
		return err
	}
	r.store(ctx, s)
	r.invalidate(ctx, keyList())
	return nil
}

// Delete removes from primary, then drops the cached copy and list.
func (r *SnippetRepository) Delete(ctx context.Context, name string) error {
	if err := r.primary.Delete(ctx, name); err != nil {
		return err
	}
	r.invalidate(ctx, keySnippet(name), keyList())
	return nil
}

// List caches the full sorted listing under a single key.
func (r *SnippetRepository) List(ctx context.Context) ([]domain.Snippet, error) {
	if val, err := r.redis.Get(ctx, keyList()).Bytes(); err == nil {
		if items, decErr := domain.DecodeSnippets(val); decErr == nil {
			return items, nil
		}
	}
	items, err := r.primary.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := domain.EncodeSnippets(items, false); err == nil {
		if err := r.redis.Set(ctx, keyList(), data, r.ttl).Err(); err != nil {
			logger.Debug(ctx, "cache list set failed: %v", err)
		}
	}
	return items, nil
}

// ReplaceAll replaces the primary contents and flushes every cache key.
// The primary has already changed when the flush runs, so a flush failure is
// logged rather than returned; entries that survive it expire with their TTL.
func (r *SnippetRepository) ReplaceAll(ctx context.Context, items []domain.Snippet) error {
	if err := r.primary.ReplaceAll(ctx, items); err != nil {
		return err
	}
	r.invalidate(ctx, keyList())
	if err := r.flush(ctx); err != nil {
		logger.Error(ctx, "cache flush after replace all failed, cached snippets may be stale for up to %s: %v", r.ttl, err)
	}
	return nil
}

func (r *SnippetRepository) store(ctx context.Context, s domain.Snippet) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, keySnippet(s.Name), data, r.ttl).Err(); err != nil {
		logger.Debug(ctx, "cache set failed for %q: %v", s.Name, err)
	}
}

func (r *SnippetRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		logger.Warn(ctx, "cache invalidate failed: %v", err)
	}
}

// flush scan-and-deletes every key under the cache prefix.
func (r *SnippetRepository) flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.redis.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var _ repository.SnippetRepository = (*SnippetRepository)(nil)
