// Package app wires configuration to a concrete snippet backend and service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/roguepikachu/nibb/internal/config"
	"github.com/roguepikachu/nibb/internal/data"
	"github.com/roguepikachu/nibb/internal/repository"
	badgerRepo "github.com/roguepikachu/nibb/internal/repository/badger"
	cachedRepo "github.com/roguepikachu/nibb/internal/repository/cached"
	fsRepo "github.com/roguepikachu/nibb/internal/repository/fs"
	"github.com/roguepikachu/nibb/internal/repository/memory"
	postgresRepo "github.com/roguepikachu/nibb/internal/repository/postgres"
	redisRepo "github.com/roguepikachu/nibb/internal/repository/redis"
	sqliteRepo "github.com/roguepikachu/nibb/internal/repository/sqlite"
	"github.com/roguepikachu/nibb/internal/service"
	"github.com/roguepikachu/nibb/pkg/logger"
)

// closers runs cleanup funcs in reverse order of registration.
type closers []func() error

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRepository builds the backend named by conf.Backend, wrapped in the redis
// cache when conf.CacheEnabled. The returned func releases its connections.
func NewRepository(ctx context.Context, conf config.Config) (repository.SnippetRepository, func() error, error) {
	var cl closers
	repo, err := newBackend(ctx, conf, &cl)
	if err != nil {
		_ = cl.close()
		return nil, nil, err
	}
	if conf.CacheEnabled() {
		client, err := data.NewRedisClient(ctx, conf)
		if err != nil {
			_ = cl.close()
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		cl = append(cl, client.Close)
		repo = cachedRepo.NewSnippetRepository(repo, client, conf.CacheTTL)
		logger.Debug(ctx, "redis cache enabled with ttl %s", conf.CacheTTL)
	}
	return repo, cl.close, nil
}

func newBackend(ctx context.Context, conf config.Config, cl *closers) (repository.SnippetRepository, error) {
	switch conf.Backend {
	case config.BackendFS, "":
		return fsRepo.NewSnippetRepository(conf.Dir)
	case config.BackendMemory:
		return memory.NewSnippetRepository(), nil
	case config.BackendSQLite:
		db, err := data.OpenSQLite(ctx, conf.SQLitePath)
		if err != nil {
			return nil, err
		}
		*cl = append(*cl, db.Close)
		repo := sqliteRepo.NewSnippetRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendPostgres:
		pool, err := data.NewPostgresPool(ctx, conf)
		if err != nil {
			return nil, err
		}
		*cl = append(*cl, func() error { pool.Close(); return nil })
		repo := postgresRepo.NewSnippetRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendRedis:
		client, err := data.NewRedisClient(ctx, conf)
		if err != nil {
			return nil, err
		}
		*cl = append(*cl, client.Close)
		return redisRepo.NewSnippetRepository(client), nil
	case config.BackendBadger:
		db, err := data.OpenBadger(conf.BadgerDir())
		if err != nil {
			return nil, err
		}
		*cl = append(*cl, db.Close)
		return badgerRepo.NewSnippetRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (supported: %s, %s, %s, %s, %s, %s)", conf.Backend,
			config.BackendFS, config.BackendMemory, config.BackendSQLite,
			config.BackendPostgres, config.BackendRedis, config.BackendBadger)
	}
}

// Open builds the service over the configured backend.
func Open(ctx context.Context, conf config.Config) (*service.Service, func() error, error) {
	repo, closeFn, err := NewRepository(ctx, conf)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "snippet store opened (backend=%s dir=%s)", conf.Backend, conf.Dir)
	return service.NewService(repo), closeFn, nil
}
