// Package config provides configuration loading for the nibb library and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/roguepikachu/nibb/pkg"
)

// Storage backends selectable through NIBB_BACKEND.
const (
	BackendFS       = "fs"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
)

// Config holds environment configuration for nibb.
type Config struct {
	// Dir is the nibb home; fs, sqlite and badger data live below it.
	Dir string `env:"NIBB_DIR"`
	// Backend selects the snippet store.
	Backend string `env:"NIBB_BACKEND" envDefault:"fs"`

	SQLitePath  string `env:"NIBB_SQLITE_PATH"`
	PostgresURL string `env:"NIBB_POSTGRES_URL"`
	RedisAddr   string `env:"NIBB_REDIS_ADDR"`
	RedisDB     int    `env:"NIBB_REDIS_DB" envDefault:"0"`

	// CacheTTL enables the redis cache in front of a non-redis backend when positive.
	CacheTTL time.Duration `env:"NIBB_CACHE_TTL" envDefault:"0s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// CacheEnabled reports whether the redis cache-aside layer should wrap the backend.
func (c Config) CacheEnabled() bool {
	return c.CacheTTL > 0 && c.RedisAddr != "" && c.Backend != BackendRedis
}

// BackupsDir is where export and import read and write by default.
func (c Config) BackupsDir() string {
	return filepath.Join(c.Dir, pkg.BackupsDirName)
}

// BadgerDir is the badger backend's data directory.
func (c Config) BadgerDir() string {
	return filepath.Join(c.Dir, pkg.BadgerDirName)
}

// loadDotEnv loads the files listed in DOTENV_PATHS. Existing variables win.
func loadDotEnv() error {
	path := os.Getenv("DOTENV_PATHS")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(strings.Split(path, ",")...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Load reads .env files and the environment and fills derived defaults.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.finish(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) finish() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendFS, BackendMemory, BackendSQLite, BackendRedis, BackendBadger:
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("NIBB_BACKEND=postgres requires NIBB_POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unknown NIBB_BACKEND %q", c.Backend)
	}
	if c.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		c.Dir = filepath.Join(home, pkg.DefaultDirName)
	} else if rest, ok := strings.CutPrefix(c.Dir, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		c.Dir = filepath.Join(home, rest)
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.Dir, pkg.SQLiteFileName)
	}
	if c.Backend == BackendRedis && c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	return nil
}
