package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/cache"
	"github.com/hyperjump/reviewdesk/internal/collab"
	"github.com/hyperjump/reviewdesk/internal/config"
	"github.com/hyperjump/reviewdesk/internal/importer"
	"github.com/hyperjump/reviewdesk/internal/intake"
	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/search"
	"github.com/hyperjump/reviewdesk/internal/server"
	"github.com/hyperjump/reviewdesk/internal/storage"
)

// defaultConfigPath is where the installed binary looks for its config.
const defaultConfigPath = "/usr/local/etc/reviewdesk/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). When the default path does not
// exist either, built-in defaults are used.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyEnv(cfg)
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Store    *storage.SQLStore
	Cache    cache.Cache
	Index    *search.BleveIndex
	LLM      llm.Client
	Pipeline *intake.Pipeline
	Analyzer *collab.Orchestrator
	Importer *importer.Importer
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg}

	dsn := cfg.Storage.DatabasePath
	if cfg.Storage.Driver == storage.DriverPostgres {
		dsn = cfg.Storage.DSN
	}
	store, err := storage.Open(cfg.Storage.Driver, dsn,
		storage.WithMaxOpenConns(cfg.Storage.MaxOpenConns),
		storage.WithStatementTimeout(cfg.Storage.StatementTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store

	c.Cache, err = newCache(cfg.Cache, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	c.Index, err = search.NewBleveIndex(cfg.Search.IndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}

	c.LLM, err = llm.New(cfg.LLM, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}
	logger.Info("inference client initialized",
		zap.String("provider", c.LLM.Name()),
		zap.Bool("available", c.LLM.Available()))

	c.Pipeline = intake.New(store, c.LLM,
		intake.WithLogger(logger),
		intake.WithSearchIndex(c.Index),
		intake.WithCache(c.Cache, cfg.Cache.Namespace, cfg.Cache.TTL),
		intake.WithSearchLimits(cfg.Search.DefaultSize, cfg.Search.MaxSize, cfg.Search.Timeout))
	c.Analyzer = collab.New(c.LLM, store,
		collab.WithLogger(logger),
		collab.WithSettings(collab.SettingsFromConfig(cfg.Analysis)))
	c.Importer = importer.New(c.Pipeline,
		importer.WithWorkers(cfg.Import.Workers),
		importer.WithLogger(logger))
	return c, nil
}

// newCache builds the configured cache backend. An unreachable redis is logged, not fatal:
// every cache error is treated as a miss.
func newCache(cfg config.CacheConfig, logger *zap.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case "memory", "":
		return cache.NewMemoryCache(cfg.Capacity), nil
	case "redis":
		rc := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Timeout,
		})
		if err := rc.Ping(context.Background()); err != nil {
			logger.Warn("redis cache unreachable, continuing without cache hits",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return rc, nil
	case "none":
		return cache.Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// serverOptions registers the system status probes and disk usage paths.
func (c *Components) serverOptions() []server.Option {
	opts := []server.Option{
		server.WithProbe("database", func(ctx context.Context) (any, error) {
			return map[string]string{"driver": c.Store.Driver()}, c.Store.Ping(ctx)
		}),
		server.WithProbe("cache", func(ctx context.Context) (any, error) {
			return map[string]string{"backend": c.Config.Cache.Backend}, c.Cache.Ping(ctx)
		}),
		server.WithProbe("search", func(ctx context.Context) (any, error) {
			n, err := c.Index.DocCount()
			return map[string]any{"documents": n}, err
		}),
		server.WithProbe("llm", func(ctx context.Context) (any, error) {
			details := map[string]any{"provider": c.LLM.Name(), "available": c.LLM.Available()}
			if !c.LLM.Available() {
				return details, llm.ErrUnavailable
			}
			return details, nil
		}),
		server.WithProbe("analysis", func(ctx context.Context) (any, error) {
			return c.Analyzer.Status(), nil
		}),
	}
	if c.Store.Driver() == storage.DriverSQLite {
		opts = append(opts, server.WithDiskPaths(c.Config.Storage.DatabasePath, c.Config.Search.IndexPath))
	} else {
		opts = append(opts, server.WithDiskPaths("", c.Config.Search.IndexPath))
	}
	return opts
}
