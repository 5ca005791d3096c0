package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	app "github.com/estatehub/marketplace/internal/app"
	"github.com/estatehub/marketplace/internal/app/storage/postgres"
	"github.com/estatehub/marketplace/internal/cache"
	"github.com/estatehub/marketplace/internal/config"
	"github.com/estatehub/marketplace/pkg/logger"
)

// services holds what a command built and must release.
type services struct {
	cfg   config.Config
	log   *logger.Logger
	app   *app.Application
	db    *sqlx.DB
	cache cache.Cache
}

func loadConfig(opts *rootOptions) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.Logging)
	generated, err := cfg.EnsureJWTSecret()
	if err != nil {
		return config.Config{}, nil, err
	}
	if generated {
		log.Warn("auth.jwt_secret not set; using a random secret, tokens will not survive a restart")
	}
	return cfg, log, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Driver != config.DriverPostgres {
		return nil, errors.New("a postgres database is required")
	}
	db, err := postgres.Open(ctx, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// bootstrap wires storage, cache and the application from cfg.
func bootstrap(ctx context.Context, cfg config.Config, log *logger.Logger) (*services, error) {
	rt := &services{cfg: cfg, log: log}
	var stores app.Stores

	if cfg.Database.Driver == config.DriverPostgres {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.db = db
		if cfg.Database.MigrateOnStart {
			if err := postgres.Migrate(db.DB, postgres.Up); err != nil {
				rt.close()
				return nil, err
			}
			log.Info("database migrated")
		}
		store := postgres.New(db)
		stores = app.Stores{Users: store, Properties: store, Favorites: store, Auctions: store}
	}

	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.cache = redisCache
		log.WithField("addr", cfg.Redis.Addr).Info("redis cache enabled")
	}

	application, err := app.New(cfg, stores, rt.cache, log)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.app = application
	return rt, nil
}

func (rt *services) close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.log.WithError(err).Warn("close cache")
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.log.WithError(err).Warn("close database")
		}
	}
}
