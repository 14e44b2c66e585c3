package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"timeclock/internal/platform/config"
	"timeclock/internal/platform/database"
	platformredis "timeclock/internal/platform/redis"
	"timeclock/internal/timeclock/ratelimit"
	"timeclock/internal/timeclock/store"
	"timeclock/pkg/platform/audit/publisher"
	auditfallback "timeclock/pkg/platform/audit/store/fallback"
	auditmemory "timeclock/pkg/platform/audit/store/memory"
	auditpostgres "timeclock/pkg/platform/audit/store/postgres"
)

// infra holds the connections backing the record store and the audit log.
type infra struct {
	backend    store.Backend
	auditStore publisher.Store

	redis    *platformredis.Client
	postgres *sql.DB
	mysql    *gorm.DB
}

func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{auditStore: auditmemory.NewInMemoryStore()}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		in.backend = store.NewMemoryBackend()
	case config.BackendFile:
		in.backend = store.NewFileBackend(cfg.Store.Path)
	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		in.redis = client
		in.backend = store.NewRedisBackend(client.Client, cfg.Store.Key)
	case config.BackendPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, err
		}
		in.postgres = db
		backend := store.NewPostgresBackend(db, cfg.Store.Key)
		if err := backend.EnsureSchema(ctx); err != nil {
			in.Close()
			return nil, err
		}
		auditStore := auditpostgres.New(db)
		if err := auditStore.EnsureSchema(ctx); err != nil {
			in.Close()
			return nil, err
		}
		in.backend = backend
		in.auditStore = auditfallback.New(auditStore, auditmemory.NewInMemoryStore(),
			auditfallback.WithLogger(log),
		)
	case config.BackendMySQL:
		db, err := database.OpenMySQL(cfg.Database.MySQLDSN, log)
		if err != nil {
			return nil, err
		}
		in.mysql = db
		backend := store.NewMySQLBackend(db, cfg.Store.Key)
		if err := backend.AutoMigrate(); err != nil {
			in.Close()
			return nil, err
		}
		in.backend = backend
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
	return in, nil
}

// windowStore shares rate windows through Redis when it backs the store.
func (in *infra) windowStore() ratelimit.WindowStore {
	if in.redis != nil {
		return ratelimit.NewRedisWindowStore(in.redis.Client)
	}
	return ratelimit.NewInMemoryWindowStore()
}

// Health pings whichever external connection backs the store.
func (in *infra) Health(ctx context.Context) error {
	switch {
	case in.redis != nil:
		return in.redis.Health(ctx)
	case in.postgres != nil:
		return in.postgres.PingContext(ctx)
	case in.mysql != nil:
		sqlDB, err := in.mysql.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return nil
}

func (in *infra) Close() {
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.postgres != nil {
		_ = in.postgres.Close()
	}
	if in.mysql != nil {
		if sqlDB, err := in.mysql.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
