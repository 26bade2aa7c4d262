package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"flowpanel/internal/infra/persistence/memory"
	"flowpanel/internal/infra/persistence/postgres"
	"flowpanel/internal/infra/persistence/redis"
	"flowpanel/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // shared Redis hash
)

// StorageConfig selects and parameterizes a backend.
type StorageConfig struct {
	Driver        StorageDriver
	SQLitePath    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// Environment variables read by StorageConfigFromEnv.
const (
	EnvStorageDriver = "FLOWPANEL_STORAGE_DRIVER"
	EnvSQLitePath    = "FLOWPANEL_SQLITE_PATH"
	EnvPostgresDSN   = "FLOWPANEL_POSTGRES_DSN"
	EnvRedisAddr     = "FLOWPANEL_REDIS_ADDR"
	EnvRedisPassword = "FLOWPANEL_REDIS_PASSWORD"
	EnvRedisDB       = "FLOWPANEL_REDIS_DB"
	EnvRedisKey      = "FLOWPANEL_REDIS_KEY"
)

// StorageConfigFromEnv reads the backend selection from the environment.
//
//	FLOWPANEL_STORAGE_DRIVER: memory|sqlite|postgres|redis (default sqlite)
//	FLOWPANEL_SQLITE_PATH: path to sqlite file (default ./flowpanel.db)
//	FLOWPANEL_POSTGRES_DSN: postgres DSN when driver=postgres
//	FLOWPANEL_REDIS_ADDR, FLOWPANEL_REDIS_PASSWORD, FLOWPANEL_REDIS_DB, FLOWPANEL_REDIS_KEY
func StorageConfigFromEnv() StorageConfig {
	cfg := StorageConfig{
		Driver:        StorageDriver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvStorageDriver)))),
		SQLitePath:    os.Getenv(EnvSQLitePath),
		PostgresDSN:   os.Getenv(EnvPostgresDSN),
		RedisAddr:     os.Getenv(EnvRedisAddr),
		RedisPassword: os.Getenv(EnvRedisPassword),
		RedisKey:      os.Getenv(EnvRedisKey),
	}
	if db, err := strconv.Atoi(os.Getenv(EnvRedisDB)); err == nil {
		cfg.RedisDB = db
	}
	return cfg
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	return OpenStorage(context.Background(), StorageConfigFromEnv(), engine)
}

// OpenStorage opens the backend described by cfg.
func OpenStorage(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageRedis:
		store, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		}, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseStore releases backend resources when the store holds any.
func CloseStore(store PersistentStore) error {
	if c, ok := store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
