package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"digitsweep/internal/config"
	"digitsweep/pkg/sweep"
)

var (
	// Store flags
	storeBackend string
	storePath    string
	storeDSN     string

	// Oracle flags
	oracleEndpoint      string
	oracleHeaders       []string
	oracleRateLimitWait string
)

// applyStoreFlags copies explicitly set store flags over the loaded config.
func applyStoreFlags(c *config.Config) {
	if storeBackend != "" {
		c.Store.Backend = storeBackend
	}
	if storePath != "" {
		c.Store.Path = storePath
	}
	if storeDSN != "" {
		c.Store.DSN = storeDSN
	}
}

// applyOracleFlags copies explicitly set oracle flags over the loaded config.
func applyOracleFlags(c *config.Config) error {
	if oracleEndpoint != "" {
		c.Oracle.Endpoint = oracleEndpoint
	}
	if oracleRateLimitWait != "" {
		c.Oracle.RateLimitWait = oracleRateLimitWait
	}
	for _, h := range oracleHeaders {
		key, value, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid header %q (want key=value)", h)
		}
		if c.Oracle.Headers == nil {
			c.Oracle.Headers = make(map[string]string)
		}
		c.Oracle.Headers[strings.TrimSpace(key)] = value
	}
	return nil
}

// openStore opens the configured backend. The returned close function
// releases connections and is safe to call once.
func openStore(ctx context.Context, sc config.StoreConfig) (sweep.Store, func() error, error) {
	noop := func() error { return nil }

	switch sc.Backend {
	case "file":
		return sweep.NewFileStore(sc.Path), noop, nil

	case "memory":
		return sweep.NewInMemoryStore(), noop, nil

	case "sqlite":
		db, err := sql.Open("sqlite3", sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// One writer at a time; sqlite serializes anyway
		db.SetMaxOpenConns(1)
		return initSQLStore(ctx, db, sweep.NewSQLStore(db, sc.Table, sweep.DialectSQLite))

	case "mysql":
		db, err := sql.Open("mysql", sc.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open mysql database: %w", err)
		}
		db.SetConnMaxLifetime(3 * time.Minute)
		return initSQLStore(ctx, db, sweep.NewSQLStore(db, sc.Table, sweep.DialectMySQL))

	case "postgres":
		store, err := sweep.NewPostgresStoreFromURL(ctx, sc.DSN, sc.Table)
		if err != nil {
			return nil, nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
		}
		return store, func() error { store.Close(); return nil }, nil

	case "redis":
		store, err := sweep.NewRedisStoreFromURL(sc.DSN, sc.Prefix)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return store, store.Close, nil
	}

	return nil, nil, fmt.Errorf("invalid store backend: %s (valid: %v)", sc.Backend, config.Backends)
}

func initSQLStore(ctx context.Context, db *sql.DB, store *sweep.SQLStore) (sweep.Store, func() error, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, db.Close, nil
}

// newClient builds the oracle client for mode from the oracle config.
func newClient(c *config.Config, mode sweep.Mode, opts ...sweep.ClientOption) *sweep.Client {
	httpOpts := []sweep.HTTPOption{sweep.WithRequestTimeout(c.GetOracleTimeout())}
	for k, v := range c.Oracle.Headers {
		httpOpts = append(httpOpts, sweep.WithHeader(k, v))
	}
	oracle := sweep.NewHTTPOracle(c.Oracle.Endpoint, httpOpts...)

	logger.Debug("Oracle configured",
		zap.String("endpoint", oracle.Endpoint()),
		zap.Int("headers", len(c.Oracle.Headers)),
		zap.Duration("rate_limit_wait", c.GetRateLimitWait(mode)),
	)

	all := append([]sweep.ClientOption{sweep.WithRateLimitWait(c.GetRateLimitWait(mode))}, opts...)
	return sweep.NewClient(oracle, all...)
}
