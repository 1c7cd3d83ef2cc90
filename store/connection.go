// Package store is the durable, transactional Alarm store backed by
// PostgreSQL.
package store

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/volk7/alerting/errors"
	"github.com/volk7/alerting/logger"
)

// PoolConfig bounds the connection pool. MinConns/MaxConns are sourced from
// MIN_DB_CONNECTIONS/MAX_DB_CONNECTIONS.
type PoolConfig struct {
	MinConns int
	MaxConns int
}

// DefaultPoolConfig mirrors reasonable defaults for a single-replica
// deployment; production config should size MaxConns against the
// Postgres server's max_connections headroom across all replicas.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MinConns: 2, MaxConns: 10}
}

// Open opens a PostgreSQL connection pool at dsn, going through pgx's
// database/sql shim ("pgx" driver) rather than pgx's native pool type, so
// the store stays testable against the database/sql mocking the rest of
// this module's tests rely on.
func Open(dsn string, cfg PoolConfig, log *zap.SugaredLogger) (*sql.DB, error) {
	if log != nil {
		log.With(logger.FieldSymbol, logger.SymbolStore).Debugw("opening database pool",
			"min_conns", cfg.MinConns, "max_conns", cfg.MaxConns)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database pool")
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if log != nil {
		log.With(logger.FieldSymbol, logger.SymbolStore).Infow("database pool opened", "max_conns", cfg.MaxConns)
	}

	return db, nil
}

// OpenWithMigrations opens the pool and applies all pending migrations.
func OpenWithMigrations(dsn string, cfg PoolConfig, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(dsn, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return db, nil
}
