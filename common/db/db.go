package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common/config"
	zerolog "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/rs/zerolog/log"
)

// DB provides access to the database
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new DB instance
func New(pool *pgxpool.Pool) (*DB, error) {
	if pool == nil {
		return nil, errors.New("cannot use nil database pool")
	}
	return &DB{
		Pool: pool,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// SetupDatabase connects the pool, traces queries through zerolog and
// creates the notification history table.
func SetupDatabase(ctx context.Context, cfg config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PgSql.ConnStr())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	// The console writes one row per notification, so the pool stays small.
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	logger := zerolog.NewLogger(log.Logger)
	poolConfig.ConnConfig.Tracer = NewFilteredTracer(&tracelog.TraceLog{
		Logger:   logger,
		LogLevel: tracelog.LogLevelInfo,
	}, NotificationsTable)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	dbConn, err := New(pool)
	if err != nil {
		return nil, fmt.Errorf("creating DB handler: %w", err)
	}

	if err := dbConn.Migrate(ctx); err != nil {
		dbConn.Close()
		return nil, err
	}

	return dbConn, nil
}

// Migrate creates the tables the service owns.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, createNotificationsTable); err != nil {
		return fmt.Errorf("migrating %s: %w", NotificationsTable, err)
	}
	return nil
}
