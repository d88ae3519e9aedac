package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/medflow/stockledger/pkg/config"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/logger"
)

// RetryPolicy bounds how often Transaction re-runs a unit of work that
// Postgres aborted with a serialization failure or deadlock.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DB wraps sqlx.DB with additional functionality
type DB struct {
	*sqlx.DB
	logger *logger.Logger
	retry  RetryPolicy
}

// New creates a new database connection
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return Wrap(db, log), nil
}

// NewWithDSN creates a new database connection with a DSN string
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return Wrap(db, log), nil
}

// Wrap adopts an existing connection, e.g. a sqlmock or test container handle.
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{
		DB:     db,
		logger: log,
	}
}

// SetRetryPolicy configures retries for Transaction.
func (db *DB) SetRetryPolicy(p RetryPolicy) {
	db.retry = p
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

// Transaction executes fn within a transaction. When Postgres aborts the
// transaction with a serialization failure or deadlock, fn is run again from
// scratch in a new transaction, up to the configured retry limit.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= db.retry.MaxRetries {
			break
		}

		db.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("retrying transaction after conflict")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(db.retry.Backoff * time.Duration(attempt+1)):
		}
	}

	db.logger.Error().Err(err).Int("retries", db.retry.MaxRetries).Msg("transaction conflict persisted")
	return errors.Conflict("concurrent update, please retry")
}

func (db *DB) runTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
