package election

import (
	"context"
	"fmt"

	"github.com/invote/invote/pkg/db"
	"github.com/invote/invote/pkg/db/postgres"
	"github.com/invote/invote/pkg/retry"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ db.ElectionStore = (*DB)(nil)

// DB is the PostgreSQL ballot and seat gateway.
type DB struct {
	postgres.Client
}

// New connects to dbURL and makes sure the tables exist.
func New(ctx context.Context, logger *zap.Logger, dbURL string, poolConfig postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("component", "election_store")), dbURL, poolConfig, retry.FromEnv())
	if err != nil {
		return nil, err
	}

	store := &DB{Client: client}
	if err := store.InitializeDB(ctx); err != nil {
		store.Pool.Close()
		return nil, err
	}
	return store, nil
}

// Close terminates the underlying PostgreSQL connection
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// InitializeDB creates the ballot and seat tables when missing.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initialize ballots table")
	if err := db.initBallots(ctx); err != nil {
		return fmt.Errorf("init ballots table: %w", err)
	}

	db.Logger.Info("Initialize seats table")
	if err := db.initSeats(ctx); err != nil {
		return fmt.Errorf("init seats table: %w", err)
	}
	return nil
}

// LockSeat runs fn inside one transaction holding an advisory lock derived
// from (series, index). Writers on other keys are not blocked.
func (db *DB) LockSeat(ctx context.Context, series string, index int, fn func(ctx context.Context) error) error {
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2)`, series, int32(index)); err != nil {
			return fmt.Errorf("lock seat %s/%d: %w", series, index, err)
		}
		return fn(db.WithTx(ctx, tx))
	})
}
