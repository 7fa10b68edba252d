// Package store is the PostgreSQL persistence layer. Queries are written
// against pgx directly; rows scan into the shared domain types so services
// never remap persistence structs.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// Errors mapped from Postgres results.
var (
	ErrNotFound        = errors.New("not found")
	ErrUniqueViolation = errors.New("unique violation")
)

// DBTX is the subset of pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store bundles all queries over one connection pool.
type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema applies the embedded schema. All statements are idempotent
// so this runs on every server start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// mapError converts pgx errors to the store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
	}
	return err
}
