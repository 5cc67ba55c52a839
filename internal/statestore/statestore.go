// Package statestore implements the §6 StateStore external interface: a
// SQL-shaped store the coordinator issues run/query/queryOne against. The
// StateStore itself (the distributed SQL state store) is explicitly out of
// scope (spec §1); this package only owns the client-side interface and a
// pgx-backed adapter, plus the swarm schema this control plane is
// authoritative for (§6 "the swarm tables' DDL is authoritative").
package statestore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row mirrors pgx.Row's single-row scan contract.
type Row = pgx.Row

// Rows mirrors pgx.Rows' multi-row iteration contract.
type Rows = pgx.Rows

// StateStore is the uniform SQL-shaped interface the coordinator uses to
// talk to the external distributed state store.
type StateStore interface {
	Run(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryOne(ctx context.Context, sql string, args ...any) Row
	Close()
}

// pgStateStore is the production StateStore backed by a pgx connection pool.
type pgStateStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the given database URL and returns a StateStore.
func NewPostgres(ctx context.Context, databaseURL string) (StateStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &pgStateStore{pool: pool}, nil
}

func (s *pgStateStore) Run(ctx context.Context, sql string, args ...any) error {
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}

func (s *pgStateStore) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return s.pool.Query(ctx, sql, args...)
}

func (s *pgStateStore) QueryOne(ctx context.Context, sql string, args ...any) Row {
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *pgStateStore) Close() { s.pool.Close() }
