// Package store implements the Job Store (C1): durable entity/event
// persistence and single-active-record rules. It is the only package that
// issues SQL; every other package goes through it. Grounded on the
// teacher's CAS-via-UPDATE idiom in pkg/queue/worker.go claimNextSession,
// generalized into a table-per-entity store since no generated ent client
// exists here (see DESIGN.md).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the database connection pool used by every read/write
// helper in this package.
type Store struct {
	db *sql.DB
}

// New wraps an existing *sql.DB (opened and migrated by internal/database).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting every helper
// below run either standalone or inside Transactionally.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txKey is used to thread an in-flight transaction through context so
// nested Transactionally calls flatten onto the outer transaction.
type txKey struct{}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// Transactionally runs fn inside a transaction, committing on success and
// rolling back on error or panic. Nested calls (the context already
// carries a transaction) flatten onto the existing one rather than
// opening a second, per the C1 contract in SPEC_FULL.md §4.1.
func (s *Store) Transactionally(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err = fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
