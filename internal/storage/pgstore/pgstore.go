// Package pgstore is the PostgreSQL implementation of the catalog, account
// and progress stores.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries holds the statements shared by pool-level and transactional access.
type queries struct {
	q querier
}

// Store is a PostgreSQL-backed store.
type Store struct {
	queries
	pool *pgxpool.Pool
}

var (
	_ catalog.Store  = (*Store)(nil)
	_ account.Store  = (*Store)(nil)
	_ progress.Store = (*Store)(nil)
)

// New creates a store on pool.
func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &Store{queries: queries{q: pool}, pool: pool}, nil
}

// InTx runs fn in a read-committed transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx progress.Tx) error) error {
	return database.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{queries: queries{q: tx}, tx: tx})
	})
}

// validIDs reports whether every id is a UUID. Malformed ids are treated as
// missing records without a round trip, since a cast failure would abort
// the surrounding transaction.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func notFound(what, id string) error {
	return apperr.New(apperr.NotFound, "%s %s not found", what, id)
}

// mapError translates driver errors into apperr kinds.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.NotFound, err, op+": not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return apperr.Wrap(apperr.Conflict, err, op+": already exists")
		case "23503": // foreign_key_violation
			return apperr.Wrap(apperr.NotFound, err, op+": referenced record not found")
		case "22P02": // invalid_text_representation
			return apperr.Wrap(apperr.NotFound, err, op+": not found")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, op string, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
