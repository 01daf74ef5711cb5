package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

var (
	// ErrDuplicate is returned when an insert hits a unique constraint
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnavailable is returned when the database cannot be reached in time
	ErrUnavailable = errors.New("database unavailable")
)

// DB is the subset of pgx used by the repositories.
// *pgxpool.Pool, pgx.Tx and pgxmock pools all satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func wrapError(msg string, err error) error {
	switch {
	case isUnavailable(err):
		return fmt.Errorf("%s: %w: %w", msg, ErrUnavailable, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", msg, ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
