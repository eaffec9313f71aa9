package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/claude-afk/afk/internal/database"
)

// getOne runs a single-row query written with ? placeholders. A missing row
// yields (nil, nil) so callers decide whether absence is an error.
func getOne[T any](ctx context.Context, db database.DBTX, query string, args ...any) (*T, error) {
	var row T
	err := db.GetContext(ctx, &row, db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// execGuarded runs an UPDATE whose WHERE clause doubles as a state check and
// reports whether it matched exactly one row. A false result means another
// writer got there first or the row is gone.
func execGuarded(ctx context.Context, db database.DBTX, query string, args ...any) (bool, error) {
	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
