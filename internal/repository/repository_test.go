package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/claude-afk/afk/internal/database"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}
