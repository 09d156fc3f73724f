package sqlitestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTableName(t *testing.T) {
	valid := []string{"sessions", "_sessions", "web_sessions_v2", "S", strings.Repeat("a", maxTableNameLen)}
	for _, name := range valid {
		assert.NoError(t, ValidateTableName(name), name)
	}

	invalid := []string{
		"",
		"2sessions",
		"web-sessions",
		"web sessions",
		"sessions;DROP TABLE users",
		`sess"ions`,
		"main.sessions",
		strings.Repeat("a", maxTableNameLen+1),
	}
	for _, name := range invalid {
		err := ValidateTableName(name)
		assert.ErrorIs(t, err, ErrInvalidTableName, name)
	}
}

func tableExists(t *testing.T, s *Store, name string) bool {
	t.Helper()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func indexExists(t *testing.T, s *Store, name string) bool {
	t.Helper()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestSchema_EnsureTableIdempotent(t *testing.T) {
	s, _ := createTestStore(t, Options{Table: "custom_sessions"})
	require.NoError(t, s.Set("a", "1"))

	require.NoError(t, s.schema.ensureTable(context.Background(), s.db))

	assert.True(t, tableExists(t, s, "custom_sessions"))
	assert.True(t, indexExists(t, s, "custom_sessions_expires_at_idx"))
	assert.Equal(t, 1, rawCount(t, s), "existing rows survive")
}

func TestSchema_DropAndRecreate(t *testing.T) {
	s, _ := createTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.schema.dropTable(ctx, s.db))
	assert.False(t, tableExists(t, s, "sessions"))
	require.NoError(t, s.schema.dropTable(ctx, s.db), "dropping a missing table is fine")

	require.NoError(t, s.schema.recreate(ctx, s.db))
	assert.True(t, tableExists(t, s, "sessions"))
	assert.True(t, indexExists(t, s, "sessions_expires_at_idx"))
}

func TestSchema_RecreateRollsBackOnFailure(t *testing.T) {
	s, _ := createTestStore(t, Options{})
	require.NoError(t, s.Set("keep", "me"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.schema.recreate(ctx, s.db)
	require.Error(t, err)

	assert.True(t, tableExists(t, s, "sessions"))
	got, found, err := s.Get("keep")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "me", got)
}
