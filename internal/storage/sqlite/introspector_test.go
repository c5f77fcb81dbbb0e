package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractgen/internal/storage"
)

const fixtureDDL = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	email VARCHAR(255) NOT NULL,
	age INTEGER,
	score REAL DEFAULT 0
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	total NUMERIC(10,2)
);
CREATE TABLE notes (
	id INTEGER PRIMARY KEY,
	author INTEGER REFERENCES users
);
CREATE VIEW active_users AS SELECT id, email FROM users WHERE age IS NOT NULL;
INSERT INTO users (id, email, age, score) VALUES
	(1, 'a@example.com', 30, 9.5),
	(2, 'b@example.com', NULL, 7),
	(3, 'c@example.com', 41, NULL);
INSERT INTO orders (id, user_id, total) VALUES (1, 1, 12.5), (2, 3, 99);
`

func openFixture(t *testing.T) storage.Introspector {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(fixtureDDL)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	in, err := New(context.Background(), storage.Config{Kind: storage.KindSQLite, DSN: "sqlite:///" + path})
	require.NoError(t, err)
	t.Cleanup(in.Close)
	return in
}

func TestNormalizeDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"sqlite:///data/app.db", "data/app.db"},
		{"sqlite:////var/lib/app.db", "/var/lib/app.db"},
		{"sqlite://", ":memory:"},
		{"/tmp/plain.db", "/tmp/plain.db"},
		{"file:test.db?cache=shared", "file:test.db?cache=shared"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeDSN(tc.in), "NormalizeDSN(%q)", tc.in)
	}
}

func TestListTables(t *testing.T) {
	t.Parallel()
	in := openFixture(t)
	ctx := context.Background()

	tables, err := in.ListTables(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, "notes", tables[0].Name)
	assert.Equal(t, "orders", tables[1].Name)
	assert.Equal(t, "users", tables[2].Name)
	assert.Equal(t, "main", tables[0].Schema)
	assert.Equal(t, "table", tables[0].Type)

	withViews, err := in.ListTables(ctx, "", true)
	require.NoError(t, err)
	require.Len(t, withViews, 4)
	assert.Equal(t, "active_users", withViews[0].Name)
	assert.Equal(t, "view", withViews[0].Type)
}

func TestColumnsAndPrimaryKey(t *testing.T) {
	t.Parallel()
	in := openFixture(t)
	ctx := context.Background()

	cols, err := in.Columns(ctx, "", "users")
	require.NoError(t, err)
	require.Len(t, cols, 4)

	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "INTEGER", cols[0].Type)
	assert.False(t, cols[0].Nullable, "primary key column")
	assert.Equal(t, "VARCHAR(255)", cols[1].Type)
	assert.False(t, cols[1].Nullable)
	assert.True(t, cols[2].Nullable)
	require.NotNil(t, cols[3].Default)
	assert.Equal(t, "0", *cols[3].Default)

	pk, err := in.PrimaryKey(ctx, "", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)

	missing, err := in.Columns(ctx, "", "nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestForeignKeys(t *testing.T) {
	t.Parallel()
	in := openFixture(t)
	ctx := context.Background()

	fks, err := in.ForeignKeys(ctx, "", "orders")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, []string{"user_id"}, fks[0].Columns)
	assert.Equal(t, "users", fks[0].ReferredTable)
	assert.Equal(t, []string{"id"}, fks[0].ReferredColumns)

	// REFERENCES users without a column resolves to the primary key.
	notes, err := in.ForeignKeys(ctx, "", "notes")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"id"}, notes[0].ReferredColumns)

	refs, err := in.ReferencedBy(ctx, "", "users")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "notes", refs[0].Table)
	assert.Equal(t, "orders", refs[1].Table)
	assert.Equal(t, []string{"user_id"}, refs[1].Columns)
}

func TestRowCountAndSample(t *testing.T) {
	t.Parallel()
	in := openFixture(t)
	ctx := context.Background()

	n, err := in.RowCount(ctx, "", "users")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	s, err := in.SampleRows(ctx, "", "users", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "age", "score"}, s.Columns)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, "b@example.com", storage.CellString(s.Rows[1][1]))
	assert.Equal(t, "", storage.CellString(s.Rows[1][2]))
	assert.Equal(t, "9.5", storage.CellString(s.Rows[0][3]))
}
