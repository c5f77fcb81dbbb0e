package inspect

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractgen/internal/schema"
	"contractgen/internal/storage"
	_ "contractgen/internal/storage/sqlite"
)

const shopDDL = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	email VARCHAR(255) NOT NULL,
	country TEXT,
	signup_date DATE
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	amount NUMERIC(10,2),
	paid BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE empty_log (msg TEXT);
INSERT INTO customers (id, email, country) VALUES
	(1, 'a@example.com', 'SE'),
	(2, 'b@example.com', NULL),
	(3, 'c@example.com', 'NO');
INSERT INTO orders (id, customer_id, amount, paid) VALUES
	(10, 1, 125.5, 1),
	(11, 1, 8500, 0),
	(12, 3, 450.75, 1);
`

func shopConfig(t *testing.T) storage.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(shopDDL)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return storage.Config{Kind: "sqlite", DSN: "sqlite:///" + path}
}

func TestTableSchema(t *testing.T) {
	t.Parallel()
	cfg := shopConfig(t)

	tbl, err := TableSchema(context.Background(), cfg, "orders", "", Options{})
	require.NoError(t, err)
	require.Len(t, tbl.Fields, 4)

	id := tbl.Fields[0]
	assert.Equal(t, "integer", id.DataType)
	assert.False(t, id.Nullable)
	assert.True(t, id.HasConstraint(schema.ConstraintPrimaryKey))

	cust := tbl.Fields[1]
	assert.False(t, cust.Nullable)
	require.Len(t, cust.Constraints, 2)
	assert.Equal(t, schema.ConstraintNotNull, cust.Constraints[0].Type)
	assert.Equal(t, schema.FieldConstraint{
		Type:           schema.ConstraintForeignKey,
		ReferredTable:  "customers",
		ReferredColumn: "id",
	}, cust.Constraints[1])

	amount := tbl.Fields[2]
	assert.Equal(t, "float", amount.DataType)
	assert.True(t, amount.Nullable)
	assert.Empty(t, amount.Constraints)

	assert.Equal(t, "boolean", tbl.Fields[3].DataType)
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey)
}

func TestTableSchema_MissingTable(t *testing.T) {
	t.Parallel()
	cfg := shopConfig(t)

	_, err := TableSchema(context.Background(), cfg, "invoices", "", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrNotFound))
	assert.Equal(t, "Table 'invoices' not found. Available tables: ['customers', 'empty_log', 'orders']", err.Error())
}

func TestListTables(t *testing.T) {
	t.Parallel()
	cfg := shopConfig(t)

	tables, err := ListTables(context.Background(), cfg, "", true, Options{})
	require.NoError(t, err)
	require.Len(t, tables, 3)

	cust := tables[0]
	assert.Equal(t, "customers", cust.TableName)
	assert.Equal(t, "table", cust.Type)
	assert.True(t, cust.HasPrimaryKey)
	assert.Equal(t, []string{"id"}, cust.PrimaryKeyColumns)
	require.NotNil(t, cust.RowCount)
	assert.Equal(t, int64(3), *cust.RowCount)
	require.NotNil(t, cust.ColumnCount)
	assert.Equal(t, 4, *cust.ColumnCount)
	assert.Len(t, cust.Columns, 4)

	logTable := tables[1]
	assert.False(t, logTable.HasPrimaryKey)
	assert.Equal(t, int64(0), *logTable.RowCount)

	bare, err := ListTables(context.Background(), cfg, "", false, Options{})
	require.NoError(t, err)
	assert.Nil(t, bare[0].Columns)
}

func TestRelationships(t *testing.T) {
	t.Parallel()
	cfg := shopConfig(t)
	ctx := context.Background()

	rel, err := Relationships(ctx, cfg, "customers", "", Options{})
	require.NoError(t, err)
	assert.Empty(t, rel.ForeignKeys)
	require.Len(t, rel.ReferencedBy, 1)
	assert.Equal(t, "orders", rel.ReferencedBy[0].Table)
	assert.Equal(t, []string{"customer_id"}, rel.ReferencedBy[0].Columns)
	assert.Equal(t, []string{"id"}, rel.ReferencedBy[0].ReferredColumns)

	_, err = Relationships(ctx, cfg, "nope", "", Options{})
	assert.True(t, errors.Is(err, schema.ErrNotFound))
}

func TestAnalyzeTable(t *testing.T) {
	t.Parallel()
	cfg := shopConfig(t)

	a, err := AnalyzeTable(context.Background(), cfg, "customers", "", 2, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, a.Quality.TotalRows, "total comes from COUNT(*), not the sample")
	require.Len(t, a.Quality.SampleData, 2)
	assert.Equal(t, []string{"2", "b@example.com", "", ""}, a.Quality.SampleData[1])
	assert.Equal(t, []string{"Nullable columns: country, signup_date"}, a.Quality.Issues)

	country := a.Quality.ObservedProfiling["country"]
	assert.Equal(t, 1, country.NullCount)
	assert.Equal(t, 50.0, country.NullPercentage)
	require.NotNil(t, a.Table.Fields[2].Profiling)
	assert.Equal(t, country, *a.Table.Fields[2].Profiling)

	md := a.Metadata
	assert.Equal(t, storage.KindSQLite, md.DatabaseType)
	assert.Equal(t, []string{"id"}, md.PrimaryKeys)
	assert.Equal(t, 4, md.ColumnCount)
	assert.Equal(t, []string{"country", "signup_date"}, md.NullableColumns)
	assert.Equal(t, 2, md.SampleSize)
}

func TestAnalyzeTable_Empty(t *testing.T) {
	t.Parallel()
	cfg := shopConfig(t)

	a, err := AnalyzeTable(context.Background(), cfg, "empty_log", "", 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Quality.TotalRows)
	assert.Equal(t, []string{IssueEmptyTable, "Nullable columns: msg"}, a.Quality.Issues)
	assert.Empty(t, a.Quality.SampleData)
	assert.Equal(t, DefaultSampleSize, a.Metadata.SampleSize)
}

// ---- fake-backed cases ----

type stubDB struct {
	storage.Introspector
	cols   []schema.ColumnInfo
	sample storage.Sample
	count  int64
}

func (s *stubDB) Close() {}
func (s *stubDB) Columns(context.Context, string, string) ([]schema.ColumnInfo, error) {
	return s.cols, nil
}
func (s *stubDB) PrimaryKey(context.Context, string, string) ([]string, error) { return []string{}, nil }
func (s *stubDB) ForeignKeys(context.Context, string, string) ([]schema.ForeignKeyInfo, error) {
	return []schema.ForeignKeyInfo{}, nil
}
func (s *stubDB) RowCount(context.Context, string, string) (int64, error) { return s.count, nil }
func (s *stubDB) SampleRows(context.Context, string, string, int) (storage.Sample, error) {
	return s.sample, nil
}

func TestAnalyzeTable_AlignsSampleColumnsAndCapsNullableList(t *testing.T) {
	t.Parallel()

	var cols []schema.ColumnInfo
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		cols = append(cols, schema.ColumnInfo{Name: n, Type: "text", Nullable: true})
	}
	db := &stubDB{
		cols:  cols,
		count: 1,
		// storage order differs from catalog order
		sample: storage.Sample{
			Columns: []string{"f", "e", "d", "c", "b", "a"},
			Rows:    [][]any{{"6", "5", nil, []byte("3"), int64(2), "1"}},
		},
	}

	a, err := New(db, "postgresql", nil).AnalyzeTable(context.Background(), "t", "", 10)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", "3", "", "5", "6"}}, a.Quality.SampleData)
	assert.Equal(t, []string{"Nullable columns: a, b, c, d, e"}, a.Quality.Issues)
	assert.Len(t, a.Metadata.NullableColumns, 6)
}

func TestOpen_PropagatesBackendError(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), storage.Config{Kind: "oracle", DSN: "x"}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrValidation))
}
