package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contractgen/internal/schema"
	"contractgen/internal/storage"
)

// DefaultSchema is used when a call passes an empty schema.
const DefaultSchema = "public"

/*
Introspector implements storage.Introspector for PostgreSQL.

Metadata comes from information_schema so the same queries work on
PostgreSQL-compatible hosts (Supabase, Neon, RDS). Array columns report their
udt_name ("_int4") which the normalizer maps to array[integer].
*/
type Introspector struct {
	pool *pgxpool.Pool
}

// New opens a pgx pool and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Introspector, error) {
	pool, err := pgxpool.New(ctx, NormalizeDSN(cfg.DSN))
	if err != nil {
		return nil, schema.Connectivity("Failed to connect to postgresql database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, schema.Connectivity("Failed to connect to postgresql database", err)
	}
	return &Introspector{pool: pool}, nil
}

// NormalizeDSN rewrites SQLAlchemy-style URLs ("postgresql+psycopg://") into
// a URL pgx accepts. Key/value DSNs pass through unchanged.
func NormalizeDSN(dsn string) string {
	scheme, rest := storage.SplitURL(dsn)
	switch scheme {
	case "postgres", "postgresql":
		return "postgresql://" + rest
	default:
		return dsn
	}
}

// Close closes the connection pool.
func (r *Introspector) Close() {
	r.pool.Close()
}

func schemaOrDefault(s string) string {
	if s == "" {
		return DefaultSchema
	}
	return s
}

// qualified returns a quoted "schema"."table" reference.
func qualified(dbSchema, table string) string {
	return pgx.Identifier{schemaOrDefault(dbSchema), table}.Sanitize()
}

// ListTables returns base tables, plus views when includeViews is set.
func (r *Introspector) ListTables(ctx context.Context, dbSchema string, includeViews bool) ([]storage.TableRef, error) {
	const q = `
		SELECT table_schema, table_name,
		       CASE WHEN table_type = 'VIEW' THEN 'view' ELSE 'table' END
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND (table_type = 'BASE TABLE' OR ($2 AND table_type = 'VIEW'))
		ORDER BY table_name`

	rows, err := r.pool.Query(ctx, q, schemaOrDefault(dbSchema), includeViews)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var out []storage.TableRef
	for rows.Next() {
		var t storage.TableRef
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Columns returns column metadata in ordinal order.
func (r *Introspector) Columns(ctx context.Context, dbSchema, table string) ([]schema.ColumnInfo, error) {
	const q = `
		SELECT column_name,
		       CASE WHEN data_type IN ('ARRAY', 'USER-DEFINED') THEN udt_name ELSE data_type END,
		       is_nullable = 'YES',
		       column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := r.pool.Query(ctx, q, schemaOrDefault(dbSchema), table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	out := []schema.ColumnInfo{}
	for rows.Next() {
		var c schema.ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.Default); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PrimaryKey returns the primary key columns in key order.
func (r *Introspector) PrimaryKey(ctx context.Context, dbSchema, table string) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		 AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`

	rows, err := r.pool.Query(ctx, q, schemaOrDefault(dbSchema), table)
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan primary key: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// fkQuery pairs each referencing column with its referenced column through
// position_in_unique_constraint so composite keys stay aligned.
const fkQuery = `
	SELECT rc.constraint_name,
	       kcu.table_name, kcu.column_name,
	       ref.table_schema, ref.table_name, ref.column_name
	FROM information_schema.referential_constraints rc
	JOIN information_schema.key_column_usage kcu
	  ON kcu.constraint_name = rc.constraint_name
	 AND kcu.constraint_schema = rc.constraint_schema
	JOIN information_schema.key_column_usage ref
	  ON ref.constraint_name = rc.unique_constraint_name
	 AND ref.constraint_schema = rc.unique_constraint_schema
	 AND ref.ordinal_position = kcu.position_in_unique_constraint
	WHERE %s
	ORDER BY rc.constraint_name, kcu.ordinal_position`

// ForeignKeys returns foreign keys declared on table.
func (r *Introspector) ForeignKeys(ctx context.Context, dbSchema, table string) ([]schema.ForeignKeyInfo, error) {
	keys, err := r.keyColumns(ctx, fmt.Sprintf(fkQuery, "kcu.table_schema = $1 AND kcu.table_name = $2"), dbSchema, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	return storage.GroupForeignKeys(keys), nil
}

// ReferencedBy returns foreign keys on other tables that point at table.
func (r *Introspector) ReferencedBy(ctx context.Context, dbSchema, table string) ([]schema.ReferencedByInfo, error) {
	keys, err := r.keyColumns(ctx, fmt.Sprintf(fkQuery, "ref.table_schema = $1 AND ref.table_name = $2"), dbSchema, table)
	if err != nil {
		return nil, fmt.Errorf("query referencing keys: %w", err)
	}
	return storage.GroupReferencedBy(keys), nil
}

func (r *Introspector) keyColumns(ctx context.Context, q, dbSchema, table string) ([]storage.KeyColumn, error) {
	rows, err := r.pool.Query(ctx, q, schemaOrDefault(dbSchema), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.KeyColumn
	for rows.Next() {
		var k storage.KeyColumn
		if err := rows.Scan(&k.Constraint, &k.Table, &k.Column, &k.ReferredSchema, &k.ReferredTable, &k.ReferredColumn); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RowCount runs an exact COUNT(*).
func (r *Introspector) RowCount(ctx context.Context, dbSchema, table string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+qualified(dbSchema, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// SampleRows reads up to limit rows.
func (r *Introspector) SampleRows(ctx context.Context, dbSchema, table string, limit int) (storage.Sample, error) {
	rows, err := r.pool.Query(ctx, "SELECT * FROM "+qualified(dbSchema, table)+" LIMIT $1", limit)
	if err != nil {
		return storage.Sample{}, fmt.Errorf("sample rows: %w", err)
	}
	defer rows.Close()

	var s storage.Sample
	for _, fd := range rows.FieldDescriptions() {
		s.Columns = append(s.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return storage.Sample{}, fmt.Errorf("read sample row: %w", err)
		}
		s.Rows = append(s.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return storage.Sample{}, fmt.Errorf("sample rows: %w", err)
	}
	return s, nil
}
