package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"contractgen/internal/schema"
	"contractgen/internal/storage"
)

// DefaultSchema is the main database of a SQLite connection.
const DefaultSchema = "main"

// Introspector implements storage.Introspector for SQLite.
//
// Key points vs the server backends:
//   - There is no information_schema; metadata comes from sqlite_master and
//     the pragma table-valued functions.
//   - "Schema" means an attached database name, normally "main".
//   - Foreign keys are unnamed, so they are reported as fk_<table>_<id>.
type Introspector struct {
	db *sql.DB
}

func init() {
	storage.Register(storage.KindSQLite, New)
}

// New opens the database file and verifies it can be queried.
func New(ctx context.Context, cfg storage.Config) (storage.Introspector, error) {
	db, err := sql.Open("sqlite", NormalizeDSN(cfg.DSN))
	if err != nil {
		return nil, schema.Connectivity("Failed to connect to sqlite database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, schema.Connectivity("Failed to connect to sqlite database", err)
	}
	return &Introspector{db: db}, nil
}

// NormalizeDSN turns a SQLAlchemy URL into a file path:
//
//	sqlite:///relative.db   -> relative.db
//	sqlite:////abs/path.db  -> /abs/path.db
//	sqlite://               -> :memory:
//
// Anything without a sqlite scheme is used as-is.
func NormalizeDSN(dsn string) string {
	scheme, rest := storage.SplitURL(dsn)
	if scheme != "sqlite" && scheme != "sqlite3" {
		return dsn
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return ":memory:"
	}
	return rest
}

func (r *Introspector) Close() { _ = r.db.Close() }

func schemaOrDefault(s string) string {
	if s == "" {
		return DefaultSchema
	}
	return s
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func qualified(dbSchema, table string) string {
	return sqlIdent(schemaOrDefault(dbSchema)) + "." + sqlIdent(table)
}

func (r *Introspector) ListTables(ctx context.Context, dbSchema string, includeViews bool) ([]storage.TableRef, error) {
	s := schemaOrDefault(dbSchema)
	types := "'table'"
	if includeViews {
		types = "'table', 'view'"
	}
	q := fmt.Sprintf(`SELECT ?, name, type FROM %s.sqlite_master
		WHERE type IN (%s) AND name NOT LIKE 'sqlite_%%'
		ORDER BY name`, sqlIdent(s), types)
	return storage.QueryTables(ctx, r.db, q, s)
}

// Columns reads pragma_table_info. Primary key columns are reported as not
// nullable.
func (r *Introspector) Columns(ctx context.Context, dbSchema, table string) ([]schema.ColumnInfo, error) {
	const q = `SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?, ?) ORDER BY cid`

	rows, err := r.db.QueryContext(ctx, q, table, schemaOrDefault(dbSchema))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	out := []schema.ColumnInfo{}
	for rows.Next() {
		var (
			c       schema.ColumnInfo
			notNull int
			pk      int
			dflt    sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Nullable = notNull == 0 && pk == 0
		if dflt.Valid {
			c.Default = &dflt.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Introspector) PrimaryKey(ctx context.Context, dbSchema, table string) ([]string, error) {
	const q = `SELECT name FROM pragma_table_info(?, ?) WHERE pk > 0 ORDER BY pk`
	cols, err := storage.QueryStrings(ctx, r.db, q, table, schemaOrDefault(dbSchema))
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	return cols, nil
}

// fkQuery selects one row per column of each foreign key on a table. A
// missing "to" column means the referenced table's primary key.
const fkQuery = `SELECT id, "table", "from", COALESCE("to", '')
	FROM pragma_foreign_key_list(?, ?) ORDER BY id, seq`

func (r *Introspector) keyColumns(ctx context.Context, dbSchema, table string) ([]storage.KeyColumn, error) {
	s := schemaOrDefault(dbSchema)
	rows, err := r.db.QueryContext(ctx, fkQuery, table, s)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.KeyColumn
	for rows.Next() {
		var (
			id int
			k  storage.KeyColumn
		)
		if err := rows.Scan(&id, &k.ReferredTable, &k.Column, &k.ReferredColumn); err != nil {
			return nil, err
		}
		k.Constraint = fmt.Sprintf("fk_%s_%d", table, id)
		k.Table = table
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].ReferredColumn != "" {
			continue
		}
		pk, err := r.PrimaryKey(ctx, s, out[i].ReferredTable)
		if err != nil {
			return nil, err
		}
		if len(pk) > 0 {
			out[i].ReferredColumn = pk[0]
		}
	}
	return out, nil
}

func (r *Introspector) ForeignKeys(ctx context.Context, dbSchema, table string) ([]schema.ForeignKeyInfo, error) {
	keys, err := r.keyColumns(ctx, dbSchema, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	return storage.GroupForeignKeys(keys), nil
}

// ReferencedBy scans every table's foreign keys for ones naming table.
func (r *Introspector) ReferencedBy(ctx context.Context, dbSchema, table string) ([]schema.ReferencedByInfo, error) {
	tables, err := r.ListTables(ctx, dbSchema, false)
	if err != nil {
		return nil, err
	}
	var refs []storage.KeyColumn
	for _, t := range tables {
		keys, err := r.keyColumns(ctx, dbSchema, t.Name)
		if err != nil {
			return nil, fmt.Errorf("query referencing keys: %w", err)
		}
		for _, k := range keys {
			if strings.EqualFold(k.ReferredTable, table) {
				refs = append(refs, k)
			}
		}
	}
	return storage.GroupReferencedBy(refs), nil
}

func (r *Introspector) RowCount(ctx context.Context, dbSchema, table string) (int64, error) {
	return storage.QueryCount(ctx, r.db, "SELECT COUNT(*) FROM "+qualified(dbSchema, table))
}

func (r *Introspector) SampleRows(ctx context.Context, dbSchema, table string, limit int) (storage.Sample, error) {
	return storage.QuerySample(ctx, r.db, "SELECT * FROM "+qualified(dbSchema, table)+" LIMIT ?", limit)
}
