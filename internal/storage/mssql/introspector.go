package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"contractgen/internal/schema"
	"contractgen/internal/storage"
)

// DefaultSchema is used when a call passes an empty schema.
const DefaultSchema = "dbo"

// Introspector implements storage.Introspector for Microsoft SQL Server.
//
// Columns, tables and primary keys come from INFORMATION_SCHEMA; foreign keys
// come from sys.foreign_key_columns, which keeps composite keys aligned by
// constraint_column_id.
type Introspector struct {
	db     storage.Queryer
	closer func() error
}

func init() {
	storage.Register(storage.KindMSSQL, New)
}

// New opens a database/sql pool with the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Introspector, error) {
	raw, err := sql.Open("sqlserver", NormalizeDSN(cfg.DSN))
	if err != nil {
		return nil, schema.Connectivity("Failed to connect to mssql database", err)
	}
	raw.SetMaxOpenConns(4)
	raw.SetMaxIdleConns(2)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, schema.Connectivity("Failed to connect to mssql database", err)
	}
	return &Introspector{db: raw, closer: raw.Close}, nil
}

// NormalizeDSN converts SQLAlchemy URLs ("mssql+pyodbc://u:p@host:1433/db?driver=...")
// into the go-mssqldb URL form ("sqlserver://u:p@host:1433?database=db").
// ODBC-only parameters are dropped. sqlserver:// URLs and ADO strings pass
// through unchanged.
func NormalizeDSN(dsn string) string {
	scheme, _ := storage.SplitURL(dsn)
	if scheme != "mssql" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}

	q := u.Query()
	q.Del("driver")
	q.Del("TrustServerCertificate")
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		q.Set("database", db)
	}

	out := url.URL{Scheme: "sqlserver", User: u.User, Host: u.Host, RawQuery: q.Encode()}
	return out.String()
}

// Close releases database resources held by this introspector.
func (r *Introspector) Close() {
	if r == nil || r.closer == nil {
		return
	}
	_ = r.closer()
}

func schemaOrDefault(s string) string {
	if s == "" {
		return DefaultSchema
	}
	return s
}

func bracket(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func qualified(dbSchema, table string) string {
	return bracket(schemaOrDefault(dbSchema)) + "." + bracket(table)
}

func (r *Introspector) ListTables(ctx context.Context, dbSchema string, includeViews bool) ([]storage.TableRef, error) {
	const q = `
		SELECT TABLE_SCHEMA, TABLE_NAME,
		       CASE WHEN TABLE_TYPE = 'VIEW' THEN 'view' ELSE 'table' END
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1
		  AND (TABLE_TYPE = 'BASE TABLE' OR (@p2 = 1 AND TABLE_TYPE = 'VIEW'))
		ORDER BY TABLE_NAME`
	return storage.QueryTables(ctx, r.db, q, schemaOrDefault(dbSchema), includeViews)
}

func (r *Introspector) Columns(ctx context.Context, dbSchema, table string) ([]schema.ColumnInfo, error) {
	const q = `
		SELECT COLUMN_NAME, DATA_TYPE,
		       CAST(CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS bit),
		       COLUMN_DEFAULT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`

	rows, err := r.db.QueryContext(ctx, q, schemaOrDefault(dbSchema), table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	out := []schema.ColumnInfo{}
	for rows.Next() {
		var (
			c    schema.ColumnInfo
			dflt sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &dflt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if dflt.Valid {
			c.Default = &dflt.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Introspector) PrimaryKey(ctx context.Context, dbSchema, table string) ([]string, error) {
	const q = `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		 AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		  AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION`
	cols, err := storage.QueryStrings(ctx, r.db, q, schemaOrDefault(dbSchema), table)
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	return cols, nil
}

// fkQuery is filtered on either the parent (referencing) or the referenced
// object.
const fkQuery = `
	SELECT fk.name,
	       OBJECT_NAME(fkc.parent_object_id), pc.name,
	       OBJECT_SCHEMA_NAME(fkc.referenced_object_id), OBJECT_NAME(fkc.referenced_object_id), rc.name
	FROM sys.foreign_keys fk
	JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
	JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
	JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
	WHERE OBJECT_SCHEMA_NAME(fkc.%[1]s) = @p1 AND OBJECT_NAME(fkc.%[1]s) = @p2
	ORDER BY OBJECT_NAME(fkc.parent_object_id), fk.name, fkc.constraint_column_id`

func (r *Introspector) ForeignKeys(ctx context.Context, dbSchema, table string) ([]schema.ForeignKeyInfo, error) {
	keys, err := storage.QueryKeyColumns(ctx, r.db, fmt.Sprintf(fkQuery, "parent_object_id"), schemaOrDefault(dbSchema), table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	return storage.GroupForeignKeys(keys), nil
}

func (r *Introspector) ReferencedBy(ctx context.Context, dbSchema, table string) ([]schema.ReferencedByInfo, error) {
	keys, err := storage.QueryKeyColumns(ctx, r.db, fmt.Sprintf(fkQuery, "referenced_object_id"), schemaOrDefault(dbSchema), table)
	if err != nil {
		return nil, fmt.Errorf("query referencing keys: %w", err)
	}
	return storage.GroupReferencedBy(keys), nil
}

func (r *Introspector) RowCount(ctx context.Context, dbSchema, table string) (int64, error) {
	return storage.QueryCount(ctx, r.db, "SELECT COUNT_BIG(*) FROM "+qualified(dbSchema, table))
}

func (r *Introspector) SampleRows(ctx context.Context, dbSchema, table string, limit int) (storage.Sample, error) {
	return storage.QuerySample(ctx, r.db, "SELECT TOP (@p1) * FROM "+qualified(dbSchema, table), limit)
}
