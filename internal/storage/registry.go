// Package storage defines the database introspection contract and the
// registry every backend joins from its init().
//
// Backends live in subpackages (postgres, mysql, sqlite, mssql). Import
// contractgen/internal/storage/all to register every one of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"contractgen/internal/schema"
)

// Canonical backend kinds.
const (
	KindPostgres = "postgresql"
	KindMySQL    = "mysql"
	KindSQLite   = "sqlite"
	KindMSSQL    = "mssql"
)

// Config is the minimal configuration needed to open an Introspector.
//
// Edge cases:
//   - Kind accepts aliases ("postgres", "sqlserver", "sqlite3", "mariadb").
//   - DSN may be a SQLAlchemy-style URL; each backend normalizes it.
type Config struct {
	Kind string
	DSN  string
}

// TableRef names one table or view.
type TableRef struct {
	Schema string
	Name   string
	// Type is "table" or "view".
	Type string
}

// Sample is a bounded set of rows read from one table.
type Sample struct {
	Columns []string
	Rows    [][]any
}

// Introspector reads table metadata from one database.
//
// dbSchema may be empty, meaning the backend's default schema
// (public, dbo, the connected database, or main).
type Introspector interface {
	// Close releases backend resources. Call once.
	Close()

	// ListTables returns tables (and views when includeViews is true) sorted by name.
	ListTables(ctx context.Context, dbSchema string, includeViews bool) ([]TableRef, error)

	// Columns returns the table's columns in ordinal order. A missing table
	// yields an empty slice, not an error.
	Columns(ctx context.Context, dbSchema, table string) ([]schema.ColumnInfo, error)

	PrimaryKey(ctx context.Context, dbSchema, table string) ([]string, error)
	ForeignKeys(ctx context.Context, dbSchema, table string) ([]schema.ForeignKeyInfo, error)
	ReferencedBy(ctx context.Context, dbSchema, table string) ([]schema.ReferencedByInfo, error)

	RowCount(ctx context.Context, dbSchema, table string) (int64, error)

	// SampleRows reads at most limit rows in storage order.
	SampleRows(ctx context.Context, dbSchema, table string, limit int) (Sample, error)
}

// Factory opens an Introspector for a normalized Config.
type Factory func(ctx context.Context, cfg Config) (Introspector, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

var kindAliases = map[string]string{
	"postgres":   KindPostgres,
	"postgresql": KindPostgres,
	"pg":         KindPostgres,
	"mysql":      KindMySQL,
	"mariadb":    KindMySQL,
	"sqlite":     KindSQLite,
	"sqlite3":    KindSQLite,
	"mssql":      KindMSSQL,
	"sqlserver":  KindMSSQL,
}

// NormalizeKind maps a user-supplied database type to its canonical kind.
// Unknown kinds return "" and false.
func NormalizeKind(kind string) (string, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(kind))]
	return k, ok
}

// Register registers a backend under its canonical kind.
//
// Panics:
//   - If kind is empty or f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open constructs an Introspector using the registered backend factory.
//
// Errors:
//   - ErrValidation if cfg.Kind is empty, unknown, or not compiled in.
//   - Whatever the factory returns (typically ErrConnectivity).
func Open(ctx context.Context, cfg Config) (Introspector, error) {
	if strings.TrimSpace(cfg.Kind) == "" {
		return nil, schema.Validationf("Database type is required")
	}
	kind, ok := NormalizeKind(cfg.Kind)

	mu.RLock()
	f := factories[kind]
	mu.RUnlock()

	if !ok || f == nil {
		return nil, schema.Validationf("Unsupported database type: %s. Supported types: %s",
			cfg.Kind, strings.Join(Kinds(), ", "))
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, schema.Validationf("Connection string is required")
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}
