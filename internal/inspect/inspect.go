// Package inspect turns database catalog metadata into contract fields,
// table listings, relationship maps and sampled quality observations.
//
// The inspect package is responsible for:
//   - Mapping columns to field definitions (types, not_null, primary_key,
//     foreign_key constraints)
//   - Reporting a missing table as ErrNotFound with the available tables
//   - Sampling rows and profiling them the same way file sources are profiled
//
// Design constraints:
//   - One Introspector per call; callers that need several operations on the
//     same connection use Open and the Inspector methods.
//   - Backends are reached only through storage.Open, so importing
//     contractgen/internal/storage/all (or a single backend) is required.
package inspect

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"contractgen/internal/infer"
	"contractgen/internal/logging"
	"contractgen/internal/normalize"
	"contractgen/internal/schema"
	"contractgen/internal/storage"
)

// DefaultSampleSize bounds AnalyzeTable when sampleSize is not positive.
const DefaultSampleSize = 1000

// SampleDataRows is how many sampled rows are kept in the quality observation.
const SampleDataRows = 5

// maxNullableListed caps the "Nullable columns" issue.
const maxNullableListed = 5

// Issue texts.
const (
	IssueEmptyTable     = "Table is empty"
	IssueNullablePrefix = "Nullable columns: "
)

// openFn is the seam every call opens its backend through.
var openFn = storage.Open

// Options control logging for a single call.
type Options struct {
	Logger *zap.Logger
}

// Table is the inspected shape of one table.
type Table struct {
	Name        string
	Schema      string
	Fields      []schema.FieldDefinition
	Columns     []schema.ColumnInfo
	PrimaryKey  []string
	ForeignKeys []schema.ForeignKeyInfo
}

// Info returns the field list in contract form.
func (t Table) Info() schema.SchemaInfo {
	return schema.SchemaInfo{Fields: t.Fields}
}

// Analysis is the result of AnalyzeTable.
type Analysis struct {
	Table    Table
	Quality  schema.QualityObservation
	Metadata schema.TableMetadata
}

// Inspector runs inspections over one open connection.
type Inspector struct {
	db   storage.Introspector
	kind string
	log  *zap.Logger
}

// Open connects using the registered backend for cfg.Kind.
func Open(ctx context.Context, cfg storage.Config, opt Options) (*Inspector, error) {
	log := logging.OrNop(opt.Logger)
	kind, ok := storage.NormalizeKind(cfg.Kind)
	if !ok {
		kind = cfg.Kind
	}

	db, err := openFn(ctx, cfg)
	if err != nil {
		log.Debug("database open failed", zap.String("kind", cfg.Kind), logging.DSN(cfg.DSN), logging.Error(err))
		return nil, err
	}
	log.Debug("database opened", zap.String("kind", kind), logging.DSN(cfg.DSN))
	return New(db, kind, log), nil
}

// New wraps an already open Introspector. kind is reported as database_type.
func New(db storage.Introspector, kind string, log *zap.Logger) *Inspector {
	return &Inspector{db: db, kind: kind, log: logging.OrNop(log)}
}

// Close releases the underlying connection.
func (i *Inspector) Close() { i.db.Close() }

// ---- table schema ----

// TableSchema maps the table's columns to field definitions.
//
// Rules:
//   - types come from normalize.SQLType
//   - NOT NULL columns are non-nullable with not_null
//   - primary key columns gain primary_key
//   - foreign key columns gain foreign_key{referred_table, referred_column}
//
// Errors:
//   - ErrNotFound naming the available tables when the table has no columns
func (i *Inspector) TableSchema(ctx context.Context, table, dbSchema string) (Table, error) {
	cols, err := i.db.Columns(ctx, dbSchema, table)
	if err != nil {
		return Table{}, fmt.Errorf("read columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return Table{}, i.missingTable(ctx, table, dbSchema)
	}

	pk, err := i.db.PrimaryKey(ctx, dbSchema, table)
	if err != nil {
		return Table{}, fmt.Errorf("read primary key of %s: %w", table, err)
	}
	fks, err := i.db.ForeignKeys(ctx, dbSchema, table)
	if err != nil {
		return Table{}, fmt.Errorf("read foreign keys of %s: %w", table, err)
	}

	isPK := make(map[string]bool, len(pk))
	for _, c := range pk {
		isPK[c] = true
	}
	type ref struct{ table, column string }
	refs := map[string]ref{}
	for _, fk := range fks {
		for n, c := range fk.Columns {
			if _, seen := refs[c]; seen || n >= len(fk.ReferredColumns) {
				continue
			}
			refs[c] = ref{fk.ReferredTable, fk.ReferredColumns[n]}
		}
	}

	fields := make([]schema.FieldDefinition, 0, len(cols))
	for _, col := range cols {
		f := normalize.ColumnField(col)
		if isPK[col.Name] {
			f.Constraints = append(f.Constraints, schema.FieldConstraint{Type: schema.ConstraintPrimaryKey})
		}
		if r, ok := refs[col.Name]; ok {
			f.Constraints = append(f.Constraints, schema.FieldConstraint{
				Type:           schema.ConstraintForeignKey,
				ReferredTable:  r.table,
				ReferredColumn: r.column,
			})
		}
		fields = append(fields, f)
	}

	i.log.Debug("table inspected",
		zap.String("table", table),
		zap.String("schema", dbSchema),
		zap.Int("columns", len(cols)),
		zap.Strings("primary_key", pk),
		zap.Int("foreign_keys", len(fks)),
	)
	return Table{
		Name:        table,
		Schema:      dbSchema,
		Fields:      fields,
		Columns:     cols,
		PrimaryKey:  pk,
		ForeignKeys: fks,
	}, nil
}

func (i *Inspector) missingTable(ctx context.Context, table, dbSchema string) error {
	refs, err := i.db.ListTables(ctx, dbSchema, true)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	if dbSchema != "" {
		return schema.NotFoundf("Table '%s' not found in schema '%s'. Available tables: %s", table, dbSchema, schema.FormatList(names))
	}
	return schema.NotFoundf("Table '%s' not found. Available tables: %s", table, schema.FormatList(names))
}

// ---- listing ----

// ListTables lists tables and views with key and size information. Row
// counts that fail (permissions, broken views) are omitted, not fatal.
func (i *Inspector) ListTables(ctx context.Context, dbSchema string, withFields bool) ([]schema.TableInfo, error) {
	refs, err := i.db.ListTables(ctx, dbSchema, true)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	out := make([]schema.TableInfo, 0, len(refs))
	for _, r := range refs {
		cols, err := i.db.Columns(ctx, r.Schema, r.Name)
		if err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", r.Name, err)
		}
		pk, err := i.db.PrimaryKey(ctx, r.Schema, r.Name)
		if err != nil {
			return nil, fmt.Errorf("read primary key of %s: %w", r.Name, err)
		}

		n := len(cols)
		info := schema.TableInfo{
			TableName:         r.Name,
			Schema:            r.Schema,
			Type:              r.Type,
			HasPrimaryKey:     len(pk) > 0,
			PrimaryKeyColumns: pk,
			ColumnCount:       &n,
		}
		if count, err := i.db.RowCount(ctx, r.Schema, r.Name); err == nil {
			info.RowCount = &count
		} else {
			i.log.Debug("row count unavailable", zap.String("table", r.Name), logging.Error(err))
		}
		if withFields {
			info.Columns = cols
		}
		out = append(out, info)
	}
	return out, nil
}

// ---- relationships ----

// Relationships returns the table's foreign keys in both directions.
func (i *Inspector) Relationships(ctx context.Context, table, dbSchema string) (schema.RelationshipInfo, error) {
	cols, err := i.db.Columns(ctx, dbSchema, table)
	if err != nil {
		return schema.RelationshipInfo{}, fmt.Errorf("read columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return schema.RelationshipInfo{}, i.missingTable(ctx, table, dbSchema)
	}

	fks, err := i.db.ForeignKeys(ctx, dbSchema, table)
	if err != nil {
		return schema.RelationshipInfo{}, fmt.Errorf("read foreign keys of %s: %w", table, err)
	}
	refs, err := i.db.ReferencedBy(ctx, dbSchema, table)
	if err != nil {
		return schema.RelationshipInfo{}, fmt.Errorf("read referencing keys of %s: %w", table, err)
	}
	return schema.RelationshipInfo{ForeignKeys: fks, ReferencedBy: refs}, nil
}

// ---- sampled analysis ----

// AnalyzeTable inspects the table, counts its rows and profiles up to
// sampleSize sampled rows.
//
// Quality issues:
//   - "Table is empty" when COUNT(*) is zero
//   - "Nullable columns: a, b" listing at most five nullable columns
func (i *Inspector) AnalyzeTable(ctx context.Context, table, dbSchema string, sampleSize int) (Analysis, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	t, err := i.TableSchema(ctx, table, dbSchema)
	if err != nil {
		return Analysis{}, err
	}
	total, err := i.db.RowCount(ctx, dbSchema, table)
	if err != nil {
		return Analysis{}, fmt.Errorf("count rows of %s: %w", table, err)
	}
	sample, err := i.db.SampleRows(ctx, dbSchema, table, sampleSize)
	if err != nil {
		return Analysis{}, fmt.Errorf("sample %s: %w", table, err)
	}

	rows := stringRows(sample, t.Columns)
	q := schema.NewQuality(int(total))
	for n, f := range t.Fields {
		col := make([]string, len(rows))
		for r, row := range rows {
			col[r] = row[n]
		}
		p := infer.Profile(col)
		q.ObservedProfiling[f.Name] = p
		t.Fields[n].Profiling = &p
	}
	for _, row := range rows[:min(SampleDataRows, len(rows))] {
		q.SampleData = append(q.SampleData, row)
	}

	if total == 0 {
		q.Issues = append(q.Issues, IssueEmptyTable)
	}
	nullable := []string{}
	for _, f := range t.Fields {
		if f.Nullable {
			nullable = append(nullable, f.Name)
		}
	}
	if len(nullable) > 0 {
		q.Issues = append(q.Issues, IssueNullablePrefix+strings.Join(nullable[:min(maxNullableListed, len(nullable))], ", "))
	}

	md := schema.TableMetadata{
		DatabaseType:    i.kind,
		TableName:       table,
		Schema:          dbSchema,
		PrimaryKeys:     t.PrimaryKey,
		ColumnCount:     len(t.Columns),
		NullableColumns: nullable,
		SampleSize:      sampleSize,
		Columns:         t.Columns,
	}

	i.log.Debug("table analyzed",
		zap.String("table", table),
		zap.Int64("total_rows", total),
		zap.Int("sampled", len(rows)),
	)
	return Analysis{Table: t, Quality: q, Metadata: md}, nil
}

// stringRows aligns sampled rows to the inspected column order and renders
// each cell as text.
func stringRows(s storage.Sample, cols []schema.ColumnInfo) [][]string {
	pos := make(map[string]int, len(s.Columns))
	for n, c := range s.Columns {
		pos[c] = n
	}
	out := make([][]string, 0, len(s.Rows))
	for _, raw := range s.Rows {
		row := make([]string, len(cols))
		for n, c := range cols {
			if p, ok := pos[c.Name]; ok && p < len(raw) {
				row[n] = storage.CellString(raw[p])
			}
		}
		out = append(out, row)
	}
	return out
}

// ---- one-shot helpers ----

func with[T any](ctx context.Context, cfg storage.Config, opt Options, fn func(*Inspector) (T, error)) (T, error) {
	in, err := Open(ctx, cfg, opt)
	if err != nil {
		var zero T
		return zero, err
	}
	defer in.Close()
	return fn(in)
}

// TableSchema opens cfg, inspects one table and closes the connection.
func TableSchema(ctx context.Context, cfg storage.Config, table, dbSchema string, opt Options) (Table, error) {
	return with(ctx, cfg, opt, func(in *Inspector) (Table, error) {
		return in.TableSchema(ctx, table, dbSchema)
	})
}

// ListTables opens cfg, lists tables and closes the connection.
func ListTables(ctx context.Context, cfg storage.Config, dbSchema string, withFields bool, opt Options) ([]schema.TableInfo, error) {
	return with(ctx, cfg, opt, func(in *Inspector) ([]schema.TableInfo, error) {
		return in.ListTables(ctx, dbSchema, withFields)
	})
}

// Relationships opens cfg, reads both directions of foreign keys and closes
// the connection.
func Relationships(ctx context.Context, cfg storage.Config, table, dbSchema string, opt Options) (schema.RelationshipInfo, error) {
	return with(ctx, cfg, opt, func(in *Inspector) (schema.RelationshipInfo, error) {
		return in.Relationships(ctx, table, dbSchema)
	})
}

// AnalyzeTable opens cfg, runs a sampled analysis and closes the connection.
func AnalyzeTable(ctx context.Context, cfg storage.Config, table, dbSchema string, sampleSize int, opt Options) (Analysis, error) {
	return with(ctx, cfg, opt, func(in *Inspector) (Analysis, error) {
		return in.AnalyzeTable(ctx, table, dbSchema, sampleSize)
	})
}
