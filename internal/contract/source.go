// Package contract assembles validated source, destination and
// transformation contracts from the analyzers.
//
// Every constructor returns a contract that already passed schema.Validate.
// Analyzer errors keep their schema kind so callers can branch with
// errors.Is.
package contract

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"contractgen/internal/datasource/postgrest"
	"contractgen/internal/inspect"
	"contractgen/internal/logging"
	"contractgen/internal/probe"
	"contractgen/internal/schema"
	"contractgen/internal/storage"
)

// SourceTypeTable is the source_type of database sources built here.
const SourceTypeTable = "table"

var (
	analyzeCSVFn  = probe.AnalyzeCSV
	analyzeJSONFn = probe.AnalyzeJSON
)

// FileOptions configure CSVSource and JSONSource.
type FileOptions struct {
	// ID defaults to DefaultSourceID(path).
	ID string
	// Delimiter is a single character; empty means sniff. CSV only.
	Delimiter string
	// Encoding overrides detection.
	Encoding   string
	SampleSize int
	Metadata   map[string]any
	Logger     *zap.Logger
}

func (o FileOptions) probe() (probe.Options, error) {
	po := probe.Options{Encoding: o.Encoding, SampleSize: o.SampleSize, Logger: o.Logger}
	if o.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(o.Delimiter)
		if size != len(o.Delimiter) || r == utf8.RuneError {
			return po, schema.Validationf("Delimiter must be a single character: %q", o.Delimiter)
		}
		po.Delimiter = r
	}
	return po, nil
}

// IsJSONPath reports whether the extension selects the JSON analyzer.
func IsJSONPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl", ".ndjson":
		return true
	}
	return false
}

func isNDJSONPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return true
	}
	return false
}

// DefaultSourceID derives a source id from the file name:
// "Bank Export-2024.csv" becomes "bank_export_2024".
func DefaultSourceID(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(stem))
}

// SourceAnalysis runs the analyzer selected by the file extension:
// .json, .jsonl and .ndjson go to the JSON analyzer, anything else to CSV.
func SourceAnalysis(ctx context.Context, path string, opt probe.Options) (schema.SourceAnalysisResult, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return schema.SourceAnalysisResult{}, schema.NotFoundf("Source file not found: %s", path)
		}
		return schema.SourceAnalysisResult{}, schema.Malformedf("Error reading file: %v", err)
	}
	if IsJSONPath(path) {
		return analyzeJSONFn(ctx, path, opt)
	}
	return analyzeCSVFn(ctx, path, opt)
}

// FileSource analyzes path and returns a CSV or JSON source contract
// depending on its extension.
func FileSource(ctx context.Context, path string, opt FileOptions) (schema.SourceContract, error) {
	if IsJSONPath(path) {
		c, err := JSONSource(ctx, path, opt)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := CSVSource(ctx, path, opt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CSVSource analyzes a delimited file.
//
// The contract's delimiter and encoding are the ones the analyzer used;
// has_header is the detected value and defaults to true.
func CSVSource(ctx context.Context, path string, opt FileOptions) (*schema.CSVSource, error) {
	po, err := opt.probe()
	if err != nil {
		return nil, err
	}
	res, err := analyzeCSVFn(ctx, path, po)
	if err != nil {
		return nil, err
	}

	c := schema.NewCSVSource(sourceID(opt.ID, path), path, analysisFields(res), analysisQuality(res), copyMetadata(opt.Metadata))
	if res.Encoding != "" {
		c.Encoding = res.Encoding
	}
	if res.Delimiter != "" {
		c.Delimiter = res.Delimiter
	}
	if res.HasHeader != nil {
		c.HasHeader = *res.HasHeader
	}
	if err := schema.Validate(c); err != nil {
		return nil, err
	}
	logging.OrNop(opt.Logger).Debug("csv source contract built",
		zap.String("source_id", c.SourceID),
		zap.Int("fields", len(c.Schema.Fields)),
		zap.Int("total_rows", res.TotalRows),
	)
	return c, nil
}

// JSONSource analyzes a JSON array or NDJSON file. is_ndjson follows the
// extension (.jsonl, .ndjson), not the detected layout.
func JSONSource(ctx context.Context, path string, opt FileOptions) (*schema.JSONSource, error) {
	po := probe.Options{Encoding: opt.Encoding, SampleSize: opt.SampleSize, Logger: opt.Logger}
	res, err := analyzeJSONFn(ctx, path, po)
	if err != nil {
		return nil, err
	}

	c := schema.NewJSONSource(sourceID(opt.ID, path), path, analysisFields(res), analysisQuality(res), copyMetadata(opt.Metadata))
	if res.Encoding != "" {
		c.Encoding = res.Encoding
	}
	c.IsNDJSON = isNDJSONPath(path)
	if err := schema.Validate(c); err != nil {
		return nil, err
	}
	logging.OrNop(opt.Logger).Debug("json source contract built",
		zap.String("source_id", c.SourceID),
		zap.Bool("ndjson", c.IsNDJSON),
		zap.Int("fields", len(c.Schema.Fields)),
	)
	return c, nil
}

func sourceID(id, path string) string {
	if id != "" {
		return id
	}
	return DefaultSourceID(path)
}

// analysisFields pairs sample_fields with data_types and attaches each
// field's profile.
func analysisFields(res schema.SourceAnalysisResult) []schema.FieldDefinition {
	fields := make([]schema.FieldDefinition, 0, len(res.SampleFields))
	for i, name := range res.SampleFields {
		dataType := "empty"
		if i < len(res.DataTypes) {
			dataType = res.DataTypes[i]
		}
		f := schema.NewField(name, dataType)
		if p, ok := res.FieldProfiles[name]; ok {
			f.Profiling = &p
		}
		fields = append(fields, f)
	}
	return fields
}

func analysisQuality(res schema.SourceAnalysisResult) schema.QualityObservation {
	q := schema.NewQuality(res.TotalRows)
	for k, v := range res.FieldProfiles {
		q.ObservedProfiling[k] = v
	}
	if res.SampleData != nil {
		q.SampleData = res.SampleData
	}
	if res.Issues != nil {
		q.Issues = res.Issues
	}
	return q
}

func copyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// ---- database ----

// DatabaseOptions configure DatabaseSource.
type DatabaseOptions struct {
	// Kind is the database type (postgresql, mysql, sqlite, mssql or an alias).
	Kind  string
	DSN   string
	Table string
	// Schema is the database schema; empty uses the backend default.
	Schema string
	// ID defaults to Table.
	ID         string
	SampleSize int
	Metadata   map[string]any
	Logger     *zap.Logger
}

var analyzeTableFn = inspect.AnalyzeTable

// DatabaseSource samples a table and returns a database source contract.
//
// Metadata is the table metadata (database_type, table_name, primary_keys,
// columns and so on) with caller entries layered on top.
func DatabaseSource(ctx context.Context, opt DatabaseOptions) (*schema.DatabaseSource, error) {
	if opt.Table == "" {
		return nil, schema.Validationf("table name is required")
	}
	kind, ok := storage.NormalizeKind(opt.Kind)
	if !ok {
		// storage.Open reports the unsupported kind.
		kind = opt.Kind
	}

	a, err := analyzeTableFn(ctx, storage.Config{Kind: kind, DSN: opt.DSN}, opt.Table, opt.Schema, opt.SampleSize, inspect.Options{Logger: opt.Logger})
	if err != nil {
		return nil, err
	}

	md := schema.ToMetadata(a.Metadata)
	for k, v := range opt.Metadata {
		md[k] = v
	}
	id := opt.ID
	if id == "" {
		id = opt.Table
	}
	c := schema.NewDatabaseSource(id, kind, SourceTypeTable, opt.Table, a.Table.Fields, a.Quality, md)
	c.DatabaseSchema = a.Table.Schema
	if err := schema.Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ---- supabase ----

// SupabaseOptions configure SupabaseSource and SupabaseDestination.
type SupabaseOptions struct {
	ProjectURL string
	APIKey     string
	Table      string
	// ID defaults to Table.
	ID         string
	SampleSize int
	Metadata   map[string]any
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (o SupabaseOptions) client() (*postgrest.Client, error) {
	return postgrest.New(o.ProjectURL, o.APIKey, postgrest.Options{HTTPClient: o.HTTPClient, Logger: o.Logger})
}

// SupabaseSource samples a table through PostgREST.
func SupabaseSource(ctx context.Context, opt SupabaseOptions) (*schema.SupabaseSource, error) {
	if opt.Table == "" {
		return nil, schema.Validationf("table name is required")
	}
	cl, err := opt.client()
	if err != nil {
		return nil, err
	}
	a, err := cl.AnalyzeTable(ctx, opt.Table, opt.SampleSize)
	if err != nil {
		return nil, err
	}

	md := schema.ToMetadata(a.Metadata)
	for k, v := range opt.Metadata {
		md[k] = v
	}
	id := opt.ID
	if id == "" {
		id = opt.Table
	}
	c := schema.NewSupabaseSource(id, cl.ProjectURL(), opt.Table, a.Fields, a.Quality, md)
	if err := schema.Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}
