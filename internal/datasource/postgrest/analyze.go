package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"contractgen/internal/infer"
	"contractgen/internal/normalize"
	jsonrows "contractgen/internal/parser/json"
	"contractgen/internal/schema"
)

const (
	// DefaultSampleSize bounds AnalyzeTable when sampleSize is not positive.
	DefaultSampleSize = 1000
	// DestinationSampleSize is the sample ValidateDestinationTable infers from.
	DestinationSampleSize = 100
	// SampleDataRows is how many rows the quality observation keeps.
	SampleDataRows = 10

	maxNullableListed = 5
)

// Analysis is the result of the data-sample strategy.
type Analysis struct {
	Fields   []schema.FieldDefinition
	Quality  schema.QualityObservation
	Metadata schema.SupabaseMetadata
}

// Info returns the field list in contract form.
func (a Analysis) Info() schema.SchemaInfo { return schema.SchemaInfo{Fields: a.Fields} }

type sample struct {
	columns []string
	rows    []map[string]any
	total   int
}

// AnalyzeTable infers the table's fields from up to sampleSize rows.
//
// Field order is the key order of the first row. A field is nullable when
// any sampled row holds null for it or lacks it; other fields get not_null.
// total_rows is the exact count PostgREST reports, or the sample size when
// it reports none.
func (c *Client) AnalyzeTable(ctx context.Context, table string, sampleSize int) (Analysis, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	s, err := c.sample(ctx, table, sampleSize)
	if err != nil {
		return Analysis{}, tableError(err, table)
	}

	fields, nullable := normalize.RowFields(s.columns, s.rows)

	q := schema.NewQuality(s.total)
	cells := make([][]string, len(s.rows))
	for r, row := range s.rows {
		cells[r] = make([]string, len(s.columns))
		for n, col := range s.columns {
			cells[r][n] = normalize.Stringify(row[col])
		}
	}
	for n := range fields {
		col := make([]string, len(cells))
		for r := range cells {
			col[r] = cells[r][n]
		}
		p := infer.Profile(col)
		q.ObservedProfiling[fields[n].Name] = p
		fields[n].Profiling = &p
	}
	q.SampleData = append(q.SampleData, cells[:min(SampleDataRows, len(cells))]...)
	if s.total == 0 {
		q.Issues = append(q.Issues, "Table is empty")
	}
	if len(nullable) > 0 {
		q.Issues = append(q.Issues, "Nullable columns: "+strings.Join(nullable[:min(maxNullableListed, len(nullable))], ", "))
	}

	cols := make([]schema.ColumnInfo, len(fields))
	for i, f := range fields {
		cols[i] = schema.ColumnInfo{Name: f.Name, Type: f.DataType, Nullable: f.Nullable}
	}
	md := schema.SupabaseMetadata{
		ProjectURL:      c.projectURL,
		TableName:       table,
		PrimaryKeys:     []string{},
		ColumnCount:     len(fields),
		NullableColumns: nullable,
		SampleSize:      len(s.rows),
		Columns:         cols,
	}

	c.log.Debug("supabase table analyzed",
		zap.String("table", table),
		zap.Int("total_rows", s.total),
		zap.Int("sampled", len(s.rows)),
	)
	return Analysis{Fields: fields, Quality: q, Metadata: md}, nil
}

// ValidateDestinationTable checks that the table is readable and infers its
// fields from a small sample.
func (c *Client) ValidateDestinationTable(ctx context.Context, table string) (schema.SchemaInfo, error) {
	s, err := c.sample(ctx, table, DestinationSampleSize)
	if err != nil {
		return schema.SchemaInfo{}, tableError(err, table)
	}
	fields, _ := normalize.RowFields(s.columns, s.rows)
	return schema.SchemaInfo{Fields: fields}, nil
}

func (c *Client) sample(ctx context.Context, table string, limit int) (sample, error) {
	path := url.PathEscape(table)

	first, err := c.get(ctx, path, url.Values{"select": {"*"}, "limit": {"1"}}, nil)
	if err != nil {
		return sample{}, err
	}
	columns, err := firstObjectKeys(first.body)
	if err != nil {
		return sample{}, err
	}
	if columns == nil {
		return sample{}, schema.NotFoundf("Table '%s' is empty. Cannot infer schema from empty table. "+
			"Note: If table exists but appears empty, check Row Level Security (RLS) policies "+
			"and ensure the API key has appropriate permissions.", table)
	}

	resp, err := c.get(ctx, path,
		url.Values{"select": {"*"}, "limit": {strconv.Itoa(limit)}},
		http.Header{"Prefer": {"count=exact"}},
	)
	if err != nil {
		return sample{}, err
	}
	rows, err := decodeRows(ctx, resp.body)
	if err != nil {
		return sample{}, err
	}

	total, ok := contentRangeTotal(resp.header.Get("Content-Range"))
	if !ok || total == 0 {
		total = len(rows)
	}
	return sample{columns: columns, rows: rows, total: total}, nil
}

// decodeRows decodes a JSON array of row objects with numbers kept as
// json.Number.
func decodeRows(ctx context.Context, body []byte) ([]map[string]any, error) {
	var rows []map[string]any
	_, err := jsonrows.StreamArray(ctx, bytes.NewReader(body), jsonrows.Options{}, func(v any) error {
		row, ok := v.(map[string]any)
		if !ok {
			return schema.Malformedf("Unexpected row format: expected object, got %s", jsonKind(v))
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		if _, typed := err.(*schema.Error); typed {
			return nil, err
		}
		return nil, schema.Malformedf("Unexpected response format from Supabase: %v", err)
	}
	return rows, nil
}

// firstObjectKeys returns the keys of the first element of a JSON array in
// document order, or nil for an empty array.
func firstObjectKeys(body []byte) ([]string, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, schema.Malformedf("Unexpected response format from Supabase: expected list: %v", err)
	}
	if len(elems) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(elems[0]))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		var v any
		_ = json.Unmarshal(elems[0], &v)
		return nil, schema.Malformedf("Unexpected response format from Supabase: expected object, got %s", jsonKind(v))
	}
	keys := []string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, schema.Malformedf("Unexpected response format from Supabase: %v", err)
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, schema.Malformedf("Unexpected response format from Supabase: %v", err)
		}
	}
	return keys, nil
}

// contentRangeTotal parses the total of "0-24/3573"; "*" is unknown.
func contentRangeTotal(h string) (int, bool) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(h[i+1:]))
	if err != nil {
		return 0, false
	}
	return n, true
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
