package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Queryer is the subset of *sql.DB the database/sql backends use.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryStrings runs q and scans a single string column.
func QueryStrings(ctx context.Context, db Queryer, q string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// QueryTables runs q and scans (schema, name, type) rows.
func QueryTables(ctx context.Context, db Queryer, q string, args ...any) ([]TableRef, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var out []TableRef
	for rows.Next() {
		var t TableRef
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// QueryKeyColumns runs q and scans rows of
// (constraint, table, column, referred schema, referred table, referred column).
func QueryKeyColumns(ctx context.Context, db Queryer, q string, args ...any) ([]KeyColumn, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeyColumn
	for rows.Next() {
		var k KeyColumn
		var refSchema sql.NullString
		if err := rows.Scan(&k.Constraint, &k.Table, &k.Column, &refSchema, &k.ReferredTable, &k.ReferredColumn); err != nil {
			return nil, err
		}
		k.ReferredSchema = refSchema.String
		out = append(out, k)
	}
	return out, rows.Err()
}

// QuerySample runs q and collects every row as raw driver values.
func QuerySample(ctx context.Context, db Queryer, q string, args ...any) (Sample, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return Sample{}, fmt.Errorf("sample rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Sample{}, fmt.Errorf("sample columns: %w", err)
	}
	s := Sample{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Sample{}, fmt.Errorf("read sample row: %w", err)
		}
		s.Rows = append(s.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Sample{}, fmt.Errorf("sample rows: %w", err)
	}
	return s, nil
}

// QueryCount scans a single integer.
func QueryCount(ctx context.Context, db Queryer, q string, args ...any) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}
