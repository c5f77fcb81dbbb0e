// Package csv reads delimited text into string records for the analyzers.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// BOM is the UTF-8 byte order mark as it appears in decoded text.
const BOM = "\ufeff"

// Options tune the underlying encoding/csv reader.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// TrimSpace trims leading and trailing whitespace from every cell.
	TrimSpace bool
	// LazyQuotes tolerates bare quotes inside unquoted fields.
	LazyQuotes bool
}

// Record is one parsed line. Line is the 1-based record number, header
// included.
type Record struct {
	Line   int
	Fields []string
}

// StreamRecords parses src and sends each record to out.
//
// Records may have differing field counts; callers pad or truncate. A BOM at
// the start of the first cell is removed. Malformed records are reported
// through onErr and skipped. The function returns when src is exhausted or
// ctx is cancelled; it does not close out.
func StreamRecords(
	ctx context.Context,
	src io.Reader,
	opt Options,
	out chan<- Record,
	onErr func(line int, err error),
) error {
	cr := newReader(src, opt)

	var line int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line++
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return err
		}

		fields := make([]string, len(rec))
		for i, v := range rec {
			if line == 1 && i == 0 {
				v = strings.TrimPrefix(v, BOM)
			}
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			fields[i] = v
		}

		select {
		case out <- Record{Line: line, Fields: fields}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadAll collects every record of src. It is StreamRecords without the
// channel plumbing.
func ReadAll(ctx context.Context, src io.Reader, opt Options, onErr func(line int, err error)) ([][]string, error) {
	out := make(chan Record, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- StreamRecords(ctx, src, opt, out, onErr)
	}()

	var rows [][]string
	for rec := range out {
		rows = append(rows, rec.Fields)
	}
	return rows, <-errc
}

func newReader(src io.Reader, opt Options) *csv.Reader {
	cr := csv.NewReader(src)
	cr.Comma = opt.Comma
	if cr.Comma == 0 {
		cr.Comma = ','
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1
	return cr
}
