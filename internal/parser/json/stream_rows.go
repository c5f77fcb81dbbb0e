// Package json streams JSON-array and newline-delimited JSON documents into
// decoded values for the analyzers.
package json

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// ErrRootNotArray is returned by StreamArray when the document is valid JSON
// but its root is not an array.
var ErrRootNotArray = errors.New("json: root is not an array")

// Options bound how much of a document is decoded.
type Options struct {
	// Limit caps how many values are decoded and emitted. Values past the
	// limit are still counted. Zero means no limit.
	Limit int
}

// Layout is the detected shape of a document.
type Layout int

const (
	// LayoutNDJSON is one JSON value per line.
	LayoutNDJSON Layout = iota
	// LayoutArray is a single top-level JSON array.
	LayoutArray
)

// DetectLayout reports LayoutArray when the first non-whitespace byte of
// head is '[' and LayoutNDJSON otherwise (including empty input).
func DetectLayout(head []byte) Layout {
	trimmed := bytes.TrimLeftFunc(head, unicode.IsSpace)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return LayoutArray
	}
	return LayoutNDJSON
}

// StreamArray decodes the elements of a top-level JSON array one at a time
// and calls emit for the first opt.Limit of them. Numbers are decoded as
// json.Number. It returns the total element count.
//
// Errors:
//   - any syntax error, or trailing data after the closing ']', aborts the
//     whole document; callers should discard what was emitted
//   - a valid non-array root returns ErrRootNotArray
func StreamArray(ctx context.Context, r io.Reader, opt Options, emit func(v any) error) (int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("json: empty document: %w", io.ErrUnexpectedEOF)
		}
		return 0, fmt.Errorf("json: read first token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		if err := skipValueFromFirstToken(dec, tok); err != nil {
			return 0, err
		}
		return 0, ErrRootNotArray
	}

	total := 0
	for dec.More() {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return total, fmt.Errorf("json: decode array element %d: %w", total+1, err)
		}
		total++
		if opt.Limit > 0 && total > opt.Limit {
			continue
		}
		if err := emit(v); err != nil {
			return total, err
		}
	}

	if end, err := dec.Token(); err != nil {
		return total, fmt.Errorf("json: read array end: %w", err)
	} else if end != json.Delim(']') {
		return total, fmt.Errorf("json: expected array end ']', got %v", end)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return total, errors.New("json: extra data after array")
	}
	return total, nil
}

// StreamLines decodes one JSON value per non-blank line.
//
// Blank lines are skipped and not counted. Every other line counts toward
// the returned total, including lines that fail to decode, which are
// reported through onLineErr with their 1-based physical line number. Once
// opt.Limit values have been emitted, remaining lines are counted without
// being decoded.
func StreamLines(
	ctx context.Context,
	r io.Reader,
	opt Options,
	emit func(line int, v any) error,
	onLineErr func(line int, err error),
) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line, total, emitted := 0, 0, 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		total++

		if opt.Limit > 0 && emitted >= opt.Limit {
			continue
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		v, err := decodeLine(text)
		if err != nil {
			if onLineErr != nil {
				onLineErr(line, err)
			}
			continue
		}
		emitted++
		if err := emit(line, v); err != nil {
			return total, err
		}
	}
	if err := sc.Err(); err != nil {
		return total, fmt.Errorf("json: scan line %d: %w", line+1, err)
	}
	return total, nil
}

func decodeLine(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("json: extra data after value")
	}
	return v, nil
}

// skipValueFromFirstToken consumes the rest of a value whose first token has
// already been read.
func skipValueFromFirstToken(dec *json.Decoder, tok any) error {
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch d {
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return fmt.Errorf("json: skip object key: %w", err)
			}
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
	case '[':
		for dec.More() {
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("json: unexpected delimiter %q", d)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("json: skip value end: %w", err)
	}
	return nil
}

func skipNextValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: skip value token: %w", err)
	}
	return skipValueFromFirstToken(dec, tok)
}
