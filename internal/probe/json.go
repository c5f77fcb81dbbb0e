package probe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"contractgen/internal/infer"
	"contractgen/internal/normalize"
	jsonparser "contractgen/internal/parser/json"
	"contractgen/internal/schema"
)

// JSON analysis issues.
const (
	IssueJSONNotList  = "JSON root is not a list"
	IssueJSONInvalid  = "Invalid JSON format"
	IssueJSONNoObject = "File is empty or contains no valid objects"
)

// AnalyzeJSON analyzes a JSON array or NDJSON file.
//
// The layout is chosen from the first non-whitespace character: '[' means a
// single array (file_type "json"), anything else means one value per line
// (file_type "ndjson").
//
// Array files:
//   - total_rows is the number of array elements
//   - a syntax error anywhere discards the document with "Invalid JSON format"
//
// NDJSON files:
//   - blank lines are ignored; every other line counts toward total_rows,
//     including lines that fail to decode
//   - each bad line within the sample window adds "Invalid JSON on line N"
//     and the remaining lines are still used
//
// For both, fields are the sorted union of keys across sampled objects,
// non-object values are skipped, and missing keys read as "". When nothing
// usable was decoded the result is empty, with an explanatory issue unless
// another issue already explains it.
func AnalyzeJSON(ctx context.Context, path string, opt Options) (schema.SourceAnalysisResult, error) {
	log := opt.logger()

	text, encoding, err := load(ctx, path, opt)
	if err != nil {
		return schema.SourceAnalysisResult{}, err
	}
	text, _ = stripBOM(text)

	layout := jsonparser.DetectLayout([]byte(text))
	fileType := FileTypeNDJSON
	if layout == jsonparser.LayoutArray {
		fileType = FileTypeJSON
	}
	res := emptyResult(fileType, encoding)

	popt := jsonparser.Options{Limit: opt.sampleSize()}
	var values []any
	var total int

	switch layout {
	case jsonparser.LayoutArray:
		total, err = jsonparser.StreamArray(ctx, strings.NewReader(text), popt, func(v any) error {
			values = append(values, v)
			return nil
		})
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return schema.SourceAnalysisResult{}, err
		case errors.Is(err, jsonparser.ErrRootNotArray):
			res.Issues = append(res.Issues, IssueJSONNotList)
			values, total = nil, 0
		case err != nil:
			log.Debug("invalid json document", zap.String("path", path), zap.Error(err))
			res.Issues = append(res.Issues, IssueJSONInvalid)
			values, total = nil, 0
		}

	default:
		total, err = jsonparser.StreamLines(ctx, strings.NewReader(text), popt,
			func(_ int, v any) error {
				values = append(values, v)
				return nil
			},
			func(line int, err error) {
				res.Issues = append(res.Issues, fmt.Sprintf("Invalid JSON on line %d", line))
			},
		)
		if err != nil {
			if ctx.Err() != nil {
				return schema.SourceAnalysisResult{}, err
			}
			res.Issues = append(res.Issues, fmt.Sprintf("Error reading file: %v", err))
		}
	}

	if len(values) == 0 {
		if len(res.Issues) == 0 {
			res.Issues = append(res.Issues, IssueJSONNoObject)
		}
		return res, nil
	}

	objects := make([]map[string]any, 0, len(values))
	keys := map[string]struct{}{}
	for _, v := range values {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		objects = append(objects, obj)
		for k := range obj {
			keys[k] = struct{}{}
		}
	}

	fields := make([]string, 0, len(keys))
	for k := range keys {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	rows := make([][]string, 0, len(objects))
	for _, obj := range objects {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = normalize.Stringify(obj[f])
		}
		rows = append(rows, row)
	}

	res.TotalRows = total
	res.SampleFields = fields
	res.SampleData = headRows(rows, SampleDataRows, len(fields))
	if len(rows) > 0 {
		res.DataTypes = infer.Reconcile(rows, len(fields))
		res.FieldProfiles = profiles(fields, rows)
	}

	log.Debug("json analyzed",
		zap.String("path", path),
		zap.String("file_type", fileType),
		zap.Int("total_rows", total),
		zap.Int("objects", len(objects)),
		zap.Int("issues", len(res.Issues)),
	)
	return res, nil
}
