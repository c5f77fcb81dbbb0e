// Package probe analyzes file-based sources and produces a
// schema.SourceAnalysisResult per file.
//
// The probe package is responsible for:
//   - Detecting encoding and, for CSV, the delimiter and header row
//   - Reading every record to count rows, while only the first SampleSize
//     records feed type inference and profiling
//   - Collecting non-fatal problems (BOM, bad NDJSON lines) as issues
//
// Design constraints:
//   - Per-record problems never fail the analysis; they become issues.
//   - I/O errors (missing file, unreadable file, unknown encoding override)
//     are returned as errors.
//   - Output is deterministic for a given file and options.
package probe

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"contractgen/internal/infer"
	"contractgen/internal/schema"
)

// DefaultSampleSize is used when Options.SampleSize is not positive.
const DefaultSampleSize = 1000

// SampleDataRows is how many rows are copied into SourceAnalysisResult.SampleData.
const SampleDataRows = 5

// File types reported in SourceAnalysisResult.FileType.
const (
	FileTypeCSV    = "csv"
	FileTypeJSON   = "json"
	FileTypeNDJSON = "ndjson"
)

// Issue texts shared by both analyzers.
const (
	IssueEmptyFile  = "File is empty"
	IssueBOMRemoved = "UTF-8 BOM detected and removed from header"
)

// Options control a single analysis run.
type Options struct {
	// Encoding overrides detection when set (e.g. "utf-8", "latin-1").
	Encoding string
	// Delimiter overrides sniffing when non-zero. CSV only.
	Delimiter rune
	// SampleSize bounds the records used for inference and profiling.
	SampleSize int
	// Logger receives debug output. Nil means zap.NewNop().
	Logger *zap.Logger
}

func (o Options) sampleSize() int {
	if o.SampleSize <= 0 {
		return DefaultSampleSize
	}
	return o.SampleSize
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// readFileFn is the seam both analyzers read through. Tests replace it to
// simulate unreadable files.
var readFileFn = os.ReadFile

// load reads path and decodes it with the override or detected encoding.
// The returned text still carries a leading BOM if the bytes had one.
func load(ctx context.Context, path string, opt Options) (text, encoding string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	data, err := readFileFn(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", schema.NotFoundf("Source file not found: %s", path)
		}
		return "", "", schema.Malformedf("Error reading file: %v", err)
	}

	encoding = infer.DetectEncoding(data)
	if opt.Encoding != "" {
		encoding, err = infer.CanonicalEncoding(opt.Encoding)
		if err != nil {
			return "", "", schema.Validationf("%v", err)
		}
	}

	text, err = infer.Decode(data, encoding)
	if err != nil {
		return "", encoding, schema.Malformedf("Failed to decode %s as %s: %v", path, encoding, err)
	}
	opt.logger().Debug("source loaded",
		zap.String("path", path),
		zap.String("encoding", encoding),
		zap.Int("bytes", len(data)),
	)
	return text, encoding, nil
}

// stripBOM removes a leading BOM and reports whether one was present.
func stripBOM(text string) (string, bool) {
	if strings.HasPrefix(text, "\ufeff") {
		return strings.TrimPrefix(text, "\ufeff"), true
	}
	return text, false
}

// profiles computes a FieldProfile per field over rows, padding short rows.
func profiles(fields []string, rows [][]string) map[string]schema.FieldProfile {
	out := make(map[string]schema.FieldProfile, len(fields))
	col := make([]string, len(rows))
	for i, name := range fields {
		for r, row := range rows {
			if i < len(row) {
				col[r] = row[i]
			} else {
				col[r] = ""
			}
		}
		out[name] = infer.Profile(col)
	}
	return out
}

// align pads or truncates row to n cells.
func align(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

func headRows(rows [][]string, n, width int) [][]string {
	if len(rows) < n {
		n = len(rows)
	}
	out := make([][]string, 0, n)
	for _, r := range rows[:n] {
		out = append(out, align(r, width))
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func emptyResult(fileType, encoding string) schema.SourceAnalysisResult {
	return schema.SourceAnalysisResult{
		FileType:      fileType,
		Encoding:      encoding,
		FieldProfiles: map[string]schema.FieldProfile{},
		SampleFields:  []string{},
		SampleData:    [][]string{},
		DataTypes:     []string{},
		Issues:        []string{},
	}
}
