package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"contractgen/internal/infer"
	csvparser "contractgen/internal/parser/csv"
	"contractgen/internal/schema"
)

// AnalyzeCSV analyzes a delimited text file.
//
// Steps:
//   - detect (or take) the encoding and decode the whole file
//   - strip a leading BOM, recording an issue
//   - sniff (or take) the delimiter over the first lines
//   - parse every record; decide whether the first one is a header
//   - reconcile types and profile fields over the first SampleSize data rows
//
// Edge cases:
//   - an empty or whitespace-only file yields has_header=false, no fields,
//     total_rows=0 and the issue "File is empty"
//   - the first row is treated as data (and fields are named column_1..N)
//     when any of its cells is numeric or a date
//   - blank header cells are named column_<position>
//   - repeated header names get a _2, _3, ... suffix and an issue
//   - rows shorter or longer than the header are padded or truncated for
//     inference; the count of such rows is reported as an issue
func AnalyzeCSV(ctx context.Context, path string, opt Options) (schema.SourceAnalysisResult, error) {
	log := opt.logger()

	text, encoding, err := load(ctx, path, opt)
	if err != nil {
		return schema.SourceAnalysisResult{}, err
	}

	res := emptyResult(FileTypeCSV, encoding)
	res.HasHeader = boolPtr(false)
	res.Delimiter = string(infer.DefaultDelimiter)

	text, hadBOM := stripBOM(text)
	if hadBOM {
		res.Issues = append(res.Issues, IssueBOMRemoved)
	}

	if strings.TrimSpace(text) == "" {
		res.Issues = append(res.Issues, IssueEmptyFile)
		return res, nil
	}

	delim := opt.Delimiter
	if delim == 0 {
		delim = infer.DetectDelimiter(text)
	}
	res.Delimiter = string(delim)

	var malformed []int
	records, err := csvparser.ReadAll(ctx, strings.NewReader(text), csvparser.Options{
		Comma:      delim,
		LazyQuotes: true,
	}, func(line int, err error) {
		malformed = append(malformed, line)
		log.Debug("skipping malformed csv record", zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return schema.SourceAnalysisResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(malformed) > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("Skipped %d malformed rows (first at record %d)", len(malformed), malformed[0]))
	}
	if len(records) == 0 {
		res.Issues = append(res.Issues, IssueEmptyFile)
		return res, nil
	}

	first := records[0]
	hasHeader := looksLikeHeader(first)
	res.HasHeader = boolPtr(hasHeader)

	fields := make([]string, len(first))
	data := records
	if hasHeader {
		for i, h := range first {
			h = strings.TrimSpace(h)
			if h == "" {
				h = "column_" + strconv.Itoa(i+1)
			}
			fields[i] = h
		}
		if renamed := dedupeNames(fields); len(renamed) > 0 {
			res.Issues = append(res.Issues, "Duplicate column names renamed: "+strings.Join(renamed, ", "))
		}
		data = records[1:]
	} else {
		for i := range first {
			fields[i] = "column_" + strconv.Itoa(i+1)
		}
	}

	ragged := 0
	for _, row := range data {
		if len(row) != len(fields) {
			ragged++
		}
	}
	if ragged > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d rows have a different number of fields than expected (%d)", ragged, len(fields)))
	}

	sample := data
	if n := opt.sampleSize(); len(sample) > n {
		sample = sample[:n]
	}

	res.TotalRows = len(data)
	res.SampleFields = fields
	res.DataTypes = infer.Reconcile(sample, len(fields))
	res.FieldProfiles = profiles(fields, sample)
	res.Issues = append(res.Issues, decimalCommaIssues(fields, res.DataTypes, sample)...)
	res.SampleData = headRows(data, SampleDataRows, len(fields))

	log.Debug("csv analyzed",
		zap.String("path", path),
		zap.String("delimiter", res.Delimiter),
		zap.Bool("has_header", hasHeader),
		zap.Int("total_rows", res.TotalRows),
		zap.Int("sampled", len(sample)),
	)
	return res, nil
}

// dedupeNames renames repeated entries of names in place, keeping the first
// occurrence and suffixing later ones with the lowest free _N. It returns
// "old -> new" for every rename.
func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	first := make(map[string]bool, len(names))
	var renamed []string
	for i, n := range names {
		if !first[n] {
			first[n] = true
			continue
		}
		k := 2
		for seen[n+"_"+strconv.Itoa(k)] {
			k++
		}
		names[i] = n + "_" + strconv.Itoa(k)
		seen[names[i]] = true
		first[names[i]] = true
		renamed = append(renamed, n+" -> "+names[i])
	}
	return renamed
}

// decimalCommaIssues names the numeric columns whose sampled values use a
// comma as the decimal separator.
func decimalCommaIssues(fields, types []string, rows [][]string) []string {
	var issues []string
	for i, name := range fields {
		if i >= len(types) || types[i] != infer.TypeNumeric {
			continue
		}
		for _, row := range rows {
			if i < len(row) && infer.AnalyzeNumericFormat(strings.TrimSpace(row[i])).HasCommaDecimal {
				issues = append(issues, fmt.Sprintf("Column '%s' uses comma as decimal separator (european format)", name))
				break
			}
		}
	}
	return issues
}

// looksLikeHeader reports whether row reads as column names: no cell may be
// numeric or a date.
func looksLikeHeader(row []string) bool {
	for _, c := range row {
		switch infer.Classify(c) {
		case infer.TypeNumeric, infer.TypeDate:
			return false
		}
	}
	return true
}
