// Package infer holds the locale-aware literal classification and sampling
// heuristics shared by every source analyzer.
//
// Everything in this package is pure: functions take raw strings or bytes and
// return decisions. File and network access lives in the analyzers that call
// into it (internal/probe, internal/inspect, internal/datasource/postgrest).
//
// The vocabulary produced here is deliberately small:
//
//   - TypeEmpty   blank or whitespace-only token
//   - TypeDate    YYYY-MM-DD or D/D/D
//   - TypeNumeric US or European decimal, optional thousands separators
//   - TypeText    anything else
package infer

import "strings"

// Sampled literal types.
const (
	TypeEmpty   = "empty"
	TypeDate    = "date"
	TypeNumeric = "numeric"
	TypeText    = "text"
)

// Classify returns the literal type of a single cell.
//
// Date detection runs before numeric detection, so "2024-01-15" is a date and
// never numeric. Booleans ("true"/"false") are text.
func Classify(token string) string {
	v := strings.TrimSpace(token)
	switch {
	case v == "":
		return TypeEmpty
	case IsDate(v):
		return TypeDate
	case IsNumeric(v):
		return TypeNumeric
	default:
		return TypeText
	}
}

// ClassifyRow classifies each cell of row in order.
func ClassifyRow(row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = Classify(v)
	}
	return out
}

// IsNumeric reports whether v looks like a number in either US ("1,234.56")
// or European ("1.234,56") notation.
//
// Rules, applied after trimming and stripping leading '-' characters:
//   - only '.' present: digits once all dots are removed
//   - only ',' present: digits once all commas are removed
//   - both present: digits once commas are removed and then dots, or the
//     other way round (either reading is accepted)
//   - neither: plain digits
//
// Separator positions are not validated, so "1.2.3" and "12,34,5" are numeric.
// "1.234" stays ambiguous between a US decimal and a European integer; the
// profiler resolves that separately (see NormalizeNumber).
func IsNumeric(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	t := strings.TrimLeft(v, "-")

	hasDot := strings.Contains(t, ".")
	hasComma := strings.Contains(t, ",")

	switch {
	case hasDot && !hasComma:
		return allDigits(strings.ReplaceAll(t, ".", ""))
	case hasComma && !hasDot:
		return allDigits(strings.ReplaceAll(t, ",", ""))
	case hasComma && hasDot:
		if allDigits(strings.ReplaceAll(strings.ReplaceAll(t, ",", ""), ".", "")) {
			return true
		}
		return allDigits(strings.ReplaceAll(strings.ReplaceAll(t, ".", ""), ",", ""))
	default:
		return allDigits(t)
	}
}

// IsDate reports whether v is an ISO date (4-digit year, 1-2 digit month and
// day) or three slash-separated digit groups. Calendar validity is not checked
// and D/M vs M/D order is not resolved.
func IsDate(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}

	if strings.Contains(v, "-") {
		parts := strings.Split(v, "-")
		if len(parts) == 3 && allDigits(parts[0]) && allDigits(parts[1]) && allDigits(parts[2]) {
			if len(parts[0]) == 4 && len(parts[1]) <= 2 && len(parts[2]) <= 2 {
				return true
			}
		}
	}

	if strings.Contains(v, "/") {
		parts := strings.Split(v, "/")
		if len(parts) == 3 && allDigits(parts[0]) && allDigits(parts[1]) && allDigits(parts[2]) {
			return true
		}
	}

	return false
}

// NumericFormat describes which decimal convention a sample value appears to use.
type NumericFormat struct {
	HasCommaDecimal bool   `json:"has_comma_decimal"`
	HasThousandsSep bool   `json:"has_thousands_sep"`
	Format          string `json:"format"` // "european" or "us"
}

// AnalyzeNumericFormat inspects one sample value. A comma with no dot reads
// as a decimal comma ("european"); both separators present set
// HasThousandsSep.
func AnalyzeNumericFormat(sample string) NumericFormat {
	hasComma := strings.Contains(sample, ",")
	hasDot := strings.Contains(sample, ".")

	f := NumericFormat{
		HasCommaDecimal: hasComma && !hasDot,
		HasThousandsSep: hasComma && hasDot,
		Format:          "us",
	}
	if f.HasCommaDecimal {
		f.Format = "european"
	}
	return f
}

// allDigits reports whether s is non-empty and made only of ASCII digits.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
