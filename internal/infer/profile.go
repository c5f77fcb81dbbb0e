package infer

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"contractgen/internal/schema"
)

// SampleValueLimit caps FieldProfile.SampleValues.
const SampleValueLimit = 5

// Profile computes null, distinct, min/max and sample statistics for one
// field's sampled values.
//
// Edge cases:
//   - empty input yields a zero profile
//   - a value is null when it is empty or whitespace-only
//   - min/max are numeric (rendered as strings) only when every non-null value
//     parses after NormalizeNumber; otherwise they are the lexicographic
//     min/max of the trimmed values
//   - SampleValues are the first SampleValueLimit distinct values in
//     lexicographic order, even for numeric fields ("10" sorts before "2")
func Profile(values []string) schema.FieldProfile {
	p := schema.FieldProfile{SampleValues: []any{}}
	total := len(values)
	if total == 0 {
		return p
	}

	nonNull := make([]string, 0, total)
	distinct := make(map[string]struct{}, total)
	for _, v := range values {
		t := strings.TrimSpace(v)
		if t == "" {
			p.NullCount++
			continue
		}
		nonNull = append(nonNull, t)
		distinct[t] = struct{}{}
	}

	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p.NullPercentage = NullPercentage(p.NullCount, total)
	p.DistinctCount = len(keys)

	if lo, hi, ok := minMax(nonNull); ok {
		p.MinValue = lo
		p.MaxValue = hi
	}

	for i := 0; i < len(keys) && i < SampleValueLimit; i++ {
		p.SampleValues = append(p.SampleValues, keys[i])
	}
	return p
}

// NullPercentage returns nullCount/total*100 rounded to two decimals, or 0
// when total is zero.
func NullPercentage(nullCount, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(nullCount)/float64(total)*100*100) / 100
}

// NormalizeNumber rewrites a locale-formatted number into dot-decimal form so
// it can be parsed with strconv.ParseFloat.
//
//   - both ',' and '.': the rightmost one is the decimal separator, the other
//     is stripped ("1.234,56" -> "1234.56", "1,234.56" -> "1234.56")
//   - only ',': a single comma within the last three characters is a decimal
//     separator ("125,50" -> "125.50"); otherwise commas are thousands
//     separators ("1,234,567" -> "1234567")
//   - only '.': kept as a decimal when there is exactly one dot or the last dot
//     sits within the last three characters ("1.234" stays "1.234"); otherwise
//     dots are thousands separators ("1.234.567" -> "1234567")
func NormalizeNumber(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}

	hasComma := strings.Contains(v, ",")
	hasDot := strings.Contains(v, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(v, ",") > strings.LastIndex(v, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(v, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(v, ",", "")
	case hasComma:
		if strings.Count(v, ",") == 1 && len(v)-strings.LastIndex(v, ",") <= 3 {
			return strings.ReplaceAll(v, ",", ".")
		}
		return strings.ReplaceAll(v, ",", "")
	case hasDot:
		if strings.Count(v, ".") == 1 || len(v)-strings.LastIndex(v, ".") <= 3 {
			return v
		}
		return strings.ReplaceAll(v, ".", "")
	default:
		return v
	}
}

// FormatNumber renders f the way numeric profile bounds have always been
// written: integral values keep a trailing ".0", very large or very small
// magnitudes use exponent notation.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func minMax(values []string) (lo, hi string, ok bool) {
	if len(values) == 0 {
		return "", "", false
	}

	nums := make([]float64, 0, len(values))
	numeric := true
	for _, v := range values {
		clean := NormalizeNumber(v)
		if clean == "" {
			continue
		}
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			numeric = false
			break
		}
		nums = append(nums, f)
	}

	if numeric {
		if len(nums) == 0 {
			return "", "", false
		}
		mn, mx := nums[0], nums[0]
		for _, f := range nums[1:] {
			mn = math.Min(mn, f)
			mx = math.Max(mx, f)
		}
		return FormatNumber(mn), FormatNumber(mx), true
	}

	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}
