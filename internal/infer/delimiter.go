package infer

import (
	"bufio"
	"strings"
)

// DefaultDelimiter is returned when no candidate separates the sample into
// consistent multi-column lines.
const DefaultDelimiter = ','

// DelimiterCandidates lists the separators DetectDelimiter considers, in
// tie-break priority order.
var DelimiterCandidates = []rune{',', ';', '\t', '|'}

// sniffLines bounds how many non-blank lines (header included) are inspected.
const sniffLines = 11

// DetectDelimiter picks the field separator for decoded CSV text.
//
// Each candidate splits every sampled line without regard to quoting. The
// candidate's score is the number of lines agreeing on the most common field
// count, counted only when that count is greater than one. The highest score
// wins and ties go to the earlier candidate, so comma wins a draw.
//
// Free-text cells containing commas inside a semicolon file make the comma
// split land on varying counts (and a header without commas splits into one
// field), so comma scores below semicolon there.
//
// Edge cases:
//   - empty text or single-column text returns DefaultDelimiter
//   - the result depends only on the first sniffLines non-blank lines, so
//     repeated calls over the same text agree
func DetectDelimiter(text string) rune {
	lines := sampleLines(text, sniffLines)
	if len(lines) == 0 {
		return DefaultDelimiter
	}

	best := DefaultDelimiter
	bestScore := 0
	for _, cand := range DelimiterCandidates {
		score := consistency(lines, cand)
		if score > bestScore {
			best = cand
			bestScore = score
		}
	}
	return best
}

// consistency returns how many lines share the modal field count for delim,
// or 0 when that modal count is 1.
func consistency(lines []string, delim rune) int {
	counts := make(map[int]int, len(lines))
	order := make([]int, 0, len(lines))
	sep := string(delim)
	for _, ln := range lines {
		n := strings.Count(ln, sep) + 1
		if _, seen := counts[n]; !seen {
			order = append(order, n)
		}
		counts[n]++
	}

	modal, freq := 0, 0
	for _, n := range order {
		if counts[n] > freq {
			modal, freq = n, counts[n]
		}
	}
	if modal <= 1 {
		return 0
	}
	return freq
}

func sampleLines(text string, limit int) []string {
	out := make([]string, 0, limit)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() && len(out) < limit {
		ln := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		out = append(out, ln)
	}
	return out
}
