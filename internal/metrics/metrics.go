// Package metrics defines the backend-neutral interface analysis runs
// report through. Backends live in subpackages (datadog, prompush).
package metrics

import "time"

// Metric names. Backends map these onto their own naming schemes.
const (
	AnalysesTotal           = "contractgen_analyses_total"
	RowsSampledTotal        = "contractgen_rows_sampled_total"
	AnalysisDurationSeconds = "contractgen_analysis_duration_seconds"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives counters and histogram observations.
//
// Flush submits anything buffered; Close releases the backend and flushes
// one last time. Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }

// Analysis is one finished contract generation.
type Analysis struct {
	// Source is the contract kind, e.g. "csv", "database", "api".
	Source   string
	Rows     int
	Duration time.Duration
	Err      error
}

// RecordAnalysis reports a to b. A nil b is treated as Nop.
func RecordAnalysis(b Backend, a Analysis) {
	if b == nil {
		return
	}
	outcome := OutcomeSuccess
	if a.Err != nil {
		outcome = OutcomeError
	}
	b.IncCounter(AnalysesTotal, 1, Labels{"source": a.Source, "outcome": outcome})
	if a.Rows > 0 {
		b.IncCounter(RowsSampledTotal, float64(a.Rows), Labels{"source": a.Source})
	}
	b.ObserveHistogram(AnalysisDurationSeconds, a.Duration.Seconds(), Labels{"source": a.Source})
}

var _ Backend = Nop{}
