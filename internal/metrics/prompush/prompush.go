// Package prompush exposes analysis metrics to Prometheus through a
// Pushgateway. A CLI run is too short to be scraped, so observations are
// kept in a private registry and pushed on Flush.
package prompush

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"contractgen/internal/metrics"
)

const (
	// DefaultURL is used when Options.URL is empty.
	DefaultURL = "http://localhost:9091"
	// DefaultJob is used when Options.Job is empty.
	DefaultJob = "contract-gen"
)

// Options configure the backend.
type Options struct {
	URL string
	Job string
	// Grouping adds grouping-key labels to the push URL.
	Grouping   map[string]string
	HTTPClient *http.Client
}

// Backend implements metrics.Backend on a Prometheus registry.
type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	analyses *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the analysis collectors and prepares the pusher.
func New(opts Options) (*Backend, error) {
	url := strings.TrimRight(opts.URL, "/")
	if url == "" {
		url = DefaultURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("prompush: invalid pushgateway URL %q", opts.URL)
	}
	job := opts.Job
	if job == "" {
		job = DefaultJob
	}

	b := &Backend{
		reg: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.AnalysesTotal,
				Help: "Number of contract analyses by source kind and outcome",
			},
			[]string{"source", "outcome"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsSampledTotal,
				Help: "Rows read while sampling sources",
			},
			[]string{"source"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.AnalysisDurationSeconds,
				Help:    "Contract analysis latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"source"},
		),
	}
	b.reg.MustRegister(b.analyses, b.rows, b.duration)

	p := push.New(url, job).Gatherer(b.reg)
	for k, v := range opts.Grouping {
		p = p.Grouping(k, v)
	}
	if opts.HTTPClient != nil {
		p = p.Client(opts.HTTPClient)
	}
	b.pusher = p
	return b, nil
}

// Registry exposes the collectors, mainly for tests.
func (b *Backend) Registry() *prometheus.Registry { return b.reg }

// IncCounter implements metrics.Backend. Unknown names and negative deltas
// are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta < 0 {
		return
	}
	switch name {
	case metrics.AnalysesTotal:
		b.analyses.WithLabelValues(labels["source"], labels["outcome"]).Add(delta)
	case metrics.RowsSampledTotal:
		b.rows.WithLabelValues(labels["source"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.AnalysisDurationSeconds {
		return
	}
	b.duration.WithLabelValues(labels["source"]).Observe(value)
}

// Flush replaces the job's metric group on the Pushgateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}

// Close pushes one final time.
func (b *Backend) Close() error { return b.Flush() }

var _ metrics.Backend = (*Backend)(nil)
