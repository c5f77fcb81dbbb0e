// Package datadog submits analysis metrics through the Datadog v2 Metrics
// API.
//
// Observations are buffered in memory and submitted on Flush. A background
// loop flushes on a ticker so long database or Supabase analyses still show
// up as a time series, and Close flushes one final time.
//
// Counters are sent as COUNT series. Durations are reduced to p50, p90,
// p95, p99, max and sample-count GAUGE series per source.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"contractgen/internal/metrics"
)

// DefaultFlushEvery is the ticker period when Options.FlushEvery is unset.
const DefaultFlushEvery = 60 * time.Second

const (
	seriesAnalyses = "contractgen.analyses.total"
	seriesRows     = "contractgen.rows_sampled.total"
	seriesDuration = "contractgen.analysis.duration_seconds"
)

// Options controls the backend.
type Options struct {
	// JobName becomes tag "job:<name>". Defaults to "contract-gen".
	JobName string

	// Tags are extra Datadog tags such as "service:ingest".
	Tags []string

	// FlushEvery defaults to DefaultFlushEvery.
	FlushEvery time.Duration

	// Test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	analyses  map[string]float64 // source\x00outcome -> count
	rows      map[string]float64 // source -> rows
	durations map[string][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// New builds a backend and starts its flush loop.
//
// Credentials and site come from the usual DD_API_KEY, DD_APP_KEY and
// DD_SITE variables via the client's default context. New fails only when
// DD_API_KEY is missing and no submitter was injected; network errors
// surface from Flush.
func New(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "contract-gen"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		if strings.TrimSpace(os.Getenv("DD_API_KEY")) == "" {
			return nil, wrapInitErr(fmt.Errorf("DD_API_KEY is not set"))
		}
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		analyses:   make(map[string]float64),
		rows:       make(map[string]float64),
		durations:  make(map[string][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and flushes what is left. Later calls only
// flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names and non-positive
// deltas are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	source := labelOr(labels, "source")

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.AnalysesTotal:
		b.analyses[sourceOutcomeKey(source, labelOr(labels, "outcome"))] += delta
	case metrics.RowsSampledTotal:
		b.rows[source] += delta
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.AnalysisDurationSeconds {
		return
	}
	source := labelOr(labels, "source")

	b.mu.Lock()
	defer b.mu.Unlock()
	b.durations[source] = append(b.durations[source], value)
}

type snapshot struct {
	analyses  map[string]float64
	rows      map[string]float64
	durations map[string][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.analyses) == 0 && len(s.rows) == 0 && len(s.durations) == 0
}

// snapshotAndReset detaches the buffers under the lock.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{analyses: b.analyses, rows: b.rows, durations: b.durations}
	b.analyses = make(map[string]float64)
	b.rows = make(map[string]float64)
	b.durations = make(map[string][]float64)
	return s
}

// Flush submits buffered metrics. Buffers are reset even when submission
// fails. Nothing is sent when nothing was recorded.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// buildSeries is deterministic: keys are visited in sorted order.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.analyses)+len(s.rows)+6*len(s.durations))

	for _, k := range sortedKeys(s.analyses) {
		source, outcome := splitSourceOutcomeKey(k)
		tags := withTags(b.baseTags, "source:"+source, "outcome:"+outcome)
		series = append(series, countSeries(seriesAnalyses, s.analyses[k], tags, nowUnix))
	}
	for _, source := range sortedKeys(s.rows) {
		series = append(series, countSeries(seriesRows, s.rows[source], withTags(b.baseTags, "source:"+source), nowUnix))
	}
	for _, source := range sortedKeys(s.durations) {
		addPercentiles(&series, withTags(b.baseTags, "source:"+source), seriesDuration, s.durations[source], nowUnix)
	}
	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges. samples is
// not modified.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, prefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(prefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(prefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(prefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(prefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(prefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(prefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_COUNT, value, tags, nowUnix)
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_GAUGE, value, tags, nowUnix)
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func labelOr(l metrics.Labels, key string) string {
	if v := l[key]; v != "" {
		return v
	}
	return "unknown"
}

func sourceOutcomeKey(source, outcome string) string {
	return source + "\x00" + outcome
}

func splitSourceOutcomeKey(k string) (source, outcome string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

// ParseTagsCSV splits "env:prod,service:ingest" into tags, dropping blanks.
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}

var _ metrics.Backend = (*Backend)(nil)
