package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractgen/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func quietOptions(fs *fakeSubmitter) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}

	in := errors.New("boom")
	got := wrapInitErr(in)
	if got == nil {
		t.Fatalf("wrapInitErr(err)=nil, want non-nil")
	}
	if !strings.Contains(got.Error(), "datadog metrics init:") {
		t.Fatalf("wrapInitErr prefix missing: %v", got)
	}
	if !errors.Is(got, in) {
		t.Fatalf("wrapInitErr did not wrap original error: got=%v", got)
	}
}

func TestSourceOutcomeKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		outcome string
	}{
		{name: "normal", source: "csv", outcome: "success"},
		{name: "empty_source", source: "", outcome: "error"},
		{name: "both_empty", source: "", outcome: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			source, outcome := splitSourceOutcomeKey(sourceOutcomeKey(tc.source, tc.outcome))
			if source != tc.source || outcome != tc.outcome {
				t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", source, outcome, tc.source, tc.outcome)
			}
		})
	}

	t.Run("split_without_separator_defaults_unknown_outcome", func(t *testing.T) {
		source, outcome := splitSourceOutcomeKey("no-sep")
		if source != "no-sep" || outcome != "unknown" {
			t.Fatalf("splitSourceOutcomeKey()=(%q,%q)", source, outcome)
		}
	})
}

func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:cg"}
	got := withTags(base, "source:csv", "outcome:success")
	want := []string{"env:test", "job:cg", "source:csv", "outcome:success"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

func TestGaugeAndCountSeries(t *testing.T) {
	now := int64(1234567)

	g := gaugeSeries("contractgen.test", 3.14, []string{"env:test"}, now)
	require.NotNil(t, g.Type)
	assert.Equal(t, datadogV2.METRICINTAKETYPE_GAUGE, *g.Type)
	require.Len(t, g.Points, 1)
	assert.Equal(t, now, *g.Points[0].Timestamp)
	assert.Equal(t, 3.14, *g.Points[0].Value)

	c := countSeries("contractgen.test", 2, nil, now)
	require.NotNil(t, c.Type)
	assert.Equal(t, datadogV2.METRICINTAKETYPE_COUNT, *c.Type)
}

func TestAddPercentiles(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"source:csv"}, seriesDuration, in, 999)

	require.Len(t, series, 6)
	assert.Equal(t, orig, in, "input must not be sorted in place")

	byName := map[string]float64{}
	for _, s := range series {
		byName[s.Metric] = *s.Points[0].Value
		assert.Contains(t, s.Tags, "source:csv")
	}
	assert.Equal(t, 3.0, byName[seriesDuration+".p50"])
	assert.Equal(t, 5.0, byName[seriesDuration+".max"])
	assert.Equal(t, 5.0, byName[seriesDuration+".samples"])
}

func TestNew_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := quietOptions(fs)
	opts.JobName = ""
	opts.FlushEvery = 0
	opts.Tags = []string{"service:ingest"}

	b, err := New(context.Background(), opts)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	assert.Contains(t, b.baseTags, "job:contract-gen")
	assert.Contains(t, b.baseTags, "service:ingest")
	assert.Equal(t, DefaultFlushEvery, b.flushEvery)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("DD_API_KEY", "")

	_, err := New(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datadog metrics init: DD_API_KEY is not set")
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := New(context.Background(), quietOptions(fs))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	metrics.RecordAnalysis(b, metrics.Analysis{Source: "csv", Rows: 40, Duration: 500 * time.Millisecond})
	metrics.RecordAnalysis(b, metrics.Analysis{Source: "csv", Rows: 60, Duration: 1500 * time.Millisecond})
	metrics.RecordAnalysis(b, metrics.Analysis{Source: "database", Err: errors.New("down")})

	require.NoError(t, b.Flush())
	require.Equal(t, 1, fs.count())

	assert.Empty(t, b.analyses)
	assert.Empty(t, b.rows)
	assert.Empty(t, b.durations)

	payload, ok := fs.last()
	require.True(t, ok)

	type key struct{ metric, tag string }
	got := map[key]float64{}
	for _, s := range payload.Series {
		got[key{s.Metric, strings.Join(s.Tags[2:], ",")}] = *s.Points[0].Value
		assert.Equal(t, []string{"job:job1"}, s.Tags[1:2])
	}

	assert.Equal(t, 2.0, got[key{seriesAnalyses, "source:csv,outcome:success"}])
	assert.Equal(t, 1.0, got[key{seriesAnalyses, "source:database,outcome:error"}])
	assert.Equal(t, 100.0, got[key{seriesRows, "source:csv"}])
	assert.Equal(t, 1.5, got[key{seriesDuration + ".max", "source:csv"}])
	assert.Equal(t, 2.0, got[key{seriesDuration + ".samples", "source:csv"}])
	assert.Equal(t, 1.0, got[key{seriesDuration + ".samples", "source:database"}])
	_, hasDBRows := got[key{seriesRows, "source:database"}]
	assert.False(t, hasDBRows)
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := New(context.Background(), quietOptions(fs))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, b.Flush())
	assert.Equal(t, 0, fs.count())
}

func TestFlush_SubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403 Forbidden")}
	b, err := New(context.Background(), quietOptions(fs))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.AnalysesTotal, 1, metrics.Labels{"source": "csv", "outcome": "success"})
	err = b.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datadog submit: 403 Forbidden")

	// Buffers were reset anyway.
	assert.Empty(t, b.analyses)
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := New(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	require.NoError(t, err)

	b.IncCounter(metrics.AnalysesTotal, 1, metrics.Labels{"source": "json", "outcome": "success"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.AnalysesTotal, 1, metrics.Labels{"source": "json", "outcome": "success"})
	require.NoError(t, b.Close())
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}

	// A second Close must not panic.
	require.NoError(t, b.Close())
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := New(context.Background(), quietOptions(fs))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 500

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				metrics.RecordAnalysis(b, metrics.Analysis{Source: "supabase", Rows: 1, Duration: time.Millisecond})
			}
		}()
	}
	wg.Wait()

	b.mu.Lock()
	total := b.analyses[sourceOutcomeKey("supabase", metrics.OutcomeSuccess)]
	b.mu.Unlock()
	assert.Equal(t, float64(workers*iters), total)

	require.NoError(t, b.Flush())
	assert.Equal(t, 1, fs.count())
}

func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := New(context.Background(), quietOptions(fs))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.AnalysesTotal, 0, metrics.Labels{"source": "csv"})
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.AnalysisDurationSeconds, -1, metrics.Labels{"source": "csv"})
	b.ObserveHistogram("unknown_seconds", 1, nil)
	// Missing labels fall back to "unknown".
	b.IncCounter(metrics.AnalysesTotal, 1, metrics.Labels{})

	require.NoError(t, b.Flush())
	payload, ok := fs.last()
	require.True(t, ok)
	require.Len(t, payload.Series, 1)
	assert.Equal(t, seriesAnalyses, payload.Series[0].Metric)
	assert.Contains(t, payload.Series[0].Tags, "source:unknown")
	assert.Contains(t, payload.Series[0].Tags, "outcome:unknown")
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,service:ingest,  ,team:data ", want: []string{"env:prod", "service:ingest", "team:data"}},
		{name: "single_tag", in: "service:ingest", want: []string{"service:ingest"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
