// Package observe provides observability primitives for the meeting pipeline:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/notulaai/notula"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CaptureDuration tracks time spent in a meeting (join to keep-alive end).
	CaptureDuration metric.Float64Histogram

	// ASRDuration tracks post-hoc transcription latency.
	ASRDuration metric.Float64Histogram

	// SummarizeDuration tracks the summarizer pipeline latency.
	SummarizeDuration metric.Float64Histogram

	// IndexDuration tracks vector indexing latency.
	IndexDuration metric.Float64Histogram

	// --- Counters ---

	// CaptionFinalizations counts finalized caption utterances.
	CaptionFinalizations metric.Int64Counter

	// WakeEvents counts wake-phrase detections.
	WakeEvents metric.Int64Counter

	// BargeIns counts playback preemptions caused by a human speaking.
	BargeIns metric.Int64Counter

	// Jobs counts completed meeting jobs. Use with attribute:
	//   attribute.String("status", ...)
	Jobs metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks the number of meeting jobs currently running.
	ActiveJobs metric.Int64UpDownCounter
}

// stageBuckets defines histogram bucket boundaries (in seconds). Capture runs
// for minutes while post-processing stages take seconds, so the range is wide.
var stageBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CaptureDuration, err = m.Float64Histogram("notula.capture.duration",
		metric.WithDescription("Time spent capturing a meeting."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ASRDuration, err = m.Float64Histogram("notula.asr.duration",
		metric.WithDescription("Latency of post-hoc transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummarizeDuration, err = m.Float64Histogram("notula.summarize.duration",
		metric.WithDescription("Latency of the summarizer pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IndexDuration, err = m.Float64Histogram("notula.index.duration",
		metric.WithDescription("Latency of vector indexing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CaptionFinalizations, err = m.Int64Counter("notula.captions.finalizations",
		metric.WithDescription("Total finalized caption utterances."),
	); err != nil {
		return nil, err
	}
	if met.WakeEvents, err = m.Int64Counter("notula.agent.wake_events",
		metric.WithDescription("Total wake-phrase detections."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("notula.agent.barge_ins",
		metric.WithDescription("Total playback preemptions by a human speaker."),
	); err != nil {
		return nil, err
	}
	if met.Jobs, err = m.Int64Counter("notula.jobs",
		metric.WithDescription("Total completed meeting jobs by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("notula.active_jobs",
		metric.WithDescription("Number of meeting jobs currently running."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStage records d into the named stage histogram. Unknown stages are
// ignored. Nil-safe so components can run without wired metrics.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	var h metric.Float64Histogram
	switch stage {
	case "capture":
		h = m.CaptureDuration
	case "asr":
		h = m.ASRDuration
	case "summarize":
		h = m.SummarizeDuration
	case "index":
		h = m.IndexDuration
	default:
		return
	}
	h.Record(ctx, d.Seconds())
}

// RecordJob records a completed job with its status attribute. Nil-safe.
func (m *Metrics) RecordJob(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Jobs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// JobStarted increments the active-jobs gauge. Nil-safe.
func (m *Metrics) JobStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveJobs.Add(ctx, 1)
}

// JobFinished decrements the active-jobs gauge. Nil-safe.
func (m *Metrics) JobFinished(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveJobs.Add(ctx, -1)
}

// RecordFinalization increments the caption finalization counter. Nil-safe.
func (m *Metrics) RecordFinalization(ctx context.Context) {
	if m == nil {
		return
	}
	m.CaptionFinalizations.Add(ctx, 1)
}

// RecordWake increments the wake-event counter. Nil-safe.
func (m *Metrics) RecordWake(ctx context.Context) {
	if m == nil {
		return
	}
	m.WakeEvents.Add(ctx, 1)
}

// RecordBargeIn increments the barge-in counter. Nil-safe.
func (m *Metrics) RecordBargeIn(ctx context.Context) {
	if m == nil {
		return
	}
	m.BargeIns.Add(ctx, 1)
}
