// Package observe provides application-wide observability primitives for
// voxtutor: OpenTelemetry metrics, distributed tracing, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxtutor metrics.
const meterName = "github.com/studyloop/voxtutor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks how long the live channel takes to open,
	// including retries.
	ConnectDuration metric.Float64Histogram

	// SessionDuration tracks the wall-clock length of completed tutoring
	// sessions.
	SessionDuration metric.Float64Histogram

	// --- Throughput counters ---

	// CaptureFrames counts microphone frames forwarded to the channel.
	CaptureFrames metric.Int64Counter

	// PlaybackChunks counts synthesised audio chunks scheduled for playback.
	PlaybackChunks metric.Int64Counter

	// TranscriptLines counts completed transcript lines. Use with attribute:
	//   attribute.String("sender", ...)
	TranscriptLines metric.Int64Counter

	// Interruptions counts barge-ins (user speaking over the tutor).
	Interruptions metric.Int64Counter

	// --- Error counters ---

	// ChunkErrors counts per-chunk failures that were contained and skipped.
	// Use with attribute: attribute.String("kind", "decode"|"encode")
	ChunkErrors metric.Int64Counter

	// SessionErrors counts sessions that ended in a fatal error. Use with
	// attribute: attribute.String("kind", "permission"|"connection")
	SessionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live tutoring sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for the
// connect histogram.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// sessionBuckets defines histogram bucket boundaries (in seconds) for
// session lifetimes, which run from seconds to the provider's 15 minute cap.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 900, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("voxtutor.connect.duration",
		metric.WithDescription("Time to open the live channel, including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("voxtutor.session.duration",
		metric.WithDescription("Wall-clock length of completed tutoring sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}

	// Throughput counters.
	if met.CaptureFrames, err = m.Int64Counter("voxtutor.capture.frames",
		metric.WithDescription("Microphone frames forwarded to the live channel."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackChunks, err = m.Int64Counter("voxtutor.playback.chunks",
		metric.WithDescription("Synthesised audio chunks scheduled for playback."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptLines, err = m.Int64Counter("voxtutor.transcript.lines",
		metric.WithDescription("Completed transcript lines by sender."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("voxtutor.interruptions",
		metric.WithDescription("Barge-ins where the user spoke over the tutor."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ChunkErrors, err = m.Int64Counter("voxtutor.chunk.errors",
		metric.WithDescription("Contained per-chunk failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("voxtutor.session.errors",
		metric.WithDescription("Sessions ended by a fatal error, by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxtutor.active_sessions",
		metric.WithDescription("Number of live tutoring sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxtutor.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordChunkError records one contained per-chunk failure.
func (m *Metrics) RecordChunkError(ctx context.Context, kind string) {
	m.ChunkErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSessionError records one fatal session error.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordTranscriptLine records one completed transcript line.
func (m *Metrics) RecordTranscriptLine(ctx context.Context, sender string) {
	m.TranscriptLines.Add(ctx, 1,
		metric.WithAttributes(attribute.String("sender", sender)),
	)
}
