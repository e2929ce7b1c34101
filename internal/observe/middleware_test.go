package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newOpsServer wires a mux shaped like the voxtutor ops surface behind the
// middleware: a liveness route, a readiness route that fails, and a metrics
// stub. Returns the handler plus the captured telemetry backends.
func newOpsServer(t *testing.T) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return Middleware(m)(mux), reader, exp
}

func TestMiddleware_CorrelationIDOnOpsRoutes(t *testing.T) {
	handler, _, _ := newOpsServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	cid := rec.Header().Get("X-Correlation-ID")
	if cid == "" {
		t.Fatal("no X-Correlation-ID header on /healthz response")
	}
	if len(cid) != 32 {
		t.Errorf("correlation ID length = %d, want 32 hex chars (a trace ID)", len(cid))
	}
}

func TestMiddleware_SpanPerRequest(t *testing.T) {
	handler, _, exp := newOpsServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans recorded = %d, want 1", len(spans))
	}
	if got, want := spans[0].Name, "HTTP GET /healthz"; got != want {
		t.Errorf("span name = %q, want %q", got, want)
	}
}

func TestMiddleware_RequestDurationMetric(t *testing.T) {
	handler, reader, _ := newOpsServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	rm := collect(t, reader)
	met := findMetric(rm, "voxtutor.http.request.duration")
	if met == nil {
		t.Fatal("voxtutor.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data = %T, want Histogram[float64]", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	var method, path string
	for _, kv := range dp.Attributes.ToSlice() {
		switch string(kv.Key) {
		case "method":
			method = kv.Value.AsString()
		case "path":
			path = kv.Value.AsString()
		}
	}
	if method != "GET" || path != "/metrics" {
		t.Errorf("attributes = method %q path %q, want GET /metrics", method, path)
	}
}

func TestMiddleware_RecordsFailingReadinessStatus(t *testing.T) {
	handler, _, exp := newOpsServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("response status = %d, want 503", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans recorded = %d, want 1", len(spans))
	}
	var gotStatus int64
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" {
			gotStatus = a.Value.AsInt64()
		}
	}
	if gotStatus != 503 {
		t.Errorf("span http.response.status_code = %d, want 503", gotStatus)
	}
}

func TestMiddleware_JoinsIncomingW3CTrace(t *testing.T) {
	handler, _, _ := newOpsServer(t)

	// A scraper that already carries a trace should see its trace ID echoed
	// back, not a fresh one.
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want incoming trace ID %q", got, traceID)
	}
}

func TestMiddleware_HandlerSeesCorrelationID(t *testing.T) {
	m, _ := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	var fromContext string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if fromContext == "" {
		t.Fatal("handler context carried no correlation ID")
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != fromContext {
		t.Errorf("header correlation ID %q != context correlation ID %q", got, fromContext)
	}
}
