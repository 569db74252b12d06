package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fieldsearch/internal/index"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	prometheusotel "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instruments holds the otel meters fed by the API and the index engines.
type instruments struct {
	requests       metric.Int64Counter
	requestErrors  metric.Int64Counter
	requestLatency metric.Float64Histogram

	docsAdded     metric.Int64Counter
	docsRejected  metric.Int64Counter
	docsRemoved   metric.Int64Counter
	mutateLatency metric.Float64Histogram

	searches      metric.Int64Counter
	searchHits    metric.Int64Histogram
	searchLatency metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (instruments, error) {
	var (
		ins  instruments
		errs []error
	)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	latency := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		errs = append(errs, err)
		return h
	}

	ins.requests = counter("http_requests_total", "Total HTTP requests")
	ins.requestErrors = counter("http_errors_total", "HTTP requests answered with a 4xx or 5xx status")
	ins.requestLatency = latency("http_request_duration_ms", "Latency of HTTP requests")
	ins.docsAdded = counter("index_documents_total", "Documents added to an index")
	ins.docsRejected = counter("index_document_errors_total", "Documents rejected by an index")
	ins.docsRemoved = counter("index_removals_total", "Documents removed from an index")
	ins.mutateLatency = latency("index_latency_ms", "Latency of index mutations")
	ins.searches = counter("search_requests_total", "Searches executed")
	ins.searchLatency = latency("search_latency_ms", "Latency of searches")

	hits, err := meter.Int64Histogram("search_hits", metric.WithDescription("Documents matched per search"))
	errs = append(errs, err)
	ins.searchHits = hits

	return ins, errors.Join(errs...)
}

// telemetry bridges otel instruments into a private Prometheus registry and
// keeps per-index size gauges. A disabled telemetry records nothing.
type telemetry struct {
	enabled bool
	logger  *slog.Logger

	registry *prometheus.Registry
	handler  http.Handler
	ins      instruments

	documents *prometheus.GaugeVec
	tokens    *prometheus.GaugeVec
}

func newTelemetry(ctx context.Context, logger *slog.Logger, enabled bool) *telemetry {
	t := &telemetry{enabled: enabled, logger: logger}
	if !enabled {
		return t
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheusotel.New(prometheusotel.WithRegisterer(registry))
	if err != nil {
		logger.Error("failed to initialize prometheus exporter", "error", err)
		t.enabled = false
		return t
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	ins, err := newInstruments(provider.Meter("fieldsearch"))
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		t.enabled = false
		return t
	}

	t.documents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fieldsearch",
		Name:      "documents",
		Help:      "Documents currently stored per index",
	}, []string{"index"})
	t.tokens = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fieldsearch",
		Name:      "tokens",
		Help:      "Distinct tokens per index field",
	}, []string{"index", "field"})
	registry.MustRegister(t.documents, t.tokens)

	t.registry = registry
	t.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	t.ins = ins

	// Export the request counter before the first request arrives.
	t.ins.requests.Add(ctx, 0)
	logger.Info("telemetry initialized", "prometheus", true)
	return t
}

func (t *telemetry) recordRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if !t.enabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	t.ins.requests.Add(ctx, 1, attrs)
	t.ins.requestLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if status >= http.StatusBadRequest {
		t.ins.requestErrors.Add(ctx, 1, attrs)
	}
}

// recordIndexing counts one batch of mutations against an index.
func (t *telemetry) recordIndexing(ctx context.Context, indexName string, added, removed, rejected int, duration time.Duration) {
	if !t.enabled {
		return
	}

	attrs := metric.WithAttributes(attribute.String("index", indexName))
	if added > 0 {
		t.ins.docsAdded.Add(ctx, int64(added), attrs)
	}
	if removed > 0 {
		t.ins.docsRemoved.Add(ctx, int64(removed), attrs)
	}
	if rejected > 0 {
		t.ins.docsRejected.Add(ctx, int64(rejected), attrs)
	}
	t.ins.mutateLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (t *telemetry) recordSearch(ctx context.Context, indexName string, hits int, duration time.Duration) {
	if !t.enabled {
		return
	}

	attrs := metric.WithAttributes(attribute.String("index", indexName))
	t.ins.searches.Add(ctx, 1, attrs)
	t.ins.searchHits.Record(ctx, int64(hits), attrs)
	t.ins.searchLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// observeIndex publishes the current size of an index.
func (t *telemetry) observeIndex(indexName string, stats index.IndexStats) {
	if !t.enabled {
		return
	}

	t.documents.WithLabelValues(indexName).Set(float64(stats.Documents))
	for _, field := range stats.Fields {
		t.tokens.WithLabelValues(indexName, field.Field).Set(float64(field.Tokens))
	}
}

// forgetIndex drops the gauges of a deleted index.
func (t *telemetry) forgetIndex(indexName string) {
	if !t.enabled {
		return
	}

	t.documents.DeleteLabelValues(indexName)
	t.tokens.DeletePartialMatch(prometheus.Labels{"index": indexName})
}

func (t *telemetry) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !t.enabled || t.registry == nil {
		respond(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	t.handler.ServeHTTP(w, r)
}

// withTelemetry records every request and, when logRequests is set, logs it.
func withTelemetry(next http.Handler, t *telemetry, logRequests bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		if t == nil {
			return
		}
		t.recordRequest(r.Context(), r.Method, r.URL.Path, recorder.status, duration)
		if logRequests && t.logger != nil {
			t.logger.Info("request completed", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration_ms", duration.Milliseconds())
		}
	})
}
