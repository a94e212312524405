// Package metrics exposes request metrics through the OpenTelemetry
// Prometheus exporter.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	export "go.opentelemetry.io/otel/sdk/export/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregator/histogram"
	controller "go.opentelemetry.io/otel/sdk/metric/controller/basic"
	processor "go.opentelemetry.io/otel/sdk/metric/processor/basic"
	selector "go.opentelemetry.io/otel/sdk/metric/selector/simple"
)

const ServiceName = "blog-portal"

type Metrics struct {
	exporter  *prometheus.Exporter
	completed metric.Int64Counter
	duration  metric.Float64ValueRecorder
	events    metric.Int64Counter
}

// New builds the exporter and registers its meter provider globally.
func New() (*Metrics, error) {
	const op = "metrics.New"

	config := prometheus.Config{}
	c := controller.New(
		processor.New(
			selector.NewWithHistogramDistribution(
				histogram.WithExplicitBoundaries(config.DefaultHistogramBoundaries),
			),
			export.CumulativeExportKindSelector(),
			processor.WithMemory(true),
		),
	)
	exporter, err := prometheus.New(config, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	global.SetMeterProvider(exporter.MeterProvider())

	meter := global.Meter(ServiceName)
	m := &Metrics{exporter: exporter}

	m.completed = metric.Must(meter).NewInt64Counter(
		"http/server/completed_count",
		metric.WithDescription("Count of completed requests, by HTTP method, route and response status"),
	)
	m.duration = metric.Must(meter).NewFloat64ValueRecorder(
		"http/server/duration_seconds",
		metric.WithDescription("Request duration, by HTTP method and route"),
	)
	m.events = metric.Must(meter).NewInt64Counter(
		"portal/events_count",
		metric.WithDescription("Count of account and article events, by kind"),
	)

	return m, nil
}

// Handler serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return m.exporter
}

// Middleware counts completed requests. The route label is the chi route
// pattern so ids in paths don't explode the label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		labels := []attribute.KeyValue{
			attribute.String("method", r.Method),
			attribute.String("route", route),
		}
		m.duration.Record(r.Context(), time.Since(start).Seconds(), labels...)
		m.completed.Add(r.Context(), 1, append(labels, attribute.String("status", strconv.Itoa(status)))...)
	})
}

// Event counts a domain event such as "signup" or "article_published".
func (m *Metrics) Event(r *http.Request, kind string) {
	if m == nil {
		return
	}
	m.events.Add(r.Context(), 1, attribute.String("kind", kind))
}
