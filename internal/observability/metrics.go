// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/trpc"
)

// unknownPath replaces the path label of calls to procedures that do not
// exist, so clients cannot grow the label set.
const unknownPath = "unknown"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trpc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trpc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trpc",
			Name:      "calls_total",
			Help:      "Procedure calls by path, type and result code.",
		},
		[]string{"path", "type", "code"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trpc",
			Name:      "call_duration_seconds",
			Help:      "Procedure call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "type"},
	)
	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trpc",
			Name:      "batch_size",
			Help:      "Calls per inbound request.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"transport"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, callsTotal, callDuration, batchSize)
	})
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCall(path string, kind trpc.Kind, code trpc.Code, duration time.Duration) {
	RegisterMetrics()
	if code == trpc.CodeNotFound {
		path = unknownPath
	}
	codeLabel := string(code)
	if codeLabel == "" {
		codeLabel = "OK"
	}
	callsTotal.WithLabelValues(path, string(kind), codeLabel).Inc()
	callDuration.WithLabelValues(path, string(kind)).Observe(duration.Seconds())
}

func RecordBatch(transport string, size int) {
	RegisterMetrics()
	batchSize.WithLabelValues(transport).Observe(float64(size))
}

// RPCMetrics feeds dispatcher events into the call and batch metrics.
type RPCMetrics struct{}

var _ trpc.Observer = RPCMetrics{}

func (RPCMetrics) ObserveCall(path string, kind trpc.Kind, code trpc.Code, d time.Duration) {
	RecordCall(path, kind, code, d)
}

func (RPCMetrics) ObserveBatch(transport string, size int) {
	RecordBatch(transport, size)
}
