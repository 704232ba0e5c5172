// Package metrics provides Prometheus metrics for the pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "textract_csv"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for the pipeline
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Analysis output metrics
	BlocksFetchedTotal prometheus.Counter
	ResultPagesTotal   prometheus.Counter
	PagesEmittedTotal  prometheus.Counter
	CellsEmittedTotal  prometheus.Counter
	CSVBytesTotal      prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Queue metrics
	TasksEnqueuedTotal *prometheus.CounterVec
}

// New registers every metric on reg. A nil reg gets a fresh registry with
// the Go and process collectors attached.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of pipeline operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of pipeline operations in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	m.BlocksFetchedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_fetched_total",
		Help:      "Total number of layout blocks fetched from analysis results",
	})

	m.ResultPagesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "result_pages_fetched_total",
		Help:      "Total number of analysis result pages fetched",
	})

	m.PagesEmittedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "document_pages_emitted_total",
		Help:      "Total number of document pages written to CSV",
	})

	m.CellsEmittedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cells_emitted_total",
		Help:      "Total number of table cells written to CSV",
	})

	m.CSVBytesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "csv_bytes_total",
		Help:      "Total bytes of CSV written to the object store",
	})

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being served",
	})

	m.TasksEnqueuedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_enqueued_total",
			Help:      "Total number of tasks handed to the queue",
		},
		[]string{"type", "status"},
	)

	return m
}

// Registry returns the registry the metrics were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOperation records one pipeline operation with its outcome.
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordResult records the size of one reconstructed document.
func (m *Metrics) RecordResult(resultPages, blocks, pages, cells, bytes int) {
	m.ResultPagesTotal.Add(float64(resultPages))
	m.BlocksFetchedTotal.Add(float64(blocks))
	m.PagesEmittedTotal.Add(float64(pages))
	m.CellsEmittedTotal.Add(float64(cells))
	m.CSVBytesTotal.Add(float64(bytes))
}

func (m *Metrics) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordEnqueue(taskType string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.TasksEnqueuedTotal.WithLabelValues(taskType, status).Inc()
}
