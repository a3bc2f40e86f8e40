// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package metrics exposes the Prometheus instruments. All instruments are
// registered on the default registry via promauto; the /metrics endpoint
// serves them through promhttp.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivum_uploads_total",
			Help: "Uploaded files by media kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "ok", "duplicate", "error"
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archivum_upload_bytes_total",
			Help: "Total bytes of accepted original files",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archivum_job_duration_seconds",
			Help:    "Duration of pipeline jobs in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"job"}, // "preview", "embedding", "faces"
	)

	JobFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivum_job_failures_total",
			Help: "Pipeline job executions that returned an error",
		},
		[]string{"job"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archivum_search_duration_seconds",
			Help:    "End-to-end search request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archivum_search_results",
			Help:    "Result count per search after permission filtering",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	RedactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivum_redactions_total",
			Help: "Preview redaction operations",
		},
		[]string{"action"}, // "blur", "unblur"
	)

	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivum_authz_decisions_total",
			Help: "Authorization decisions by outcome",
		},
		[]string{"allowed"},
	)
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveJob records one pipeline job execution.
func ObserveJob(job string, d time.Duration, err error) {
	JobDuration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		JobFailures.WithLabelValues(job).Inc()
	}
}

// RecordAuthzDecision counts an allow/deny outcome.
func RecordAuthzDecision(allowed bool) {
	AuthzDecisions.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}
