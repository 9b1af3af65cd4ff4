// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes the forecaster's internal counters as Prometheus metrics,
// grounded on the instrumentation idiom in 99souls-ariadne's telemetry/metrics
// package: one registry, one set of named vectors, a handler for /metrics. Every
// non-fatal error path named in spec.md §7 increments a counter here instead of (or
// in addition to) being merely logged.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide Prometheus registry. A package-level singleton mirrors
// ariadne's NewPrometheusProvider(Registry: nil) default-to-package-registry pattern,
// simplified since this process needs exactly one registry, never several isolated ones.
var Registry = prometheus.NewRegistry()

var (
	DroppedPackets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ttsam_wavebuffer_dropped_packets_total",
		Help: "Waveform packets dropped by the wave buffer, by reason.",
	}, []string{"reason"})

	GapResyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ttsam_wavebuffer_gap_resyncs_total",
		Help: "Channel ring resets caused by a large forward timestamp jump.",
	}, []string{"station", "channel"})

	PicksAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ttsam_picks_accepted_total",
		Help: "Picks of any phase accepted by the pick aggregator (not dropped as duplicate or late).",
	})

	PicksDeduplicated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ttsam_picks_deduplicated_total",
		Help: "Picks dropped as a duplicate of an already-accepted pick.",
	})

	PicksRejectedLate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ttsam_picks_rejected_late_total",
		Help: "Picks arriving for a station outside EVENT_LINGER_SECONDS of an active event.",
	})

	EventsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ttsam_events_started_total",
		Help: "Seismic events promoted from the co-pick trigger predicate.",
	})

	TicksEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ttsam_ticks_emitted_total",
		Help: "Inference ticks requested by the pick aggregator, by terminal/non-terminal.",
	}, []string{"terminal"})

	TicksSkippedInsufficientData = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ttsam_ticks_skipped_insufficient_data_total",
		Help: "Ticks skipped because the tensor assembler found zero valid station windows.",
	})

	PredictLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ttsam_predict_latency_seconds",
		Help:    "Wall-clock latency of Predictor.Predict calls.",
		Buckets: prometheus.DefBuckets,
	})

	PredictFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ttsam_predict_failures_total",
		Help: "Predictor invocations that errored or timed out, by kind.",
	}, []string{"kind"})

	ReportsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ttsam_reports_written_total",
		Help: "Report lines appended to the per-event report log.",
	})

	ReportWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ttsam_report_write_errors_total",
		Help: "Report log append failures (non-fatal, publish still attempted).",
	})
)

func init() {
	Registry.MustRegister(
		DroppedPackets,
		GapResyncs,
		PicksAccepted,
		PicksDeduplicated,
		PicksRejectedLate,
		EventsStarted,
		TicksEmitted,
		TicksSkippedInsufficientData,
		PredictLatencySeconds,
		PredictFailures,
		ReportsWritten,
		ReportWriteErrors,
	)
}

// Handler returns the /metrics HTTP handler for the debug server.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
