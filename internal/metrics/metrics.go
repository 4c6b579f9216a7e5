// Package metrics exposes the replication engine's Prometheus instruments,
// built with the same promauto registration style the teacher's log
// pipeline used for its own counters/gauges/histograms.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleRecordsTotal counts records processed per cycle, by mapping,
	// origin (scm/dts), and outcome (ok/skipped/retried/failed, plus
	// retried_ok from the retry pass).
	CycleRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtg_repl_cycle_records_total",
			Help: "Records processed by the replication loop",
		},
		[]string{"mapping", "origin", "outcome"},
	)

	// CycleDuration measures one full replication cycle (clock fetch
	// through watermark persistence).
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dtg_repl_cycle_duration_seconds",
			Help:    "Time spent in one replication cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mapping"},
	)

	// RetryQueueDepth is the number of ids awaiting the end-of-cycle retry
	// pass, sampled at the moment the pass begins.
	RetryQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dtg_repl_retry_queue_depth",
			Help: "Records queued for the end-of-cycle retry pass",
		},
		[]string{"mapping"},
	)

	// WatermarkLagSeconds is how far each side's watermark (the server
	// clock captured at cycle start) trails this process's local clock when
	// the watermark is persisted.
	WatermarkLagSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dtg_repl_watermark_lag_seconds",
			Help: "Seconds between a side's watermark and the local clock",
		},
		[]string{"mapping", "side"},
	)

	// ConnectionResets counts forced plugin reconnects, by mapping and
	// reason (scheduled/force).
	ConnectionResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtg_repl_connection_resets_total",
			Help: "Plugin connection teardown/re-establish events",
		},
		[]string{"mapping", "reason"},
	)

	// OfflineEvents counts transitions into the offline backoff protocol,
	// by mapping and which side reported offline.
	OfflineEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtg_repl_offline_events_total",
			Help: "Offline-protocol activations",
		},
		[]string{"mapping", "side"},
	)

	// FatalRecords counts records that exhausted the retry pass and were
	// written to the mapping's error file.
	FatalRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtg_repl_fatal_records_total",
			Help: "Records that failed terminally and were quarantined",
		},
		[]string{"mapping"},
	)
)
