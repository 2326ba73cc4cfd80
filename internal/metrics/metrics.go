package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "txservice"

var (
	// TasksReconciledTotal counts scheduled tasks written by the setup reconciler
	TasksReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "setup",
		Name:      "tasks_reconciled_total",
		Help:      "Scheduled tasks reconciled, by result (created, existing)",
	}, []string{"result"})

	// AddressesReconciledTotal counts contract addresses written by the setup reconciler
	AddressesReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "setup",
		Name:      "addresses_reconciled_total",
		Help:      "Contract addresses reconciled, by kind and result (created, updated, unchanged)",
	}, []string{"kind", "result"})

	// PriceFetchTotal counts price quote requests
	PriceFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quote",
		Name:      "price_fetch_total",
		Help:      "Price quote requests, by symbol and status",
	}, []string{"symbol", "status"})

	// PriceFetchDuration tracks the latency of price quote requests
	PriceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "quote",
		Name:      "price_fetch_duration_seconds",
		Help:      "Price quote request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"symbol"})

	// TaskDispatchTotal counts beat dispatches
	TaskDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "beat",
		Name:      "task_dispatch_total",
		Help:      "Scheduled task dispatches, by task and status",
	}, []string{"task", "status"})

	// ScheduledEntries tracks the number of cron entries registered by the beat
	ScheduledEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "beat",
		Name:      "scheduled_entries",
		Help:      "Scheduled tasks currently registered with the beat",
	})

	// InvalidSchedules tracks the enabled tasks the beat skipped on the last reload
	InvalidSchedules = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "beat",
		Name:      "invalid_schedules",
		Help:      "Enabled tasks skipped on the last reload because their interval is invalid",
	})

	// ProxyRequestsTotal counts JSON-RPC calls forwarded by the proxy
	ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc_proxy",
		Name:      "requests_total",
		Help:      "JSON-RPC calls forwarded, by method",
	}, []string{"method"})

	// ProxyRewritesTotal counts request and response rewrites done by the proxy
	ProxyRewritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc_proxy",
		Name:      "rewrites_total",
		Help:      "Rewrites applied by the proxy, by kind (pending_block, xdc_prefix, invalid_json, too_large)",
	}, []string{"kind"})

	// TaskStreamMessages tracks the messages retained in the task stream
	TaskStreamMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "beat",
		Name:      "task_stream_messages",
		Help:      "Messages currently retained in the task stream",
	})

	// TaskStreamConsumers tracks the consumers attached to the task stream
	TaskStreamConsumers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "beat",
		Name:      "task_stream_consumers",
		Help:      "Consumers attached to the task stream",
	})

	// HostCPUPercent tracks host CPU usage
	HostCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "cpu_percent",
		Help:      "Host CPU usage in percent",
	})

	// HostMemoryPercent tracks host memory usage
	HostMemoryPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "memory_percent",
		Help:      "Host memory usage in percent",
	})
)
