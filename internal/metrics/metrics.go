package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliation ticks
	ReconcileTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "reconcile",
		Name:      "ticks_total",
		Help:      "Total reconciliation ticks",
	}, []string{"trigger"})

	ReconcileTickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "reconcile",
		Name:      "tick_errors_total",
		Help:      "Total reconciliation ticks aborted by a store failure",
	}, []string{"trigger"})

	ReconcileTickLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market",
		Subsystem: "reconcile",
		Name:      "tick_duration_seconds",
		Help:      "Reconciliation tick duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"trigger"})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "reconcile",
		Name:      "outcomes_total",
		Help:      "Per-lot payment check outcomes",
	}, []string{"currency", "outcome"})

	ReconcilePendingLots = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "market",
		Subsystem: "reconcile",
		Name:      "pending_lots",
		Help:      "Lots awaiting payment seen by the latest tick",
	})

	// Lot state machine
	LotTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "lots",
		Name:      "transitions_total",
		Help:      "Applied lot status transitions",
	}, []string{"from", "to"})

	LotConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "lots",
		Name:      "conflicts_total",
		Help:      "Guarded lot transitions rejected because the status had already moved",
	}, []string{"operation"})

	// Chain readers
	ChainBlocksScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "chain",
		Name:      "blocks_scanned_total",
		Help:      "Blocks inspected by chain scanners",
	}, []string{"chain", "scanner"})

	ChainEvidenceFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "chain",
		Name:      "evidence_found_total",
		Help:      "Transfer evidence items yielded by chain scanners",
	}, []string{"chain", "scanner"})

	ChainUnavailableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "chain",
		Name:      "unavailable_total",
		Help:      "Chain reads that failed because the upstream RPC was unreachable",
	}, []string{"chain"})

	ChainBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market",
		Subsystem: "chain",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per chain (0=closed, 1=open, 2=half-open)",
	}, []string{"chain"})

	BlockCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "cache",
		Name:      "block_hits_total",
		Help:      "Block cache hits",
	}, []string{"chain"})

	BlockCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "cache",
		Name:      "block_misses_total",
		Help:      "Block cache misses",
	}, []string{"chain"})

	// RPC
	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for rate limiter",
	}, []string{"chain"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls by method and status",
	}, []string{"chain", "method", "status"})

	RPCCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "RPC call duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"chain", "method"})

	// Database pool
	DBPoolOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	}, []string{"pool"})

	DBPoolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	}, []string{"pool"})

	DBPoolIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	}, []string{"pool"})

	DBPoolWaitCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	}, []string{"pool"})

	DBPoolWaitDurationSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market",
		Subsystem: "postgres",
		Name:      "db_pool_wait_duration_seconds",
		Help:      "Latest PostgreSQL pool wait duration in seconds",
	}, []string{"pool"})

	// API
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by route and status code",
	}, []string{"route", "code"})

	APIRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "API requests rejected by the per-client rate limiter",
	}, []string{"route"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})
)
