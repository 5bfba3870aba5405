// Package metrics provides Prometheus metrics for the MMR recomputation engine.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session outcome label values.
const (
	OutcomeAccepted  = "accepted"
	OutcomeSmallTeam = "small_team"
	OutcomeNewbie    = "newbie_mode"
	OutcomeFiltered  = "filtered"
)

// Bootstrap result label values.
const (
	BootstrapMean    = "mean"
	BootstrapNearest = "nearest"
	BootstrapMiss    = "miss"
)

// Manager owns every engine metric.
type Manager struct {
	namespace          string
	subsystem          string
	sessionSizeBuckets []float64
	registry           prometheus.Registerer

	// Input
	recordsParsed   prometheus.Counter
	recordsRejected *prometheus.CounterVec
	duplicateRows   prometheus.Counter

	// Sessions
	sessions    *prometheus.CounterVec
	sessionSize prometheus.Histogram

	// Leaderboard
	changesApplied  *prometheus.CounterVec
	bootstraps      *prometheus.CounterVec
	leaderboardSize prometheus.Gauge
	calibratedSize  prometheus.Gauge

	// Aggregation workers
	workerMessages *prometheus.CounterVec
	workerErrors   *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Private registry so the textfile carries only engine metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:          "mmr",
		subsystem:          "engine",
		sessionSizeBuckets: []float64{2, 4, 6, 8, 10, 12, 16, 24, 32},
		registry:           prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.recordsParsed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_parsed_total",
		Help:      "Input lines parsed into battle rows",
	})

	m.recordsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_rejected_total",
		Help:      "Input lines skipped, by reason",
	}, []string{"reason"})

	m.duplicateRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_rows_total",
		Help:      "Rows dropped because the user already appeared in the same session",
	})

	m.sessions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_total",
		Help:      "Completed sessions, by outcome",
	}, []string{"outcome"})

	m.sessionSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_size_rows",
		Help:      "Number of rows per completed session",
		Buckets:   m.sessionSizeBuckets,
	})

	m.changesApplied = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "changes_applied_total",
		Help:      "Rating changes applied to the leaderboard, by algorithm",
	}, []string{"algorithm"})

	m.bootstraps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_bootstrap_total",
		Help:      "Calibration bootstrap lookups, by result",
	}, []string{"result"})

	m.leaderboardSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_users",
		Help:      "Users known to the leaderboard",
	})

	m.calibratedSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibrated_users",
		Help:      "Users present in the calibration index",
	})

	m.workerMessages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_messages_total",
		Help:      "Messages handled by aggregation workers",
	}, []string{"worker"})

	m.workerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Messages an aggregation worker failed to handle",
	}, []string{"worker"})

	m.queueDepth = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Messages waiting in a worker mailbox",
	}, []string{"queue"})
}

// RecordRecordParsed counts a successfully parsed input line.
func RecordRecordParsed() {
	globalManager.recordsParsed.Inc()
}

// RecordRecordRejected counts a skipped input line.
func RecordRecordRejected(reason string) {
	globalManager.recordsRejected.WithLabelValues(reason).Inc()
}

// RecordDuplicateRow counts a row dropped as an in-session duplicate.
func RecordDuplicateRow() {
	globalManager.duplicateRows.Inc()
}

// RecordSession counts a completed session and observes its size.
func RecordSession(outcome string, rows int) {
	globalManager.sessions.WithLabelValues(outcome).Inc()
	globalManager.sessionSize.Observe(float64(rows))
}

// RecordChangeApplied counts a rating change applied by the named algorithm.
func RecordChangeApplied(algorithm string) {
	globalManager.changesApplied.WithLabelValues(algorithm).Inc()
}

// RecordBootstrap counts a calibration bootstrap lookup.
func RecordBootstrap(result string) {
	globalManager.bootstraps.WithLabelValues(result).Inc()
}

// UpdateLeaderboardSize sets the user and calibrated-user gauges.
func UpdateLeaderboardSize(users, calibrated int) {
	globalManager.leaderboardSize.Set(float64(users))
	globalManager.calibratedSize.Set(float64(calibrated))
}

// RecordWorkerMessage counts a message handled by a worker.
func RecordWorkerMessage(worker string) {
	globalManager.workerMessages.WithLabelValues(worker).Inc()
}

// RecordWorkerError counts a message a worker failed on.
func RecordWorkerError(worker string) {
	globalManager.workerErrors.WithLabelValues(worker).Inc()
}

// UpdateQueueDepth sets the current depth of a named mailbox.
func UpdateQueueDepth(queue string, depth int) {
	globalManager.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile dumps the registry in the text exposition format to path.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
