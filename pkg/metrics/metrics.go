package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Update verification metrics
	UpdateVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_update_verifications_total",
			Help: "Total number of TUF metadata verifications by role and result",
		},
		[]string{"role", "result"},
	)

	UpdateRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetguard_update_refresh_duration_seconds",
			Help:    "Time taken to refresh and verify update metadata",
			Buckets: prometheus.DefBuckets,
		},
	)

	TargetDownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetguard_target_download_duration_seconds",
			Help:    "Time taken to download and verify a target artifact",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Rollout metrics
	RolloutsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_rollouts_active",
			Help: "Whether a rollout is currently active (1) or not (0)",
		},
	)

	RolloutStageGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_rollout_stage_percentage",
			Help: "Percentage of the fleet targeted by the current rollout stage",
		},
	)

	RolloutRollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_rollout_rollbacks_total",
			Help: "Total number of rollouts rolled back, by reason",
		},
		[]string{"reason"},
	)

	RolloutCompletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetguard_rollout_completions_total",
			Help: "Total number of rollouts that completed successfully",
		},
	)

	HealthReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_health_reports_total",
			Help: "Total number of health reports received by rollout, by overall status",
		},
		[]string{"status"},
	)

	// Transparency log metrics
	LogAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_log_appends_total",
			Help: "Total number of entries appended to the transparency log, by entry type",
		},
		[]string{"entry_type"},
	)

	LogTreeSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_log_tree_size",
			Help: "Current number of entries in the transparency log",
		},
	)

	// Log receiver metrics
	ReceiverOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_receiver_outcomes_total",
			Help: "Total number of log-upload outcomes handled by the receiver",
		},
		[]string{"outcome"},
	)

	ReceiverUploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetguard_receiver_upload_duration_seconds",
			Help:    "Time taken to ingest a received log batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReceiverChainLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetguard_receiver_chain_length",
			Help: "Number of records in a client's hash chain, by client",
		},
		[]string{"client_id"},
	)

	// Certificate authority metrics
	CertificatesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_certificates_issued_total",
			Help: "Total number of certificates issued by the fleet CA, by role",
		},
		[]string{"role"},
	)

	// Health check metrics (pkg/health aggregation results)
	NodeHealthStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_node_health_status",
			Help: "Most recent overall node health status (0=healthy,1=warning,2=critical,3=unknown)",
		},
	)
)

func init() {
	prometheus.MustRegister(UpdateVerificationsTotal)
	prometheus.MustRegister(UpdateRefreshDuration)
	prometheus.MustRegister(TargetDownloadDuration)

	prometheus.MustRegister(RolloutsActive)
	prometheus.MustRegister(RolloutStageGauge)
	prometheus.MustRegister(RolloutRollbacksTotal)
	prometheus.MustRegister(RolloutCompletionsTotal)
	prometheus.MustRegister(HealthReportsTotal)

	prometheus.MustRegister(LogAppendsTotal)
	prometheus.MustRegister(LogTreeSize)

	prometheus.MustRegister(ReceiverOutcomesTotal)
	prometheus.MustRegister(ReceiverUploadDuration)
	prometheus.MustRegister(ReceiverChainLength)

	prometheus.MustRegister(CertificatesIssuedTotal)

	prometheus.MustRegister(NodeHealthStatus)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
