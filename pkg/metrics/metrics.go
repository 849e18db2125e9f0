package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool metrics
	ClustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partypool_clusters_total",
			Help: "Number of clusters by lifecycle status",
		},
		[]string{"status"},
	)

	UsersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partypool_users_total",
			Help: "Number of users across all clusters",
		},
	)

	TargetCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partypool_target_capacity",
			Help: "Desired number of active clusters from the last autoscaling pass",
		},
	)

	// Orchestrator metrics
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "partypool_orchestrator_tick_duration_seconds",
			Help:    "Orchestrator tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClustersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partypool_clusters_created_total",
			Help: "Clusters added by the balancer",
		},
	)

	ClustersRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partypool_clusters_removed_total",
			Help: "Clusters marked for removal by the balancer",
		},
	)

	JoinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partypool_joins_total",
			Help: "Join attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Pipeline metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partypool_deployment_queue_depth",
			Help: "Deployment jobs waiting in the work queue",
		},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partypool_deploy_stage_duration_seconds",
			Help:    "Deployment stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partypool_deployments_total",
			Help: "Finished deployments by outcome",
		},
		[]string{"outcome"},
	)

	TickErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partypool_tick_errors_total",
			Help: "Skipped tick work by loop",
		},
		[]string{"loop"},
	)
)

func init() {
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(UsersTotal)
	prometheus.MustRegister(TargetCapacity)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(ClustersCreated)
	prometheus.MustRegister(ClustersRemoved)
	prometheus.MustRegister(JoinsTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(TickErrors)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
