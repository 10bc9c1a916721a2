package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stevedore_scheduling_latency_seconds",
			Help:    "Duration of one scheduling round in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScheduleQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stevedore_schedule_query_duration_seconds",
			Help:    "Duration of the schedule_job_executions persistence call in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stevedore_tasks_launched_total",
			Help: "Total number of tasks launched by kind",
		},
		[]string{"kind"},
	)

	OffersDeclined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_offers_declined_total",
			Help: "Total number of offers declined back to the broker",
		},
	)

	OffersReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_offers_received_total",
			Help: "Total number of offers received from the broker",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stevedore_queue_depth",
			Help: "Number of queued job executions observed at the start of a round",
		},
	)

	RunningJobExes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stevedore_running_job_exes",
			Help: "Number of job executions currently running",
		},
	)

	ScheduleRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_schedule_retries_total",
			Help: "Total number of retried schedule_job_executions calls",
		},
	)

	// Cleanup metrics
	CleanupTasksLaunched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_cleanup_tasks_launched_total",
			Help: "Total number of cleanup tasks launched",
		},
	)

	CleanupQueueEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stevedore_cleanup_queue_entries",
			Help: "Total number of job executions waiting for cleanup across all nodes",
		},
	)

	// Ingest metrics
	IngestedFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_ingested_files_total",
			Help: "Total number of files that reached INGESTED status",
		},
	)

	IngestedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_ingested_bytes_total",
			Help: "Total size in bytes of files that reached INGESTED status",
		},
	)
)

func init() {
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(ScheduleQueryDuration)
	prometheus.MustRegister(TasksLaunched)
	prometheus.MustRegister(OffersDeclined)
	prometheus.MustRegister(OffersReceived)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(RunningJobExes)
	prometheus.MustRegister(ScheduleRetries)
	prometheus.MustRegister(CleanupTasksLaunched)
	prometheus.MustRegister(CleanupQueueEntries)
	prometheus.MustRegister(IngestedFiles)
	prometheus.MustRegister(IngestedBytes)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
