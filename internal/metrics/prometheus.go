package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Model metrics
	ModelLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svmengine_model_loads_total",
			Help: "Total number of model load attempts",
		},
		[]string{"status"}, // status: success|error
	)

	ModelLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "svmengine_model_load_duration_seconds",
			Help:    "Model parse duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// Prediction metrics
	PredictCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svmengine_predict_calls_total",
			Help: "Total number of predict calls",
		},
		[]string{"operation", "status"}, // status: ok|no_probability_model|<error kind>
	)

	PredictDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "svmengine_predict_duration_seconds",
			Help:    "Predict call duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	Problems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svmengine_problems_total",
			Help: "Total number of prediction problems solved",
		},
		[]string{"operation"},
	)

	CouplingNotConverged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "svmengine_coupling_not_converged_total",
			Help: "Pairwise coupling runs that stopped at the iteration cap",
		},
	)

	// Boundary metrics
	HandlesOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "svmengine_handles_open",
			Help: "Number of live boundary handles",
		},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svmengine_kafka_messages_total",
			Help: "Total Kafka messages processed",
		},
		[]string{"topic", "status"}, // status: success|error
	)

	WorkerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svmengine_worker_runs_total",
			Help: "Background worker iterations",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "svmengine_worker_duration_seconds",
			Help:    "Background worker iteration duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		// Model metrics
		prometheus.MustRegister(ModelLoads)
		prometheus.MustRegister(ModelLoadDuration)

		// Prediction metrics
		prometheus.MustRegister(PredictCalls)
		prometheus.MustRegister(PredictDuration)
		prometheus.MustRegister(Problems)
		prometheus.MustRegister(CouplingNotConverged)

		// Boundary metrics
		prometheus.MustRegister(HandlesOpen)

		// System metrics
		prometheus.MustRegister(KafkaMessages)
		prometheus.MustRegister(WorkerRuns)
		prometheus.MustRegister(WorkerDuration)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordModelLoad records a model load attempt
func RecordModelLoad(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ModelLoads.WithLabelValues(status).Inc()
	ModelLoadDuration.Observe(duration.Seconds())
}

// RecordPredict records a predict call. status is the outcome label the
// caller derived from its error.
func RecordPredict(operation, status string, problems int, duration time.Duration) {
	PredictCalls.WithLabelValues(operation, status).Inc()
	PredictDuration.WithLabelValues(operation).Observe(duration.Seconds())

	if problems > 0 {
		Problems.WithLabelValues(operation).Add(float64(problems))
	}
}

// RecordCouplingNotConverged records coupling runs that hit the iteration cap
func RecordCouplingNotConverged(count int) {
	if count > 0 {
		CouplingNotConverged.Add(float64(count))
	}
}

// RecordKafkaMessage records a consumed or produced Kafka message
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	KafkaMessages.WithLabelValues(topic, status).Inc()
}

// RecordWorkerRun records one background worker iteration
func RecordWorkerRun(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerRuns.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}
