package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
	// OutcomeUnavailable labels predictions rejected because no model is loaded.
	OutcomeUnavailable = "unavailable"
)

const namespace = "workload_classifier"

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of prediction requests, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_seconds",
			Help:      "Prediction latency in seconds.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	predictedScenariosTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predicted_scenarios_total",
			Help:      "Predictions served, partitioned by predicted scenario.",
		},
		[]string{"scenario"},
	)

	predictionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_total",
			Help:      "Prediction cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Model load and reload attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	modelLoadDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_seconds",
			Help:      "Time spent reading and compiling the classifier artifact.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	modelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when a classifier is loaded, 0 otherwise.",
		},
	)

	modelGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_generation",
			Help:      "Generation number of the currently loaded classifier.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, partitioned by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register attaches classifier collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		predictedScenariosTotal,
		predictionCacheTotal,
		modelLoadsTotal,
		modelLoadDurationSeconds,
		modelLoaded,
		modelGeneration,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records a prediction duration and outcome label.
func ObservePrediction(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeUnavailable:
	default:
		outcome = OutcomeSuccess
	}
	predictionsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.Observe(duration.Seconds())
}

// ObserveScenario counts a served prediction label.
func ObserveScenario(scenario string) {
	predictedScenariosTotal.WithLabelValues(scenario).Inc()
}

// ObserveCache records a prediction cache lookup.
func ObserveCache(hit bool) {
	if hit {
		predictionCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	predictionCacheTotal.WithLabelValues("miss").Inc()
}

// ObserveModelLoad records a load attempt.
func ObserveModelLoad(duration time.Duration, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	modelLoadsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	modelLoadDurationSeconds.Observe(duration.Seconds())
}

// SetModelState publishes whether a model is loaded and its generation.
func SetModelState(loaded bool, generation uint64) {
	if loaded {
		modelLoaded.Set(1)
	} else {
		modelLoaded.Set(0)
	}
	modelGeneration.Set(float64(generation))
}

// ObserveHTTPRequest records a handled HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
