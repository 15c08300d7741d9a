// Package metrics provides Prometheus metrics for deslab experiment runs.
// It tracks how long the pool and each selection method take to fit and
// predict, and the accuracy each of them reaches on the test split.
//
// A batch run has no scrape endpoint, so the collected metrics can be written
// to a node_exporter textfile with WriteTextfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of an experiment run.
type Metrics struct {
	// Run metrics
	RunsTotal      prometheus.Counter // Experiment runs completed
	ErrorsTotal    prometheus.Counter // Runs or methods that failed
	DatasetSamples prometheus.Gauge   // Rows in the loaded dataset

	// Pool metrics
	PoolFitDuration prometheus.Histogram // Time to fit the bagging pool
	PoolAccuracy    prometheus.Gauge     // Majority-vote accuracy of the pool

	// Selection method metrics, labelled by method name
	MethodFitDuration     *prometheus.HistogramVec
	MethodPredictDuration *prometheus.HistogramVec
	MethodAccuracy        *prometheus.GaugeVec
	PredictionsTotal      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
// When the registerer is also a Gatherer, as *prometheus.Registry is, the
// metrics can later be exported with WriteTextfile.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "deslab_runs_total",
			Help: "Total number of experiment runs completed",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "deslab_errors_total",
			Help: "Total number of failed runs or methods",
		}),
		DatasetSamples: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deslab_dataset_samples",
			Help: "Number of samples in the loaded dataset",
		}),
		PoolFitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "deslab_pool_fit_duration_seconds",
			Help:    "Time to fit the bagging pool in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PoolAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deslab_pool_accuracy",
			Help: "Test accuracy of the pool's majority vote",
		}),
		MethodFitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deslab_method_fit_duration_seconds",
			Help:    "Time to fit a selection method on DSEL in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"method"}),
		MethodPredictDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deslab_method_predict_duration_seconds",
			Help:    "Time to predict the test split in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"method"}),
		MethodAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deslab_method_accuracy",
			Help: "Test accuracy of a selection method",
		}, []string{"method"}),
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deslab_predictions_total",
			Help: "Total number of test predictions made",
		}, []string{"method"}),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// WriteTextfile writes every metric on the registry in the text exposition
// format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return fmt.Errorf("metrics registry cannot be gathered")
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
