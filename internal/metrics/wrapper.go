package metrics

import "time"

// Recorder is what the experiment runner reports to. It keeps the runner
// independent of Prometheus.
type Recorder interface {
	DatasetLoaded(samples int)
	PoolFitted(elapsed time.Duration, accuracy float64)
	MethodFitted(method string, elapsed time.Duration)
	MethodScored(method string, elapsed time.Duration, predictions int, accuracy float64)
	RunFinished()
	Failed()
}

// MetricsWrapper adapts Metrics to Recorder.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) DatasetLoaded(samples int) {
	w.m.DatasetSamples.Set(float64(samples))
}

func (w *MetricsWrapper) PoolFitted(elapsed time.Duration, accuracy float64) {
	w.m.PoolFitDuration.Observe(elapsed.Seconds())
	w.m.PoolAccuracy.Set(accuracy)
}

func (w *MetricsWrapper) MethodFitted(method string, elapsed time.Duration) {
	w.m.MethodFitDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (w *MetricsWrapper) MethodScored(method string, elapsed time.Duration, predictions int, accuracy float64) {
	w.m.MethodPredictDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	w.m.PredictionsTotal.WithLabelValues(method).Add(float64(predictions))
	w.m.MethodAccuracy.WithLabelValues(method).Set(accuracy)
}

func (w *MetricsWrapper) RunFinished() {
	w.m.RunsTotal.Inc()
}

func (w *MetricsWrapper) Failed() {
	w.m.ErrorsTotal.Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) DatasetLoaded(int)                                {}
func (Nop) PoolFitted(time.Duration, float64)                {}
func (Nop) MethodFitted(string, time.Duration)               {}
func (Nop) MethodScored(string, time.Duration, int, float64) {}
func (Nop) RunFinished()                                     {}
func (Nop) Failed()                                          {}
