package experiment

import (
	"strconv"
	"time"

	"deslab/internal/cfg"
	"deslab/internal/storage"
)

// MethodResult is the test-set outcome of one selection method.
type MethodResult struct {
	Name        string        `json:"name"`
	Accuracy    float64       `json:"accuracy"`
	Kappa       float64       `json:"kappa"`
	Recall      []float64     `json:"recall"`
	FitTime     time.Duration `json:"fit_time"`
	PredictTime time.Duration `json:"predict_time"`
}

// Results holds everything a run produced.
type Results struct {
	RunID     string    `json:"run_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Dataset      Source   `json:"dataset"`
	Samples      int      `json:"samples"`
	Features     int      `json:"features"`
	FeatureNames []string `json:"feature_names,omitempty"`
	Classes      []string `json:"classes"`

	TrainSize int `json:"train_size"`
	DSELSize  int `json:"dsel_size"`
	TestSize  int `json:"test_size"`

	PoolSize     int           `json:"pool_size"`
	PoolAccuracy float64       `json:"pool_accuracy"`
	PoolFitTime  time.Duration `json:"pool_fit_time"`

	Methods []MethodResult    `json:"methods"`
	Params  map[string]string `json:"params"`
}

// Best returns the method with the highest accuracy, first in order on ties.
func (r *Results) Best() (MethodResult, bool) {
	if len(r.Methods) == 0 {
		return MethodResult{}, false
	}
	best := r.Methods[0]
	for _, m := range r.Methods[1:] {
		if m.Accuracy > best.Accuracy {
			best = m
		}
	}
	return best, true
}

// Record converts the results to a run history record.
func (r *Results) Record() storage.RunRecord {
	rec := storage.RunRecord{
		ID:           r.RunID,
		StartedAt:    r.StartTime,
		Duration:     r.EndTime.Sub(r.StartTime),
		Dataset:      r.Dataset.Name,
		Samples:      r.Samples,
		Features:     r.Features,
		Classes:      len(r.Classes),
		PoolSize:     r.PoolSize,
		PoolAccuracy: r.PoolAccuracy,
		Params:       r.Params,
	}
	for _, m := range r.Methods {
		rec.Results = append(rec.Results, storage.MethodResult{
			Name:           m.Name,
			Accuracy:       m.Accuracy,
			FitSeconds:     m.FitTime.Seconds(),
			PredictSeconds: m.PredictTime.Seconds(),
		})
	}
	return rec
}

func params(config *cfg.Settings) map[string]string {
	return map[string]string{
		"seed":              strconv.FormatInt(config.Seed, 10),
		"test_size":         strconv.FormatFloat(config.TestSize, 'g', -1, 64),
		"dsel_size":         strconv.FormatFloat(config.DSELSize, 'g', -1, 64),
		"pool_size":         strconv.Itoa(config.PoolSize),
		"perceptron_epochs": strconv.Itoa(config.PerceptronEpochs),
		"calibration_folds": strconv.Itoa(config.CalibrationFolds),
		"k":                 strconv.Itoa(config.K),
		"safe_k":            strconv.Itoa(config.SafeK),
		"ih_rate":           strconv.FormatFloat(config.IHRate, 'g', -1, 64),
		"dfp":               strconv.FormatBool(config.DFP),
		"with_ih":           strconv.FormatBool(config.WithIH),
		"aknn":              strconv.FormatBool(config.AKNN),
		"selection":         config.Selection,
		"mode":              config.Mode,
	}
}
