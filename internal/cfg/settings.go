package cfg

import (
	"time"

	"deslab/internal/dataset"
	"deslab/internal/des"
)

// DefaultMethods is the method list of the reference experiment.
var DefaultMethods = []string{"OLA", "APriori", "MCB", "DESP", "KNORAU", "KNORAE", "METADES"}

type Settings struct {
	// Data
	DatasetPath  string
	DatasetURL   string
	LabelColumn  string
	FetchTimeout time.Duration
	Synthetic    dataset.SyntheticOptions

	// Splits
	TestSize float64
	DSELSize float64
	Stratify bool
	Seed     int64

	// Pool
	PoolSize         int
	PerceptronEpochs int
	CalibrationFolds int

	// Selection
	Methods   []string
	K         int
	SafeK     int
	IHRate    float64
	DFP       bool
	WithIH    bool
	AKNN      bool
	Selection string
	Mode      string

	// System
	OutputPath  string
	DataPath    string
	MetricsFile string
	LogLevel    string
	Workers     int
}

// Defaults returns the settings of the reference experiment.
func Defaults() Settings {
	return Settings{
		FetchTimeout:     30 * time.Second,
		Synthetic:        dataset.DefaultSyntheticOptions(),
		TestSize:         0.25,
		DSELSize:         0.5,
		Stratify:         true,
		Seed:             42,
		PoolSize:         10,
		PerceptronEpochs: 10,
		CalibrationFolds: 5,
		Methods:          append([]string(nil), DefaultMethods...),
		K:                7,
		IHRate:           0.3,
		OutputPath:       "results",
		DataPath:         "data",
		LogLevel:         "info",
		Workers:          4,
	}
}

// DESOptions maps the selection settings onto the des package options.
// Settings are expected to be validated.
func (s *Settings) DESOptions() des.Options {
	opts := des.DefaultOptions()
	opts.K = s.K
	opts.SafeK = s.SafeK
	opts.IHRate = s.IHRate
	opts.DFP = s.DFP
	opts.WithIH = s.WithIH
	opts.AKNN = s.AKNN
	opts.Seed = s.Seed
	opts.Selection = des.Selection(s.Selection)
	opts.Mode = des.Mode(s.Mode)
	return opts
}
