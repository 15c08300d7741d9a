package cfg

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.TestSize != 0.25 {
					t.Errorf("expected default TestSize 0.25, got %f", settings.TestSize)
				}
				if settings.DSELSize != 0.5 {
					t.Errorf("expected default DSELSize 0.5, got %f", settings.DSELSize)
				}
				if settings.PoolSize != 10 {
					t.Errorf("expected default PoolSize 10, got %d", settings.PoolSize)
				}
				if settings.K != 7 || settings.SafeK != 7 {
					t.Errorf("expected K and SafeK 7, got %d and %d", settings.K, settings.SafeK)
				}
				if !reflect.DeepEqual(settings.Methods, DefaultMethods) {
					t.Errorf("expected default methods %v, got %v", DefaultMethods, settings.Methods)
				}
				if settings.FetchTimeout != 30*time.Second {
					t.Errorf("expected default FetchTimeout 30s, got %v", settings.FetchTimeout)
				}
				if settings.Synthetic.Seed != settings.Seed {
					t.Errorf("expected synthetic seed to follow Seed, got %d", settings.Synthetic.Seed)
				}
				if !settings.Stratify {
					t.Error("expected Stratify to default to true")
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"DATASET_PATH":      "/data/iris.csv",
				"LABEL_COLUMN":      "species",
				"TEST_SIZE":         "0.3",
				"POOL_SIZE":         "25",
				"METHODS":           "KNORA-E, META-DES ,Oracle",
				"REGION_K":          "9",
				"SAFE_K":            "5",
				"DFP":               "true",
				"SELECTION_RULE":    "ALL",
				"COMBINATION_MODE":  "Hybrid",
				"SEED":              "7",
				"SYNTHETIC_CLASSES": "3",
				"FETCH_TIMEOUT":     "5s",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DatasetPath != "/data/iris.csv" || settings.LabelColumn != "species" {
					t.Errorf("unexpected dataset settings %q %q", settings.DatasetPath, settings.LabelColumn)
				}
				if settings.TestSize != 0.3 {
					t.Errorf("expected TestSize 0.3, got %f", settings.TestSize)
				}
				if settings.PoolSize != 25 {
					t.Errorf("expected PoolSize 25, got %d", settings.PoolSize)
				}
				expected := []string{"KNORA-E", "META-DES", "Oracle"}
				if !reflect.DeepEqual(settings.Methods, expected) {
					t.Errorf("expected methods %v, got %v", expected, settings.Methods)
				}
				if settings.K != 9 || settings.SafeK != 5 {
					t.Errorf("expected K 9 SafeK 5, got %d %d", settings.K, settings.SafeK)
				}
				if !settings.DFP {
					t.Error("expected DFP to be true")
				}
				if settings.Selection != "all" || settings.Mode != "hybrid" {
					t.Errorf("expected normalised rule and mode, got %q %q", settings.Selection, settings.Mode)
				}
				if settings.Seed != 7 || settings.Synthetic.Seed != 7 {
					t.Errorf("expected seed 7, got %d / %d", settings.Seed, settings.Synthetic.Seed)
				}
				if settings.Synthetic.Classes != 3 {
					t.Errorf("expected 3 synthetic classes, got %d", settings.Synthetic.Classes)
				}
				if settings.FetchTimeout != 5*time.Second {
					t.Errorf("expected FetchTimeout 5s, got %v", settings.FetchTimeout)
				}
			},
		},
		{
			name:    "unknown method",
			envVars: map[string]string{"METHODS": "OLA,Stacking"},
			wantErr: true,
		},
		{
			name:    "test size out of range",
			envVars: map[string]string{"TEST_SIZE": "1.5"},
			wantErr: true,
		},
		{
			name:    "bad selection rule",
			envVars: map[string]string{"SELECTION_RULE": "worst"},
			wantErr: true,
		},
		{
			name:    "invalid numbers fall back to defaults",
			envVars: map[string]string{"POOL_SIZE": "many", "IH_RATE": "high"},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.PoolSize != 10 {
					t.Errorf("expected PoolSize fallback 10, got %d", settings.PoolSize)
				}
				if settings.IHRate != 0.3 {
					t.Errorf("expected IHRate fallback 0.3, got %f", settings.IHRate)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
data:
  path: "datasets/wine.csv"
  labelColumn: "quality"
  fetchTimeout: "45s"
  synthetic:
    samples: 500
    features: 8

split:
  testSize: 0.2
  dselSize: 0.4
  stratify: false
  seed: 11

pool:
  size: 20
  perceptronEpochs: 15
  calibrationFolds: 3

selection:
  methods: ["OLA", "KNORA-U"]
  k: 5
  dfp: true
  rule: "random"
  mode: "weighting"

system:
  outputPath: "/tmp/out"
  dataPath: "/tmp/data"
  metricsFile: "metrics.prom"
  logLevel: "debug"
  workers: 2
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DatasetPath != "datasets/wine.csv" {
					t.Errorf("expected DatasetPath from YAML, got %s", settings.DatasetPath)
				}
				if settings.FetchTimeout != 45*time.Second {
					t.Errorf("expected FetchTimeout 45s, got %v", settings.FetchTimeout)
				}
				if settings.TestSize != 0.2 || settings.DSELSize != 0.4 {
					t.Errorf("expected splits 0.2/0.4, got %f/%f", settings.TestSize, settings.DSELSize)
				}
				if settings.Stratify {
					t.Error("expected Stratify false from YAML")
				}
				if settings.PoolSize != 20 || settings.PerceptronEpochs != 15 || settings.CalibrationFolds != 3 {
					t.Errorf("unexpected pool settings %+v", settings)
				}
				if !reflect.DeepEqual(settings.Methods, []string{"OLA", "KNORA-U"}) {
					t.Errorf("unexpected methods %v", settings.Methods)
				}
				if settings.K != 5 || settings.SafeK != 5 {
					t.Errorf("expected K 5 and SafeK defaulting to K, got %d %d", settings.K, settings.SafeK)
				}
				if settings.Selection != "random" || settings.Mode != "weighting" {
					t.Errorf("unexpected rule/mode %q %q", settings.Selection, settings.Mode)
				}
				if settings.Synthetic.Samples != 500 || settings.Synthetic.Features != 8 || settings.Synthetic.Informative != 5 {
					t.Errorf("unexpected synthetic options %+v", settings.Synthetic)
				}
				if settings.Seed != 11 || settings.Synthetic.Seed != 11 {
					t.Errorf("expected seed 11, got %d", settings.Seed)
				}
				if settings.Workers != 2 || settings.LogLevel != "debug" || settings.MetricsFile != "metrics.prom" {
					t.Errorf("unexpected system settings %+v", settings)
				}
			},
		},
		{
			name: "environment overrides YAML",
			yamlContent: `
pool:
  size: 20
selection:
  methods: ["OLA"]
`,
			envOverrides: map[string]string{
				"POOL_SIZE": "30",
				"METHODS":   "MCB,DESP",
				"WORKERS":   "8",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.PoolSize != 30 {
					t.Errorf("expected PoolSize overridden to 30, got %d", settings.PoolSize)
				}
				if !reflect.DeepEqual(settings.Methods, []string{"MCB", "DESP"}) {
					t.Errorf("expected methods from env, got %v", settings.Methods)
				}
				if settings.Workers != 8 {
					t.Errorf("expected Workers 8, got %d", settings.Workers)
				}
				if settings.OutputPath != "results" {
					t.Errorf("expected default OutputPath, got %s", settings.OutputPath)
				}
			},
		},
		{
			name:        "invalid YAML",
			yamlContent: "pool: [unclosed",
			wantErr:     true,
		},
		{
			name: "invalid values",
			yamlContent: `
split:
  dselSize: 1.0
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			settings, err := loadFromYAML(path)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("uses CONFIG_FILE when set", func(t *testing.T) {
		clearTestEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("pool:\n  size: 12\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv("CONFIG_FILE", path)

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.PoolSize != 12 {
			t.Errorf("expected PoolSize 12, got %d", settings.PoolSize)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("falls back to environment", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("POOL_SIZE", "4")
		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.PoolSize != 4 {
			t.Errorf("expected PoolSize 4, got %d", settings.PoolSize)
		}
	})
}

func TestDESOptions(t *testing.T) {
	s := Defaults()
	s.K = 11
	s.DFP = true
	s.Selection = "diff"
	s.Mode = "hybrid"
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := s.DESOptions()
	if opts.K != 11 || opts.SafeK != 11 {
		t.Errorf("expected K/SafeK 11, got %d/%d", opts.K, opts.SafeK)
	}
	if !opts.DFP || opts.WithIH || opts.AKNN {
		t.Errorf("unexpected flags %+v", opts)
	}
	if opts.Selection != "diff" || opts.Mode != "hybrid" {
		t.Errorf("unexpected rule/mode %q %q", opts.Selection, opts.Mode)
	}
	if opts.Seed != s.Seed {
		t.Errorf("expected seed %d, got %d", s.Seed, opts.Seed)
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "DATASET_PATH", "DATASET_URL", "LABEL_COLUMN", "FETCH_TIMEOUT",
		"TEST_SIZE", "DSEL_SIZE", "STRATIFY", "SEED", "POOL_SIZE", "PERCEPTRON_EPOCHS",
		"CALIBRATION_FOLDS", "METHODS", "REGION_K", "SAFE_K", "IH_RATE", "DFP", "WITH_IH",
		"AKNN", "SELECTION_RULE", "COMBINATION_MODE", "OUTPUT_PATH", "DATA_PATH",
		"METRICS_FILE", "LOG_LEVEL", "WORKERS", "SYNTHETIC_SAMPLES", "SYNTHETIC_FEATURES",
		"SYNTHETIC_INFORMATIVE", "SYNTHETIC_CLASSES", "SYNTHETIC_SEPARATION",
		"SYNTHETIC_LABEL_NOISE",
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
