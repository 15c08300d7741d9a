package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"deslab/internal/des"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ConfigFile struct {
	Data struct {
		Path         string `yaml:"path"`
		URL          string `yaml:"url"`
		LabelColumn  string `yaml:"labelColumn"`
		FetchTimeout string `yaml:"fetchTimeout"`
		Synthetic    struct {
			Samples     int     `yaml:"samples"`
			Features    int     `yaml:"features"`
			Informative int     `yaml:"informative"`
			Classes     int     `yaml:"classes"`
			Separation  float64 `yaml:"separation"`
			LabelNoise  float64 `yaml:"labelNoise"`
		} `yaml:"synthetic"`
	} `yaml:"data"`

	Split struct {
		TestSize float64 `yaml:"testSize"`
		DSELSize float64 `yaml:"dselSize"`
		Stratify *bool   `yaml:"stratify"`
		Seed     int64   `yaml:"seed"`
	} `yaml:"split"`

	Pool struct {
		Size             int `yaml:"size"`
		PerceptronEpochs int `yaml:"perceptronEpochs"`
		CalibrationFolds int `yaml:"calibrationFolds"`
	} `yaml:"pool"`

	Selection struct {
		Methods []string `yaml:"methods"`
		K       int      `yaml:"k"`
		SafeK   int      `yaml:"safeK"`
		IHRate  float64  `yaml:"ihRate"`
		DFP     bool     `yaml:"dfp"`
		WithIH  bool     `yaml:"withIH"`
		AKNN    bool     `yaml:"aknn"`
		Rule    string   `yaml:"rule"`
		Mode    string   `yaml:"mode"`
	} `yaml:"selection"`

	System struct {
		OutputPath  string `yaml:"outputPath"`
		DataPath    string `yaml:"dataPath"`
		MetricsFile string `yaml:"metricsFile"`
		LogLevel    string `yaml:"logLevel"`
		Workers     int    `yaml:"workers"`
	} `yaml:"system"`
}

// Load reads settings from a YAML file when CONFIG_FILE is set and from the
// environment otherwise. Variables in a .env file in the working directory
// are loaded first; variables already set in the process take precedence.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	def := Defaults()
	fetchTimeout, err := time.ParseDuration(config.Data.FetchTimeout)
	if err != nil {
		fetchTimeout = def.FetchTimeout
	}
	stratify := def.Stratify
	if config.Split.Stratify != nil {
		stratify = *config.Split.Stratify
	}

	syn := def.Synthetic
	settings := Settings{
		DatasetPath:  getEnvOrDefault("DATASET_PATH", config.Data.Path),
		DatasetURL:   getEnvOrDefault("DATASET_URL", config.Data.URL),
		LabelColumn:  getEnvOrDefault("LABEL_COLUMN", config.Data.LabelColumn),
		FetchTimeout: getDurationOrDefault("FETCH_TIMEOUT", fetchTimeout),
		TestSize:     getFloatFromEnvOrConfig("TEST_SIZE", config.Split.TestSize, def.TestSize),
		DSELSize:     getFloatFromEnvOrConfig("DSEL_SIZE", config.Split.DSELSize, def.DSELSize),
		Stratify:     getBoolOrDefault("STRATIFY", stratify),
		Seed:         int64(getIntFromEnvOrConfig("SEED", int(config.Split.Seed), int(def.Seed))),

		PoolSize:         getIntFromEnvOrConfig("POOL_SIZE", config.Pool.Size, def.PoolSize),
		PerceptronEpochs: getIntFromEnvOrConfig("PERCEPTRON_EPOCHS", config.Pool.PerceptronEpochs, def.PerceptronEpochs),
		CalibrationFolds: getIntFromEnvOrConfig("CALIBRATION_FOLDS", config.Pool.CalibrationFolds, def.CalibrationFolds),

		Methods:   getListFromEnvOrConfig("METHODS", config.Selection.Methods, def.Methods),
		K:         getIntFromEnvOrConfig("REGION_K", config.Selection.K, def.K),
		SafeK:     getIntFromEnvOrConfig("SAFE_K", config.Selection.SafeK, def.SafeK),
		IHRate:    getFloatFromEnvOrConfig("IH_RATE", config.Selection.IHRate, def.IHRate),
		DFP:       getBoolOrDefault("DFP", config.Selection.DFP),
		WithIH:    getBoolOrDefault("WITH_IH", config.Selection.WithIH),
		AKNN:      getBoolOrDefault("AKNN", config.Selection.AKNN),
		Selection: getEnvOrDefault("SELECTION_RULE", config.Selection.Rule),
		Mode:      getEnvOrDefault("COMBINATION_MODE", config.Selection.Mode),

		OutputPath:  getEnvOrDefault("OUTPUT_PATH", orDefault(config.System.OutputPath, def.OutputPath)),
		DataPath:    getEnvOrDefault("DATA_PATH", orDefault(config.System.DataPath, def.DataPath)),
		MetricsFile: getEnvOrDefault("METRICS_FILE", config.System.MetricsFile),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", orDefault(config.System.LogLevel, def.LogLevel)),
		Workers:     getIntFromEnvOrConfig("WORKERS", config.System.Workers, def.Workers),
	}

	syn.Samples = getIntFromEnvOrConfig("SYNTHETIC_SAMPLES", config.Data.Synthetic.Samples, syn.Samples)
	syn.Features = getIntFromEnvOrConfig("SYNTHETIC_FEATURES", config.Data.Synthetic.Features, syn.Features)
	syn.Informative = getIntFromEnvOrConfig("SYNTHETIC_INFORMATIVE", config.Data.Synthetic.Informative, syn.Informative)
	syn.Classes = getIntFromEnvOrConfig("SYNTHETIC_CLASSES", config.Data.Synthetic.Classes, syn.Classes)
	syn.Separation = getFloatFromEnvOrConfig("SYNTHETIC_SEPARATION", config.Data.Synthetic.Separation, syn.Separation)
	syn.LabelNoise = getFloatFromEnvOrConfig("SYNTHETIC_LABEL_NOISE", config.Data.Synthetic.LabelNoise, syn.LabelNoise)
	syn.Seed = settings.Seed
	settings.Synthetic = syn

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	def := Defaults()
	settings := Settings{
		DatasetPath:  os.Getenv("DATASET_PATH"),
		DatasetURL:   os.Getenv("DATASET_URL"),
		LabelColumn:  os.Getenv("LABEL_COLUMN"),
		FetchTimeout: getDurationOrDefault("FETCH_TIMEOUT", def.FetchTimeout),
		TestSize:     getFloatOrDefault("TEST_SIZE", def.TestSize),
		DSELSize:     getFloatOrDefault("DSEL_SIZE", def.DSELSize),
		Stratify:     getBoolOrDefault("STRATIFY", def.Stratify),
		Seed:         int64(getIntOrDefault("SEED", int(def.Seed))),

		PoolSize:         getIntOrDefault("POOL_SIZE", def.PoolSize),
		PerceptronEpochs: getIntOrDefault("PERCEPTRON_EPOCHS", def.PerceptronEpochs),
		CalibrationFolds: getIntOrDefault("CALIBRATION_FOLDS", def.CalibrationFolds),

		Methods:   splitOrDefault(os.Getenv("METHODS"), def.Methods),
		K:         getIntOrDefault("REGION_K", def.K),
		SafeK:     getIntOrDefault("SAFE_K", def.SafeK),
		IHRate:    getFloatOrDefault("IH_RATE", def.IHRate),
		DFP:       getBoolOrDefault("DFP", false),
		WithIH:    getBoolOrDefault("WITH_IH", false),
		AKNN:      getBoolOrDefault("AKNN", false),
		Selection: os.Getenv("SELECTION_RULE"),
		Mode:      os.Getenv("COMBINATION_MODE"),

		OutputPath:  getEnvOrDefault("OUTPUT_PATH", def.OutputPath),
		DataPath:    getEnvOrDefault("DATA_PATH", def.DataPath),
		MetricsFile: os.Getenv("METRICS_FILE"), // optional
		LogLevel:    getEnvOrDefault("LOG_LEVEL", def.LogLevel),
		Workers:     getIntOrDefault("WORKERS", def.Workers),
	}

	syn := def.Synthetic
	syn.Samples = getIntOrDefault("SYNTHETIC_SAMPLES", syn.Samples)
	syn.Features = getIntOrDefault("SYNTHETIC_FEATURES", syn.Features)
	syn.Informative = getIntOrDefault("SYNTHETIC_INFORMATIVE", syn.Informative)
	syn.Classes = getIntOrDefault("SYNTHETIC_CLASSES", syn.Classes)
	syn.Separation = getFloatOrDefault("SYNTHETIC_SEPARATION", syn.Separation)
	syn.LabelNoise = getFloatOrDefault("SYNTHETIC_LABEL_NOISE", syn.LabelNoise)
	syn.Seed = settings.Seed
	settings.Synthetic = syn

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return append([]string(nil), def...)
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getListFromEnvOrConfig(key string, configValue, def []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, def)
	}
	if len(configValue) > 0 {
		return configValue
	}
	return append([]string(nil), def...)
}

func getIntFromEnvOrConfig(key string, configValue, def int) int {
	if configValue != 0 {
		def = configValue
	}
	return getIntOrDefault(key, def)
}

func getFloatFromEnvOrConfig(key string, configValue, def float64) float64 {
	if configValue != 0 {
		def = configValue
	}
	return getFloatOrDefault(key, def)
}

// validateSettings checks ranges and normalises the selection rule and
// combination mode names.
func validateSettings(settings *Settings) error {
	if settings.TestSize <= 0 || settings.TestSize >= 1 {
		return fmt.Errorf("test size must be in (0,1), got %f", settings.TestSize)
	}
	if settings.DSELSize <= 0 || settings.DSELSize >= 1 {
		return fmt.Errorf("DSEL size must be in (0,1), got %f", settings.DSELSize)
	}

	if settings.PoolSize < 1 || settings.PoolSize > 1000 {
		return fmt.Errorf("pool size must be between 1 and 1000, got %d", settings.PoolSize)
	}
	if settings.PerceptronEpochs < 1 {
		return fmt.Errorf("perceptron epochs must be at least 1, got %d", settings.PerceptronEpochs)
	}
	if settings.CalibrationFolds < 2 {
		return fmt.Errorf("calibration folds must be at least 2, got %d", settings.CalibrationFolds)
	}

	if settings.K < 1 {
		return fmt.Errorf("K must be at least 1, got %d", settings.K)
	}
	if settings.SafeK == 0 {
		settings.SafeK = settings.K
	}
	if settings.SafeK < 1 {
		return fmt.Errorf("safe K must be at least 1, got %d", settings.SafeK)
	}
	if settings.IHRate < 0 || settings.IHRate > 1 {
		return fmt.Errorf("IH rate must be in [0,1], got %f", settings.IHRate)
	}

	if len(settings.Methods) == 0 {
		return fmt.Errorf("at least one selection method must be specified")
	}
	for _, m := range settings.Methods {
		if !des.Known(m) {
			return fmt.Errorf("unknown selection method %q (known: %s)", m, strings.Join(des.Names(), ", "))
		}
	}
	sel, err := des.ParseSelection(settings.Selection)
	if err != nil {
		return err
	}
	settings.Selection = string(sel)
	mode, err := des.ParseMode(settings.Mode)
	if err != nil {
		return err
	}
	settings.Mode = string(mode)

	if settings.Workers < 1 || settings.Workers > 256 {
		return fmt.Errorf("workers must be between 1 and 256, got %d", settings.Workers)
	}
	if settings.FetchTimeout < time.Second || settings.FetchTimeout > 10*time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 10m, got %v", settings.FetchTimeout)
	}
	if settings.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	return nil
}

// Validate re-checks settings after command-line overrides.
func (s *Settings) Validate() error {
	return validateSettings(s)
}
