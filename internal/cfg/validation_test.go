package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	s := Defaults()
	return &s
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Ranges(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(s *Settings)
		wantErr string
	}{
		{"zero test size", func(s *Settings) { s.TestSize = 0 }, "test size"},
		{"test size of one", func(s *Settings) { s.TestSize = 1 }, "test size"},
		{"negative DSEL size", func(s *Settings) { s.DSELSize = -0.1 }, "DSEL size"},
		{"empty pool", func(s *Settings) { s.PoolSize = 0 }, "pool size"},
		{"huge pool", func(s *Settings) { s.PoolSize = 1001 }, "pool size"},
		{"no epochs", func(s *Settings) { s.PerceptronEpochs = 0 }, "perceptron epochs"},
		{"single fold", func(s *Settings) { s.CalibrationFolds = 1 }, "calibration folds"},
		{"zero K", func(s *Settings) { s.K = 0 }, "K must be"},
		{"negative safe K", func(s *Settings) { s.SafeK = -2 }, "safe K"},
		{"IH rate above one", func(s *Settings) { s.IHRate = 1.2 }, "IH rate"},
		{"no methods", func(s *Settings) { s.Methods = nil }, "at least one"},
		{"unknown method", func(s *Settings) { s.Methods = []string{"OLA", "Boosting"} }, "Boosting"},
		{"unknown rule", func(s *Settings) { s.Selection = "worst" }, "selection rule"},
		{"unknown mode", func(s *Settings) { s.Mode = "stacking" }, "combination mode"},
		{"no workers", func(s *Settings) { s.Workers = 0 }, "workers"},
		{"tiny fetch timeout", func(s *Settings) { s.FetchTimeout = time.Millisecond }, "fetch timeout"},
		{"empty output path", func(s *Settings) { s.OutputPath = "" }, "output path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.modify(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSettings_Boundaries(t *testing.T) {
	settings := createValidSettings()
	settings.IHRate = 0
	settings.PoolSize = 1
	settings.CalibrationFolds = 2
	settings.Methods = []string{"oracle", "single best", "static-selection"}
	settings.Selection = "BEST"

	if err := validateSettings(settings); err != nil {
		t.Fatalf("expected boundary values to pass, got %v", err)
	}
	if settings.Selection != "best" {
		t.Errorf("expected rule normalised to lower case, got %q", settings.Selection)
	}
}

func TestValidateSettings_SafeKDefaultsToK(t *testing.T) {
	settings := createValidSettings()
	settings.K = 13
	settings.SafeK = 0

	if err := validateSettings(settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.SafeK != 13 {
		t.Errorf("expected SafeK 13, got %d", settings.SafeK)
	}
}
