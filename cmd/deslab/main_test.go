package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deslab/internal/cfg"
	"deslab/internal/dataset"
	"deslab/internal/storage"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	f := cmd.Flags()
	f.StringVar(&datasetPath, "dataset", "", "")
	f.StringVar(&datasetURL, "url", "", "")
	f.StringVar(&labelColumn, "label", "", "")
	f.StringSliceVarP(&methods, "methods", "m", nil, "")
	f.IntVar(&poolSize, "pool-size", 0, "")
	f.IntVarP(&regionK, "region-k", "k", 0, "")
	f.Int64Var(&seed, "seed", 0, "")
	f.StringVarP(&outputPath, "output", "o", "", "")
	f.StringVar(&dataPath, "data", "", "")
	f.IntVar(&workers, "workers", 0, "")
	f.StringVar(&logLevel, "log-level", "", "")
	require.NoError(t, f.Parse(args))
	return cmd
}

func TestApplyFlags(t *testing.T) {
	cmd := newFlagCmd(t, "-m", "OLA,KNORA-E", "--pool-size", "20", "-k", "5", "--seed", "3", "-o", "out")
	config := cfg.Defaults()
	applyFlags(cmd, &config)

	assert.Equal(t, []string{"OLA", "KNORA-E"}, config.Methods)
	assert.Equal(t, 20, config.PoolSize)
	assert.Equal(t, 5, config.K)
	assert.Equal(t, 5, config.SafeK)
	assert.Equal(t, int64(3), config.Seed)
	assert.Equal(t, int64(3), config.Synthetic.Seed)
	assert.Equal(t, "out", config.OutputPath)
	require.NoError(t, config.Validate())
}

func TestApplyFlags_RegionKKeepsConfiguredSafeK(t *testing.T) {
	cmd := newFlagCmd(t, "--region-k", "9")
	config := cfg.Defaults()
	config.SafeK = 3
	applyFlags(cmd, &config)

	assert.Equal(t, 9, config.K)
	assert.Equal(t, 3, config.SafeK)

	// A SafeK that only mirrors K follows the flag.
	config = cfg.Defaults()
	config.SafeK = config.K
	applyFlags(cmd, &config)
	assert.Equal(t, 9, config.SafeK)
}

func TestApplyFlags_UnsetFlagsKeepConfig(t *testing.T) {
	cmd := newFlagCmd(t)
	config := cfg.Defaults()
	config.PoolSize = 42
	applyFlags(cmd, &config)

	assert.Equal(t, 42, config.PoolSize)
	assert.Equal(t, cfg.DefaultMethods, config.Methods)
	assert.Equal(t, "results", config.OutputPath)
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, nil))
	assert.Equal(t, "No runs recorded.\n", buf.String())

	buf.Reset()
	runs := []storage.RunRecord{
		{
			ID:           "0123456789abcdef",
			StartedAt:    time.Now(),
			Dataset:      "synthetic",
			Samples:      1000,
			PoolAccuracy: 0.8,
			Results: []storage.MethodResult{
				{Name: "OLA", Accuracy: 0.81},
				{Name: "META-DES", Accuracy: 0.86},
			},
		},
		{ID: "short", Dataset: "empty"},
	}
	require.NoError(t, printHistory(&buf, runs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "BEST")
	assert.Contains(t, lines[1], "01234567")
	assert.NotContains(t, lines[1], "0123456789")
	assert.Contains(t, lines[1], "META-DES")
	assert.Contains(t, lines[1], "0.8600")
	assert.Contains(t, lines[2], "short")
}

func TestLoadHistory(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for day := 1; day <= 3; day++ {
		_, err := store.SaveRun(storage.RunRecord{
			ID:        fmt.Sprintf("run-%d", day),
			StartedAt: time.Date(2024, 3, day, 12, 0, 0, 0, time.Local),
		})
		require.NoError(t, err)
	}
	ids := func(runs []storage.RunRecord) []string {
		out := make([]string, len(runs))
		for i, r := range runs {
			out[i] = r.ID
		}
		return out
	}

	tests := []struct {
		name         string
		since, until string
		limit        int
		want         []string
	}{
		{"no bounds", "", "", 2, []string{"run-3", "run-2"}},
		{"since date", "2024-03-02", "", 0, []string{"run-3", "run-2"}},
		{"until date covers the day", "", "2024-03-02", 0, []string{"run-2", "run-1"}},
		{"single day", "2024-03-02", "2024-03-02", 0, []string{"run-2"}},
		{"limit keeps newest", "2024-03-01", "", 1, []string{"run-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := loadHistory(store, tt.since, tt.until, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(runs))
		})
	}

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	runs, err := loadHistory(store, first.Add(-time.Minute).Format(time.RFC3339), first.Add(time.Minute).Format(time.RFC3339), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids(runs))

	_, err = loadHistory(store, "yesterday", "", 0)
	assert.ErrorContains(t, err, "--since")
	_, err = loadHistory(store, "2024-03-03", "2024-03-01", 0)
	assert.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	t.Setenv("SYNTHETIC_SAMPLES", "40")
	t.Setenv("SYNTHETIC_FEATURES", "3")
	t.Setenv("SYNTHETIC_INFORMATIVE", "2")
	out := filepath.Join(t.TempDir(), "nested", "toy.csv")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"generate", "--out", out, "--seed", "9"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		generateOut = ""
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Generated 40 samples, 3 features, 2 classes")

	d, err := dataset.LoadCSV(out, "")
	require.NoError(t, err)
	assert.Equal(t, 40, d.Len())
	assert.Equal(t, 3, d.NumFeatures())
}
