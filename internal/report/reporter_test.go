package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deslab/internal/experiment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *experiment.Results {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &experiment.Results{
		RunID:        "run-1",
		StartTime:    start,
		EndTime:      start.Add(3 * time.Second),
		Dataset:      experiment.Source{Name: "synthetic", Origin: "synthetic"},
		Samples:      1000,
		Features:     20,
		Classes:      []string{"0", "1"},
		TrainSize:    375,
		DSELSize:     375,
		TestSize:     250,
		PoolSize:     10,
		PoolAccuracy: 0.812,
		PoolFitTime:  120 * time.Millisecond,
		Methods: []experiment.MethodResult{
			{Name: "OLA", Accuracy: 0.8, Kappa: 0.6, Recall: []float64{0.8, 0.8}, FitTime: time.Millisecond, PredictTime: 2 * time.Millisecond},
			{Name: "META-DES", Accuracy: 0.856, Kappa: 0.71, Recall: []float64{0.85, 0.86}},
			{Name: "KNORA-E", Accuracy: 0.8, Kappa: 0.6, Recall: []float64{0.79, 0.81}},
		},
		Params: map[string]string{"k": "7", "seed": "42"},
	}
}

func TestGenerateReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, NewReporter(sampleResults(), dir).GenerateReport())

	summary, err := os.ReadFile(filepath.Join(dir, summaryFile))
	require.NoError(t, err)
	text := string(summary)
	assert.Contains(t, text, "Run: run-1")
	assert.Contains(t, text, "Train: 375, DSEL: 375, Test: 250")
	assert.Contains(t, text, "Accuracy: 0.8120")
	assert.Contains(t, text, "Best: META-DES (0.8560)")
	assert.Contains(t, text, "k: 7")

	f, err := os.Open(filepath.Join(dir, csvFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Method", "Accuracy", "Kappa", "Fit Seconds", "Predict Seconds", "Recall 0", "Recall 1"}, rows[0])
	assert.Equal(t, "META-DES", rows[2][0])
	assert.Equal(t, "0.8560", rows[2][1])
	assert.Equal(t, "0.8600", rows[2][6])

	data, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Contains(t, decoded, "generated_at")
	assert.Len(t, decoded["methods"], 3)
}

func TestGenerateReport_ShortRecall(t *testing.T) {
	res := sampleResults()
	res.Methods = []experiment.MethodResult{{Name: "OLA", Accuracy: 0.5}}
	dir := t.TempDir()
	require.NoError(t, NewReporter(res, dir).GenerateReport())

	data, err := os.ReadFile(filepath.Join(dir, csvFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], ",,"))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(sampleResults(), "").PrintSummary(&buf)

	want := "Evaluating DS techniques:\n" +
		"Classification accuracy of the pool: 0.8120\n" +
		"Classification accuracy OLA: 0.8000\n" +
		"Classification accuracy META-DES: 0.8560\n" +
		"Classification accuracy KNORA-E: 0.8000\n"
	if buf.String() != want {
		t.Errorf("PrintSummary() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRanking(t *testing.T) {
	res := sampleResults()
	assert.Equal(t, []string{"META-DES", "OLA", "KNORA-E"}, Ranking(res))
	assert.Equal(t, "META-DES > OLA > KNORA-E", FormatRanking(res))
	assert.Equal(t, "OLA", res.Methods[0].Name, "Ranking must not reorder the results")
}
