// Package report writes experiment results to disk and to the console.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"deslab/internal/experiment"

	"github.com/rs/zerolog/log"
)

const (
	summaryFile = "summary.txt"
	csvFile     = "results.csv"
	jsonFile    = "results.json"
)

// Reporter generates experiment reports
type Reporter struct {
	results    *experiment.Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *experiment.Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, the per-method CSV and the JSON dump
// into the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateMethodTable(); err != nil {
		return err
	}

	return r.generateJSONReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, summaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.results
	fmt.Fprintf(file, "DYNAMIC SELECTION RESULTS\n")
	fmt.Fprintf(file, "=========================\n\n")

	if res.RunID != "" {
		fmt.Fprintf(file, "Run: %s\n", res.RunID)
	}
	fmt.Fprintf(file, "Started: %s\n", res.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Duration: %s\n\n", res.EndTime.Sub(res.StartTime).Round(time.Millisecond))

	fmt.Fprintf(file, "DATASET\n")
	fmt.Fprintf(file, "-------\n")
	fmt.Fprintf(file, "Name: %s (%s)\n", res.Dataset.Name, res.Dataset.Origin)
	fmt.Fprintf(file, "Samples: %d, Features: %d, Classes: %d\n", res.Samples, res.Features, len(res.Classes))
	fmt.Fprintf(file, "Train: %d, DSEL: %d, Test: %d\n\n", res.TrainSize, res.DSELSize, res.TestSize)

	fmt.Fprintf(file, "POOL\n")
	fmt.Fprintf(file, "----\n")
	fmt.Fprintf(file, "Estimators: %d\n", res.PoolSize)
	fmt.Fprintf(file, "Accuracy: %.4f\n", res.PoolAccuracy)
	fmt.Fprintf(file, "Fit time: %s\n\n", res.PoolFitTime.Round(time.Microsecond))

	fmt.Fprintf(file, "METHODS\n")
	fmt.Fprintf(file, "-------\n")
	width := nameWidth(res.Methods)
	for _, m := range res.Methods {
		fmt.Fprintf(file, "%-*s  accuracy %.4f  kappa %.4f  fit %s  predict %s\n",
			width, m.Name, m.Accuracy, m.Kappa,
			m.FitTime.Round(time.Microsecond), m.PredictTime.Round(time.Microsecond))
	}
	if best, ok := res.Best(); ok {
		fmt.Fprintf(file, "\nBest: %s (%.4f)\n", best.Name, best.Accuracy)
	}

	if len(res.Params) > 0 {
		fmt.Fprintf(file, "\nPARAMETERS\n")
		fmt.Fprintf(file, "----------\n")
		keys := make([]string, 0, len(res.Params))
		for k := range res.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(file, "%s: %s\n", k, res.Params[k])
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateMethodTable writes one CSV row per method. Recall columns follow
// the class order of the dataset.
func (r *Reporter) generateMethodTable() error {
	csvPath := filepath.Join(r.outputPath, csvFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create results table: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Method", "Accuracy", "Kappa", "Fit Seconds", "Predict Seconds"}
	for _, c := range r.results.Classes {
		header = append(header, "Recall "+c)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, m := range r.results.Methods {
		record := []string{
			m.Name,
			strconv.FormatFloat(m.Accuracy, 'f', 4, 64),
			strconv.FormatFloat(m.Kappa, 'f', 4, 64),
			strconv.FormatFloat(m.FitTime.Seconds(), 'f', 6, 64),
			strconv.FormatFloat(m.PredictTime.Seconds(), 'f', 6, 64),
		}
		for c := range r.results.Classes {
			v := ""
			if c < len(m.Recall) {
				v = strconv.FormatFloat(m.Recall[c], 'f', 4, 64)
			}
			record = append(record, v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write results table: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Results table generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, jsonFile)

	report := struct {
		*experiment.Results
		GeneratedAt time.Time `json:"generated_at"`
	}{r.results, time.Now()}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary prints the accuracy table to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "Evaluating DS techniques:")
	fmt.Fprintf(w, "Classification accuracy of the pool: %.4f\n", r.results.PoolAccuracy)
	for _, m := range r.results.Methods {
		fmt.Fprintf(w, "Classification accuracy %s: %.4f\n", m.Name, m.Accuracy)
	}
}

func nameWidth(methods []experiment.MethodResult) int {
	width := 0
	for _, m := range methods {
		width = max(width, len(m.Name))
	}
	return width
}

// Ranking returns method names ordered by accuracy, best first. Ties keep
// the configured order.
func Ranking(results *experiment.Results) []string {
	methods := append([]experiment.MethodResult(nil), results.Methods...)
	sort.SliceStable(methods, func(i, j int) bool {
		return methods[i].Accuracy > methods[j].Accuracy
	})
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	return names
}

// FormatRanking joins Ranking with " > ".
func FormatRanking(results *experiment.Results) string {
	return strings.Join(Ranking(results), " > ")
}
