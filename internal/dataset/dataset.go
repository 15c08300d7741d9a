// Package dataset loads and prepares tabular classification data.
// It covers CSV loading (local or fetched over HTTP), a deterministic
// synthetic generator, label encoding, train/test splitting, stratified
// folds and feature standardization.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyDataset is returned when an operation needs at least one sample.
	ErrEmptyDataset = errors.New("dataset: no samples")
	// ErrShapeMismatch is returned when X and Y disagree in length or rows are ragged.
	ErrShapeMismatch = errors.New("dataset: shape mismatch")
)

// Dataset is a dense feature matrix with integer-encoded labels.
// Y[i] indexes into Classes.
type Dataset struct {
	X        [][]float64
	Y        []int
	Classes  []string
	Features []string
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.X) }

// NumFeatures returns the number of columns, or 0 for an empty dataset.
func (d *Dataset) NumFeatures() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// NumClasses returns the number of distinct labels known to the encoder.
func (d *Dataset) NumClasses() int { return len(d.Classes) }

// Validate checks that the dataset is non-empty, rectangular and that every
// label is a valid class index.
func (d *Dataset) Validate() error {
	if len(d.X) == 0 {
		return ErrEmptyDataset
	}
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(d.X), len(d.Y))
	}
	cols := len(d.X[0])
	for i, row := range d.X {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShapeMismatch, i, len(row), cols)
		}
	}
	for i, y := range d.Y {
		if y < 0 || y >= len(d.Classes) {
			return fmt.Errorf("dataset: label %d at row %d out of range [0,%d)", y, i, len(d.Classes))
		}
	}
	return nil
}

// Subset returns a view of the samples at idx. Rows are shared, not copied.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		X:        make([][]float64, len(idx)),
		Y:        make([]int, len(idx)),
		Classes:  d.Classes,
		Features: d.Features,
	}
	for i, j := range idx {
		out.X[i] = d.X[j]
		out.Y[i] = d.Y[j]
	}
	return out
}

// ClassCounts returns the number of samples per class index.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, len(d.Classes))
	for _, y := range d.Y {
		counts[y]++
	}
	return counts
}

// EncodeLabels maps raw label strings to class indices. Classes are sorted
// numerically when every label parses as a number, lexically otherwise.
func EncodeLabels(raw []string) ([]int, []string) {
	seen := make(map[string]struct{})
	for _, r := range raw {
		seen[r] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}

	numeric := true
	values := make(map[string]float64, len(classes))
	for _, c := range classes {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			numeric = false
			break
		}
		values[c] = v
	}
	if numeric {
		sort.Slice(classes, func(i, j int) bool { return values[classes[i]] < values[classes[j]] })
	} else {
		sort.Strings(classes)
	}

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]int, len(raw))
	for i, r := range raw {
		y[i] = index[r]
	}
	return y, classes
}

// LoadCSV reads a CSV file with a header row. labelColumn names the target
// column; an empty name selects the last column.
func LoadCSV(path, labelColumn string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	d, err := ReadCSV(file, labelColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("samples", d.Len()).
		Int("features", d.NumFeatures()).
		Int("classes", d.NumClasses()).
		Msg("Dataset loaded from CSV")
	return d, nil
}

// ReadCSV parses CSV content. See LoadCSV.
func ReadCSV(r io.Reader, labelColumn string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDataset
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("CSV needs at least one feature and one label column, got %d columns", len(header))
	}

	labelIdx := len(header) - 1
	if labelColumn != "" {
		labelIdx = -1
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), labelColumn) {
				labelIdx = i
				break
			}
		}
		if labelIdx < 0 {
			return nil, fmt.Errorf("label column %q not found in header", labelColumn)
		}
	}

	features := make([]string, 0, len(header)-1)
	for i, h := range header {
		if i != labelIdx {
			features = append(features, strings.TrimSpace(h))
		}
	}

	var (
		X      [][]float64
		labels []string
		line   = 1
	)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(rec))
		}

		row := make([]float64, 0, len(features))
		for i, cell := range rec {
			if i == labelIdx {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: invalid number %q", line, header[i], cell)
			}
			row = append(row, v)
		}
		X = append(X, row)
		labels = append(labels, strings.TrimSpace(rec[labelIdx]))
	}

	if len(X) == 0 {
		return nil, ErrEmptyDataset
	}

	y, classes := EncodeLabels(labels)
	return &Dataset{X: X, Y: y, Classes: classes, Features: features}, nil
}

// WriteCSV writes d with a header row, features first and the label in a
// final column named labelColumn ("label" when empty). ReadCSV reads it back.
func WriteCSV(w io.Writer, d *Dataset, labelColumn string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if labelColumn == "" {
		labelColumn = "label"
	}

	writer := csv.NewWriter(w)
	header := make([]string, 0, d.NumFeatures()+1)
	for j := 0; j < d.NumFeatures(); j++ {
		if j < len(d.Features) {
			header = append(header, d.Features[j])
		} else {
			header = append(header, fmt.Sprintf("x%d", j))
		}
	}
	header = append(header, labelColumn)
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, row := range d.X {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(row)] = d.Classes[d.Y[i]]
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes d to path with WriteCSV.
func SaveCSV(path string, d *Dataset, labelColumn string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := WriteCSV(file, d, labelColumn); err != nil {
		file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	log.Info().Str("path", path).Int("samples", d.Len()).Msg("Dataset written to CSV")
	return nil
}
