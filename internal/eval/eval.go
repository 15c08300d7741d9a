// Package eval computes classification scores from true and predicted labels.
package eval

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when there is nothing to score.
var ErrEmpty = errors.New("eval: no samples")

func check(yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return ErrEmpty
	}
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("eval: %d true labels but %d predictions", len(yTrue), len(yPred))
	}
	return nil
}

// Accuracy is the fraction of predictions equal to the true label.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue)), nil
}

// ConfusionMatrix returns counts m[true][pred] for labels in [0,numClasses).
func ConfusionMatrix(yTrue, yPred []int, numClasses int) ([][]int, error) {
	if err := check(yTrue, yPred); err != nil {
		return nil, err
	}
	m := make([][]int, numClasses)
	for i := range m {
		m[i] = make([]int, numClasses)
	}
	for i := range yTrue {
		if yTrue[i] < 0 || yTrue[i] >= numClasses || yPred[i] < 0 || yPred[i] >= numClasses {
			return nil, fmt.Errorf("eval: label out of range at %d (true=%d pred=%d, classes=%d)", i, yTrue[i], yPred[i], numClasses)
		}
		m[yTrue[i]][yPred[i]]++
	}
	return m, nil
}

// Recall returns per-class recall. Classes absent from yTrue get 0.
func Recall(yTrue, yPred []int, numClasses int) ([]float64, error) {
	m, err := ConfusionMatrix(yTrue, yPred, numClasses)
	if err != nil {
		return nil, err
	}
	out := make([]float64, numClasses)
	for c, row := range m {
		total := 0
		for _, v := range row {
			total += v
		}
		if total > 0 {
			out[c] = float64(row[c]) / float64(total)
		}
	}
	return out, nil
}

// CohenKappa measures agreement corrected for chance. A perfect but trivial
// agreement (single class on both sides) scores 1.
func CohenKappa(yTrue, yPred []int, numClasses int) (float64, error) {
	m, err := ConfusionMatrix(yTrue, yPred, numClasses)
	if err != nil {
		return 0, err
	}
	n := float64(len(yTrue))
	observed, expected := 0.0, 0.0
	for c := 0; c < numClasses; c++ {
		observed += float64(m[c][c])
		rowSum, colSum := 0, 0
		for k := 0; k < numClasses; k++ {
			rowSum += m[c][k]
			colSum += m[k][c]
		}
		expected += float64(rowSum) * float64(colSum)
	}
	observed /= n
	expected /= n * n
	if expected == 1 {
		return 1, nil
	}
	return (observed - expected) / (1 - expected), nil
}
