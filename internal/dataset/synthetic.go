package dataset

import (
	"fmt"
	"math/rand"
)

// SyntheticOptions controls the built-in Gaussian-cluster dataset.
type SyntheticOptions struct {
	Samples     int
	Features    int
	Informative int // columns carrying class signal; the rest are noise
	Classes     int
	Separation  float64 // distance scale between class centroids
	LabelNoise  float64 // fraction of labels flipped at random
	Seed        int64
}

// DefaultSyntheticOptions returns a moderately hard binary problem.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Samples:     1000,
		Features:    20,
		Informative: 5,
		Classes:     2,
		Separation:  1.0,
		LabelNoise:  0.05,
		Seed:        42,
	}
}

// Synthetic generates a classification dataset where each class is a mixture
// of two Gaussian clusters placed on random hypercube vertices of the
// informative subspace. The output is fully determined by opts.Seed.
func Synthetic(opts SyntheticOptions) (*Dataset, error) {
	if opts.Samples < opts.Classes || opts.Classes < 2 {
		return nil, fmt.Errorf("synthetic: need at least 2 classes and one sample per class, got samples=%d classes=%d", opts.Samples, opts.Classes)
	}
	if opts.Informative < 1 || opts.Informative > opts.Features {
		return nil, fmt.Errorf("synthetic: informative features must be in [1,%d], got %d", opts.Features, opts.Informative)
	}
	if opts.LabelNoise < 0 || opts.LabelNoise >= 1 {
		return nil, fmt.Errorf("synthetic: label noise must be in [0,1), got %f", opts.LabelNoise)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	const clustersPerClass = 2

	centroids := make([][]float64, opts.Classes*clustersPerClass)
	for c := range centroids {
		centroids[c] = make([]float64, opts.Informative)
		for j := range centroids[c] {
			if rng.Intn(2) == 0 {
				centroids[c][j] = -opts.Separation
			} else {
				centroids[c][j] = opts.Separation
			}
		}
	}

	X := make([][]float64, opts.Samples)
	Y := make([]int, opts.Samples)
	for i := 0; i < opts.Samples; i++ {
		class := i % opts.Classes
		cluster := class*clustersPerClass + rng.Intn(clustersPerClass)

		row := make([]float64, opts.Features)
		for j := 0; j < opts.Informative; j++ {
			row[j] = centroids[cluster][j] + rng.NormFloat64()
		}
		for j := opts.Informative; j < opts.Features; j++ {
			row[j] = rng.NormFloat64()
		}
		X[i] = row
		Y[i] = class
	}

	for i := range Y {
		if rng.Float64() < opts.LabelNoise {
			Y[i] = rng.Intn(opts.Classes)
		}
	}

	rng.Shuffle(len(X), func(i, j int) {
		X[i], X[j] = X[j], X[i]
		Y[i], Y[j] = Y[j], Y[i]
	})

	classes := make([]string, opts.Classes)
	for c := range classes {
		classes[c] = fmt.Sprintf("%d", c)
	}
	features := make([]string, opts.Features)
	for j := range features {
		features[j] = fmt.Sprintf("x%d", j)
	}
	return &Dataset{X: X, Y: Y, Classes: classes, Features: features}, nil
}
