// Package ensemble defines the classifier contract shared by base learners,
// pools and selection methods, and implements bootstrap aggregation.
package ensemble

import (
	"context"
	"math/rand"
	"runtime"

	"deslab/internal/eval"

	"golang.org/x/sync/errgroup"
)

// Classifier is a fitted model over integer class labels.
type Classifier interface {
	Predict(x []float64) int
	PredictProba(x []float64) []float64
	NumClasses() int
}

// Estimator is a Classifier that can be trained.
type Estimator interface {
	Classifier
	Fit(X [][]float64, y []int, numClasses int, rng *rand.Rand) error
}

// Factory builds an untrained estimator.
type Factory func() Estimator

// PredictAll labels every row of X, spreading rows over GOMAXPROCS workers.
func PredictAll(ctx context.Context, clf Classifier, X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	err := parallelRows(ctx, len(X), func(i int) {
		out[i] = clf.Predict(X[i])
	})
	return out, err
}

// PredictProbaAll returns class probabilities for every row of X.
func PredictProbaAll(ctx context.Context, clf Classifier, X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	err := parallelRows(ctx, len(X), func(i int) {
		out[i] = clf.PredictProba(X[i])
	})
	return out, err
}

// Score returns the accuracy of clf on X, y.
func Score(ctx context.Context, clf Classifier, X [][]float64, y []int) (float64, error) {
	pred, err := PredictAll(ctx, clf, X)
	if err != nil {
		return 0, err
	}
	return eval.Accuracy(y, pred)
}

func parallelRows(ctx context.Context, n int, fn func(i int)) error {
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (n + workers - 1) / workers
	if rowsPerWorker == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += rowsPerWorker {
		end := min(start+rowsPerWorker, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%64 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}

// Vote returns the label with the largest total weight. A nil weights slice
// counts each label once. Ties go to the lowest class index.
func Vote(labels []int, weights []float64, numClasses int) int {
	tally := make([]float64, numClasses)
	for i, l := range labels {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		tally[l] += w
	}
	best := 0
	for c := 1; c < numClasses; c++ {
		if tally[c] > tally[best] {
			best = c
		}
	}
	return best
}

// Mode returns the most frequent label and its count, ties to the lowest label.
func Mode(labels []int, numClasses int) (label, count int) {
	counts := make([]int, numClasses)
	for _, l := range labels {
		counts[l]++
	}
	for c, n := range counts {
		if n > count {
			label, count = c, n
		}
	}
	return label, count
}
