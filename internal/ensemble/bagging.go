package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// ErrNotFitted is returned when a pool is used before Fit.
var ErrNotFitted = errors.New("ensemble: not fitted")

// Bagging trains NEstimators copies of a base estimator, each on a bootstrap
// sample of the training set. Estimators are fitted concurrently; every
// estimator draws from its own rng seeded up front, so the fitted pool does
// not depend on goroutine scheduling.
type Bagging struct {
	Factory     Factory
	NEstimators int
	MaxSamples  float64 // bootstrap size as a fraction of the training set
	Seed        int64
	Workers     int

	estimators []Estimator
	samples    [][]int
	numClasses int
}

// NewBagging creates a bagging ensemble of n estimators built by factory.
func NewBagging(factory Factory, n int, seed int64) *Bagging {
	return &Bagging{
		Factory:     factory,
		NEstimators: n,
		MaxSamples:  1.0,
		Seed:        seed,
		Workers:     runtime.GOMAXPROCS(0),
	}
}

// Fit draws the bootstrap samples and trains the estimators.
func (b *Bagging) Fit(ctx context.Context, X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return fmt.Errorf("bagging: no training samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("bagging: %d rows but %d labels", len(X), len(y))
	}
	if b.NEstimators < 1 {
		return fmt.Errorf("bagging: need at least one estimator, got %d", b.NEstimators)
	}
	if b.MaxSamples <= 0 || b.MaxSamples > 1 {
		return fmt.Errorf("bagging: max samples must be in (0,1], got %f", b.MaxSamples)
	}

	start := time.Now()
	master := rand.New(rand.NewSource(b.Seed))
	nSamples := max(1, int(float64(len(X))*b.MaxSamples))

	seeds := make([]int64, b.NEstimators)
	samples := make([][]int, b.NEstimators)
	for e := range samples {
		seeds[e] = master.Int63()
		idx := make([]int, nSamples)
		for i := range idx {
			idx[i] = master.Intn(len(X))
		}
		samples[e] = idx
	}

	estimators := make([]Estimator, b.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	if b.Workers > 0 {
		g.SetLimit(b.Workers)
	}
	for e := range estimators {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			Xb := make([][]float64, len(samples[e]))
			yb := make([]int, len(samples[e]))
			for i, j := range samples[e] {
				Xb[i] = X[j]
				yb[i] = y[j]
			}
			est := b.Factory()
			if err := est.Fit(Xb, yb, numClasses, rand.New(rand.NewSource(seeds[e]))); err != nil {
				return fmt.Errorf("estimator %d: %w", e, err)
			}
			estimators[e] = est
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bagging: %w", err)
	}

	b.estimators = estimators
	b.samples = samples
	b.numClasses = numClasses

	log.Debug().
		Int("estimators", b.NEstimators).
		Int("bootstrap_size", nSamples).
		Dur("elapsed", time.Since(start)).
		Msg("Bagging pool fitted")
	return nil
}

// Pool returns the fitted estimators as classifiers.
func (b *Bagging) Pool() ([]Classifier, error) {
	if len(b.estimators) == 0 {
		return nil, ErrNotFitted
	}
	pool := make([]Classifier, len(b.estimators))
	for i, e := range b.estimators {
		pool[i] = e
	}
	return pool, nil
}

// Samples returns the bootstrap indices used for each estimator.
func (b *Bagging) Samples() [][]int { return b.samples }

// NumClasses returns the number of classes seen at Fit.
func (b *Bagging) NumClasses() int { return b.numClasses }

// Predict returns the majority vote of the estimators.
func (b *Bagging) Predict(x []float64) int {
	labels := make([]int, len(b.estimators))
	for i, e := range b.estimators {
		labels[i] = e.Predict(x)
	}
	return Vote(labels, nil, b.numClasses)
}

// PredictProba averages estimator probabilities.
func (b *Bagging) PredictProba(x []float64) []float64 {
	proba := make([]float64, b.numClasses)
	if len(b.estimators) == 0 {
		return proba
	}
	for _, e := range b.estimators {
		floats.Add(proba, e.PredictProba(x))
	}
	floats.Scale(1/float64(len(b.estimators)), proba)
	return proba
}
