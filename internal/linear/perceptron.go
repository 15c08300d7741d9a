// Package linear implements the linear base learners used to build the
// classifier pool: a perceptron and a cross-validated sigmoid calibration
// wrapper that turns its decision values into class probabilities.
package linear

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// ErrEmptyInput is returned when Fit receives no samples.
var ErrEmptyInput = errors.New("linear: no training samples")

// Perceptron is a linear classifier trained with the perceptron rule.
// Two-class problems use a single hyperplane separating class 1 from class 0;
// otherwise one hyperplane per class is trained one-vs-rest.
type Perceptron struct {
	MaxIter int
	Eta0    float64

	W          [][]float64
	B          []float64
	numClasses int
}

// NewPerceptron creates a perceptron running at most maxIter epochs.
func NewPerceptron(maxIter int) *Perceptron {
	if maxIter <= 0 {
		maxIter = 10
	}
	return &Perceptron{MaxIter: maxIter, Eta0: 1.0}
}

// Fit trains on X with labels y in [0,numClasses). rng drives the per-epoch
// shuffle so training is reproducible.
func (p *Perceptron) Fit(X [][]float64, y []int, numClasses int, rng *rand.Rand) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	if len(X) != len(y) {
		return fmt.Errorf("linear: %d rows but %d labels", len(X), len(y))
	}
	if numClasses < 2 {
		return fmt.Errorf("linear: need at least 2 classes, got %d", numClasses)
	}

	p.numClasses = numClasses
	planes := numClasses
	if numClasses == 2 {
		planes = 1
	}

	nFeatures := len(X[0])
	p.W = make([][]float64, planes)
	p.B = make([]float64, planes)

	for k := 0; k < planes; k++ {
		positive := k
		if planes == 1 {
			positive = 1
		}
		target := make([]float64, len(y))
		for i, label := range y {
			if label == positive {
				target[i] = 1
			} else {
				target[i] = -1
			}
		}
		p.W[k], p.B[k] = p.fitPlane(X, target, nFeatures, rng)
	}
	return nil
}

func (p *Perceptron) fitPlane(X [][]float64, target []float64, nFeatures int, rng *rand.Rand) ([]float64, float64) {
	w := make([]float64, nFeatures)
	b := 0.0
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < p.MaxIter; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		mistakes := 0
		for _, i := range order {
			if target[i]*(floats.Dot(w, X[i])+b) <= 0 {
				floats.AddScaled(w, p.Eta0*target[i], X[i])
				b += p.Eta0 * target[i]
				mistakes++
			}
		}
		if mistakes == 0 {
			break
		}
	}
	return w, b
}

// NumClasses returns the number of classes the model was fitted for.
func (p *Perceptron) NumClasses() int { return p.numClasses }

// DecisionFunction returns the signed distance to each hyperplane: a single
// value for two-class models, one per class otherwise.
func (p *Perceptron) DecisionFunction(x []float64) []float64 {
	out := make([]float64, len(p.W))
	for k, w := range p.W {
		out[k] = floats.Dot(w, x) + p.B[k]
	}
	return out
}

// Predict returns the class with the highest decision value.
func (p *Perceptron) Predict(x []float64) int {
	if len(p.W) == 0 {
		return 0
	}
	scores := p.DecisionFunction(x)
	if len(scores) == 1 {
		if scores[0] > 0 {
			return 1
		}
		return 0
	}
	return floats.MaxIdx(scores)
}
