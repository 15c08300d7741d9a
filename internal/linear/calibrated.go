package linear

import (
	"fmt"
	"math/rand"

	"deslab/internal/dataset"

	"gonum.org/v1/gonum/floats"
)

// Calibrated wraps a perceptron with k-fold sigmoid calibration. Each fold
// trains a perceptron on the remaining folds and fits one sigmoid per
// hyperplane on the held-out decision values; probabilities are the mean over
// the fold models.
type Calibrated struct {
	Folds   int
	MaxIter int

	members    []calibratedMember
	numClasses int
}

type calibratedMember struct {
	model    *Perceptron
	sigmoids []Sigmoid
}

// NewCalibrated returns a calibrated perceptron using folds-fold CV and at most
// maxIter perceptron epochs per fold.
func NewCalibrated(folds, maxIter int) *Calibrated {
	if folds < 2 {
		folds = 5
	}
	return &Calibrated{Folds: folds, MaxIter: maxIter}
}

// Fit trains the fold models. With fewer than two samples per fold the
// perceptron is trained and calibrated on the full set.
func (c *Calibrated) Fit(X [][]float64, y []int, numClasses int, rng *rand.Rand) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	if len(X) != len(y) {
		return fmt.Errorf("linear: %d rows but %d labels", len(X), len(y))
	}
	c.numClasses = numClasses
	c.members = c.members[:0]

	folds := dataset.StratifiedKFold(y, numClasses, c.Folds, rng)
	if len(folds) < 2 {
		all := make([]int, len(X))
		for i := range all {
			all[i] = i
		}
		m, err := c.fitMember(X, y, all, all, rng)
		if err != nil {
			return err
		}
		c.members = append(c.members, m)
		return nil
	}

	for _, held := range folds {
		train := dataset.Complement(len(X), held)
		m, err := c.fitMember(X, y, train, held, rng)
		if err != nil {
			return err
		}
		c.members = append(c.members, m)
	}
	return nil
}

func (c *Calibrated) fitMember(X [][]float64, y []int, train, held []int, rng *rand.Rand) (calibratedMember, error) {
	Xt := make([][]float64, len(train))
	yt := make([]int, len(train))
	for i, j := range train {
		Xt[i] = X[j]
		yt[i] = y[j]
	}

	p := NewPerceptron(c.MaxIter)
	if err := p.Fit(Xt, yt, c.numClasses, rng); err != nil {
		return calibratedMember{}, err
	}

	planes := len(p.W)
	decisions := make([][]float64, planes)
	targets := make([][]bool, planes)
	for _, j := range held {
		df := p.DecisionFunction(X[j])
		for k := 0; k < planes; k++ {
			positive := k
			if planes == 1 {
				positive = 1
			}
			decisions[k] = append(decisions[k], df[k])
			targets[k] = append(targets[k], y[j] == positive)
		}
	}

	sigmoids := make([]Sigmoid, planes)
	for k := range sigmoids {
		sigmoids[k] = FitSigmoid(decisions[k], targets[k])
	}
	return calibratedMember{model: p, sigmoids: sigmoids}, nil
}

// NumClasses returns the number of classes seen at Fit.
func (c *Calibrated) NumClasses() int { return c.numClasses }

// PredictProba returns calibrated class probabilities summing to 1.
func (c *Calibrated) PredictProba(x []float64) []float64 {
	proba := make([]float64, c.numClasses)
	if len(c.members) == 0 {
		return proba
	}

	member := make([]float64, c.numClasses)
	for _, m := range c.members {
		df := m.model.DecisionFunction(x)
		if len(df) == 1 {
			p1 := m.sigmoids[0].Prob(df[0])
			member[0], member[1] = 1-p1, p1
		} else {
			for k, f := range df {
				member[k] = m.sigmoids[k].Prob(f)
			}
			sum := floats.Sum(member)
			if sum > 0 {
				floats.Scale(1/sum, member)
			} else {
				for k := range member {
					member[k] = 1 / float64(len(member))
				}
			}
		}
		floats.Add(proba, member)
	}
	floats.Scale(1/float64(len(c.members)), proba)
	return proba
}

// Predict returns the most probable class.
func (c *Calibrated) Predict(x []float64) int {
	return floats.MaxIdx(c.PredictProba(x))
}
