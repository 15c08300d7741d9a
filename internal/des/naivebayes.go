package des

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// multinomialNB is a multinomial naive Bayes classifier over non-negative
// features. Feature counts and the class prior are Laplace smoothed by alpha.
type multinomialNB struct {
	alpha      float64
	logPrior   []float64
	logLikely  [][]float64 // [class][feature]
	numClasses int
}

func newMultinomialNB(alpha float64) *multinomialNB {
	return &multinomialNB{alpha: alpha}
}

func (nb *multinomialNB) fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("naive bayes: %d rows, %d labels", len(X), len(y))
	}
	nf := len(X[0])
	counts := make([][]float64, numClasses)
	for c := range counts {
		counts[c] = make([]float64, nf)
	}
	classN := make([]float64, numClasses)
	for i, x := range X {
		if len(x) != nf {
			return fmt.Errorf("naive bayes: row %d has %d features, expected %d", i, len(x), nf)
		}
		for f, v := range x {
			if v < 0 {
				return fmt.Errorf("naive bayes: negative feature %d at row %d", f, i)
			}
		}
		floats.Add(counts[y[i]], x)
		classN[y[i]]++
	}

	nb.numClasses = numClasses
	nb.logPrior = make([]float64, numClasses)
	nb.logLikely = make([][]float64, numClasses)
	total := float64(len(X)) + nb.alpha*float64(numClasses)
	for c := 0; c < numClasses; c++ {
		nb.logPrior[c] = math.Log((classN[c] + nb.alpha) / total)
		denom := floats.Sum(counts[c]) + nb.alpha*float64(nf)
		nb.logLikely[c] = make([]float64, nf)
		for f, v := range counts[c] {
			nb.logLikely[c][f] = math.Log((v + nb.alpha) / denom)
		}
	}
	return nil
}

func (nb *multinomialNB) predictProba(x []float64) []float64 {
	joint := make([]float64, nb.numClasses)
	for c := range joint {
		joint[c] = nb.logPrior[c] + floats.Dot(nb.logLikely[c], x)
	}
	norm := floats.LogSumExp(joint)
	for c := range joint {
		joint[c] = math.Exp(joint[c] - norm)
	}
	return joint
}
