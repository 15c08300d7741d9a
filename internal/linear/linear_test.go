package linear

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns well separated clusters centred at (3c, 3c).
func blobs(perClass, classes int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	var X [][]float64
	var y []int
	for c := 0; c < classes; c++ {
		for i := 0; i < perClass; i++ {
			cx := float64(c) * 3
			cy := float64(c%2) * 3
			X = append(X, []float64{cx + rng.NormFloat64()*0.3, cy + rng.NormFloat64()*0.3})
			y = append(y, c)
		}
	}
	return X, y
}

func accuracy(predict func([]float64) int, X [][]float64, y []int) float64 {
	correct := 0
	for i := range X {
		if predict(X[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

func TestPerceptron_Binary(t *testing.T) {
	X, y := blobs(50, 2, 1)
	p := NewPerceptron(20)
	require.NoError(t, p.Fit(X, y, 2, rand.New(rand.NewSource(1))))

	assert.Len(t, p.W, 1)
	assert.Len(t, p.DecisionFunction(X[0]), 1)
	assert.Greater(t, accuracy(p.Predict, X, y), 0.95)
}

func TestPerceptron_Multiclass(t *testing.T) {
	X, y := blobs(40, 3, 2)
	p := NewPerceptron(50)
	require.NoError(t, p.Fit(X, y, 3, rand.New(rand.NewSource(2))))

	assert.Len(t, p.W, 3)
	assert.Equal(t, 3, p.NumClasses())
	assert.Greater(t, accuracy(p.Predict, X, y), 0.85)
}

func TestPerceptron_Errors(t *testing.T) {
	p := NewPerceptron(5)
	rng := rand.New(rand.NewSource(1))
	assert.ErrorIs(t, p.Fit(nil, nil, 2, rng), ErrEmptyInput)
	assert.Error(t, p.Fit([][]float64{{1}}, []int{0, 1}, 2, rng))
	assert.Error(t, p.Fit([][]float64{{1}}, []int{0}, 1, rng))
	assert.Equal(t, 0, NewPerceptron(0).Predict([]float64{1}))
}

func TestFitSigmoid_Monotonic(t *testing.T) {
	f := []float64{-3, -2, -1, -0.5, 0.5, 1, 2, 3}
	pos := []bool{false, false, false, true, false, true, true, true}
	s := FitSigmoid(f, pos)

	assert.Less(t, s.A, 0.0, "positive decision values must map to higher probabilities")
	assert.Greater(t, s.Prob(3), 0.5)
	assert.Less(t, s.Prob(-3), 0.5)
	for i := 1; i < len(f); i++ {
		assert.GreaterOrEqual(t, s.Prob(f[i]), s.Prob(f[i-1]))
	}
}

func TestFitSigmoid_Separable(t *testing.T) {
	f := []float64{-2, -1, 1, 2}
	pos := []bool{false, false, true, true}
	s := FitSigmoid(f, pos)

	p := s.Prob(10)
	assert.Less(t, p, 1.0)
	assert.Greater(t, p, 0.5)
}

func TestCalibrated_Probabilities(t *testing.T) {
	X, y := blobs(30, 3, 3)
	c := NewCalibrated(5, 10)
	require.NoError(t, c.Fit(X, y, 3, rand.New(rand.NewSource(3))))

	assert.Len(t, c.members, 5)
	for _, x := range X {
		proba := c.PredictProba(x)
		require.Len(t, proba, 3)
		sum := 0.0
		for _, p := range proba {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	assert.Greater(t, accuracy(c.Predict, X, y), 0.9)
}

func TestCalibrated_MissingClass(t *testing.T) {
	X, y := blobs(20, 2, 4)
	c := NewCalibrated(3, 10)
	require.NoError(t, c.Fit(X, y, 3, rand.New(rand.NewSource(4))))

	proba := c.PredictProba(X[0])
	require.Len(t, proba, 3)
	assert.Less(t, proba[2], proba[0])
}

func TestCalibrated_TinyInput(t *testing.T) {
	c := NewCalibrated(5, 10)
	require.NoError(t, c.Fit([][]float64{{0}}, []int{1}, 2, rand.New(rand.NewSource(1))))
	assert.Len(t, c.members, 1)
	assert.Len(t, c.PredictProba([]float64{0}), 2)

	assert.ErrorIs(t, NewCalibrated(5, 10).Fit(nil, nil, 2, rand.New(rand.NewSource(1))), ErrEmptyInput)
	assert.Equal(t, []float64{0, 0}, (&Calibrated{numClasses: 2}).PredictProba([]float64{1}))
}
