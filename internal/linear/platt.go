package linear

import "math"

// Sigmoid holds Platt scaling parameters: P(y=1|f) = 1 / (1 + exp(A*f + B)).
type Sigmoid struct {
	A, B float64
}

// Prob maps a decision value to a probability.
func (s Sigmoid) Prob(f float64) float64 {
	z := s.A*f + s.B
	if z >= 0 {
		e := math.Exp(-z)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(z))
}

// FitSigmoid fits Platt parameters to decision values f with binary targets
// using the Newton method with backtracking of Lin, Lin and Weng. Targets are
// smoothed with the out-of-sample priors so separable data does not diverge.
func FitSigmoid(f []float64, positive []bool) Sigmoid {
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)

	var prior1, prior0 float64
	for _, p := range positive {
		if p {
			prior1++
		} else {
			prior0++
		}
	}

	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	t := make([]float64, len(f))
	for i, p := range positive {
		if p {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	a := 0.0
	b := math.Log((prior0 + 1) / (prior1 + 1))
	fval := sigmoidLoss(f, t, a, b)

	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21 := sigma, sigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, fi := range f {
			fApB := fi*a + b
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p = e / (1 + e)
				q = 1 / (1 + e)
			} else {
				e := math.Exp(fApB)
				p = 1 / (1 + e)
				q = e / (1 + e)
			}
			d2 := p * q
			h11 += fi * fi * d2
			h22 += d2
			h21 += fi * d2
			d1 := t[i] - p
			g1 += fi * d1
			g2 += d1
		}

		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA := a + step*dA
			newB := b + step*dB
			newF := sigmoidLoss(f, t, newA, newB)
			if newF < fval+0.0001*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return Sigmoid{A: a, B: b}
}

func sigmoidLoss(f, t []float64, a, b float64) float64 {
	loss := 0.0
	for i, fi := range f {
		fApB := fi*a + b
		if fApB >= 0 {
			loss += t[i]*fApB + math.Log1p(math.Exp(-fApB))
		} else {
			loss += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
		}
	}
	return loss
}
