package des

import (
	"context"
	"fmt"
	"sort"

	"deslab/internal/ensemble"
	"deslab/internal/eval"
)

// static holds what the baselines need: the pool and its DSEL accuracy.
type static struct {
	opts       Options
	pool       []ensemble.Classifier
	numClasses int
	accuracy   []float64
	fitted     bool
}

func (s *static) fit(X [][]float64, y []int) error {
	if len(s.pool) == 0 {
		return ErrEmptyPool
	}
	if len(X) == 0 {
		return ErrEmptyDSEL
	}
	if len(X) != len(y) {
		return fmt.Errorf("des: %d DSEL rows but %d labels", len(X), len(y))
	}
	s.numClasses = s.pool[0].NumClasses()
	s.accuracy = make([]float64, len(s.pool))
	pred := make([]int, len(X))
	for c, clf := range s.pool {
		for i, x := range X {
			pred[i] = clf.Predict(x)
		}
		acc, err := eval.Accuracy(y, pred)
		if err != nil {
			return err
		}
		s.accuracy[c] = acc
	}
	s.fitted = true
	return nil
}

// ranked returns pool indices by decreasing DSEL accuracy, ties to the lowest
// index.
func (s *static) ranked() []int {
	idx := allIndices(len(s.pool))
	sort.SliceStable(idx, func(a, b int) bool { return s.accuracy[idx[a]] > s.accuracy[idx[b]] })
	return idx
}

func (s *static) voteOf(sel []int, x []float64) int {
	labels := make([]int, len(sel))
	for i, c := range sel {
		labels[i] = s.pool[c].Predict(x)
	}
	return ensemble.Vote(labels, nil, s.numClasses)
}

func (s *static) probaOf(sel []int, x []float64) []float64 {
	proba := make([][]float64, len(s.pool))
	for _, c := range sel {
		proba[c] = s.pool[c].PredictProba(x)
	}
	return meanProba(proba, sel, s.numClasses)
}

// Oracle is the upper bound of any selection scheme: a sample counts as
// correct when at least one pool member labels it correctly. Without labels
// it falls back to the pool's majority vote.
type Oracle struct {
	static
}

// NewOracle builds the Oracle baseline.
func NewOracle(pool []ensemble.Classifier, opts Options) *Oracle {
	return &Oracle{static{opts: opts.withDefaults(), pool: pool}}
}

func (o *Oracle) Name() string { return "Oracle" }

func (o *Oracle) NumClasses() int { return o.numClasses }

func (o *Oracle) Fit(X [][]float64, y []int) error {
	if err := o.fit(X, y); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	return nil
}

func (o *Oracle) Predict(x []float64) int {
	if !o.fitted {
		return 0
	}
	return o.voteOf(allIndices(len(o.pool)), x)
}

func (o *Oracle) PredictProba(x []float64) []float64 {
	if !o.fitted {
		return make([]float64, o.numClasses)
	}
	return o.probaOf(allIndices(len(o.pool)), x)
}

// Score returns the fraction of samples that some classifier gets right.
func (o *Oracle) Score(ctx context.Context, X [][]float64, y []int) (float64, error) {
	pred, err := o.PredictLabeled(ctx, X, y)
	if err != nil {
		return 0, err
	}
	return eval.Accuracy(y, pred)
}

// PredictLabeled returns the true label where some classifier gets it right
// and the pool vote elsewhere, so metrics over these predictions agree with
// Score.
func (o *Oracle) PredictLabeled(ctx context.Context, X [][]float64, y []int) ([]int, error) {
	if !o.fitted {
		return nil, ErrNotFitted
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("oracle: %d rows but %d labels", len(X), len(y))
	}
	if len(X) == 0 {
		return nil, eval.ErrEmpty
	}
	all := allIndices(len(o.pool))
	pred := make([]int, len(X))
	for i, x := range X {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred[i] = o.voteOf(all, x)
		for _, clf := range o.pool {
			if clf.Predict(x) == y[i] {
				pred[i] = y[i]
				break
			}
		}
	}
	return pred, nil
}

// SingleBest uses the pool member with the highest DSEL accuracy.
type SingleBest struct {
	static
	best int
}

// NewSingleBest builds the single best classifier baseline.
func NewSingleBest(pool []ensemble.Classifier, opts Options) *SingleBest {
	return &SingleBest{static: static{opts: opts.withDefaults(), pool: pool}}
}

func (s *SingleBest) Name() string { return "Single Best" }

func (s *SingleBest) NumClasses() int { return s.numClasses }

func (s *SingleBest) Fit(X [][]float64, y []int) error {
	if err := s.fit(X, y); err != nil {
		return fmt.Errorf("single best: %w", err)
	}
	s.best = s.ranked()[0]
	return nil
}

func (s *SingleBest) Predict(x []float64) int {
	if !s.fitted {
		return 0
	}
	return s.pool[s.best].Predict(x)
}

func (s *SingleBest) PredictProba(x []float64) []float64 {
	if !s.fitted {
		return make([]float64, s.numClasses)
	}
	return s.pool[s.best].PredictProba(x)
}

func (s *SingleBest) Score(ctx context.Context, X [][]float64, y []int) (float64, error) {
	if !s.fitted {
		return 0, ErrNotFitted
	}
	return ensemble.Score(ctx, s, X, y)
}

// StaticSelection keeps the PctClassifiers most accurate pool members on
// DSEL and combines them by majority vote.
type StaticSelection struct {
	static
	selected []int
}

// NewStaticSelection builds the static selection baseline.
func NewStaticSelection(pool []ensemble.Classifier, opts Options) *StaticSelection {
	return &StaticSelection{static: static{opts: opts.withDefaults(), pool: pool}}
}

func (s *StaticSelection) Name() string { return "Static Selection" }

func (s *StaticSelection) NumClasses() int { return s.numClasses }

func (s *StaticSelection) Fit(X [][]float64, y []int) error {
	if err := s.fit(X, y); err != nil {
		return fmt.Errorf("static selection: %w", err)
	}
	n := min(len(s.pool), max(1, int(float64(len(s.pool))*s.opts.PctClassifiers)))
	s.selected = append([]int(nil), s.ranked()[:n]...)
	sort.Ints(s.selected)
	return nil
}

// Selected returns the pool indices kept at Fit.
func (s *StaticSelection) Selected() []int { return s.selected }

func (s *StaticSelection) Predict(x []float64) int {
	if !s.fitted {
		return 0
	}
	return s.voteOf(s.selected, x)
}

func (s *StaticSelection) PredictProba(x []float64) []float64 {
	if !s.fitted {
		return make([]float64, s.numClasses)
	}
	return s.probaOf(s.selected, x)
}

func (s *StaticSelection) Score(ctx context.Context, X [][]float64, y []int) (float64, error) {
	if !s.fitted {
		return 0, ErrNotFitted
	}
	return ensemble.Score(ctx, s, X, y)
}
