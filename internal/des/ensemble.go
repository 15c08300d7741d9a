package des

import (
	"fmt"
	"sort"
	"strings"

	"deslab/internal/ensemble"
)

// Mode is how a DES method combines the classifiers it selects.
type Mode string

const (
	ModeSelection Mode = "selection" // plain vote of the selected classifiers
	ModeWeighting Mode = "weighting" // competence-weighted vote of every classifier
	ModeHybrid    Mode = "hybrid"    // competence-weighted vote of the selected classifiers
)

// ParseMode validates a combination mode name. The empty string is accepted
// and means the method default.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "", ModeSelection, ModeWeighting, ModeHybrid:
		return m, nil
	}
	return "", fmt.Errorf("des: unknown combination mode %q", s)
}

// selectFunc picks classifiers from competence estimates. An empty result
// means "use the whole pool".
type selectFunc func(comp []float64) []int

// desStrategy is the competence → selection → combination pipeline shared by
// DES-P and META-DES.
type desStrategy struct {
	competence competenceFunc
	choose     selectFunc
	mode       Mode
}

func (d *desStrategy) classify(b *base, q *query) (int, []float64) {
	comp := d.competence(b, q)
	return combine(b, q, comp, d.choose(masked(comp, q.mask)), d.mode)
}

// masked returns comp with pruned classifiers pushed below any threshold.
func masked(comp []float64, mask []bool) []float64 {
	out := make([]float64, len(comp))
	for c, v := range comp {
		if mask != nil && !mask[c] {
			v = -1
		}
		out[c] = v
	}
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func combine(b *base, q *query, comp []float64, sel []int, mode Mode) (int, []float64) {
	if len(sel) == 0 {
		sel = allIndices(len(b.pool))
	}
	switch mode {
	case ModeWeighting:
		all := allIndices(len(b.pool))
		w := positiveWeights(comp, all, q.mask)
		return vote(q, all, w, b.numClasses), weightedProba(q.proba, all, w, b.numClasses)
	case ModeHybrid:
		w := positiveWeights(comp, sel, nil)
		return vote(q, sel, w, b.numClasses), weightedProba(q.proba, sel, w, b.numClasses)
	default:
		return vote(q, sel, nil, b.numClasses), meanProba(q.proba, sel, b.numClasses)
	}
}

// positiveWeights clips competences to be non-negative over sel. If every
// weight is zero the classifiers in sel are weighted equally.
func positiveWeights(comp []float64, sel []int, mask []bool) []float64 {
	w := make([]float64, len(comp))
	total := 0.0
	for _, c := range sel {
		if mask != nil && !mask[c] {
			continue
		}
		if comp[c] > 0 {
			w[c] = comp[c]
			total += comp[c]
		}
	}
	if total == 0 {
		for _, c := range sel {
			w[c] = 1
		}
	}
	return w
}

func aboveThreshold(t float64) selectFunc {
	return func(comp []float64) []int {
		var sel []int
		for c, v := range comp {
			if v > t {
				sel = append(sel, c)
			}
		}
		return sel
	}
}

func modeOr(m, def Mode) Mode {
	if m == "" {
		return def
	}
	return m
}

// NewDESP builds DES-Performance: a classifier is competent when its local
// accuracy beats a random classifier, 1/L for L classes.
func NewDESP(pool []ensemble.Classifier, opts Options) *Estimator {
	s := &desStrategy{
		competence: func(b *base, q *query) []float64 {
			comp := olaCompetence(b, q)
			random := 1 / float64(b.numClasses)
			for c := range comp {
				comp[c] -= random
			}
			return comp
		},
		choose: aboveThreshold(0),
		mode:   modeOr(opts.Mode, ModeSelection),
	}
	return newEstimator("DES-P", pool, opts, s)
}

// knoraU gives each classifier one vote per region sample it classifies
// correctly.
type knoraU struct{}

func (knoraU) classify(b *base, q *query) (int, []float64) {
	region := q.region(b.k)
	w := make([]float64, len(b.pool))
	total := 0.0
	for _, j := range region {
		for c, hit := range b.hits[j] {
			if hit && q.mask[c] {
				w[c]++
				total++
			}
		}
	}
	if total == 0 {
		for c := range w {
			w[c] = 1
		}
	}
	all := allIndices(len(b.pool))
	return vote(q, all, w, b.numClasses), weightedProba(q.proba, all, w, b.numClasses)
}

// NewKNORAU builds k-Nearest Oracles Union.
func NewKNORAU(pool []ensemble.Classifier, opts Options) *Estimator {
	return newEstimator("KNORA-U", pool, opts, knoraU{})
}

// knoraE selects the classifiers that are correct on the whole region,
// shrinking the region from its far end until at least one qualifies.
type knoraE struct{}

func (knoraE) classify(b *base, q *query) (int, []float64) {
	full := q.region(b.k)
	for k := len(full); k > 0; k-- {
		var sel []int
		for c := range b.pool {
			if !q.mask[c] {
				continue
			}
			oracle := true
			for _, j := range full[:k] {
				if !b.hits[j][c] {
					oracle = false
					break
				}
			}
			if oracle {
				sel = append(sel, c)
			}
		}
		if len(sel) > 0 {
			return vote(q, sel, nil, b.numClasses), meanProba(q.proba, sel, b.numClasses)
		}
	}

	comp := masked(localAccuracy(b, full), q.mask)
	sel := within(comp, comp[argmax(comp)], tieTolerance)
	return vote(q, sel, nil, b.numClasses), meanProba(q.proba, sel, b.numClasses)
}

// NewKNORAE builds k-Nearest Oracles Eliminate.
func NewKNORAE(pool []ensemble.Classifier, opts Options) *Estimator {
	return newEstimator("KNORA-E", pool, opts, knoraE{})
}

// desKNN keeps the most accurate classifiers in the region, then the most
// diverse of those by double-fault.
type desKNN struct{}

func (desKNN) classify(b *base, q *query) (int, []float64) {
	region := q.region(b.k)
	acc := localAccuracy(b, region)

	var candidates []int
	for c := range b.pool {
		if q.mask[c] {
			candidates = append(candidates, c)
		}
	}
	L := len(candidates)
	nAcc := min(L, max(1, int(float64(L)*b.opts.PctAccuracy)))
	nDiv := min(nAcc, max(1, int(float64(L)*b.opts.PctDiversity)))

	sort.SliceStable(candidates, func(i, j int) bool { return acc[candidates[i]] > acc[candidates[j]] })
	top := candidates[:nAcc]

	// Lower summed double-fault means the classifier errs on different
	// samples than the others.
	df := make(map[int]float64, len(top))
	for _, c := range top {
		for _, o := range top {
			if o == c {
				continue
			}
			both := 0
			for _, j := range region {
				if !b.hits[j][c] && !b.hits[j][o] {
					both++
				}
			}
			if len(region) > 0 {
				df[c] += float64(both) / float64(len(region))
			}
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return df[top[i]] < df[top[j]] })
	sel := append([]int(nil), top[:nDiv]...)
	sort.Ints(sel)
	return vote(q, sel, nil, b.numClasses), meanProba(q.proba, sel, b.numClasses)
}

// NewDESKNN builds DES-KNN.
func NewDESKNN(pool []ensemble.Classifier, opts Options) *Estimator {
	return newEstimator("DES-KNN", pool, opts, desKNN{})
}
