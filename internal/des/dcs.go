package des

import (
	"fmt"
	"math"
	"strings"

	"deslab/internal/ensemble"
)

// Selection is the rule a DCS method uses to pick a classifier from the
// competence estimates.
type Selection string

const (
	SelectBest   Selection = "best"   // the most competent; ties to the lowest index
	SelectAll    Selection = "all"    // all tied for the maximum, combined by vote
	SelectRandom Selection = "random" // uniformly among those tied for the maximum
	SelectDiff   Selection = "diff"   // random among those within DiffThresh of the best
)

// ParseSelection validates a selection rule name. The empty string is accepted
// and means the method default.
func ParseSelection(s string) (Selection, error) {
	switch sel := Selection(strings.ToLower(s)); sel {
	case "", SelectBest, SelectAll, SelectRandom, SelectDiff:
		return sel, nil
	}
	return "", fmt.Errorf("des: unknown selection rule %q", s)
}

const tieTolerance = 1e-10

// competenceFunc estimates the competence of every pool member for q.
type competenceFunc func(b *base, q *query) []float64

// dcs selects a single classifier (or a tied group) per query.
type dcs struct {
	competence competenceFunc
	selection  Selection
}

func (d *dcs) classify(b *base, q *query) (int, []float64) {
	comp := d.competence(b, q)
	for c, keep := range q.mask {
		if !keep {
			comp[c] = 0
		}
	}

	best := argmax(comp)
	switch d.selection {
	case SelectAll:
		tied := within(comp, comp[best], tieTolerance)
		return vote(q, tied, nil, b.numClasses), meanProba(q.proba, tied, b.numClasses)
	case SelectRandom:
		tied := within(comp, comp[best], tieTolerance)
		best = tied[q.rng.Intn(len(tied))]
	case SelectDiff:
		near := within(comp, comp[best], b.opts.DiffThresh)
		if len(near) > 1 {
			best = near[q.rng.Intn(len(near))]
		}
	}
	return q.preds[best], append([]float64(nil), q.proba[best]...)
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// within returns the indices whose value is less than tol below top.
// The index of top itself is always included.
func within(v []float64, top, tol float64) []int {
	var out []int
	for i, x := range v {
		if top-x < tol || x == top {
			out = append(out, i)
		}
	}
	return out
}

func newDCS(name string, pool []ensemble.Classifier, opts Options, fn competenceFunc, def Selection) *Estimator {
	sel := opts.Selection
	if sel == "" {
		sel = def
	}
	return newEstimator(name, pool, opts, &dcs{competence: fn, selection: sel})
}

// NewOLA builds Overall Local Accuracy: competence is the fraction of the
// region each classifier labels correctly.
func NewOLA(pool []ensemble.Classifier, opts Options) *Estimator {
	return newDCS("OLA", pool, opts, olaCompetence, SelectBest)
}

// NewLCA builds Local Class Accuracy: accuracy over the region samples that
// belong to the class the classifier predicts for the query.
func NewLCA(pool []ensemble.Classifier, opts Options) *Estimator {
	return newDCS("LCA", pool, opts, lcaCompetence, SelectBest)
}

// NewMLA builds Modified Local Accuracy: region accuracy weighted by inverse
// distance to the query.
func NewMLA(pool []ensemble.Classifier, opts Options) *Estimator {
	return newDCS("MLA", pool, opts, mlaCompetence, SelectBest)
}

// NewRank builds Classifier Rank: the number of consecutive nearest
// neighbours a classifier gets right.
func NewRank(pool []ensemble.Classifier, opts Options) *Estimator {
	return newDCS("Rank", pool, opts, rankCompetence, SelectBest)
}

// NewAPriori builds the probabilistic A Priori method.
func NewAPriori(pool []ensemble.Classifier, opts Options) *Estimator {
	return newDCS("A Priori", pool, opts, aPrioriCompetence, SelectDiff)
}

// NewAPosteriori builds the probabilistic A Posteriori method.
func NewAPosteriori(pool []ensemble.Classifier, opts Options) *Estimator {
	return newDCS("A Posteriori", pool, opts, aPosterioriCompetence, SelectDiff)
}

// NewMCB builds Multiple Classifier Behaviour: OLA restricted to neighbours
// whose pool output profile resembles the query's.
func NewMCB(pool []ensemble.Classifier, opts Options) *Estimator {
	return newDCS("MCB", pool, opts, mcbCompetence, SelectDiff)
}

func localAccuracy(b *base, region []int) []float64 {
	comp := make([]float64, len(b.pool))
	if len(region) == 0 {
		return comp
	}
	for _, j := range region {
		for c, hit := range b.hits[j] {
			if hit {
				comp[c]++
			}
		}
	}
	for c := range comp {
		comp[c] /= float64(len(region))
	}
	return comp
}

func olaCompetence(b *base, q *query) []float64 {
	return localAccuracy(b, q.region(b.k))
}

func lcaCompetence(b *base, q *query) []float64 {
	region := q.region(b.k)
	comp := make([]float64, len(b.pool))
	for c := range b.pool {
		total, correct := 0, 0
		for _, j := range region {
			if b.y[j] != q.preds[c] {
				continue
			}
			total++
			if b.hits[j][c] {
				correct++
			}
		}
		if total > 0 {
			comp[c] = float64(correct) / float64(total)
		}
	}
	return comp
}

func inverseDistance(d float64) float64 {
	return 1 / math.Max(d, 1e-12)
}

func mlaCompetence(b *base, q *query) []float64 {
	region := q.region(b.k)
	comp := make([]float64, len(b.pool))
	total := 0.0
	for i, j := range region {
		w := inverseDistance(q.dists[i])
		total += w
		for c, hit := range b.hits[j] {
			if hit {
				comp[c] += w
			}
		}
	}
	if total > 0 {
		for c := range comp {
			comp[c] /= total
		}
	}
	return comp
}

func rankCompetence(b *base, q *query) []float64 {
	region := q.region(b.k)
	comp := make([]float64, len(b.pool))
	for c := range b.pool {
		for _, j := range region {
			if !b.hits[j][c] {
				break
			}
			comp[c]++
		}
	}
	return comp
}

func aPrioriCompetence(b *base, q *query) []float64 {
	region := q.region(b.k)
	comp := make([]float64, len(b.pool))
	total := 0.0
	for i, j := range region {
		w := inverseDistance(q.dists[i])
		total += w
		for c := range b.pool {
			comp[c] += w * b.proba[j][c][b.y[j]]
		}
	}
	if total > 0 {
		for c := range comp {
			comp[c] /= total
		}
	}
	return comp
}

func aPosterioriCompetence(b *base, q *query) []float64 {
	region := q.region(b.k)
	comp := make([]float64, len(b.pool))
	for c := range b.pool {
		omega := q.preds[c]
		num, den := 0.0, 0.0
		for i, j := range region {
			v := b.proba[j][c][omega] * inverseDistance(q.dists[i])
			den += v
			if b.y[j] == omega {
				num += v
			}
		}
		if den > 0 {
			comp[c] = num / den
		}
	}
	return comp
}

func mcbCompetence(b *base, q *query) []float64 {
	region := q.region(b.k)
	L := float64(len(b.pool))
	var similar []int
	for _, j := range region {
		same := 0
		for c, p := range q.preds {
			if b.bks[j][c] == p {
				same++
			}
		}
		if float64(same)/L >= b.opts.SimilarityThreshold {
			similar = append(similar, j)
		}
	}
	if len(similar) == 0 {
		similar = region
	}
	return localAccuracy(b, similar)
}
