// Package des implements dynamic classifier selection (DCS) and dynamic
// ensemble selection (DES) over a fitted pool of classifiers.
//
// Every method is fitted on a held-out selection set (DSEL). For each query
// the region of competence, the K nearest DSEL samples, is used to estimate
// how competent each pool member is around that query, and the most
// competent classifier (DCS) or subset (DES) makes the prediction.
//
// The shared pipeline for a query is:
//
//  1. optional instance-hardness check: easy regions are answered by KNN;
//  2. if every pool member agrees, that label is returned;
//  3. optional dynamic frienemy pruning (DFP) of the pool;
//  4. method-specific competence estimation, selection and combination.
package des

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"deslab/internal/ensemble"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNotFitted is returned when a method is used before Fit.
	ErrNotFitted = errors.New("des: not fitted")
	// ErrEmptyPool is returned when a method is built without classifiers.
	ErrEmptyPool = errors.New("des: empty classifier pool")
	// ErrEmptyDSEL is returned when Fit receives no selection samples.
	ErrEmptyDSEL = errors.New("des: empty DSEL")
)

// Options configures the shared region-of-competence machinery and the
// method-specific knobs. Start from DefaultOptions: zero is a valid setting
// for IHRate, DiffThresh, Hc and SelectionThreshold, and only a negative
// value falls back to the default. The remaining fields treat zero as unset.
type Options struct {
	K      int     // region of competence size
	SafeK  int     // region size for DFP and instance hardness; defaults to K
	DFP    bool    // dynamic frienemy pruning
	WithIH bool    // answer easy regions with KNN
	IHRate float64 // hardness threshold below which KNN is used
	AKNN   bool    // adaptive KNN distances
	Seed   int64

	Selection  Selection // DCS selection rule
	DiffThresh float64   // DCS "diff" rule threshold
	Mode       Mode      // DES combination mode

	SimilarityThreshold float64 // MCB
	PctAccuracy         float64 // DES-KNN
	PctDiversity        float64 // DES-KNN
	Kp                  int     // META-DES output profiles
	Hc                  float64 // META-DES consensus threshold
	SelectionThreshold  float64 // META-DES
	PctClassifiers      float64 // static selection
}

// DefaultOptions returns the defaults used by the demo.
func DefaultOptions() Options {
	return Options{
		K:                   7,
		IHRate:              0.3,
		DiffThresh:          0.1,
		SimilarityThreshold: 0.7,
		PctAccuracy:         0.5,
		PctDiversity:        0.3,
		Kp:                  5,
		Hc:                  1.0,
		SelectionThreshold:  0.5,
		PctClassifiers:      0.5,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.K <= 0 {
		o.K = def.K
	}
	if o.SafeK <= 0 {
		o.SafeK = o.K
	}
	if o.IHRate < 0 {
		o.IHRate = def.IHRate
	}
	if o.DiffThresh < 0 {
		o.DiffThresh = def.DiffThresh
	}
	if o.SimilarityThreshold == 0 {
		o.SimilarityThreshold = def.SimilarityThreshold
	}
	if o.PctAccuracy == 0 {
		o.PctAccuracy = def.PctAccuracy
	}
	if o.PctDiversity == 0 {
		o.PctDiversity = def.PctDiversity
	}
	if o.Kp <= 0 {
		o.Kp = def.Kp
	}
	if o.Hc < 0 {
		o.Hc = def.Hc
	}
	if o.SelectionThreshold < 0 {
		o.SelectionThreshold = def.SelectionThreshold
	}
	if o.PctClassifiers == 0 {
		o.PctClassifiers = def.PctClassifiers
	}
	return o
}

// Method is a fitted-on-DSEL selection method.
type Method interface {
	ensemble.Classifier
	Name() string
	Fit(X [][]float64, y []int) error
	Score(ctx context.Context, X [][]float64, y []int) (float64, error)
}

// base holds the DSEL-derived state shared by every dynamic method.
type base struct {
	opts       Options
	pool       []ensemble.Classifier
	numClasses int

	X      [][]float64
	y      []int
	bks    [][]int       // pool predictions per DSEL sample
	hits   [][]bool      // whether each classifier is correct per DSEL sample
	proba  [][][]float64 // pool probabilities per DSEL sample
	radius []float64     // distance to nearest enemy, for AKNN

	k, safeK int
	fitted   bool
}

func newBase(pool []ensemble.Classifier, opts Options) *base {
	return &base{opts: opts.withDefaults(), pool: pool}
}

func (b *base) fit(X [][]float64, y []int) error {
	if len(b.pool) == 0 {
		return ErrEmptyPool
	}
	if len(X) == 0 {
		return ErrEmptyDSEL
	}
	if len(X) != len(y) {
		return fmt.Errorf("des: %d DSEL rows but %d labels", len(X), len(y))
	}

	b.numClasses = b.pool[0].NumClasses()
	for i, c := range b.pool {
		if c.NumClasses() != b.numClasses {
			return fmt.Errorf("des: classifier %d has %d classes, expected %d", i, c.NumClasses(), b.numClasses)
		}
	}
	for i, label := range y {
		if label < 0 || label >= b.numClasses {
			return fmt.Errorf("des: DSEL label %d at row %d outside the pool's %d classes", label, i, b.numClasses)
		}
	}

	n, L := len(X), len(b.pool)
	b.X, b.y = X, y
	b.bks = make([][]int, n)
	b.hits = make([][]bool, n)
	b.proba = make([][][]float64, n)
	for i, x := range X {
		b.bks[i] = make([]int, L)
		b.hits[i] = make([]bool, L)
		b.proba[i] = make([][]float64, L)
		for c, clf := range b.pool {
			b.bks[i][c] = clf.Predict(x)
			b.hits[i][c] = b.bks[i][c] == y[i]
			b.proba[i][c] = clf.PredictProba(x)
		}
	}

	b.k = min(b.opts.K, n)
	b.safeK = min(b.opts.SafeK, n)
	if b.k < b.opts.K {
		log.Warn().Int("k", b.opts.K).Int("dsel", n).Msg("Region of competence larger than DSEL, clipping")
	}

	b.radius = nil
	if b.opts.AKNN {
		b.radius = nearestEnemyRadius(X, y)
	}
	b.fitted = true
	return nil
}

// nearestEnemyRadius returns, for each sample, the distance to the closest
// sample of a different class. Samples without enemies get radius 1.
func nearestEnemyRadius(X [][]float64, y []int) []float64 {
	radius := make([]float64, len(X))
	for i := range X {
		r := math.Inf(1)
		for j := range X {
			if y[j] == y[i] {
				continue
			}
			if d := floats.Distance(X[i], X[j], 2); d < r {
				r = d
			}
		}
		if math.IsInf(r, 1) || r == 0 {
			r = 1
		}
		radius[i] = r
	}
	return radius
}

// neighbors returns the k DSEL indices closest to x and their distances,
// ordered by distance then index. exclude is skipped when >= 0.
func (b *base) neighbors(x []float64, k, exclude int) ([]int, []float64) {
	n := len(b.X)
	idx := make([]int, 0, n)
	dist := make([]float64, n)
	for j, xj := range b.X {
		if j == exclude {
			continue
		}
		d := floats.Distance(x, xj, 2)
		if b.radius != nil {
			d /= b.radius[j]
		}
		dist[j] = d
		idx = append(idx, j)
	}
	sort.Slice(idx, func(a, c int) bool {
		if dist[idx[a]] != dist[idx[c]] {
			return dist[idx[a]] < dist[idx[c]]
		}
		return idx[a] < idx[c]
	})
	k = min(k, len(idx))
	out := idx[:k]
	d := make([]float64, k)
	for i, j := range out {
		d[i] = dist[j]
	}
	return out, d
}

// query carries everything the strategies need about one test sample.
type query struct {
	x         []float64
	preds     []int
	proba     [][]float64
	neighbors []int
	dists     []float64
	mask      []bool
	rng       *rand.Rand
}

func (q *query) region(k int) []int { return q.neighbors[:min(k, len(q.neighbors))] }

// strategy is the method-specific part of prediction.
type strategy interface {
	classify(b *base, q *query) (int, []float64)
}

// fitter is implemented by strategies that need extra training on DSEL.
type fitter interface {
	fit(b *base) error
}

func (b *base) newQuery(x []float64) *query {
	L := len(b.pool)
	q := &query{
		x:     x,
		preds: make([]int, L),
		proba: make([][]float64, L),
		rng:   queryRand(b.opts.Seed, x),
	}
	for c, clf := range b.pool {
		q.preds[c] = clf.Predict(x)
		q.proba[c] = clf.PredictProba(x)
	}
	return q
}

// queryRand derives a generator from the seed and the query values so that
// random tie-breaking is reproducible under parallel prediction.
func queryRand(seed int64, x []float64) *rand.Rand {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	for _, v := range x {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (b *base) predict(s strategy, x []float64) (int, []float64) {
	q := b.newQuery(x)
	q.neighbors, q.dists = b.neighbors(x, max(b.k, b.safeK), -1)

	if b.opts.WithIH {
		safe := q.region(b.safeK)
		labels := make([]int, len(safe))
		for i, j := range safe {
			labels[i] = b.y[j]
		}
		_, count := ensemble.Mode(labels, b.numClasses)
		hardness := float64(len(safe)-count) / float64(len(safe))
		if hardness < b.opts.IHRate {
			return b.knn(q)
		}
	}

	if agree(q.preds) {
		return q.preds[0], meanProba(q.proba, nil, b.numClasses)
	}

	q.mask = b.frienemyMask(q)
	return s.classify(b, q)
}

// knn answers from the labels of the K nearest DSEL samples.
func (b *base) knn(q *query) (int, []float64) {
	region := q.region(b.k)
	proba := make([]float64, b.numClasses)
	labels := make([]int, len(region))
	for i, j := range region {
		labels[i] = b.y[j]
		proba[b.y[j]] += 1 / float64(len(region))
	}
	return ensemble.Vote(labels, nil, b.numClasses), proba
}

func agree(preds []int) bool {
	for _, p := range preds[1:] {
		if p != preds[0] {
			return false
		}
	}
	return true
}

// frienemyMask keeps the classifiers that correctly classify at least one
// pair of samples from different classes in the safe region. Without DFP, or
// when the region has a single class or no classifier qualifies, every
// classifier is kept.
func (b *base) frienemyMask(q *query) []bool {
	L := len(b.pool)
	mask := make([]bool, L)
	if !b.opts.DFP {
		fill(mask, true)
		return mask
	}

	region := q.region(b.safeK)
	found := false
	for i := 0; i < len(region); i++ {
		for j := i + 1; j < len(region); j++ {
			a, c := region[i], region[j]
			if b.y[a] == b.y[c] {
				continue
			}
			for clf := 0; clf < L; clf++ {
				if b.hits[a][clf] && b.hits[c][clf] {
					mask[clf] = true
					found = true
				}
			}
		}
	}
	if !found {
		fill(mask, true)
	}
	return mask
}

func fill(mask []bool, v bool) {
	for i := range mask {
		mask[i] = v
	}
}

// meanProba averages the probabilities of the classifiers in sel, or of all
// classifiers when sel is nil. weights, when non-nil, weight each classifier.
func meanProba(proba [][]float64, sel []int, numClasses int) []float64 {
	return weightedProba(proba, sel, nil, numClasses)
}

func weightedProba(proba [][]float64, sel []int, weights []float64, numClasses int) []float64 {
	out := make([]float64, numClasses)
	if sel == nil {
		sel = make([]int, len(proba))
		for i := range sel {
			sel[i] = i
		}
	}
	total := 0.0
	for _, c := range sel {
		w := 1.0
		if weights != nil {
			w = weights[c]
		}
		if w <= 0 {
			continue
		}
		floats.AddScaled(out, w, proba[c])
		total += w
	}
	if total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// vote combines the predictions of the classifiers in sel, optionally
// weighted by weights indexed by classifier.
func vote(q *query, sel []int, weights []float64, numClasses int) int {
	labels := make([]int, len(sel))
	var w []float64
	if weights != nil {
		w = make([]float64, len(sel))
	}
	for i, c := range sel {
		labels[i] = q.preds[c]
		if weights != nil {
			w[i] = weights[c]
		}
	}
	return ensemble.Vote(labels, w, numClasses)
}

// Estimator binds a strategy to the shared DSEL state.
type Estimator struct {
	name string
	b    *base
	s    strategy
}

func newEstimator(name string, pool []ensemble.Classifier, opts Options, s strategy) *Estimator {
	return &Estimator{name: name, b: newBase(pool, opts), s: s}
}

// Name returns the method's display name.
func (e *Estimator) Name() string { return e.name }

// Fit computes the DSEL hit matrix, pool outputs and any strategy state.
func (e *Estimator) Fit(X [][]float64, y []int) error {
	if err := e.b.fit(X, y); err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}
	if f, ok := e.s.(fitter); ok {
		if err := f.fit(e.b); err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
	}
	log.Debug().
		Str("method", e.name).
		Int("dsel", len(X)).
		Int("pool", len(e.b.pool)).
		Int("k", e.b.k).
		Msg("Selection method fitted")
	return nil
}

// NumClasses returns the pool's number of classes.
func (e *Estimator) NumClasses() int { return e.b.numClasses }

// Predict returns the label for x. An unfitted estimator returns 0.
func (e *Estimator) Predict(x []float64) int {
	if !e.b.fitted {
		return 0
	}
	label, _ := e.b.predict(e.s, x)
	return label
}

// PredictProba returns class probabilities for x.
func (e *Estimator) PredictProba(x []float64) []float64 {
	if !e.b.fitted {
		return make([]float64, e.b.numClasses)
	}
	_, proba := e.b.predict(e.s, x)
	return proba
}

// Score returns accuracy over X, y.
func (e *Estimator) Score(ctx context.Context, X [][]float64, y []int) (float64, error) {
	if !e.b.fitted {
		return 0, ErrNotFitted
	}
	return ensemble.Score(ctx, e, X, y)
}
