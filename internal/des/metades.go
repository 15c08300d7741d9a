package des

import (
	"sort"

	"deslab/internal/ensemble"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// metaDES learns competence with a meta-classifier trained on DSEL. For every
// (classifier, sample) pair it builds meta-features from the sample's region
// of competence and its output-profile neighbours; the target is whether the
// classifier labels the sample correctly.
type metaDES struct {
	desStrategy

	profiles [][]float64 // concatenated pool probabilities per DSEL sample
	kp       int
	meta     *multinomialNB
}

// NewMETADES builds META-DES with a multinomial naive Bayes meta-classifier.
func NewMETADES(pool []ensemble.Classifier, opts Options) *Estimator {
	m := &metaDES{}
	m.desStrategy = desStrategy{
		competence: m.estimate,
		choose:     aboveThreshold(opts.withDefaults().SelectionThreshold),
		mode:       modeOr(opts.Mode, ModeSelection),
	}
	return newEstimator("META-DES", pool, opts, m)
}

func (m *metaDES) fit(b *base) error {
	n, L := len(b.X), len(b.pool)
	m.profiles = make([][]float64, n)
	for j := range b.X {
		m.profiles[j] = profile(b.proba[j])
	}
	m.kp = min(b.opts.Kp, n)

	train := hardSamples(b)
	X := make([][]float64, 0, len(train)*L)
	y := make([]int, 0, len(train)*L)
	for _, j := range train {
		region, _ := b.neighbors(b.X[j], b.k, j)
		op := m.profileNeighbors(m.profiles[j], j)
		for c := 0; c < L; c++ {
			X = append(X, m.features(b, c, region, op, b.proba[j][c]))
			target := 0
			if b.hits[j][c] {
				target = 1
			}
			y = append(y, target)
		}
	}

	m.meta = newMultinomialNB(1.0)
	if err := m.meta.fit(X, y, 2); err != nil {
		return err
	}
	log.Debug().
		Int("meta_samples", len(X)).
		Int("dsel_used", len(train)).
		Int("kp", m.kp).
		Msg("Meta-classifier trained")
	return nil
}

// hardSamples returns the DSEL samples on which the pool consensus is below
// Hc. When every sample reaches the threshold all of DSEL is used.
func hardSamples(b *base) []int {
	n, L := len(b.X), len(b.pool)
	var out []int
	for j := 0; j < n; j++ {
		_, count := ensemble.Mode(b.bks[j], b.numClasses)
		if float64(count)/float64(L) < b.opts.Hc {
			out = append(out, j)
		}
	}
	if len(out) == 0 {
		return allIndices(n)
	}
	return out
}

func (m *metaDES) estimate(b *base, q *query) []float64 {
	region := q.region(b.k)
	op := m.profileNeighbors(profile(q.proba), -1)
	comp := make([]float64, len(b.pool))
	for c := range comp {
		comp[c] = m.meta.predictProba(m.features(b, c, region, op, q.proba[c]))[1]
	}
	return comp
}

// features builds the meta-feature vector of classifier c. Regions shorter
// than K or Kp are zero padded so every vector has the same length.
func (m *metaDES) features(b *base, c int, region, op []int, proba []float64) []float64 {
	f := make([]float64, 2*b.k+1+m.kp+1)
	hits := 0.0
	for i, j := range region {
		if b.hits[j][c] {
			f[i] = 1
			hits++
		}
		f[b.k+i] = b.proba[j][c][b.y[j]]
	}
	if len(region) > 0 {
		f[2*b.k] = hits / float64(len(region))
	}
	for i, j := range op {
		if b.hits[j][c] {
			f[2*b.k+1+i] = 1
		}
	}
	f[len(f)-1] = floats.Max(proba)
	return f
}

// profileNeighbors returns the kp DSEL samples whose output profile is closest
// to p, skipping exclude when >= 0.
func (m *metaDES) profileNeighbors(p []float64, exclude int) []int {
	idx := make([]int, 0, len(m.profiles))
	dist := make([]float64, len(m.profiles))
	for j, pj := range m.profiles {
		if j == exclude {
			continue
		}
		dist[j] = floats.Distance(p, pj, 2)
		idx = append(idx, j)
	}
	sort.Slice(idx, func(a, c int) bool {
		if dist[idx[a]] != dist[idx[c]] {
			return dist[idx[a]] < dist[idx[c]]
		}
		return idx[a] < idx[c]
	})
	return idx[:min(m.kp, len(idx))]
}

func profile(proba [][]float64) []float64 {
	var out []float64
	for _, p := range proba {
		out = append(out, p...)
	}
	return out
}
