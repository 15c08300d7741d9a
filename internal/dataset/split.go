package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TrainTestSplit partitions d into train and test sets. testSize is the
// fraction of samples assigned to test. With stratify, each class is split
// separately so class proportions are preserved; a class with at least two
// samples always contributes to both sides.
func TrainTestSplit(d *Dataset, testSize float64, rng *rand.Rand, stratify bool) (train, test *Dataset, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0,1), got %f", testSize)
	}
	n := d.Len()
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 samples to split, got %d", ErrEmptyDataset, n)
	}

	var trainIdx, testIdx []int
	if stratify {
		for _, idx := range indicesByClass(d.Y, d.NumClasses()) {
			if len(idx) == 0 {
				continue
			}
			rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
			nTest := int(math.Round(float64(len(idx)) * testSize))
			if len(idx) >= 2 {
				nTest = clamp(nTest, 1, len(idx)-1)
			} else {
				nTest = 0
			}
			testIdx = append(testIdx, idx[:nTest]...)
			trainIdx = append(trainIdx, idx[nTest:]...)
		}
	} else {
		perm := rng.Perm(n)
		nTest := clamp(int(math.Round(float64(n)*testSize)), 1, n-1)
		testIdx = perm[:nTest]
		trainIdx = perm[nTest:]
	}

	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, nil, fmt.Errorf("split produced an empty side (train=%d, test=%d)", len(trainIdx), len(testIdx))
	}

	rng.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
	rng.Shuffle(len(testIdx), func(i, j int) { testIdx[i], testIdx[j] = testIdx[j], testIdx[i] })
	return d.Subset(trainIdx), d.Subset(testIdx), nil
}

// StratifiedKFold assigns sample indices to k folds so that each fold holds
// roughly the same class proportions. k is reduced to len(y) when there are
// fewer samples than folds. Each returned slice is a held-out fold, sorted.
func StratifiedKFold(y []int, numClasses, k int, rng *rand.Rand) [][]int {
	if k > len(y) {
		k = len(y)
	}
	if k < 1 {
		return nil
	}

	folds := make([][]int, k)
	next := 0
	for _, idx := range indicesByClass(y, numClasses) {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, i := range idx {
			folds[next] = append(folds[next], i)
			next = (next + 1) % k
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// Complement returns the indices in [0,n) not present in the sorted slice held.
func Complement(n int, held []int) []int {
	out := make([]int, 0, n-len(held))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(held) && held[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}

func indicesByClass(y []int, numClasses int) [][]int {
	for _, v := range y {
		if v+1 > numClasses {
			numClasses = v + 1
		}
	}
	byClass := make([][]int, numClasses)
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	return byClass
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
