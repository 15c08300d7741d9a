package des

import (
	"fmt"
	"sort"
	"strings"

	"deslab/internal/ensemble"
)

type constructor func(pool []ensemble.Classifier, opts Options) Method

var registry = map[string]constructor{
	"ola":             func(p []ensemble.Classifier, o Options) Method { return NewOLA(p, o) },
	"lca":             func(p []ensemble.Classifier, o Options) Method { return NewLCA(p, o) },
	"mla":             func(p []ensemble.Classifier, o Options) Method { return NewMLA(p, o) },
	"rank":            func(p []ensemble.Classifier, o Options) Method { return NewRank(p, o) },
	"apriori":         func(p []ensemble.Classifier, o Options) Method { return NewAPriori(p, o) },
	"aposteriori":     func(p []ensemble.Classifier, o Options) Method { return NewAPosteriori(p, o) },
	"mcb":             func(p []ensemble.Classifier, o Options) Method { return NewMCB(p, o) },
	"desp":            func(p []ensemble.Classifier, o Options) Method { return NewDESP(p, o) },
	"knorau":          func(p []ensemble.Classifier, o Options) Method { return NewKNORAU(p, o) },
	"knorae":          func(p []ensemble.Classifier, o Options) Method { return NewKNORAE(p, o) },
	"desknn":          func(p []ensemble.Classifier, o Options) Method { return NewDESKNN(p, o) },
	"metades":         func(p []ensemble.Classifier, o Options) Method { return NewMETADES(p, o) },
	"oracle":          func(p []ensemble.Classifier, o Options) Method { return NewOracle(p, o) },
	"singlebest":      func(p []ensemble.Classifier, o Options) Method { return NewSingleBest(p, o) },
	"staticselection": func(p []ensemble.Classifier, o Options) Method { return NewStaticSelection(p, o) },
}

// normalize folds case and drops separators, so "KNORA-E", "knora e" and
// "KnoraE" all name the same method.
func normalize(name string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(name)))
}

// Known reports whether name refers to a registered method.
func Known(name string) bool {
	_, ok := registry[normalize(name)]
	return ok
}

// Names returns the registered method keys in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named method over pool.
func New(name string, pool []ensemble.Classifier, opts Options) (Method, error) {
	ctor, ok := registry[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("des: unknown method %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	return ctor(pool, opts), nil
}

// UsesMode reports whether the named method combines its selection with the
// configured Mode. KNORA-U, KNORA-E and DES-KNN have a fixed combination and
// the DCS and static methods never combine.
func UsesMode(name string) bool {
	switch normalize(name) {
	case "desp", "metades":
		return true
	}
	return false
}
