// Package entropy implements the running EntropyEstimator used during
// filter design (spec.md §4.2, §9): a reversible per-symbol histogram with
// an approximate entropy cost, so a filter-selection loop can ask "what
// would committing this candidate cost, given everything already
// committed" without re-scanning the whole image.
//
// Grounded on deepteams-webp's lossless Histogram (per-symbol counts plus
// a cached bit-cost) and Kagamiin-pixcrumb's static reference histogram
// idea, adapted to the add/subtract symmetry spec.md requires.
package entropy

import "math"

// AlphabetSize matches huffman.AlphabetSize: every stream here is one byte.
const AlphabetSize = 256

// logTable[n] holds log2(n) for n in [0,precomputedMax), avoiding a
// math.Log2 call per histogram bucket on the hot filter-design path, per
// spec.md §9's suggestion of "a precomputed log table".
const precomputedMax = 1 << 20

var logTable [precomputedMax]float64

func init() {
	for i := 1; i < precomputedMax; i++ {
		logTable[i] = math.Log2(float64(i))
	}
}

func log2(n uint64) float64 {
	if n == 0 {
		return 0
	}
	if n < precomputedMax {
		return logTable[n]
	}
	return math.Log2(float64(n))
}

// Estimator is a running byte histogram with an approximate entropy cost.
// Add/Subtract are exact inverses of each other for the same multiset of
// codes (spec.md §8: "reversible under add/subtract").
type Estimator struct {
	counts [AlphabetSize]uint64
	total  uint64
}

// New returns an empty estimator.
func New() *Estimator {
	return &Estimator{}
}

// Add records one occurrence of each byte in codes.
func (e *Estimator) Add(codes []byte) {
	for _, c := range codes {
		e.counts[c]++
	}
	e.total += uint64(len(codes))
}

// AddSymbol records one occurrence of a single symbol.
func (e *Estimator) AddSymbol(sym byte) {
	e.counts[sym]++
	e.total++
}

// Subtract removes one occurrence of each byte in codes. Codes not
// previously added (uneven Add/Subtract multisets) leave counts
// unmodified below zero, mirroring an unsigned counter that must never
// underflow; callers are required to subtract only what they added,
// which every caller in this codebase does (revisit passes always
// subtract the same commit they made).
func (e *Estimator) Subtract(codes []byte) {
	for _, c := range codes {
		if e.counts[c] > 0 {
			e.counts[c]--
			e.total--
		}
	}
}

// Entropy returns -sum(count*log2(count/total)) over the current
// histogram, in bits: the total bit cost of coding the histogram's own
// multiset under its own empirical distribution.
func (e *Estimator) Entropy() float64 {
	if e.total == 0 {
		return 0
	}
	var bits float64
	logTotal := log2(e.total)
	for _, c := range e.counts {
		if c == 0 {
			continue
		}
		bits += float64(c) * (logTotal - log2(c))
	}
	return bits
}

// EntropyWith returns the entropy the histogram would have if codes were
// added first, without mutating the estimator. Used by the two-pass
// filter selection of spec.md §4.2 to score a candidate against the
// running statistics before committing to it.
func (e *Estimator) EntropyWith(codes []byte) float64 {
	e.Add(codes)
	cost := e.Entropy()
	e.Subtract(codes)
	return cost
}

// Total returns the total number of symbols currently held.
func (e *Estimator) Total() uint64 {
	return e.total
}

// Snapshot returns a copy of the current counts, useful for tests that
// want to assert exact reversibility.
func (e *Estimator) Snapshot() [AlphabetSize]uint64 {
	return e.counts
}
