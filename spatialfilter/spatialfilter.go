// Package spatialfilter implements the SF set of spec.md §4.1: a set of
// spatial predictors over a pixel's top/left/top-left/top-right RGB
// neighbors, a safe evaluator for boundary pixels, and the designFilters
// scorer/replacement loop that swaps under-performing default predictors
// for better-scoring tapped linear combinations.
//
// Predictor shapes are grounded on
// jpfielding-dicos.go/pkg/compress/jpegls/predictor.go's MED (median edge
// detection) predictor, generalized from luma-only to independent RGB
// channels, plus the plain left/top/average/gradient members spec.md
// names directly.
package spatialfilter

import "github.com/pixelloom/spryte/raster"

// FixedCount is SF_FIXED: the reserved prefix of predictors that
// designFilters may never retire (spec.md §3 invariant).
const FixedCount = 4

// DefaultCount is SF_COUNT, the pool of named/default predictors
// designFilters scores and may selectively replace.
const DefaultCount = 12

// TappedCount is TAPPED_COUNT, the pool of linear-combination candidate
// predictors designFilters may promote into the default set.
const TappedCount = 8

// Neighborhood holds the RGB values of a pixel's causal neighbors and
// which of them actually exist (are in-bounds and active); the safe
// evaluator uses Has* to decide what a missing neighbor defaults to.
type Neighborhood struct {
	Left, Top, TopLeft, TopRight             raster.Pixel
	HasLeft, HasTop, HasTopLeft, HasTopRight bool
}

// safe returns the best available substitute neighbor pixel for a
// missing one: left, then top, then zero, matching spec.md §4.1's "near
// the top/left boundary, missing neighbors substitute to a well-defined
// default (typically 0 or the available neighbor)".
func (n Neighborhood) safe() (left, top, topLeft, topRight raster.Pixel) {
	left, top, topLeft, topRight = n.Left, n.Top, n.TopLeft, n.TopRight
	fallback := raster.Pixel{}
	if n.HasLeft {
		fallback = n.Left
	} else if n.HasTop {
		fallback = n.Top
	}
	if !n.HasLeft {
		left = fallback
	}
	if !n.HasTop {
		top = fallback
	}
	if !n.HasTopLeft {
		topLeft = fallback
	}
	if !n.HasTopRight {
		topRight = fallback
	}
	return
}

// Predictor predicts an RGB triple from a safely-evaluated neighborhood.
type Predictor func(n Neighborhood) raster.Pixel

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func medPredict(a, b, c int) int {
	// Median edge detector, per jpegls.PredictMED.
	if c >= max(a, b) {
		return min(a, b)
	}
	if c <= min(a, b) {
		return max(a, b)
	}
	return a + b - c
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func perChannel(n Neighborhood, f func(left, top, topLeft, topRight int) int) raster.Pixel {
	left, top, topLeft, topRight := n.safe()
	return raster.Pixel{
		R: clampByte(f(int(left.R), int(top.R), int(topLeft.R), int(topRight.R))),
		G: clampByte(f(int(left.G), int(top.G), int(topLeft.G), int(topRight.G))),
		B: clampByte(f(int(left.B), int(top.B), int(topLeft.B), int(topRight.B))),
	}
}

// defaultPredictors builds the SF_COUNT-entry default predictor table.
// Indices [0,FixedCount) are the reserved, never-retired prefix.
func defaultPredictors() [DefaultCount]Predictor {
	var d [DefaultCount]Predictor
	// Fixed prefix.
	d[0] = func(n Neighborhood) raster.Pixel { return raster.Pixel{} } // zero predictor
	d[1] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return l })
	}
	d[2] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return t })
	}
	d[3] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return (l + t) / 2 })
	}
	// Non-fixed defaults: MED/Paeth-like, gradients, averages.
	d[4] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return medPredict(l, t, tl) })
	}
	d[5] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return l + t - tl })
	}
	d[6] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return (l + tr) / 2 })
	}
	d[7] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return (l + t + tl + tr) / 4 })
	}
	d[8] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return t + (t - tl) })
	}
	d[9] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return l + (l - tl) })
	}
	d[10] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return (3*l + t) / 4 })
	}
	d[11] = func(n Neighborhood) raster.Pixel {
		return perChannel(n, func(l, t, tl, tr int) int { return (l + 3*t) / 4 })
	}
	return d
}

// tap is one TAPPED_COUNT candidate: pred = (a*Left+b*Top+c*TopLeft+d*TopRight)/2.
type tap struct{ a, b, c, d int }

var tapTable = [TappedCount]tap{
	{2, 0, 0, 0}, {0, 2, 0, 0}, {1, 1, 0, 0}, {1, 1, -1, 0} /* Paeth-ish */, {1, 0, 0, 1},
	{0, 1, 0, 1}, {3, -1, 0, 0}, {-1, 3, 0, 0},
}

func (t tap) predict(n Neighborhood) raster.Pixel {
	return perChannel(n, func(l, tp, tl, tr int) int {
		return (t.a*l + t.b*tp + t.c*tl + t.d*tr) / 2
	})
}

// Set is the live SF table a rgbawriter/monowriter encode call uses: the
// default predictors as possibly modified by a prior designFilters call,
// plus a snapshot of the replacement table that must be emitted to the
// bitstream (spec.md §6 bitstream layout 2.a).
type Set struct {
	Predictors   [DefaultCount]Predictor
	Names        [DefaultCount]string
	Replacements []Replacement
}

// Replacement records one (default_index, tapped_index) swap made by
// designFilters, in application order, per spec.md §3's "filter
// replacement table".
type Replacement struct {
	DefaultIndex uint8
	TappedIndex  uint8
}

// NewSet returns the initial SF table before any design pass has run.
func NewSet() *Set {
	s := &Set{Predictors: defaultPredictors()}
	names := [DefaultCount]string{
		"zero", "left", "top", "avg-lt", "med", "grad-tl", "avg-l-tr", "avg4",
		"grad-t", "grad-l", "lean-l", "lean-t",
	}
	s.Names = names
	return s
}

// TileScore accumulates, for one tile's active pixels, the total mod-256
// chaos-style L1 residual each candidate predictor (defaults followed by
// taps) would produce, per spec.md §4.1.
type TileScore struct {
	Default [DefaultCount]int64
	Tap     [TappedCount]int64
}

func chaosScore(b byte) int {
	v := int(b)
	if v > 128 {
		return 256 - v
	}
	return v
}

func residualScore(pred, actual raster.Pixel) int {
	rr := actual.R - pred.R
	gg := actual.G - pred.G
	bb := actual.B - pred.B
	return chaosScore(rr) + chaosScore(gg) + chaosScore(bb)
}

// ScoreTile evaluates every default and tapped predictor against one
// tile's active pixels, each given as its actual value plus the
// neighborhood the caller gathered for it.
func (s *Set) ScoreTile(pixels []struct {
	Actual raster.Pixel
	Neigh  Neighborhood
}) TileScore {
	var sc TileScore
	for _, px := range pixels {
		for i, p := range s.Predictors {
			sc.Default[i] += int64(residualScore(p(px.Neigh), px.Actual))
		}
		for i, tp := range tapTable {
			sc.Tap[i] += int64(residualScore(tp.predict(px.Neigh), px.Actual))
		}
	}
	return sc
}

// Designer runs spec.md §4.1's designFilters: it awards points per tile
// (4 to the best predictor, 1 each to the next three) across defaults and
// taps, then greedily replaces the worst-scoring non-fixed default with
// the best tapped candidate while the quality gate holds.
type Designer struct {
	MinTapQuality float64 // min_tap_quality, e.g. 1.10
}

type rankedCandidate struct {
	isTap bool
	idx   int
	score int64 // lower residual is better; points computed by rank
}

// Design consumes the per-tile scores (already computed by ScoreTile for
// every non-masked tile) and returns the replacement list, deterministic
// for a given input (spec.md §8 "idempotence of filter design").
func (d Designer) Design(tileScores []TileScore) []Replacement {
	var defaultPoints [DefaultCount]int64
	var tapPoints [TappedCount]int64

	for _, ts := range tileScores {
		var cands []rankedCandidate
		for i, s := range ts.Default {
			cands = append(cands, rankedCandidate{false, i, s})
		}
		for i, s := range ts.Tap {
			cands = append(cands, rankedCandidate{true, i, s})
		}
		sortCandidates(cands)
		for rank, c := range cands {
			var pts int64
			switch {
			case rank == 0:
				pts = 4
			case rank <= 3:
				pts = 1
			default:
				continue
			}
			if c.isTap {
				tapPoints[c.idx] += pts
			} else {
				defaultPoints[c.idx] += pts
			}
		}
	}

	retired := map[int]bool{}
	usedTap := map[int]bool{}
	var reps []Replacement

	for {
		worstIdx, worstScore := -1, int64(-1)
		for i := FixedCount; i < DefaultCount; i++ {
			if retired[i] {
				continue
			}
			if worstIdx == -1 || defaultPoints[i] < worstScore {
				worstIdx, worstScore = i, defaultPoints[i]
			}
		}
		bestTapIdx, bestTapScore := -1, int64(-1)
		for i := 0; i < TappedCount; i++ {
			if usedTap[i] {
				continue
			}
			if bestTapIdx == -1 || tapPoints[i] > bestTapScore {
				bestTapIdx, bestTapScore = i, tapPoints[i]
			}
		}
		if worstIdx == -1 || bestTapIdx == -1 {
			break
		}
		if bestTapScore < worstScore {
			break
		}
		if worstScore > 0 {
			ratio := float64(bestTapScore) / float64(worstScore)
			if ratio < d.MinTapQuality {
				break
			}
		}
		reps = append(reps, Replacement{DefaultIndex: uint8(worstIdx), TappedIndex: uint8(bestTapIdx)})
		retired[worstIdx] = true
		usedTap[bestTapIdx] = true
		// Installing a "grave marker": the retired default index no
		// longer participates in further replacement rounds.
		defaultPoints[worstIdx] = -1 << 62
	}
	return reps
}

func sortCandidates(c []rankedCandidate) {
	// Simple insertion sort: candidate counts are DefaultCount+TappedCount
	// (=20), far too small to need anything fancier, and stability
	// (lowest lexicographic index wins ties) matters more than asymptotic
	// complexity here (spec.md §4.2 tie-break rule, reused for filter
	// design ranking).
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].score < c[j-1].score; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

// Apply installs the given replacements into s in place: each replaced
// default index's Predictor becomes the corresponding tap's.
func (s *Set) Apply(reps []Replacement) {
	s.Replacements = reps
	for _, r := range reps {
		s.Predictors[r.DefaultIndex] = tapTable[r.TappedIndex].predict
		s.Names[r.DefaultIndex] = "tap"
	}
}
