// Package monowriter implements the recursive 2D filter writer of
// spec.md §4.5, used for the palette index plane and, recursively, for its
// own tile-filter map. It scores a data-dependent filter set per tile, assigns
// filters with locality-aware multi-pass refinement, optionally compresses
// its own tile-filter map with a nested instance of itself, and finally
// picks a chaos-level count and emits.
//
// Grounded on svanichkin-Babe/codec3.go's encodeRegion/encodeLeaf recursive
// region-then-leaf structure (generalized here to "try several tile sizes,
// keep the cheapest, optionally recurse on the filter map itself") and
// deepteams-webp__encode_predictor.go's running-histogram scoring shape for
// designTiles/designRowFilters.
package monowriter

import (
	"fmt"

	"github.com/pixelloom/spryte/bitio"
	"github.com/pixelloom/spryte/chaos"
	"github.com/pixelloom/spryte/entropy"
	"github.com/pixelloom/spryte/huffman"
	"github.com/pixelloom/spryte/raster"
	"github.com/pixelloom/spryte/tile"
)

// MaxPasses is MAX_PASSES for designTiles.
const MaxPasses = 4

// MaxRowPasses is MAX_ROW_PASSES. designRowFilters does not read it: it
// chooses each tile row's filter in a single pass, with no
// subtract-then-rescore refinement.
const MaxRowPasses = 4

// MaxChaosLevels is MAX_CHAOS_LEVELS.
const MaxChaosLevels = 8

// RecurseThreshCount is the minimum tile count before recursing on the
// tile-filter map is considered worthwhile.
const RecurseThreshCount = 16

// SFFixed reserves a never-retired prefix of monochrome filters, mirroring
// spatialfilter.FixedCount for the RGB domain.
const SFFixed = 2

// MonoFilter predicts one byte from its causal plane neighbors.
type MonoFilter func(p *raster.Plane, mask raster.MaskFunc, x, y uint16) byte

func monoNeighbor(p *raster.Plane, mask raster.MaskFunc, x, y int, w, h uint16) (byte, bool) {
	if x < 0 || y < 0 || x >= int(w) || y >= int(h) {
		return 0, false
	}
	if mask(uint16(x), uint16(y)) {
		return 0, false
	}
	return p.At(uint16(x), uint16(y)), true
}

// monoFilters is MONO_FILTERS: the fixed prefix (zero, left) plus a small
// set of monochrome predictors in the same spirit as spatialfilter's RGB
// set, generalized to a single channel.
var monoFilters = []MonoFilter{
	func(p *raster.Plane, mask raster.MaskFunc, x, y uint16) byte { return 0 },
	func(p *raster.Plane, mask raster.MaskFunc, x, y uint16) byte {
		v, ok := monoNeighbor(p, mask, int(x)-1, int(y), p.W, p.H)
		if !ok {
			return 0
		}
		return v
	},
	func(p *raster.Plane, mask raster.MaskFunc, x, y uint16) byte {
		v, ok := monoNeighbor(p, mask, int(x), int(y)-1, p.W, p.H)
		if !ok {
			return 0
		}
		return v
	},
	func(p *raster.Plane, mask raster.MaskFunc, x, y uint16) byte {
		l, okL := monoNeighbor(p, mask, int(x)-1, int(y), p.W, p.H)
		t, okT := monoNeighbor(p, mask, int(x), int(y)-1, p.W, p.H)
		if !okL && !okT {
			return 0
		}
		return byte((int(l) + int(t)) / 2)
	},
	func(p *raster.Plane, mask raster.MaskFunc, x, y uint16) byte {
		l, _ := monoNeighbor(p, mask, int(x)-1, int(y), p.W, p.H)
		t, _ := monoNeighbor(p, mask, int(x), int(y)-1, p.W, p.H)
		tl, _ := monoNeighbor(p, mask, int(x)-1, int(y)-1, p.W, p.H)
		v := int(l) + int(t) - int(tl)
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		return byte(v)
	},
}

// MonoFilterCount is the fixed size of monoFilters (MONO_FILTERS).
const MonoFilterCount = 5

// Awards is AWARDS[]: the point table designFilters uses, index 0 reserved
// for a matching sympal candidate.
var Awards = []int64{5, 4, 2, 1}

// Params mirrors spec.md §4.5's Parameters record.
type Params struct {
	NumSyms         int
	Mask            raster.MaskFunc
	MinBits, MaxBits uint8
	SympalThresh    float64
	FilterThresh    float64
	AwardCount      int
	MonoRevisitCount int
	MaxFilters      int
	// Desync interleaves the debug position markers of spec.md §7 into the
	// residual stream, mirroring MonoWriter.cpp's DESYNC/DESYNC_TABLE macros.
	Desync bool
}

// DefaultParams returns spec.md-typical MonoWriter parameters.
func DefaultParams(numSyms int) Params {
	return Params{
		NumSyms:          numSyms,
		Mask:             raster.NoMask,
		MinBits:          2,
		MaxBits:          5,
		SympalThresh:     0.9,
		FilterThresh:     0.95,
		AwardCount:       3,
		MonoRevisitCount: 32,
		MaxFilters:       tile.MaxFilters,
	}
}

// candidate is one tile-size trial's fully-designed state, kept around so
// process() can pick the cheapest without recomputing anything (spec.md
// §9's "best-writer caching").
type candidate struct {
	bits        uint8
	grid        *tile.Grid
	filters     []MonoFilter
	filterIdxs  []int // monoFilters indices backing filters, same order
	sympalVals  []byte
	normalCount int
	residual    *raster.Plane
	rowRF       []bool // per tile-row: true = RF_PREV
	child       *Writer
	chaosLevels int
	bitCost     int
}

// Writer is one MonoWriter instance; Process may build a nested child
// Writer over its own tile-filter map (spec.md §4.5 stage 8).
type Writer struct {
	Params Params
}

// New returns a Writer with the given parameters.
func New(p Params) *Writer {
	return &Writer{Params: p}
}

// Result is what Process returns: the winning candidate's essentials plus
// the total simulated bit cost, for the caller (rgbawriter/palette/spryte)
// to compare against alternatives.
type Result struct {
	BitCost     int
	ChaosLevels int
}

// Process implements spec.md §4.5's process(): try every tile bit size in
// [MinBits,MaxBits], keep the cheapest by simulated cost, then emit it.
func (w *Writer) Process(data *raster.Plane, sink *bitio.Writer) (*Result, error) {
	p := w.Params
	var best *candidate
	for bits := p.MinBits; bits <= p.MaxBits; bits++ {
		c, err := w.designOne(data, bits)
		if err != nil {
			return nil, err
		}
		if best == nil || c.bitCost < best.bitCost {
			best = c
		}
	}
	if err := best.grid.CheckTerminal(); err != nil {
		return nil, err
	}
	if err := w.emit(data, best, sink); err != nil {
		return nil, err
	}
	return &Result{BitCost: best.bitCost, ChaosLevels: best.chaosLevels}, nil
}

func (w *Writer) designOne(data *raster.Plane, bits uint8) (*candidate, error) {
	p := w.Params
	g := tile.NewGrid(data.W, data.H, bits)
	maskTiles(g, data, p.Mask)

	sympalVals, sympalOf := designPaletteFilters(g, data, p)
	filters, filterIdxs, normalCount := designFilters(g, data, p, sympalOf)
	budget := tile.FilterBudget{NormalCount: normalCount, SympalCount: len(sympalVals)}
	if err := budget.Validate(); err != nil {
		return nil, fmt.Errorf("monowriter: bug: %w", err)
	}
	designPaletteTiles(g, sympalVals, sympalOf, normalCount)
	designTiles(g, data, p, filters)

	residual := computeResiduals(g, data, p, filters, sympalVals, normalCount)
	rowRF := designRowFilters(g, normalCount+len(sympalVals))

	var child *Writer
	filterMapCost := estimateRowFilterCost(g, rowRF, normalCount+len(sympalVals))
	if g.TilesX*g.TilesY >= RecurseThreshCount {
		fm := filterMapAsPlane(g)
		cp := DefaultParams(normalCount + len(sympalVals) + 1)
		cp.MaxBits = bits
		if cp.MaxBits < cp.MinBits {
			cp.MaxBits = cp.MinBits
		}
		child = New(cp)
		childSink := bitio.NewWriter()
		res, err := child.Process(fm, childSink)
		if err == nil && res.BitCost < filterMapCost {
			filterMapCost = res.BitCost
		} else {
			child = nil
		}
	}

	levels, cost := designChaos(residual, p.Mask, g, p.NumSyms)

	c := &candidate{
		bits: bits, grid: g, filters: filters, filterIdxs: filterIdxs, sympalVals: sympalVals,
		normalCount: normalCount, residual: residual, rowRF: rowRF,
		child: child, chaosLevels: levels,
		bitCost: filterMapCost + cost,
	}
	return c, nil
}

// maskTiles is spec.md §4.5 stage 1.
func maskTiles(g *tile.Grid, data *raster.Plane, mask raster.MaskFunc) {
	g.ForEachTile(func(tx, ty int) {
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		any := false
		for y := y0; y < y1 && !any; y++ {
			for x := x0; x < x1; x++ {
				if !mask(uint16(x), uint16(y)) {
					any = true
					break
				}
			}
		}
		if !any {
			g.SetState(tx, ty, tile.MaskTile)
		}
	})
}

// designPaletteFilters is stage 2: find candidate sympal values.
func designPaletteFilters(g *tile.Grid, data *raster.Plane, p Params) ([]byte, map[[2]int]byte) {
	hist := make(map[byte]int)
	sympalOf := map[[2]int]byte{}
	tiles := 0
	g.ForEachTile(func(tx, ty int) {
		if g.State(tx, ty) == tile.MaskTile {
			return
		}
		tiles++
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		uniform := true
		var v byte
		first := true
		for y := y0; y < y1 && uniform; y++ {
			for x := x0; x < x1; x++ {
				if p.Mask(uint16(x), uint16(y)) {
					continue
				}
				b := data.At(uint16(x), uint16(y))
				if first {
					v, first = b, false
				} else if b != v {
					uniform = false
					break
				}
			}
		}
		if !first && uniform {
			hist[v]++
			sympalOf[[2]int{tx, ty}] = v
		}
	})

	var vals []byte
	thresh := p.SympalThresh * float64(tiles)
	for v, count := range hist {
		if float64(count) > thresh {
			vals = append(vals, v)
		}
		if len(vals) >= tile.MaxSympal {
			break
		}
	}
	return vals, sympalOf
}

func residualScore(residual byte, numSyms int) int {
	half := numSyms / 2
	v := int(residual)
	if v > half {
		return numSyms - v
	}
	return v
}

// designFilters is stage 3. The second return is the monoFilters index
// backing each entry of the first, in the same order (needed to write the
// normal-filter table in emit).
func designFilters(g *tile.Grid, data *raster.Plane, p Params, sympalOf map[[2]int]byte) ([]MonoFilter, []int, int) {
	scores := make([]int64, MonoFilterCount)
	g.ForEachTile(func(tx, ty int) {
		if g.State(tx, ty) == tile.MaskTile {
			return
		}
		if _, isSympal := sympalOf[[2]int{tx, ty}]; isSympal {
			if len(Awards) > 0 {
				scores[0] += Awards[0]
			}
			return
		}
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		var best [MonoFilterCount]int64
		for fi, f := range monoFilters {
			var total int64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					if p.Mask(uint16(x), uint16(y)) {
						continue
					}
					pred := f(data, p.Mask, uint16(x), uint16(y))
					actual := data.At(uint16(x), uint16(y))
					res := actual - pred
					total += int64(residualScore(res, p.NumSyms))
				}
			}
			best[fi] = total
		}
		// Rank ascending (lower residual score = better); award top AwardCount.
		type ranked struct {
			idx   int
			score int64
		}
		var rs []ranked
		for i, s := range best {
			rs = append(rs, ranked{i, s})
		}
		for i := 1; i < len(rs); i++ {
			for j := i; j > 0 && rs[j].score < rs[j-1].score; j-- {
				rs[j], rs[j-1] = rs[j-1], rs[j]
			}
		}
		for rank := 0; rank < p.AwardCount+1 && rank < len(rs); rank++ {
			if rank+1 < len(Awards) {
				scores[rs[rank].idx] += Awards[rank+1]
			}
		}
	})

	type ranked struct {
		idx   int
		score int64
	}
	var rs []ranked
	for i, s := range scores {
		rs = append(rs, ranked{i, s})
	}
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].score < rs[j-1].score; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
	// Reverse so highest score first, keeping SFFixed prefix pinned.
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}

	selected := map[int]bool{}
	for i := 0; i < SFFixed && i < MonoFilterCount; i++ {
		selected[i] = true
	}
	tiles := 0
	g.ForEachTile(func(tx, ty int) {
		if g.State(tx, ty) != tile.MaskTile {
			tiles++
		}
	})
	covered := int64(0)
	thresh := int64(p.FilterThresh * float64(tiles))
	for _, r := range rs {
		if len(selected) >= p.MaxFilters {
			break
		}
		if covered >= thresh {
			break
		}
		selected[r.idx] = true
		covered += r.score
	}

	var out []MonoFilter
	var idxs []int
	for i := 0; i < MonoFilterCount; i++ {
		if selected[i] {
			out = append(out, monoFilters[i])
			idxs = append(idxs, i)
		}
	}
	if len(out) == 0 {
		out = append(out, monoFilters[0])
		idxs = append(idxs, 0)
	}
	return out, idxs, len(out)
}

// designPaletteTiles is stage 4: resolve tiles previously flagged as
// sympal candidates to either their surviving sympal filter index — a
// dedicated state in [normalCount, normalCount+len(sympalVals)), one per
// committed sympal value — or back to TODOTile when their uniform value
// didn't clear designPaletteFilters's frequency threshold.
func designPaletteTiles(g *tile.Grid, sympalVals []byte, sympalOf map[[2]int]byte, normalCount int) {
	valIndex := make(map[byte]int, len(sympalVals))
	for i, v := range sympalVals {
		valIndex[v] = i
	}
	for k, v := range sympalOf {
		if idx, ok := valIndex[v]; ok {
			g.SetState(k[0], k[1], tile.State(normalCount+idx))
		} else {
			g.SetState(k[0], k[1], tile.TODOTile)
		}
	}
}

type tileScore struct {
	tx, ty int
	filter int
	codes  []byte
}

// designTiles is stage 5: multi-pass minimum-entropy assignment with
// locality reward. Tiles designPaletteTiles already committed to a sympal
// index are terminal by this point and never appear in order below.
func designTiles(g *tile.Grid, data *raster.Plane, p Params, filters []MonoFilter) {
	hist := entropy.New()
	assigned := map[[2]int]tileScore{}

	scoreTile := func(tx, ty int) tileScore {
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		bestFi, bestScore := -1, 0.0
		var bestCodes []byte
		for fi, f := range filters {
			var codes []byte
			allZero := true
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					if p.Mask(uint16(x), uint16(y)) {
						continue
					}
					pred := f(data, p.Mask, uint16(x), uint16(y))
					actual := data.At(uint16(x), uint16(y))
					res := actual - pred
					if res != 0 {
						allZero = false
					}
					codes = append(codes, res)
				}
			}
			score := hist.EntropyWith(codes)
			neighbors := [][2]int{{tx - 1, ty}, {tx, ty - 1}, {tx - 1, ty - 1}, {tx + 1, ty - 1}}
			for _, n := range neighbors {
				if n[0] < 0 || n[1] < 0 || n[0] >= g.TilesX || n[1] >= g.TilesY {
					continue
				}
				if prev, ok := assigned[[2]int{n[0], n[1]}]; ok && prev.filter == fi {
					score -= 1
				}
			}
			if allZero {
				score -= 1
			}
			if bestFi == -1 || score < bestScore {
				bestFi, bestScore, bestCodes = fi, score, codes
			}
		}
		return tileScore{tx, ty, bestFi, bestCodes}
	}

	var order [][2]int
	g.ForEachTile(func(tx, ty int) {
		if g.State(tx, ty) == tile.TODOTile {
			order = append(order, [2]int{tx, ty})
		}
	})

	for pass := 0; pass < MaxPasses; pass++ {
		changed := false
		revisit := order
		if pass > 0 && p.MonoRevisitCount > 0 && p.MonoRevisitCount < len(order) {
			revisit = order[:p.MonoRevisitCount]
		}
		for _, k := range revisit {
			tx, ty := k[0], k[1]
			if pass > 0 {
				if prev, ok := assigned[k]; ok {
					hist.Subtract(prev.codes)
				}
			}
			ts := scoreTile(tx, ty)
			hist.Add(ts.codes)
			if prev, ok := assigned[k]; !ok || prev.filter != ts.filter {
				changed = true
			}
			assigned[k] = ts
			g.SetState(tx, ty, tile.State(ts.filter))
		}
		if !changed {
			break
		}
	}
}

// computeResiduals is stage 6. A tile committed to a sympal index (state in
// [normalCount, normalCount+len(sympalVals))) is constant: its predictor is
// the committed symbol itself rather than a filter function, so every
// active pixel residuals to zero exactly when the uniform-tile detection in
// designPaletteFilters held.
func computeResiduals(g *tile.Grid, data *raster.Plane, p Params, filters []MonoFilter, sympalVals []byte, normalCount int) *raster.Plane {
	out := raster.NewPlane(data.W, data.H)
	g.ForEachTile(func(tx, ty int) {
		st := g.State(tx, ty)
		if st == tile.MaskTile {
			return
		}
		fi := int(st)
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		if fi >= normalCount && fi < normalCount+len(sympalVals) {
			sv := sympalVals[fi-normalCount]
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					if p.Mask(uint16(x), uint16(y)) {
						continue
					}
					actual := data.At(uint16(x), uint16(y))
					out.Set(uint16(x), uint16(y), actual-sv)
				}
			}
			return
		}
		if fi < 0 || fi >= len(filters) {
			fi = 0
		}
		f := filters[fi]
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				if p.Mask(uint16(x), uint16(y)) {
					continue
				}
				pred := f(data, p.Mask, uint16(x), uint16(y))
				actual := data.At(uint16(x), uint16(y))
				out.Set(uint16(x), uint16(y), actual-pred)
			}
		}
	})
	return out
}

// designRowFilters is stage 7: per tile-row RF_NOOP/RF_PREV choice.
func designRowFilters(g *tile.Grid, filterCount int) []bool {
	rf := make([]bool, g.TilesY)
	for ty := 0; ty < g.TilesY; ty++ {
		noopCost, prevCost := 0, 0
		prev := 0
		for tx := 0; tx < g.TilesX; tx++ {
			st := g.State(tx, ty)
			if st == tile.MaskTile {
				continue
			}
			f := int(st)
			noopCost += costOf(f, filterCount)
			delta := (f - prev + filterCount) % filterCount
			prevCost += costOf(delta, filterCount)
			prev = f
		}
		rf[ty] = prevCost < noopCost
	}
	return rf
}

func costOf(v, base int) int {
	if base <= 1 {
		return 1
	}
	bits := 1
	for (1 << bits) < base {
		bits++
	}
	return bits
}

func estimateRowFilterCost(g *tile.Grid, rowRF []bool, filterCount int) int {
	total := 0
	for ty := 0; ty < g.TilesY; ty++ {
		prev := 0
		for tx := 0; tx < g.TilesX; tx++ {
			st := g.State(tx, ty)
			if st == tile.MaskTile {
				continue
			}
			f := int(st)
			if rowRF[ty] {
				delta := (f - prev + filterCount) % filterCount
				total += costOf(delta, filterCount)
			} else {
				total += costOf(f, filterCount)
			}
			prev = f
		}
	}
	return total
}

// filterMapAsPlane packages the tile-grid's committed filter indices as an
// ordinary monochrome plane over tile coordinates, per spec.md §4.5 stage 8
// ("input is the tile-filter map itself").
func filterMapAsPlane(g *tile.Grid) *raster.Plane {
	p := raster.NewPlane(uint16(g.TilesX), uint16(g.TilesY))
	g.ForEachTile(func(tx, ty int) {
		st := g.State(tx, ty)
		if st == tile.MaskTile {
			p.Set(uint16(tx), uint16(ty), 0)
			return
		}
		p.Set(uint16(tx), uint16(ty), byte(st))
	})
	return p
}

// designChaos is stage 9: pick the chaos-level count minimizing residual
// entropy plus a per-level table overhead.
func designChaos(residual *raster.Plane, mask func(x, y uint16) bool, g *tile.Grid, numSyms int) (int, int) {
	bestLevels, bestCost := 1, -1
	for levels := 1; levels <= MaxChaosLevels; levels++ {
		if levels != 1 && levels != chaos.Levels8 {
			continue // spec.md §4.3 only defines the 1- and 8-level tables.
		}
		encs := make([]*entropy.Estimator, levels)
		for i := range encs {
			encs[i] = entropy.New()
		}
		tr := chaos.NewTracker(int(residual.W))
		for y := uint16(0); y < residual.H; y++ {
			tr.StartRow()
			for x := uint16(0); x < residual.W; x++ {
				if mask(x, y) {
					tr.Skip(int(x))
					continue
				}
				bin := tr.Bin(levels, int(x))
				v := residual.At(x, y)
				encs[bin].AddSymbol(v)
				tr.Observe(int(x), v)
			}
		}
		cost := 0.0
		for _, e := range encs {
			cost += e.Entropy()
		}
		cost += float64(5*numSyms) * float64(levels)
		if bestCost == -1 || int(cost) < bestCost {
			bestLevels, bestCost = levels, int(cost)
		}
	}
	return bestLevels, bestCost
}

// emit is stage 11: writes the winning candidate's header, filter map, and
// residuals interleaved in raster order, per spec.md §4.5's final
// paragraph.
func (w *Writer) emit(data *raster.Plane, c *candidate, sink *bitio.Writer) error {
	sink.WriteBits(uint32(c.bits), 3)

	// Sympal filter table (spec.md §6 bitstream layout item 3): count-1 in
	// 4 bits, then the committed symbol value per entry. Mirrors
	// MonoWriter.cpp's writeTables, including its unconditional
	// count-1 write when the table is empty.
	sink.WriteBits(uint32(len(c.sympalVals)-1), 4)
	for _, v := range c.sympalVals {
		sink.WriteBits(uint32(v), 8)
	}

	// Normal filter table: count beyond the never-retired SFFixed prefix in
	// 5 bits, then the selected monoFilters index per entry.
	sink.WriteBits(uint32(c.normalCount-SFFixed), 5)
	for _, idx := range c.filterIdxs[SFFixed:] {
		sink.WriteBits(uint32(idx), 7)
	}

	sink.WriteBits(uint32(c.chaosLevels-1), 3)

	filterCount := c.normalCount + len(c.sympalVals)

	// rowFilterVal returns the byte designRowFilters actually wants written
	// for (tx,ty): the raw filter index under RF_NOOP, or the delta from
	// the previous tile in the row under RF_PREV. prev resets at tx==0 so
	// the histogram pass and the write pass agree symbol-for-symbol.
	prevInRow := 0
	rowFilterVal := func(tx, ty int, f int) int {
		if tx == 0 {
			prevInRow = 0
		}
		val := f
		if ty < len(c.rowRF) && c.rowRF[ty] {
			val = (f - prevInRow + filterCount) % filterCount
		}
		prevInRow = f
		return val
	}

	if c.child != nil {
		sink.WriteBit(true)
		childSink := bitio.NewWriter()
		if _, err := c.child.Process(filterMapAsPlane(c.grid), childSink); err != nil {
			return err
		}
		bytes := childSink.Bytes()
		sink.WriteBits(uint32(len(bytes)), 24)
		for _, b := range bytes {
			sink.WriteBits(uint32(b), 8)
		}
	} else {
		sink.WriteBit(false)
		rfEnc := huffman.NewEntropyEncoder()
		c.grid.ForEachTile(func(tx, ty int) {
			st := c.grid.State(tx, ty)
			if st == tile.MaskTile {
				return
			}
			rfEnc.Add(byte(rowFilterVal(tx, ty, int(st)) % 256))
		})
		if err := rfEnc.Finalize(); err != nil {
			return err
		}
		if _, err := rfEnc.WriteTables(sink); err != nil {
			return err
		}
		prevInRow = 0
		c.grid.ForEachTile(func(tx, ty int) {
			st := c.grid.State(tx, ty)
			if st == tile.MaskTile {
				return
			}
			val := rowFilterVal(tx, ty, int(st))
			if _, err := rfEnc.Write(byte(val%256), sink); err != nil {
				panic(err)
			}
		})
	}

	levels := c.chaosLevels
	encs := make([]*huffman.EntropyEncoder, levels)
	for i := range encs {
		encs[i] = huffman.NewEntropyEncoder()
	}
	tr := chaos.NewTracker(int(data.W))
	for y := uint16(0); y < data.H; y++ {
		tr.StartRow()
		for x := uint16(0); x < data.W; x++ {
			if w.Params.Mask(x, y) {
				tr.Skip(int(x))
				continue
			}
			bin := tr.Bin(levels, int(x))
			v := c.residual.At(x, y)
			encs[bin].Add(v)
			tr.Observe(int(x), v)
		}
	}
	for _, e := range encs {
		if err := e.Finalize(); err != nil {
			return err
		}
		if _, err := e.WriteTables(sink); err != nil {
			return err
		}
	}

	tr2 := chaos.NewTracker(int(data.W))
	for y := uint16(0); y < data.H; y++ {
		tr2.StartRow()
		for x := uint16(0); x < data.W; x++ {
			if w.Params.Mask(x, y) {
				tr2.Skip(int(x))
				continue
			}
			if w.Params.Desync {
				sink.WriteBits(uint32(x)^12345, 16)
				sink.WriteBits(uint32(y)^54321, 16)
			}
			bin := tr2.Bin(levels, int(x))
			v := c.residual.At(x, y)
			if _, err := encs[bin].Write(v, sink); err != nil {
				return err
			}
			tr2.Observe(int(x), v)
		}
	}
	return nil
}
