// Package rgbawriter implements the RGBA writer of spec.md §4.2/§4.4: the
// per-tile (SF,CF) decision (both Mode 1 "entropy disabled" and Mode 2
// "entropy-driven" of §4.2) and the chaos-modeled residual coder of
// §4.4, including the filter-change-boundary bookkeeping the emission
// pass needs.
//
// Grounded on svanichkin-Babe/codec3.go's encodeRegion (a top-down pass
// that computes a per-region decision against a running structure)
// generalized from quadtree regions to a fixed tile grid, and on
// deepteams-webp__encode_predictor.go's two-pass "score against a running
// histogram, commit the minimum" shape for Mode 2.
package rgbawriter

import (
	"fmt"

	"github.com/pixelloom/spryte/bitio"
	"github.com/pixelloom/spryte/chaos"
	"github.com/pixelloom/spryte/colorfilter"
	"github.com/pixelloom/spryte/entropy"
	"github.com/pixelloom/spryte/huffman"
	"github.com/pixelloom/spryte/raster"
	"github.com/pixelloom/spryte/spatialfilter"
	"github.com/pixelloom/spryte/tile"
)

// Params carries every RGBA-writer knob named in spec.md §4.2/§4.3.
type Params struct {
	TileBits         uint8
	EntropyEnabled   bool
	FilterSelectFuzz int
	MaxEntropySkip   int64
	MinTapQuality    float64
	RevisitCount     int
	ChaosThresh      int
	Desync           bool
}

// DefaultParams returns the Mode 2 (entropy-driven) defaults.
func DefaultParams() Params {
	return Params{
		TileBits:         3,
		EntropyEnabled:   true,
		FilterSelectFuzz: 4,
		MaxEntropySkip:   8,
		MinTapQuality:    1.10,
		RevisitCount:     64,
		ChaosThresh:      4096,
	}
}

// Validate reports BadParams-shaped conditions per spec.md §7 ("entropy
// enabled with filterSelectFuzz <= 0").
func (p Params) Validate() error {
	if p.EntropyEnabled && p.FilterSelectFuzz <= 0 {
		return fmt.Errorf("rgbawriter: bad params: entropy enabled requires filterSelectFuzz > 0, got %d", p.FilterSelectFuzz)
	}
	if p.TileBits == 0 {
		return fmt.Errorf("rgbawriter: bad params: TileBits must be > 0")
	}
	return nil
}

// decision is the committed (sf,cf) pair for one tile, plus the codes it
// contributed to the running histograms (needed to Subtract them again
// during a revisit pass).
type decision struct {
	sf, cf   uint8
	yCodes   []byte
	uCodes   []byte
	vCodes   []byte
}

// Result carries everything the emit stage and the top-level orchestrator
// need after Encode has run.
type Result struct {
	Grid          *tile.Grid
	SF            *spatialfilter.Set
	ChaosLevels   int
	ActiveCount   int
	BitsWritten   int
	FilterMapBits int
}

// Writer runs the full RGBA pipeline: mask tiles, design SF replacements,
// decide per-tile (SF,CF), compute chaos stats, and emit.
type Writer struct {
	Params Params
}

// New returns a Writer with the given params.
func New(p Params) *Writer {
	return &Writer{Params: p}
}

func neighborhoodAt(img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, x, y uint16) spatialfilter.Neighborhood {
	var n spatialfilter.Neighborhood
	if x > 0 && raster.Active(mask, visited, x-1, y) {
		n.Left, n.HasLeft = img.At(x-1, y), true
	}
	if y > 0 && raster.Active(mask, visited, x, y-1) {
		n.Top, n.HasTop = img.At(x, y-1), true
	}
	if x > 0 && y > 0 && raster.Active(mask, visited, x-1, y-1) {
		n.TopLeft, n.HasTopLeft = img.At(x-1, y-1), true
	}
	if y > 0 && x+1 < img.W && raster.Active(mask, visited, x+1, y-1) {
		n.TopRight, n.HasTopRight = img.At(x+1, y-1), true
	}
	return n
}

// maskTiles classifies every tile as MaskTile or leaves it TODOTile
// (spec.md §4.5 stage 1, reused verbatim for the RGBA writer per §2's
// "Tile masker" box).
func maskTiles(g *tile.Grid, img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc) {
	g.ForEachTile(func(tx, ty int) {
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		anyActive := false
		for y := y0; y < y1 && !anyActive; y++ {
			for x := x0; x < x1; x++ {
				if raster.Active(mask, visited, uint16(x), uint16(y)) {
					anyActive = true
					break
				}
			}
		}
		if !anyActive {
			g.SetState(tx, ty, tile.MaskTile)
		}
	})
	_ = img
}

// designSpatialFilters runs spec.md §4.1's designFilters over every
// non-masked tile's active pixels.
func designSpatialFilters(g *tile.Grid, img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, minTapQuality float64) *spatialfilter.Set {
	sf := spatialfilter.NewSet()
	var scores []spatialfilter.TileScore
	g.ForEachTile(func(tx, ty int) {
		if g.State(tx, ty) == tile.MaskTile {
			return
		}
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		var pixels []struct {
			Actual raster.Pixel
			Neigh  spatialfilter.Neighborhood
		}
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				xu, yu := uint16(x), uint16(y)
				if !raster.Active(mask, visited, xu, yu) {
					continue
				}
				pixels = append(pixels, struct {
					Actual raster.Pixel
					Neigh  spatialfilter.Neighborhood
				}{img.At(xu, yu), neighborhoodAt(img, mask, visited, xu, yu)})
			}
		}
		if len(pixels) > 0 {
			scores = append(scores, sf.ScoreTile(pixels))
		}
	})
	d := spatialfilter.Designer{MinTapQuality: minTapQuality}
	sf.Apply(d.Design(scores))
	return sf
}

func rgbResidual(actual, pred raster.Pixel) raster.Pixel {
	return raster.Pixel{R: actual.R - pred.R, G: actual.G - pred.G, B: actual.B - pred.B}
}

// mode1Score is the L1-norm proxy of spec.md §4.2 Mode 1:
// sum(chaos_score(y)+chaos_score(u)+chaos_score(v)).
func mode1Score(residual raster.Pixel, cf colorfilter.CF) int {
	y, u, v := cf.Forward(residual.R, residual.G, residual.B)
	return chaos.Score(y) + chaos.Score(u) + chaos.Score(v)
}

// decideTile chooses (sf,cf) for one tile's active pixels, implementing
// both modes of spec.md §4.2. yHist/uHist/vHist are the running
// EntropyEstimators shared across all tiles in Mode 2; nil in Mode 1.
func decideTile(pixels []struct {
	Actual raster.Pixel
	Neigh  spatialfilter.Neighborhood
}, sf *spatialfilter.Set, p Params, yHist, uHist, vHist *entropy.Estimator) decision {
	type candidate struct {
		sf, cf uint8
		l1     int
	}
	var cands []candidate
	for sfi := range sf.Predictors {
		for cfi := range colorfilter.Filters {
			total := 0
			for _, px := range pixels {
				pred := sf.Predictors[sfi](px.Neigh)
				res := rgbResidual(px.Actual, pred)
				total += mode1Score(res, colorfilter.Filters[cfi])
			}
			cands = append(cands, candidate{uint8(sfi), uint8(cfi), total})
		}
	}
	// Deterministic tie-break: stable sort by (l1, sf, cf) lexicographic.
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0; j-- {
			a, b := cands[j], cands[j-1]
			less := a.l1 < b.l1 || (a.l1 == b.l1 && (a.sf < b.sf || (a.sf == b.sf && a.cf < b.cf)))
			if !less {
				break
			}
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}

	best := cands[0]
	if !p.EntropyEnabled || int64(best.l1) < p.MaxEntropySkip {
		return commitDecision(pixels, sf, best.sf, best.cf, yHist, uHist, vHist)
	}

	fuzz := p.FilterSelectFuzz
	if fuzz > len(cands) {
		fuzz = len(cands)
	}
	bestIdx, bestCost := 0, -1.0
	for i := 0; i < fuzz; i++ {
		c := cands[i]
		yCodes, uCodes, vCodes := computeCodes(pixels, sf, c.sf, c.cf)
		cost := yHist.EntropyWith(yCodes) + uHist.EntropyWith(uCodes) + vHist.EntropyWith(vCodes)
		if bestCost < 0 || cost < bestCost {
			bestIdx, bestCost = i, cost
		}
	}
	c := cands[bestIdx]
	return commitDecision(pixels, sf, c.sf, c.cf, yHist, uHist, vHist)
}

func computeCodes(pixels []struct {
	Actual raster.Pixel
	Neigh  spatialfilter.Neighborhood
}, sf *spatialfilter.Set, sfi, cfi uint8) (y, u, v []byte) {
	y = make([]byte, 0, len(pixels))
	u = make([]byte, 0, len(pixels))
	v = make([]byte, 0, len(pixels))
	for _, px := range pixels {
		pred := sf.Predictors[sfi](px.Neigh)
		res := rgbResidual(px.Actual, pred)
		yy, uu, vv := colorfilter.Filters[cfi].Forward(res.R, res.G, res.B)
		y = append(y, yy)
		u = append(u, uu)
		v = append(v, vv)
	}
	return
}

func commitDecision(pixels []struct {
	Actual raster.Pixel
	Neigh  spatialfilter.Neighborhood
}, sf *spatialfilter.Set, sfi, cfi uint8, yHist, uHist, vHist *entropy.Estimator) decision {
	y, u, v := computeCodes(pixels, sf, sfi, cfi)
	if yHist != nil {
		yHist.Add(y)
		uHist.Add(u)
		vHist.Add(v)
	}
	return decision{sf: sfi, cf: cfi, yCodes: y, uCodes: u, vCodes: v}
}

// decideFilters runs spec.md §4.2 over every non-masked tile, with up to
// RevisitCount tiles re-scored on a second pass against better-informed
// statistics (§4.2's revisit pass).
func decideFilters(g *tile.Grid, img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, sf *spatialfilter.Set, p Params) map[[2]int]decision {
	type tileKey = [2]int
	tilePixels := map[tileKey][]struct {
		Actual raster.Pixel
		Neigh  spatialfilter.Neighborhood
	}{}
	var order []tileKey

	g.ForEachTile(func(tx, ty int) {
		if g.State(tx, ty) == tile.MaskTile {
			return
		}
		x0, y0, x1, y1 := g.Bounds(tx, ty)
		var pixels []struct {
			Actual raster.Pixel
			Neigh  spatialfilter.Neighborhood
		}
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				xu, yu := uint16(x), uint16(y)
				if !raster.Active(mask, visited, xu, yu) {
					continue
				}
				pixels = append(pixels, struct {
					Actual raster.Pixel
					Neigh  spatialfilter.Neighborhood
				}{img.At(xu, yu), neighborhoodAt(img, mask, visited, xu, yu)})
			}
		}
		if len(pixels) == 0 {
			g.SetState(tx, ty, tile.MaskTile)
			return
		}
		key := tileKey{tx, ty}
		tilePixels[key] = pixels
		order = append(order, key)
	})

	var yHist, uHist, vHist *entropy.Estimator
	if p.EntropyEnabled {
		yHist, uHist, vHist = entropy.New(), entropy.New(), entropy.New()
	}

	decisions := map[tileKey]decision{}
	for _, key := range order {
		d := decideTile(tilePixels[key], sf, p, yHist, uHist, vHist)
		decisions[key] = d
		g.SetState(key[0], key[1], tile.State(d.sf)) // sf index also identifies the tile as "decided"
	}

	if p.EntropyEnabled && p.RevisitCount > 0 {
		budget := p.RevisitCount
		for _, key := range order {
			if budget <= 0 {
				break
			}
			budget--
			d := decisions[key]
			yHist.Subtract(d.yCodes)
			uHist.Subtract(d.uCodes)
			vHist.Subtract(d.vCodes)
			nd := decideTile(tilePixels[key], sf, p, yHist, uHist, vHist)
			decisions[key] = nd
		}
	}
	return decisions
}

// chaosStatsAndEmit performs spec.md §4.4's first pass (feed per-bin
// encoders) then the second, identical traversal that actually writes the
// bitstream, honoring the filter-change-boundary bookkeeping and the
// desync markers of §7 when enabled.
func (w *Writer) chaosStatsAndEmit(g *tile.Grid, img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, sf *spatialfilter.Set, decisions map[[2]int]decision, sink *bitio.Writer) (*Result, error) {
	p := w.Params
	activeCount := 0
	for _, d := range decisions {
		activeCount += len(d.yCodes)
	}
	levels := chaos.Levels1
	if activeCount >= p.ChaosThresh {
		levels = chaos.Levels8
	}

	yEnc := make([]*huffman.EntropyEncoder, levels)
	uEnc := make([]*huffman.EntropyEncoder, levels)
	vEnc := make([]*huffman.EntropyEncoder, levels)
	aEnc := make([]*huffman.EntropyEncoder, levels)
	for i := 0; i < levels; i++ {
		yEnc[i], uEnc[i], vEnc[i], aEnc[i] = huffman.NewEntropyEncoder(), huffman.NewEntropyEncoder(), huffman.NewEntropyEncoder(), huffman.NewEntropyEncoder()
	}

	yTrack := chaos.NewTracker(int(img.W))
	uTrack := chaos.NewTracker(int(img.W))
	vTrack := chaos.NewTracker(int(img.W))
	aTrack := chaos.NewTracker(int(img.W))

	// First pass: feed the per-bin histograms.
	walk(img, mask, visited, g, decisions, sf, yTrack, uTrack, vTrack, aTrack, levels, func(yb, ub, vb, ab int, y, u, v, a byte, active bool) {
		if !active {
			return
		}
		yEnc[yb].Add(y)
		uEnc[ub].Add(u)
		vEnc[vb].Add(v)
		aEnc[ab].Add(a)
	})
	for i := 0; i < levels; i++ {
		if err := yEnc[i].Finalize(); err != nil {
			return nil, err
		}
		if err := uEnc[i].Finalize(); err != nil {
			return nil, err
		}
		if err := vEnc[i].Finalize(); err != nil {
			return nil, err
		}
		if err := aEnc[i].Finalize(); err != nil {
			return nil, err
		}
	}

	sink.WriteBits(uint32(len(sf.Replacements)), 5)
	for _, r := range sf.Replacements {
		sink.WriteBits(uint32(r.DefaultIndex), 5)
		sink.WriteBits(uint32(r.TappedIndex), 7)
	}

	// CF/SF Huffman tables (spec.md §6 bitstream layout item 2.b): each
	// tile contributes exactly the one (cf,sf) pair it was committed to in
	// decideFilters, so the histogram here matches the emit pass below
	// symbol-for-symbol.
	cfEnc := huffman.NewEntropyEncoder()
	sfEnc := huffman.NewEntropyEncoder()
	for _, d := range decisions {
		cfEnc.Add(d.cf)
		sfEnc.Add(d.sf)
	}
	if err := cfEnc.Finalize(); err != nil {
		return nil, err
	}
	if err := sfEnc.Finalize(); err != nil {
		return nil, err
	}
	if _, err := cfEnc.WriteTables(sink); err != nil {
		return nil, err
	}
	if _, err := sfEnc.WriteTables(sink); err != nil {
		return nil, err
	}

	sink.WriteBits(uint32(levels-1), 3)
	for i := 0; i < levels; i++ {
		if _, err := yEnc[i].WriteTables(sink); err != nil {
			return nil, err
		}
		if _, err := uEnc[i].WriteTables(sink); err != nil {
			return nil, err
		}
		if _, err := vEnc[i].WriteTables(sink); err != nil {
			return nil, err
		}
		if _, err := aEnc[i].WriteTables(sink); err != nil {
			return nil, err
		}
	}

	yTrack2 := chaos.NewTracker(int(img.W))
	uTrack2 := chaos.NewTracker(int(img.W))
	vTrack2 := chaos.NewTracker(int(img.W))
	aTrack2 := chaos.NewTracker(int(img.W))

	seenFilter := make([]bool, g.TilesX)
	var lastTy = -1
	filterMapBits := 0
	walkWithTile(img, mask, visited, g, decisions, sf, yTrack2, uTrack2, vTrack2, aTrack2, levels,
		func(tx, ty int, cf, sfi uint8, firstOfTileCol bool) {
			if ty != lastTy {
				for i := range seenFilter {
					seenFilter[i] = false
				}
				lastTy = ty
			}
			if !seenFilter[tx] {
				start := sink.BitLen()
				if p.Desync {
					sink.WriteBits(uint32(tx)^31337, 16)
					sink.WriteBits(uint32(ty)^31415, 16)
				}
				if _, err := cfEnc.Write(cf, sink); err != nil {
					panic(err) // Bug per spec.md §7: table built above must cover every symbol.
				}
				if _, err := sfEnc.Write(sfi, sink); err != nil {
					panic(err)
				}
				seenFilter[tx] = true
				filterMapBits += sink.BitLen() - start
			}
		},
		func(x, y int, yb, ub, vb, ab int, yv, uv, vv, av byte) {
			if p.Desync {
				sink.WriteBits(uint32(x)^12345, 16)
				sink.WriteBits(uint32(y)^54321, 16)
			}
			if _, err := yEnc[yb].Write(yv, sink); err != nil {
				panic(err) // Bug per spec.md §7: table built above must cover every symbol.
			}
			if _, err := uEnc[ub].Write(uv, sink); err != nil {
				panic(err)
			}
			if _, err := vEnc[vb].Write(vv, sink); err != nil {
				panic(err)
			}
			if _, err := aEnc[ab].Write(av, sink); err != nil {
				panic(err)
			}
		})

	return &Result{Grid: g, SF: sf, ChaosLevels: levels, ActiveCount: activeCount, BitsWritten: sink.BitLen(), FilterMapBits: filterMapBits}, nil
}

// walk performs the traversal of spec.md §4.4 once, calling emit(yb,ub,vb,ab,y,u,v,a,active)
// for every pixel in raster order, feeding the four channel trackers.
func walk(img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, g *tile.Grid, decisions map[[2]int]decision, sf *spatialfilter.Set, yTrack, uTrack, vTrack, aTrack *chaos.Tracker, levels int, emit func(yb, ub, vb, ab int, y, u, v, a byte, active bool)) {
	for y := uint16(0); y < img.H; y++ {
		yTrack.StartRow()
		uTrack.StartRow()
		vTrack.StartRow()
		aTrack.StartRow()
		for x := uint16(0); x < img.W; x++ {
			tx, ty := g.TileAt(x, y)
			active := raster.Active(mask, visited, x, y)
			if !active {
				yTrack.Skip(int(x))
				uTrack.Skip(int(x))
				vTrack.Skip(int(x))
				aTrack.Skip(int(x))
				emit(0, 0, 0, 0, 0, 0, 0, 0, false)
				continue
			}
			d, ok := decisions[[2]int{tx, ty}]
			if !ok {
				continue
			}
			pred := sf.Predictors[d.sf](neighborhoodAt(img, mask, visited, x, y))
			actual := img.At(x, y)
			res := rgbResidual(actual, pred)
			yv, uv, vv := colorfilter.Filters[d.cf].Forward(res.R, res.G, res.B)
			av := alphaResidual(img, mask, visited, x, y)

			yb := yTrack.Bin(levels, int(x))
			ub := uTrack.Bin(levels, int(x))
			vb := vTrack.Bin(levels, int(x))
			ab := aTrack.Bin(levels, int(x))
			emit(yb, ub, vb, ab, yv, uv, vv, av, true)

			yTrack.Observe(int(x), yv)
			uTrack.Observe(int(x), uv)
			vTrack.Observe(int(x), vv)
			aTrack.Observe(int(x), av)
		}
	}
}

// walkWithTile is walk plus the per-tile-column filter emission callback.
func walkWithTile(img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, g *tile.Grid, decisions map[[2]int]decision, sf *spatialfilter.Set, yTrack, uTrack, vTrack, aTrack *chaos.Tracker, levels int,
	onFilter func(tx, ty int, cf, sfi uint8, first bool),
	onPixel func(x, y int, yb, ub, vb, ab int, yv, uv, vv, av byte)) {
	for y := uint16(0); y < img.H; y++ {
		yTrack.StartRow()
		uTrack.StartRow()
		vTrack.StartRow()
		aTrack.StartRow()
		_, ty := g.TileAt(0, y)
		for x := uint16(0); x < img.W; x++ {
			tx, _ := g.TileAt(x, y)
			active := raster.Active(mask, visited, x, y)
			if !active {
				yTrack.Skip(int(x))
				uTrack.Skip(int(x))
				vTrack.Skip(int(x))
				aTrack.Skip(int(x))
				continue
			}
			d, ok := decisions[[2]int{tx, ty}]
			if !ok {
				continue
			}
			onFilter(tx, ty, d.cf, d.sf, false)

			pred := sf.Predictors[d.sf](neighborhoodAt(img, mask, visited, x, y))
			actual := img.At(x, y)
			res := rgbResidual(actual, pred)
			yv, uv, vv := colorfilter.Filters[d.cf].Forward(res.R, res.G, res.B)
			av := alphaResidual(img, mask, visited, x, y)

			yb := yTrack.Bin(levels, int(x))
			ub := uTrack.Bin(levels, int(x))
			vb := vTrack.Bin(levels, int(x))
			ab := aTrack.Bin(levels, int(x))
			onPixel(int(x), int(y), yb, ub, vb, ab, yv, uv, vv, av)

			yTrack.Observe(int(x), yv)
			uTrack.Observe(int(x), uv)
			vTrack.Observe(int(x), vv)
			aTrack.Observe(int(x), av)
		}
	}
}

func alphaResidual(img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, x, y uint16) byte {
	if x == 0 {
		return 255 - img.At(x, y).A
	}
	if !raster.Active(mask, visited, x-1, y) {
		return 255 - img.At(x, y).A
	}
	return img.At(x-1, y).A - img.At(x, y).A
}

// Encode runs the full RGBA writer pipeline and appends the residual
// payload described by spec.md §6 bitstream layout item 2 to sink.
func (w *Writer) Encode(img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, sink *bitio.Writer) (*Result, error) {
	if err := w.Params.Validate(); err != nil {
		return nil, err
	}
	g := tile.NewGrid(img.W, img.H, w.Params.TileBits)
	maskTiles(g, img, mask, visited)
	sf := designSpatialFilters(g, img, mask, visited, w.Params.MinTapQuality)
	decisions := decideFilters(g, img, mask, visited, sf, w.Params)
	if err := g.CheckTerminal(); err != nil {
		return nil, err
	}
	return w.chaosStatsAndEmit(g, img, mask, visited, sf, decisions, sink)
}
