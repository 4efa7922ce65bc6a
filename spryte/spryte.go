// Package spryte implements the top-level encoder core of spec.md: it
// wires the RGBA writer, MonoWriter (for the palette index plane), and the
// palette writer into one Encode call, and owns
// the bitstream layout of spec.md §6.
//
// Grounded on svanichkin-Babe/codec3.go's top-level Encode (palette
// detection, then a fallback RGBA path, one bitstream) and
// jpfielding-dicos.go's internal/logging setup for the structured
// slog wiring an Encode call carries.
package spryte

import (
	"log/slog"

	"github.com/pixelloom/spryte/bitio"
	"github.com/pixelloom/spryte/colorfilter"
	"github.com/pixelloom/spryte/entropy"
	"github.com/pixelloom/spryte/huffman"
	"github.com/pixelloom/spryte/monowriter"
	"github.com/pixelloom/spryte/palette"
	"github.com/pixelloom/spryte/raster"
	"github.com/pixelloom/spryte/rgbawriter"
)

// literalTableThresh is spec.md §4.6's "literal (size < 40)" cutoff below
// which the palette table is written as raw RGBA rather than entropy-coded.
const literalTableThresh = 40

// MaskWriter is the dominant-color-mask collaborator contract of
// spec.md §6: Masked drives the per-pixel predicate, Enabled reports
// whether masking is active for this run at all, and Color returns the
// packed 0xAARRGGBB dominant background color the mask stands for (needed
// to find that color's palette index in palette mode).
type MaskWriter interface {
	Masked(x, y uint16) bool
	Enabled() bool
	Color() uint32
}

// LZWriter is the 2D-LZ collaborator contract of spec.md §6.
type LZWriter interface {
	Visited(x, y uint16) bool
}

// noopMask/noopLZ are the trivial collaborators used when the driver
// supplies none, per spec.md §6 ("predicates are always present but may
// be constant false").
type noopMask struct{}

func (noopMask) Masked(uint16, uint16) bool { return false }
func (noopMask) Enabled() bool              { return false }
func (noopMask) Color() uint32              { return 0 }

type noopLZ struct{}

func (noopLZ) Visited(uint16, uint16) bool { return false }

// Result is what Encode returns.
type Result struct {
	Bytes []byte
	Stats *EncodeStats
}

// Encode implements spec.md §2's pipeline: try palette mode first (when
// enabled), otherwise run the RGBA writer directly. Palette mode compresses
// the index plane with one MonoWriter run; the RGBA path codes the alpha
// residuals and the per-tile (cf,sf) records with the RGBA writer's own
// Huffman encoders and runs no MonoWriter.
func Encode(img *raster.Image, opts Options, mw MaskWriter, lz LZWriter, log *slog.Logger) (*Result, error) {
	const op = "Encode"
	if img == nil || img.W == 0 || img.H == 0 {
		return nil, newErr(BadDims, op, errZeroRaster)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if mw == nil {
		mw = noopMask{}
	}
	if lz == nil {
		lz = noopLZ{}
	}
	if log == nil {
		log = slog.Default()
	}

	mask := func(x, y uint16) bool { return mw.Masked(x, y) }
	visited := func(x, y uint16) bool { return lz.Visited(x, y) }

	stats := newStats(opts.CollectStats)
	if stats != nil {
		stats.Width, stats.Height = int(img.W), int(img.H)
		for y := uint16(0); y < img.H; y++ {
			for x := uint16(0); x < img.W; x++ {
				if !raster.Active(mask, visited, x, y) {
					stats.MaskedPixels++
				}
			}
		}
		log = log.With("run_id", stats.RunID)
	}
	log.Debug("encode starting", "width", img.W, "height", img.H)

	sink := bitio.NewWriter()
	sink.WriteWord(magicWord)
	sink.WriteBits(uint32(img.W), 16)
	sink.WriteBits(uint32(img.H), 16)

	if opts.PaletteEnabled {
		if tbl, ok := palette.Detect(img, mask, visited); ok {
			log.Debug("palette mode selected", "colors", len(tbl.Colors))
			sink.WriteBit(true)
			if err := writePaletteTable(sink, tbl, mw); err != nil {
				return nil, newErr(Bug, op, err)
			}
			idx := palette.IndexPlane(img, mask, visited, tbl)
			mp := opts.monoParams(len(tbl.Colors) + 1)
			mp.Mask = func(x, y uint16) bool { return !raster.Active(mask, visited, x, y) }
			res, err := monowriter.New(mp).Process(idx, sink)
			if err != nil {
				return nil, newErr(Bug, op, err)
			}
			if stats != nil {
				stats.PaletteUsed = true
				stats.PaletteSize = len(tbl.Colors)
				stats.ChaosLevels = res.ChaosLevels
				stats.ActivePixels = stats.Width*stats.Height - stats.MaskedPixels
			}
			return finish(sink, stats), nil
		}
	}

	sink.WriteBit(false)
	rgbaParams := opts.rgbaParams()
	rgbaRes, err := rgbawriter.New(rgbaParams).Encode(img, mask, visited, sink)
	if err != nil {
		return nil, newErr(Bug, op, err)
	}
	if stats != nil {
		stats.ActivePixels = rgbaRes.ActiveCount
		stats.SFReplacements = len(rgbaRes.SF.Replacements)
		stats.ChaosLevels = rgbaRes.ChaosLevels
		stats.RGBABits = rgbaRes.BitsWritten
		stats.FilterMapBits = rgbaRes.FilterMapBits
	}
	return finish(sink, stats), nil
}

// magicWord identifies a spryte bitstream (spec.md §6's bitstream layout
// header word).
const magicWord = 0x53505259 // "SPRY"

// writePaletteTable implements spec.md §4.6's palette table field: size,
// mask-color index, then either a literal or an entropy-coded table
// depending on which the palette.EntropyOfCounts heuristic favors.
func writePaletteTable(sink *bitio.Writer, tbl palette.Table, mw MaskWriter) error {
	sink.WriteBits(uint32(len(tbl.Colors)-1), 8)
	sink.WriteBits(uint32(maskColorIndex(tbl, mw)), 8)

	cfIdx := bestPaletteCF(tbl)
	cf := colorfilter.Filters[cfIdx]

	// spec.md §4.6 fixes "literal (size < 40)" as the base rule, but the
	// heuristic entropy estimate below can also veto entropy coding for a
	// larger table whose YUV-A histogram happens not to compress it below
	// the literal cost, per §9's "conflating per-entry entropy with
	// compressed size" quirk that this reproduces deliberately.
	useEntropy := len(tbl.Colors) >= literalTableThresh
	if useEntropy {
		counts := map[raster.Pixel]int{}
		for _, c := range tbl.Colors {
			y, u, v := cf.Forward(c.R, c.G, c.B)
			counts[raster.Pixel{R: y, G: u, B: v, A: c.A}]++
		}
		entropyBits := palette.EntropyOfCounts(counts, len(tbl.Colors))
		literalBits := float64(len(tbl.Colors) * 32)
		useEntropy = entropyBits < literalBits
	}

	if !useEntropy {
		sink.WriteBit(false)
		for _, c := range tbl.Colors {
			sink.WriteBits(uint32(c.R), 8)
			sink.WriteBits(uint32(c.G), 8)
			sink.WriteBits(uint32(c.B), 8)
			sink.WriteBits(uint32(c.A), 8)
		}
		return nil
	}

	sink.WriteBit(true)
	sink.WriteBits(uint32(cfIdx), 4)

	yEnc, uEnc, vEnc, aEnc := huffman.NewEntropyEncoder(), huffman.NewEntropyEncoder(), huffman.NewEntropyEncoder(), huffman.NewEntropyEncoder()
	codes := make([][4]byte, len(tbl.Colors))
	for i, c := range tbl.Colors {
		y, u, v := cf.Forward(c.R, c.G, c.B)
		codes[i] = [4]byte{y, u, v, c.A}
		yEnc.Add(y)
		uEnc.Add(u)
		vEnc.Add(v)
		aEnc.Add(c.A)
	}
	for _, e := range []*huffman.EntropyEncoder{yEnc, uEnc, vEnc, aEnc} {
		if err := e.Finalize(); err != nil {
			return err
		}
		if _, err := e.WriteTables(sink); err != nil {
			return err
		}
	}
	for _, c := range codes {
		if _, err := yEnc.Write(c[0], sink); err != nil {
			return err
		}
		if _, err := uEnc.Write(c[1], sink); err != nil {
			return err
		}
		if _, err := vEnc.Write(c[2], sink); err != nil {
			return err
		}
		if _, err := aEnc.Write(c[3], sink); err != nil {
			return err
		}
	}
	return nil
}

// maskColorIndex picks the palette entry that stands in for masked
// pixels: spec.md §4.6 requires the field, and §6's mask_writer contract
// names the actual color via Color(), so this looks that color up in the
// table rather than assuming it landed at index 0. Falls back to 0 when
// masking is disabled or the color isn't present in the table (a fully
// masked image with no active pixels can't have its background color
// represented in a table built only from active pixels).
func maskColorIndex(tbl palette.Table, mw MaskWriter) int {
	if mw == nil || !mw.Enabled() {
		return 0
	}
	packed := mw.Color()
	want := raster.Pixel{
		A: byte(packed >> 24),
		R: byte(packed >> 16),
		G: byte(packed >> 8),
		B: byte(packed),
	}
	for i, c := range tbl.Colors {
		if c == want {
			return i
		}
	}
	return 0
}

// bestPaletteCF picks the CF minimizing combined YUV-A entropy over the
// palette table, per spec.md §4.6's entropy-coded table path.
func bestPaletteCF(tbl palette.Table) int {
	best, bestCost := 0, -1.0
	for i, cf := range colorfilter.Filters {
		est := entropy.New()
		for _, c := range tbl.Colors {
			y, u, v := cf.Forward(c.R, c.G, c.B)
			est.AddSymbol(y)
			est.AddSymbol(u)
			est.AddSymbol(v)
			est.AddSymbol(c.A)
		}
		cost := est.Entropy()
		if bestCost < 0 || cost < bestCost {
			best, bestCost = i, cost
		}
	}
	return best
}

func finish(sink *bitio.Writer, stats *EncodeStats) *Result {
	b := sink.Bytes()
	if stats != nil {
		stats.TotalBits = len(b) * 8
	}
	return &Result{Bytes: b, Stats: stats}
}
