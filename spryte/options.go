package spryte

import (
	"github.com/pixelloom/spryte/monowriter"
	"github.com/pixelloom/spryte/rgbawriter"
)

// Options is the flat encoder configuration record, in the shape of the
// teacher's codec quality parameters generalized to every knob spec.md
// names across the RGBA writer, MonoWriter, and palette stages.
type Options struct {
	// TileMinBits/TileMaxBits bound the MonoWriter's tile size search,
	// spec.md §3's [min_bits,max_bits]. The RGBA writer does not search:
	// it uses TileMaxBits as its fixed tile size.
	TileMinBits, TileMaxBits uint8

	// EntropyEnabled selects spec.md §4.2 Mode 2 (true, default) over
	// Mode 1's plain L1-norm scoring.
	EntropyEnabled bool
	// FilterSelectFuzz is the fuzz width of Mode 2's second-stage rescore.
	FilterSelectFuzz int
	// MaxEntropySkip: an L1 score below this short-circuits straight to a
	// commit without running the entropy-driven second pass.
	MaxEntropySkip int64
	// RevisitCount bounds how many tiles get a second, better-informed
	// decision pass.
	RevisitCount int
	// MinTapQuality is designFilters's promotion threshold
	// best_tap/worst_default must clear.
	MinTapQuality float64
	// ChaosThresh is the active-pixel-count threshold above which the
	// 8-level chaos table is used instead of the constant 1-level table.
	ChaosThresh int

	// PaletteEnabled turns on palette detection before falling back to
	// full RGBA coding.
	PaletteEnabled bool

	// CollectStats gates EncodeStats collection, per spec.md §9's
	// "CAT_COLLECT_STATS" build flag generalized to a runtime option.
	CollectStats bool
	// Desync interleaves the debug position markers of spec.md §7.
	Desync bool
}

// Preset returns a quality-scaled Options in [0,100], the way the
// teacher's codec accepts a single quality knob and derives its internal
// parameters from it.
func Preset(quality int) Options {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	o := Options{
		TileMinBits:      2,
		TileMaxBits:      5,
		EntropyEnabled:   true,
		FilterSelectFuzz: 4,
		MaxEntropySkip:   8,
		RevisitCount:     32,
		MinTapQuality:    1.10,
		ChaosThresh:      4096,
		PaletteEnabled:   true,
	}
	switch {
	case quality < 25:
		o.TileMinBits, o.TileMaxBits = 4, 5
		o.RevisitCount = 8
		o.FilterSelectFuzz = 2
	case quality < 60:
		o.TileMinBits, o.TileMaxBits = 3, 5
		o.RevisitCount = 16
	default:
		o.TileMinBits, o.TileMaxBits = 2, 5
		o.RevisitCount = 64
		o.FilterSelectFuzz = 6
	}
	return o
}

// Validate enforces the BadParams conditions of spec.md §7.
func (o Options) Validate() error {
	if o.TileMinBits == 0 || o.TileMinBits > o.TileMaxBits {
		return newErr(BadParams, "Options.Validate", errBadTileBits)
	}
	if o.EntropyEnabled && o.FilterSelectFuzz <= 0 {
		return newErr(BadParams, "Options.Validate", errBadFuzz)
	}
	if o.MinTapQuality <= 0 {
		return newErr(BadParams, "Options.Validate", errBadTapQuality)
	}
	return nil
}

func (o Options) rgbaParams() rgbawriter.Params {
	return rgbawriter.Params{
		TileBits:         o.TileMaxBits,
		EntropyEnabled:   o.EntropyEnabled,
		FilterSelectFuzz: o.FilterSelectFuzz,
		MaxEntropySkip:   o.MaxEntropySkip,
		MinTapQuality:    o.MinTapQuality,
		RevisitCount:     o.RevisitCount,
		ChaosThresh:      o.ChaosThresh,
		Desync:           o.Desync,
	}
}

func (o Options) monoParams(numSyms int) monowriter.Params {
	p := monowriter.DefaultParams(numSyms)
	p.MinBits, p.MaxBits = o.TileMinBits, o.TileMaxBits
	p.MonoRevisitCount = o.RevisitCount
	p.Desync = o.Desync
	return p
}
