// Package tile implements the tile grid and per-tile state machine of
// spec.md §3: axis-aligned 2^b x 2^b tiles (clipped, not padded, at the
// raster's right/bottom edge), the MASK_TILE / TODO_TILE / filter-index
// state byte each tile carries, and the invariants that every tile must
// end design in a terminal state and that normal+sympal filter counts
// never exceed the format's filter budget.
//
// Grounded on svanichkin-Babe/codec3.go's region/leaf quadtree
// (encodeRegion/encodeLeaf), generalized from recursive quad-splitting
// down to a fixed grid of same-size tiles.
package tile

import "fmt"

// State is one tile's terminal or in-progress classification.
type State int32

const (
	// TODOTile is the placeholder state during design; no tile may still
	// hold this value once design finishes (spec.md §3 invariant).
	TODOTile State = -2
	// MaskTile marks a tile whose pixels are all masked or LZ-visited;
	// it contributes nothing to the bitstream.
	MaskTile State = -1
	// Filter indices occupy State values >= 0.
)

// MaxFilters is MAX_FILTERS = 32 (spec.md §3/§4.5).
const MaxFilters = 32

// MaxSympal is MAX_PALETTE = 16 (spec.md §4.5).
const MaxSympal = 16

// Grid partitions a W x H raster into tiles of size 2^bits, clipped (not
// padded) at the right/bottom edge.
type Grid struct {
	Bits         uint8
	Size         int // 1<<Bits
	W, H         uint16
	TilesX, TilesY int
	states       []State
}

// NewGrid builds an all-TODOTile grid for the given raster size and tile
// bit size.
func NewGrid(w, h uint16, bits uint8) *Grid {
	size := 1 << bits
	tx := (int(w) + size - 1) / size
	ty := (int(h) + size - 1) / size
	g := &Grid{
		Bits: bits, Size: size, W: w, H: h,
		TilesX: tx, TilesY: ty,
		states: make([]State, tx*ty),
	}
	for i := range g.states {
		g.states[i] = TODOTile
	}
	return g
}

// Bounds returns the pixel rectangle [x0,x1) x [y0,y1) covered by tile
// (tx,ty), clipped to the raster.
func (g *Grid) Bounds(tx, ty int) (x0, y0, x1, y1 int) {
	x0 = tx * g.Size
	y0 = ty * g.Size
	x1 = x0 + g.Size
	y1 = y0 + g.Size
	if x1 > int(g.W) {
		x1 = int(g.W)
	}
	if y1 > int(g.H) {
		y1 = int(g.H)
	}
	return
}

// TileAt returns the tile coordinates containing pixel (x,y).
func (g *Grid) TileAt(x, y uint16) (tx, ty int) {
	return int(x) >> g.Bits, int(y) >> g.Bits
}

// State returns tile (tx,ty)'s current state.
func (g *Grid) State(tx, ty int) State {
	return g.states[ty*g.TilesX+tx]
}

// SetState assigns tile (tx,ty)'s state.
func (g *Grid) SetState(tx, ty int, s State) {
	g.states[ty*g.TilesX+tx] = s
}

// ForEachTile calls f for every tile in raster order (row-major).
func (g *Grid) ForEachTile(f func(tx, ty int)) {
	for ty := 0; ty < g.TilesY; ty++ {
		for tx := 0; tx < g.TilesX; tx++ {
			f(tx, ty)
		}
	}
}

// CheckTerminal verifies spec.md §3's invariant that no tile is left in
// TODOTile once design has finished.
func (g *Grid) CheckTerminal() error {
	for i, s := range g.states {
		if s == TODOTile {
			return fmt.Errorf("tile: tile %d left in TODO_TILE state after design", i)
		}
	}
	return nil
}

// FilterBudget records the normal/sympal filter counts an encoder has
// committed to and enforces spec.md §3's invariant
// normal_filter_count + sympal_filter_count = filter_count <= MaxFilters,
// sympal_filter_count <= MaxSympal.
type FilterBudget struct {
	NormalCount int
	SympalCount int
}

// FilterCount returns normal+sympal.
func (b FilterBudget) FilterCount() int { return b.NormalCount + b.SympalCount }

// Validate checks the invariant, returning an error naming which bound
// was violated.
func (b FilterBudget) Validate() error {
	if b.SympalCount > MaxSympal {
		return fmt.Errorf("tile: sympal_filter_count %d exceeds MAX_PALETTE %d", b.SympalCount, MaxSympal)
	}
	if b.FilterCount() > MaxFilters {
		return fmt.Errorf("tile: filter_count %d exceeds MAX_FILTERS %d", b.FilterCount(), MaxFilters)
	}
	return nil
}
