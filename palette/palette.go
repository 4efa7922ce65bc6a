// Package palette implements spec.md §4.6's palette writer: detecting
// rasters with at most 256 distinct colors, ordering the palette table
// (alpha ascending, then luminance ascending), and handing the resulting
// index raster to monowriter as ordinary monochrome data.
//
// Grounded on svanichkin-Babe/codec3.go's palette-mode branch (detect a
// small distinct-color set, emit a table plus an index plane) and
// jpfielding-dicos.go/pkg/compress/jpeg2k's coefficient-plane packaging for
// "hand a derived plane to another writer" shape.
package palette

import (
	"math"
	"sort"

	"github.com/pixelloom/spryte/raster"
)

// MaxColors is the largest palette size this writer will use (spec.md
// §4.6: "≤256 distinct colors").
const MaxColors = 256

// Table is an ordered palette: Table.Colors[i] is the RGBA value that
// index i in the derived index plane represents.
type Table struct {
	Colors []raster.Pixel
}

// luminance is the standard Rec. 709 luma weighting spec.md's ordering
// rule names.
func luminance(p raster.Pixel) float64 {
	return 0.2126*float64(p.R) + 0.7152*float64(p.G) + 0.0722*float64(p.B)
}

// Detect scans img's active pixels and returns the ordered palette table
// if there are at most MaxColors distinct colors among them, or ok=false
// if the raster needs full RGBA coding instead.
func Detect(img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc) (Table, bool) {
	seen := map[raster.Pixel]bool{}
	var order []raster.Pixel
	for y := uint16(0); y < img.H; y++ {
		for x := uint16(0); x < img.W; x++ {
			if !raster.Active(mask, visited, x, y) {
				continue
			}
			p := img.At(x, y)
			if !seen[p] {
				seen[p] = true
				order = append(order, p)
				if len(order) > MaxColors {
					return Table{}, false
				}
			}
		}
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.A != b.A {
			return a.A < b.A
		}
		return luminance(a) < luminance(b)
	})
	return Table{Colors: order}, true
}

// IndexPlane maps every active pixel of img to its index within t,
// producing the monochrome raster the MonoWriter will compress.
func IndexPlane(img *raster.Image, mask raster.MaskFunc, visited raster.VisitedFunc, t Table) *raster.Plane {
	idx := make(map[raster.Pixel]byte, len(t.Colors))
	for i, c := range t.Colors {
		idx[c] = byte(i)
	}
	p := raster.NewPlane(img.W, img.H)
	for y := uint16(0); y < img.H; y++ {
		for x := uint16(0); x < img.W; x++ {
			if !raster.Active(mask, visited, x, y) {
				continue
			}
			p.Set(x, y, idx[img.At(x, y)])
		}
	}
	return p
}

// EntropyOfCounts is the heuristic entropy the palette writer uses to
// decide between a literal and an entropy-coded table emission: the sum
// of per-entry code-length proxies under a simple order-0 model. Per
// spec.md §9, this conflates per-entry entropy with actual compressed
// size; the same heuristic is used here deliberately rather than a tight
// bound, matching the source behavior spec.md permits reproducing.
func EntropyOfCounts(counts map[raster.Pixel]int, total int) float64 {
	if total == 0 {
		return 0
	}
	var bits float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		bits -= float64(c) * math.Log2(p)
	}
	return bits
}
