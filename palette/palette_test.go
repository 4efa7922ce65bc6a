package palette

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelloom/spryte/raster"
)

func TestDetectSolidColorGivesOneEntry(t *testing.T) {
	img, _ := raster.New(32, 32)
	p := raster.Pixel{R: 0, G: 128, B: 255, A: 255}
	for y := uint16(0); y < 32; y++ {
		for x := uint16(0); x < 32; x++ {
			img.Set(x, y, p)
		}
	}
	tbl, ok := Detect(img, raster.NoMask, raster.NoVisited)
	require.True(t, ok)
	require.Len(t, tbl.Colors, 1)
	require.Equal(t, p, tbl.Colors[0])
}

func TestDetectCheckerboardGivesTwoOrderedByLuminance(t *testing.T) {
	img, _ := raster.New(8, 8)
	black := raster.Pixel{A: 255}
	white := raster.Pixel{R: 255, G: 255, B: 255, A: 255}
	for y := uint16(0); y < 8; y++ {
		for x := uint16(0); x < 8; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, black)
			} else {
				img.Set(x, y, white)
			}
		}
	}
	tbl, ok := Detect(img, raster.NoMask, raster.NoVisited)
	require.True(t, ok)
	require.Len(t, tbl.Colors, 2)
	require.Equal(t, black, tbl.Colors[0]) // lower luminance sorts first
	require.Equal(t, white, tbl.Colors[1])
}

func TestDetectRejectsTooManyColors(t *testing.T) {
	img, _ := raster.New(20, 20)
	c := 0
	for y := uint16(0); y < 20; y++ {
		for x := uint16(0); x < 20; x++ {
			img.Set(x, y, raster.Pixel{R: byte(c), G: byte(c / 2), B: byte(c / 3), A: 255})
			c++
		}
	}
	_, ok := Detect(img, raster.NoMask, raster.NoVisited)
	require.False(t, ok)
}

func TestIndexPlaneRoundTripsThroughTable(t *testing.T) {
	img, _ := raster.New(4, 4)
	colors := []raster.Pixel{{R: 1, A: 255}, {G: 1, A: 255}, {B: 1, A: 255}}
	for y := uint16(0); y < 4; y++ {
		for x := uint16(0); x < 4; x++ {
			img.Set(x, y, colors[(int(x)+int(y))%len(colors)])
		}
	}
	tbl, ok := Detect(img, raster.NoMask, raster.NoVisited)
	require.True(t, ok)
	idx := IndexPlane(img, raster.NoMask, raster.NoVisited, tbl)
	for y := uint16(0); y < 4; y++ {
		for x := uint16(0); x < 4; x++ {
			i := idx.At(x, y)
			require.Equal(t, img.At(x, y), tbl.Colors[i])
		}
	}
}

func TestEntropyOfCountsZeroForSingleColor(t *testing.T) {
	counts := map[raster.Pixel]int{{R: 1}: 100}
	require.Equal(t, 0.0, EntropyOfCounts(counts, 100))
}
