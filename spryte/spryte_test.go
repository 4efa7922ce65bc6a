package spryte

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelloom/spryte/raster"
)

func onePixelRed() *raster.Image {
	img, _ := raster.New(1, 1)
	img.Set(0, 0, raster.Pixel{R: 255, A: 255})
	return img
}

func solid(w, h uint16, p raster.Pixel) *raster.Image {
	img, _ := raster.New(w, h)
	for y := uint16(0); y < h; y++ {
		for x := uint16(0); x < w; x++ {
			img.Set(x, y, p)
		}
	}
	return img
}

func checkerboard(n uint16) *raster.Image {
	img, _ := raster.New(n, n)
	black := raster.Pixel{A: 255}
	white := raster.Pixel{R: 255, G: 255, B: 255, A: 255}
	for y := uint16(0); y < n; y++ {
		for x := uint16(0); x < n; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, black)
			} else {
				img.Set(x, y, white)
			}
		}
	}
	return img
}

func gradient(w, h uint16) *raster.Image {
	img, _ := raster.New(w, h)
	for y := uint16(0); y < h; y++ {
		for x := uint16(0); x < w; x++ {
			img.Set(x, y, raster.Pixel{R: byte(y * 4), G: byte(y * 4), B: byte(y * 4), A: 255})
		}
	}
	return img
}

func TestEncodeOnePixelUsesPaletteMode(t *testing.T) {
	opts := Preset(80)
	opts.CollectStats = true
	res, err := Encode(onePixelRed(), opts, nil, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Stats.PaletteUsed)
	require.Equal(t, 1, res.Stats.PaletteSize)
	require.LessOrEqual(t, len(res.Bytes), 20)
}

func TestEncodeSolidColorProducesBytes(t *testing.T) {
	img := solid(32, 32, raster.Pixel{R: 0, G: 128, B: 255, A: 255})
	res, err := Encode(img, Preset(80), nil, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Bytes)
}

func TestEncodeGradient(t *testing.T) {
	img := gradient(64, 64)
	res, err := Encode(img, Preset(80), nil, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Bytes)
}

func TestEncodeCheckerboardUsesPaletteMode(t *testing.T) {
	img := checkerboard(128)
	opts := Preset(80)
	opts.CollectStats = true
	res, err := Encode(img, opts, nil, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Stats.PaletteUsed)
	require.Equal(t, 2, res.Stats.PaletteSize)
}

func TestEncodeRejectsBadParams(t *testing.T) {
	opts := Preset(80)
	opts.FilterSelectFuzz = 0
	_, err := Encode(solid(4, 4, raster.Pixel{A: 255}), opts, nil, nil, nil)
	require.Error(t, err)
	var sprE *Error
	require.ErrorAs(t, err, &sprE)
	require.Equal(t, BadParams, sprE.Kind)
}

func TestEncodeRejectsZeroDims(t *testing.T) {
	_, err := Encode(&raster.Image{}, Preset(50), nil, nil, nil)
	require.Error(t, err)
	var sprE *Error
	require.ErrorAs(t, err, &sprE)
	require.Equal(t, BadDims, sprE.Kind)
}

type maskFunc func(x, y uint16) bool

func (f maskFunc) Masked(x, y uint16) bool { return f(x, y) }
func (f maskFunc) Enabled() bool           { return true }
func (f maskFunc) Color() uint32           { return 0 }

func TestEncodeWithMaskedRegion(t *testing.T) {
	img := solid(32, 32, raster.Pixel{R: 5, G: 6, B: 7, A: 255})
	mask := maskFunc(func(x, y uint16) bool {
		return x >= 8 && x < 16 && y >= 8 && y < 16
	})
	res, err := Encode(img, Preset(80), mask, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Bytes)
}
