package rgbawriter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelloom/spryte/bitio"
	"github.com/pixelloom/spryte/colorfilter"
	"github.com/pixelloom/spryte/raster"
)

func solidImage(w, h uint16, p raster.Pixel) *raster.Image {
	img, _ := raster.New(w, h)
	for y := uint16(0); y < h; y++ {
		for x := uint16(0); x < w; x++ {
			img.Set(x, y, p)
		}
	}
	return img
}

func gradientImage(w, h uint16) *raster.Image {
	img, _ := raster.New(w, h)
	for y := uint16(0); y < h; y++ {
		for x := uint16(0); x < w; x++ {
			img.Set(x, y, raster.Pixel{R: byte(x), G: byte(y), B: byte(x + y), A: 255})
		}
	}
	return img
}

func noiseImage(w, h uint16, seed int64) *raster.Image {
	r := rand.New(rand.NewSource(seed))
	img, _ := raster.New(w, h)
	for y := uint16(0); y < h; y++ {
		for x := uint16(0); x < w; x++ {
			img.Set(x, y, raster.Pixel{R: byte(r.Intn(256)), G: byte(r.Intn(256)), B: byte(r.Intn(256)), A: 255})
		}
	}
	return img
}

func TestValidateRejectsZeroFuzzWithEntropy(t *testing.T) {
	p := DefaultParams()
	p.FilterSelectFuzz = 0
	require.Error(t, p.Validate())
}

func TestEncodeSolidColorMode1(t *testing.T) {
	img := solidImage(32, 32, raster.Pixel{R: 10, G: 20, B: 30, A: 255})
	p := DefaultParams()
	p.EntropyEnabled = false
	w := New(p)
	sink := bitio.NewWriter()
	res, err := w.Encode(img, raster.NoMask, raster.NoVisited, sink)
	require.NoError(t, err)
	require.Equal(t, 32*32, res.ActiveCount)
	require.NoError(t, res.Grid.CheckTerminal())
}

func TestEncodeGradientMode2(t *testing.T) {
	img := gradientImage(64, 64)
	w := New(DefaultParams())
	sink := bitio.NewWriter()
	res, err := w.Encode(img, raster.NoMask, raster.NoVisited, sink)
	require.NoError(t, err)
	require.Greater(t, res.BitsWritten, 0)
}

func TestEncodeNoiseUsesEightChaosLevels(t *testing.T) {
	img := noiseImage(64, 64, 7)
	p := DefaultParams()
	p.ChaosThresh = 100
	w := New(p)
	sink := bitio.NewWriter()
	res, err := w.Encode(img, raster.NoMask, raster.NoVisited, sink)
	require.NoError(t, err)
	require.Equal(t, 8, res.ChaosLevels)
}

func TestEncodeWithMaskedSquareReducesActiveCount(t *testing.T) {
	img := solidImage(32, 32, raster.Pixel{R: 1, G: 2, B: 3, A: 255})
	mask := func(x, y uint16) bool {
		return !(x >= 8 && x < 16 && y >= 8 && y < 16)
	}
	w := New(DefaultParams())
	sink := bitio.NewWriter()
	res, err := w.Encode(img, mask, raster.NoVisited, sink)
	require.NoError(t, err)
	require.Less(t, res.ActiveCount, 32*32)
}

func TestRGBResidualInvertsUnderColorFilter(t *testing.T) {
	actual := raster.Pixel{R: 200, G: 30, B: 100}
	pred := raster.Pixel{R: 10, G: 200, B: 50}
	res := rgbResidual(actual, pred)
	for _, cf := range colorfilter.Filters {
		y, u, v := cf.Forward(res.R, res.G, res.B)
		r, g, b := cf.Inverse(y, u, v)
		back := raster.Pixel{R: r + pred.R, G: g + pred.G, B: b + pred.B}
		require.Equal(t, actual, back)
	}
}
