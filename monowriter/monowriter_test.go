package monowriter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelloom/spryte/bitio"
	"github.com/pixelloom/spryte/raster"
)

func solidPlane(w, h uint16, v byte) *raster.Plane {
	p := raster.NewPlane(w, h)
	for i := range p.Data {
		p.Data[i] = v
	}
	return p
}

func gradientPlane(w, h uint16) *raster.Plane {
	p := raster.NewPlane(w, h)
	for y := uint16(0); y < h; y++ {
		for x := uint16(0); x < w; x++ {
			p.Set(x, y, byte(y*4))
		}
	}
	return p
}

func noisePlane(w, h uint16, seed int64) *raster.Plane {
	r := rand.New(rand.NewSource(seed))
	p := raster.NewPlane(w, h)
	for i := range p.Data {
		p.Data[i] = byte(r.Intn(256))
	}
	return p
}

func TestProcessSolidPlaneIsCheap(t *testing.T) {
	p := solidPlane(32, 32, 200)
	w := New(DefaultParams(256))
	sink := bitio.NewWriter()
	res, err := w.Process(p, sink)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Contains(t, []int{1, 8}, res.ChaosLevels)
	require.Less(t, res.BitCost, 32*32*8) // well under the raw 8 bits per pixel
}

func TestProcessGradientPlaneEmitsBits(t *testing.T) {
	p := gradientPlane(64, 64)
	w := New(DefaultParams(256))
	sink := bitio.NewWriter()
	res, err := w.Process(p, sink)
	require.NoError(t, err)
	require.Greater(t, sink.BitLen(), 0)
	require.NotNil(t, res)
}

func TestProcessNoisePlaneCompletes(t *testing.T) {
	p := noisePlane(48, 48, 11)
	params := DefaultParams(256)
	params.MinBits, params.MaxBits = 2, 3 // keep the trial count small
	w := New(params)
	sink := bitio.NewWriter()
	res, err := w.Process(p, sink)
	require.NoError(t, err)
	require.NotNil(t, res)
}

func TestDesignTilesNeverLeavesTODOTile(t *testing.T) {
	p := gradientPlane(20, 20)
	params := DefaultParams(256)
	params.MinBits, params.MaxBits = 3, 3
	c, err := New(params).designOne(p, 3)
	require.NoError(t, err)
	require.NoError(t, c.grid.CheckTerminal())
}
