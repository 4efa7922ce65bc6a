package spatialfilter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelloom/spryte/raster"
)

func TestSafeEvaluatorHandlesMissingNeighbors(t *testing.T) {
	n := Neighborhood{} // nothing present
	p := defaultPredictors()[3](n) // avg-lt
	require.Equal(t, raster.Pixel{}, p)
}

func TestSafeEvaluatorFallsBackToLeft(t *testing.T) {
	n := Neighborhood{Left: raster.Pixel{R: 10, G: 20, B: 30}, HasLeft: true}
	left, top, topLeft, topRight := n.safe()
	require.Equal(t, n.Left, left)
	require.Equal(t, n.Left, top)
	require.Equal(t, n.Left, topLeft)
	require.Equal(t, n.Left, topRight)
}

func randomTilePixels(rng *rand.Rand, n int) []struct {
	Actual raster.Pixel
	Neigh  Neighborhood
} {
	out := make([]struct {
		Actual raster.Pixel
		Neigh  Neighborhood
	}, n)
	for i := range out {
		out[i].Actual = raster.Pixel{R: byte(rng.Intn(256)), G: byte(rng.Intn(256)), B: byte(rng.Intn(256))}
		out[i].Neigh = Neighborhood{
			Left: raster.Pixel{R: byte(rng.Intn(256))}, HasLeft: true,
			Top: raster.Pixel{R: byte(rng.Intn(256))}, HasTop: true,
		}
	}
	return out
}

func TestDesignIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := NewSet()
	var scores []TileScore
	for i := 0; i < 20; i++ {
		scores = append(scores, s.ScoreTile(randomTilePixels(rng, 16)))
	}
	d := Designer{MinTapQuality: 1.05}
	r1 := d.Design(scores)
	r2 := d.Design(scores)
	require.Equal(t, r1, r2)
}

func TestFixedPrefixNeverRetired(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	s := NewSet()
	var scores []TileScore
	for i := 0; i < 50; i++ {
		scores = append(scores, s.ScoreTile(randomTilePixels(rng, 16)))
	}
	d := Designer{MinTapQuality: 0.01} // aggressive: force replacements
	reps := d.Design(scores)
	for _, r := range reps {
		require.GreaterOrEqualf(t, int(r.DefaultIndex), FixedCount, "fixed prefix index %d was retired", r.DefaultIndex)
	}
}

func TestApplyInstallsReplacements(t *testing.T) {
	s := NewSet()
	reps := []Replacement{{DefaultIndex: FixedCount, TappedIndex: 0}}
	s.Apply(reps)
	require.Equal(t, reps, s.Replacements)
	require.Equal(t, "tap", s.Names[FixedCount])
}
