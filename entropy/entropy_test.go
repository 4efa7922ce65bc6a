package entropy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddSubtractReversible(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	codes := make([]byte, 2000)
	for i := range codes {
		codes[i] = byte(rng.Intn(256))
	}
	e := New()
	before := e.Snapshot()
	e.Add(codes)
	e.Subtract(codes)
	after := e.Snapshot()
	require.Equal(t, before, after)
	require.Equal(t, uint64(0), e.Total())
}

func TestEntropyZeroForSingleSymbol(t *testing.T) {
	e := New()
	e.Add([]byte{5, 5, 5, 5, 5})
	require.Equal(t, float64(0), e.Entropy())
}

func TestEntropyPositiveForMixedSymbols(t *testing.T) {
	e := New()
	e.Add([]byte{0, 1, 2, 3})
	require.Greater(t, e.Entropy(), float64(0))
}

func TestEntropyWithDoesNotMutate(t *testing.T) {
	e := New()
	e.Add([]byte{1, 1, 2})
	before := e.Snapshot()
	_ = e.EntropyWith([]byte{9, 9, 9})
	after := e.Snapshot()
	require.Equal(t, before, after)
}

func TestEmptyEstimatorHasZeroEntropy(t *testing.T) {
	e := New()
	require.Equal(t, float64(0), e.Entropy())
}
