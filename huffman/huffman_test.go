package huffman

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelloom/spryte/bitio"
)

func TestSingleSymbolCodesInOneBit(t *testing.T) {
	e := NewEntropyEncoder()
	for i := 0; i < 10; i++ {
		e.Add(42)
	}
	require.NoError(t, e.Finalize())
	w := bitio.NewWriter()
	_, err := e.WriteTables(w)
	require.NoError(t, err)
	n, err := e.Write(42, w)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSimulateMatchesWriteLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := NewEntropyEncoder()
	for i := 0; i < 5000; i++ {
		e.Add(byte(rng.Intn(50)))
	}
	require.NoError(t, e.Finalize())
	for sym := 0; sym < 50; sym++ {
		sim, err := e.Simulate(byte(sym))
		require.NoError(t, err)
		w := bitio.NewWriter()
		n, err := e.Write(byte(sym), w)
		require.NoError(t, err)
		require.Equal(t, sim, n)
	}
}

func TestFinalizeOrderIndependence(t *testing.T) {
	symbols := []byte{1, 1, 1, 2, 2, 3, 3, 3, 3, 5, 7, 7}

	e1 := NewEntropyEncoder()
	for _, s := range symbols {
		e1.Add(s)
	}
	require.NoError(t, e1.Finalize())

	shuffled := append([]byte(nil), symbols...)
	rand.New(rand.NewSource(99)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	e2 := NewEntropyEncoder()
	for _, s := range shuffled {
		e2.Add(s)
	}
	require.NoError(t, e2.Finalize())

	var total1, total2 int
	for _, s := range symbols {
		n1, err := e1.Simulate(s)
		require.NoError(t, err)
		n2, err := e2.Simulate(s)
		require.NoError(t, err)
		total1 += n1
		total2 += n2
	}
	require.Equal(t, total1, total2)
}

func TestWriteCoversEveryPresentSymbol(t *testing.T) {
	e := NewEntropyEncoder()
	freqs := map[byte]int{0: 100, 1: 50, 2: 25, 3: 25, 255: 1}
	for sym, n := range freqs {
		for i := 0; i < n; i++ {
			e.Add(sym)
		}
	}
	require.NoError(t, e.Finalize())

	w := bitio.NewWriter()
	for sym := range freqs {
		_, err := e.Write(sym, w)
		require.NoError(t, err)
	}
	require.Greater(t, w.BitLen(), 0)
}

func TestResetClearsHistogramAndTable(t *testing.T) {
	e := NewEntropyEncoder()
	for i := 0; i < 10; i++ {
		e.Add(byte(i % 3))
	}
	require.NoError(t, e.Finalize())
	e.Reset()
	require.False(t, e.built)
	for sym := 0; sym < AlphabetSize; sym++ {
		require.Zero(t, e.freqs[sym])
	}

	for i := 0; i < 5; i++ {
		e.Add(9)
	}
	require.NoError(t, e.Finalize())
	w := bitio.NewWriter()
	n, err := e.Write(9, w)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSkewedDistributionStaysWithinMaxLength(t *testing.T) {
	e := NewEntropyEncoder()
	// One dominant symbol plus 255 singletons over the full alphabet; the
	// singletons form a balanced subtree, so codes stay at 9 bits or less.
	for sym := 0; sym < AlphabetSize; sym++ {
		if sym == 0 {
			e.freqs[sym] = 1 << 40
		} else {
			e.freqs[sym] = 1
		}
	}
	require.NoError(t, e.Finalize())
	for _, l := range e.lengths {
		require.LessOrEqual(t, int(l), MaxCodeLength)
	}
}
