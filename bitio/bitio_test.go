package bitio

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadBit(t *testing.T) {
	w := NewWriter()
	bits := []bool{true, false, true, true, false, false, false, true, true}
	for _, b := range bits {
		w.WriteBit(b)
	}
	r := NewReader(w.Bytes())
	for i, want := range bits {
		got, err := r.ReadBit()
		require.NoError(t, err)
		require.Equalf(t, want, got, "bit %d", i)
	}
}

func TestWriteReadBitsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := NewWriter()
	type rec struct {
		v uint32
		n uint8
	}
	var recs []rec
	for i := 0; i < 500; i++ {
		n := uint8(1 + rng.Intn(32))
		v := rng.Uint32()
		if n < 32 {
			v &= (1 << n) - 1
		}
		recs = append(recs, rec{v, n})
		w.WriteBits(v, n)
	}
	r := NewReader(w.Bytes())
	for i, rc := range recs {
		got, err := r.ReadBits(rc.n)
		require.NoError(t, err)
		require.Equalf(t, rc.v, got, "record %d (n=%d)", i, rc.n)
	}
}

func TestWriteWord(t *testing.T) {
	w := NewWriter()
	w.WriteWord(0xDEADBEEF)
	r := NewReader(w.Bytes())
	got, err := r.ReadWord()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), got)
}

func TestBitLenAndPadding(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0b101, 3)
	require.Equal(t, 3, w.BitLen())
	b := w.Bytes()
	require.Len(t, b, 1)
	require.Equal(t, byte(0b101_00000), b[0])
}

func TestReadPastEndErrors(t *testing.T) {
	r := NewReader(nil)
	_, err := r.ReadBit()
	require.Error(t, err)
}
