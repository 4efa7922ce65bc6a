package chaos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreIsSymmetricAroundZero(t *testing.T) {
	require.Equal(t, 0, Score(0))
	require.Equal(t, 1, Score(1))
	require.Equal(t, 1, Score(255))
	require.Equal(t, 128, Score(128))
}

func TestTable8Monotonic(t *testing.T) {
	prev := 0
	for s := 0; s < 512; s++ {
		require.GreaterOrEqual(t, Table8[s], 0)
		require.LessOrEqual(t, Table8[s], 7)
		require.GreaterOrEqual(t, Table8[s], prev-0) // never decreases much; loose bound
		if Table8[s] < prev {
			t.Fatalf("Table8 not monotonic at s=%d: %d after %d", s, Table8[s], prev)
		}
		prev = Table8[s]
	}
}

func TestTable8ZeroAtZero(t *testing.T) {
	require.Equal(t, 0, Table8[0])
}

func TestTable1IsConstantZero(t *testing.T) {
	for s := 0; s < 512; s++ {
		require.Equal(t, 0, Bin(Levels1, s))
	}
}

func TestTrackerRowLifecycle(t *testing.T) {
	tr := NewTracker(4)
	tr.StartRow()
	tr.Observe(0, 10)
	tr.Observe(1, 20)
	require.Equal(t, byte(20), tr.leftVal)

	tr.StartRow()
	require.Equal(t, byte(0), tr.leftVal)
	b := tr.Bin(Levels8, 0)
	require.GreaterOrEqual(t, b, 0)
}

func TestTrackerSkipResetsLeft(t *testing.T) {
	tr := NewTracker(2)
	tr.StartRow()
	tr.Observe(0, 200)
	tr.Skip(1)
	require.Equal(t, byte(0), tr.leftVal)
}
