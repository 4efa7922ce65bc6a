package tile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGridClipsEdgeTiles(t *testing.T) {
	g := NewGrid(10, 10, 2) // 4x4 tiles, 3x3 grid with clipped last row/col
	require.Equal(t, 3, g.TilesX)
	require.Equal(t, 3, g.TilesY)
	x0, y0, x1, y1 := g.Bounds(2, 2)
	require.Equal(t, 8, x0)
	require.Equal(t, 8, y0)
	require.Equal(t, 10, x1)
	require.Equal(t, 10, y1)
}

func TestCheckTerminalCatchesTODO(t *testing.T) {
	g := NewGrid(4, 4, 2)
	require.Error(t, g.CheckTerminal())
	g.ForEachTile(func(tx, ty int) { g.SetState(tx, ty, MaskTile) })
	require.NoError(t, g.CheckTerminal())
}

func TestFilterBudgetValidate(t *testing.T) {
	require.NoError(t, FilterBudget{NormalCount: 16, SympalCount: 16}.Validate())
	require.Error(t, FilterBudget{NormalCount: 20, SympalCount: 16}.Validate())
	require.Error(t, FilterBudget{NormalCount: 1, SympalCount: 17}.Validate())
}

func TestTileAtMatchesGrid(t *testing.T) {
	g := NewGrid(16, 16, 2)
	tx, ty := g.TileAt(5, 9)
	require.Equal(t, 1, tx)
	require.Equal(t, 2, ty)
}
