package l3grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
)

func TestNewRangeGrid(t *testing.T) {
	t.Parallel()

	g := NewRangeGrid(3, 8)
	require.Len(t, g.Cells, 24)
	assert.Equal(t, 3, g.Rows)
	assert.Equal(t, 8, g.Columns)
	assert.Equal(t, 0, g.TotalValid())

	empty := NewRangeGrid(0, 8)
	assert.Empty(t, empty.Cells)
	assert.False(t, empty.InBounds(0, 0))
}

func TestRangeGrid_SetFirstWriteWins(t *testing.T) {
	t.Parallel()

	g := NewRangeGrid(2, 4)
	require.True(t, g.Set(1, 2, l2frames.Point{X: 1, Y: 2, Z: 3}, 0))
	assert.False(t, g.Set(1, 2, l2frames.Point{X: 9, Y: 9, Z: 9}, 1), "occupied cell must reject")

	cell := g.At(1, 2)
	assert.True(t, cell.Valid)
	assert.Equal(t, 0, cell.Index)
	assert.Equal(t, l2frames.Point{X: 1, Y: 2, Z: 3}, cell.Point())
	assert.Equal(t, 0, cell.Label)

	assert.Equal(t, 1, g.ValidCount(1))
	assert.Equal(t, 0, g.ValidCount(0))
	assert.Equal(t, 0, g.ValidCount(7), "out of range row")
	assert.Equal(t, 1, g.TotalValid())
}

func TestRangeGrid_SetOutOfBounds(t *testing.T) {
	t.Parallel()

	g := NewRangeGrid(2, 4)
	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 4}} {
		assert.False(t, g.Set(rc[0], rc[1], l2frames.Point{}, 0), "cell %v", rc)
	}
	assert.Equal(t, 0, g.TotalValid())
}

func TestRangeGrid_RowAliasesCells(t *testing.T) {
	t.Parallel()

	g := NewRangeGrid(2, 3)
	g.Set(1, 0, l2frames.Point{X: 1}, 0)
	row := g.Row(1)
	require.Len(t, row, 3)
	assert.True(t, row[0].Valid)

	row[0].Label = 7
	assert.Equal(t, 7, g.At(1, 0).Label)
}

func TestRangeGrid_Reset(t *testing.T) {
	t.Parallel()

	g := NewRangeGrid(2, 2)
	g.Set(0, 0, l2frames.Point{X: 1}, 0)
	g.Set(1, 1, l2frames.Point{X: 2}, 1)
	g.At(1, 1).Label = 5

	g.Reset()
	assert.Equal(t, 0, g.TotalValid())
	for i, c := range g.Cells {
		assert.Equal(t, GridPoint{}, c, "cell %d", i)
	}
	assert.True(t, g.Set(0, 0, l2frames.Point{X: 3}, 0))
}
