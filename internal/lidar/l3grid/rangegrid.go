package l3grid

import "github.com/banshee-data/rangeseg/internal/lidar/l2frames"

// GridPoint is the content of one range-image cell. Index refers to the
// position of the point in the filtered cloud returned by Project; Label is
// written by the segmentation layer and is meaningless while Valid is false.
type GridPoint struct {
	X, Y, Z float64
	Index   int
	Valid   bool
	Label   int
}

// Point returns the cell coordinates as an l2frames.Point.
func (p *GridPoint) Point() l2frames.Point {
	return l2frames.Point{X: p.X, Y: p.Y, Z: p.Z}
}

// RangeGrid is a fixed-size range image indexed by elevation row and
// azimuth column. Cells are stored row-major.
type RangeGrid struct {
	Rows    int
	Columns int

	Cells []GridPoint // len = Rows * Columns

	validCount []int // valid cells per row
}

// NewRangeGrid allocates an empty grid. Non-positive dimensions produce a
// grid with no cells.
func NewRangeGrid(rows, columns int) *RangeGrid {
	if rows <= 0 || columns <= 0 {
		return &RangeGrid{}
	}
	return &RangeGrid{
		Rows:       rows,
		Columns:    columns,
		Cells:      make([]GridPoint, rows*columns),
		validCount: make([]int, rows),
	}
}

// Idx returns the flat index of (row, col).
func (g *RangeGrid) Idx(row, col int) int { return row*g.Columns + col }

// InBounds reports whether (row, col) addresses a cell of g.
func (g *RangeGrid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Columns
}

// At returns the cell at (row, col). The caller must check InBounds.
func (g *RangeGrid) At(row, col int) *GridPoint {
	return &g.Cells[g.Idx(row, col)]
}

// Row returns the cells of one row as a slice aliasing the grid.
func (g *RangeGrid) Row(row int) []GridPoint {
	start := row * g.Columns
	return g.Cells[start : start+g.Columns]
}

// ValidCount returns the number of valid cells in row.
func (g *RangeGrid) ValidCount(row int) int {
	if row < 0 || row >= len(g.validCount) {
		return 0
	}
	return g.validCount[row]
}

// TotalValid returns the number of valid cells in the grid.
func (g *RangeGrid) TotalValid() int {
	n := 0
	for _, c := range g.validCount {
		n += c
	}
	return n
}

// Set stores p at (row, col) if the cell is in bounds and still empty.
// It returns false when the cell was rejected; the first write wins.
func (g *RangeGrid) Set(row, col int, p l2frames.Point, index int) bool {
	if !g.InBounds(row, col) {
		return false
	}
	cell := g.At(row, col)
	if cell.Valid {
		return false
	}
	*cell = GridPoint{X: p.X, Y: p.Y, Z: p.Z, Index: index, Valid: true}
	g.validCount[row]++
	return true
}

// Reset invalidates every cell.
func (g *RangeGrid) Reset() {
	clear(g.Cells)
	clear(g.validCount)
}
