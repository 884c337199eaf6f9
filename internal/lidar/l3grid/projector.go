package l3grid

import (
	"math"
	"sort"

	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
)

// ProjectionParams describes the sensor geometry and radial filter used to
// build the range image.
type ProjectionParams struct {
	Rows    int // elevation rows (laser channels)
	Columns int // azimuth columns per revolution

	MinElevationDeg float64 // nominal elevation of row 0
	MaxElevationDeg float64 // nominal elevation of the last row

	MinRange float64 // metres; closer returns are dropped
	MaxRange float64 // metres; farther returns are dropped

	RowSubsample int // keep rows whose index is a multiple of this (<=1 keeps all)
}

// ProjectionStats counts where each input point went during projection.
type ProjectionStats struct {
	Input       int
	OutOfRange  int
	Subsampled  int
	OutOfRow    int
	OutOfColumn int
	Occupied    int // cell already taken by an earlier point
	Kept        int
}

// Dropped returns the number of input points not present in the grid.
func (s ProjectionStats) Dropped() int { return s.Input - s.Kept }

// NewElevationTable returns the monotonically increasing nominal elevation
// (degrees) of each row, evenly spaced from minDeg to maxDeg inclusive.
func NewElevationTable(rows int, minDeg, maxDeg float64) []float64 {
	if rows <= 0 {
		return nil
	}
	if rows == 1 {
		return []float64{minDeg}
	}
	res := (maxDeg - minDeg) / float64(rows-1)
	table := make([]float64, rows)
	for i := range table {
		table[i] = minDeg + float64(i)*res
	}
	return table
}

// ElevationDeg returns the elevation angle of p above the sensor's
// horizontal plane in degrees.
func ElevationDeg(p l2frames.Point) float64 {
	return math.Atan2(p.Z, math.Hypot(p.X, p.Y)) * 180 / math.Pi
}

// AzimuthDeg returns atan2(x, y) in degrees, in (-180, 180].
func AzimuthDeg(p l2frames.Point) float64 {
	return math.Atan2(p.X, p.Y) * 180 / math.Pi
}

// RowIndex locates the row whose nominal elevation is nearest to angleDeg.
// Between two bracketing rows the lower one wins only when strictly closer.
// Angles outside the table clamp to the first or last row; an empty table
// returns -1.
func RowIndex(table []float64, angleDeg float64) int {
	if len(table) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(table, angleDeg)
	switch {
	case i == 0:
		return 0
	case i == len(table):
		return len(table) - 1
	}
	if math.Abs(angleDeg-table[i-1]) < math.Abs(angleDeg-table[i]) {
		return i - 1
	}
	return i
}

// ColumnIndex maps an azimuth (degrees, as returned by AzimuthDeg) to a
// column: linear in azimuth with a 90 degree phase offset, wrapped modulo
// columns. Non-positive columns return -1.
func ColumnIndex(azimuthDeg float64, columns int) int {
	if columns <= 0 {
		return -1
	}
	res := 360.0 / float64(columns)
	col := -int(math.Round((azimuthDeg-90.0)/res)) + columns/2
	col %= columns
	if col < 0 {
		col += columns
	}
	return col
}

// Projector projects scans onto a reusable RangeGrid.
// A Projector is not safe for concurrent use.
type Projector struct {
	params     ProjectionParams
	elevations []float64
	grid       *RangeGrid
}

// NewProjector builds the elevation table and allocates the grid.
func NewProjector(params ProjectionParams) *Projector {
	if params.RowSubsample < 1 {
		params.RowSubsample = 1
	}
	return &Projector{
		params:     params,
		elevations: NewElevationTable(params.Rows, params.MinElevationDeg, params.MaxElevationDeg),
		grid:       NewRangeGrid(params.Rows, params.Columns),
	}
}

// Params returns the projection parameters in use.
func (pr *Projector) Params() ProjectionParams { return pr.params }

// Grid returns the grid populated by the last Project call.
func (pr *Projector) Grid() *RangeGrid { return pr.grid }

// Elevations returns the per-row nominal elevation table.
func (pr *Projector) Elevations() []float64 { return pr.elevations }

// Cell returns the (row, col) a point would project to, ignoring range and
// subsample filters.
func (pr *Projector) Cell(p l2frames.Point) (row, col int) {
	return RowIndex(pr.elevations, ElevationDeg(p)), ColumnIndex(AzimuthDeg(p), pr.params.Columns)
}

// CellToPoint synthesises a return at the nominal direction of (row, col)
// and the given range. It is the inverse of Cell for in-range cells.
func (pr *Projector) CellToPoint(row, col int, rng float64) l2frames.Point {
	res := 360.0 / float64(pr.params.Columns)
	az := (90.0 - float64(col-pr.params.Columns/2)*res) * math.Pi / 180
	el := pr.elevations[row] * math.Pi / 180
	horiz := rng * math.Cos(el)
	return l2frames.Point{
		X: horiz * math.Sin(az),
		Y: horiz * math.Cos(az),
		Z: rng * math.Sin(el),
	}
}

// Project resets the grid and fills it from cloud. Points outside the range
// bounds, on subsampled rows, or outside the grid are dropped, as are points
// landing on a cell already claimed by an earlier point. The surviving points
// are returned in input order; GridPoint.Index refers to this slice, not to
// cloud. The input slice is not modified.
func (pr *Projector) Project(cloud []l2frames.Point) ([]l2frames.Point, ProjectionStats) {
	g := pr.grid
	g.Reset()
	stats := ProjectionStats{Input: len(cloud)}
	if len(cloud) == 0 || len(g.Cells) == 0 {
		stats.OutOfRow = len(cloud)
		return nil, stats
	}

	valid := make([]l2frames.Point, 0, len(cloud))
	for _, p := range cloud {
		rng := p.Range()
		if !(rng >= pr.params.MinRange && rng <= pr.params.MaxRange) {
			stats.OutOfRange++
			continue
		}
		row := RowIndex(pr.elevations, ElevationDeg(p))
		if row%pr.params.RowSubsample != 0 {
			stats.Subsampled++
			continue
		}
		if row < 0 || row >= g.Rows {
			stats.OutOfRow++
			continue
		}
		col := ColumnIndex(AzimuthDeg(p), g.Columns)
		if col < 0 || col >= g.Columns {
			stats.OutOfColumn++
			continue
		}
		if !g.Set(row, col, p, len(valid)) {
			stats.Occupied++
			continue
		}
		valid = append(valid, p)
	}
	stats.Kept = len(valid)

	diagf("projection: input=%d kept=%d range=%d subsampled=%d row=%d col=%d occupied=%d",
		stats.Input, stats.Kept, stats.OutOfRange, stats.Subsampled, stats.OutOfRow, stats.OutOfColumn, stats.Occupied)
	return valid, stats
}
