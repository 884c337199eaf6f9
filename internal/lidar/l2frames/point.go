package l2frames

import "math"

// Point is a Cartesian return in the sensor frame (metres).
// x points forward, y left, z up; azimuth and elevation are derived from it
// by the grid layer.
type Point struct {
	X, Y, Z float64
}

// Range returns the Euclidean distance of p from the sensor origin.
func (p Point) Range() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// IsFinite reports whether all three coordinates are finite numbers.
// Organised PCD files mark missing returns with NaN.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}
