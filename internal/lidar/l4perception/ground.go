package l4perception

import (
	"fmt"

	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
)

// HeightBandFilter keeps points whose Z lies within [Floor, Ceiling],
// in sensor coordinates. It is a cheap stand-in for ground removal on
// roughly level terrain.
type HeightBandFilter struct {
	Floor   float64
	Ceiling float64
}

// HeightBandStats counts the outcome of one Filter call.
type HeightBandStats struct {
	Processed    int
	Kept         int
	BelowFloor   int
	AboveCeiling int
}

// NewHeightBandFilter returns a filter with the given bounds.
func NewHeightBandFilter(floor, ceiling float64) (*HeightBandFilter, error) {
	if floor >= ceiling {
		return nil, fmt.Errorf("height band floor %.3f must be below ceiling %.3f", floor, ceiling)
	}
	return &HeightBandFilter{Floor: floor, Ceiling: ceiling}, nil
}

// Filter returns the in-band points of cloud in input order. cloud is not
// modified.
func (f *HeightBandFilter) Filter(cloud []l2frames.Point) ([]l2frames.Point, HeightBandStats) {
	st := HeightBandStats{Processed: len(cloud)}
	if len(cloud) == 0 {
		return nil, st
	}
	out := make([]l2frames.Point, 0, len(cloud))
	for _, p := range cloud {
		switch {
		case p.Z < f.Floor:
			st.BelowFloor++
		case p.Z > f.Ceiling:
			st.AboveCeiling++
		default:
			out = append(out, p)
		}
	}
	st.Kept = len(out)
	return out, st
}
