package l4perception

import (
	"math"

	"github.com/banshee-data/rangeseg/internal/lidar/debug"
	"github.com/banshee-data/rangeseg/internal/lidar/l3grid"
)

// Run is a contiguous azimuthal span of one grid row whose consecutive
// valid cells lie within the horizontal merge threshold of each other.
// Start and End are inclusive column indices of valid cells.
//
// Label is a search hint. It names a label the run's points carried at some
// point; merges never split clusters, so two runs with equal hints are in
// the same cluster, but the authoritative label is always the one on the
// points.
type Run struct {
	Start int
	End   int
	Label int
}

// rowSegment is the Phase 1 output for one row.
type rowSegment struct {
	row     int
	valid   int
	runs    []Run
	store   *LabelStore // row-local labels
	merges  []debug.MergeRecord
	guarded int
}

func distance2D(a, b *l3grid.GridPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func distance3D(a, b *l3grid.GridPoint) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// retarget rewrites every run hint equal to src.
func retarget(runs []Run, src, dst int) {
	for i := range runs {
		if runs[i].Label == src {
			runs[i].Label = dst
		}
	}
}

// segmentRow splits the valid cells of one row into runs against a fresh
// row-local LabelStore, then applies the wrap-around and occlusion-skip
// rules. It touches only cells of its own row, so rows may be segmented
// concurrently.
func segmentRow(g *l3grid.RangeGrid, row int, p *Params) *rowSegment {
	seg := &rowSegment{row: row, valid: g.ValidCount(row), store: NewLabelStore()}
	if seg.valid == 0 {
		return seg
	}
	cells := g.Row(row)
	thres := p.HorizontalMergeThreshold

	prev := -1
	for col := range cells {
		c := &cells[col]
		if !c.Valid {
			continue
		}
		if prev < 0 || distance2D(&cells[prev], c) >= thres {
			label := seg.store.Allocate()
			seg.store.push(label, c)
			seg.runs = append(seg.runs, Run{Start: col, End: col, Label: label})
		} else {
			last := &seg.runs[len(seg.runs)-1]
			last.End = col
			seg.store.push(last.Label, c)
		}
		prev = col
	}

	runs := seg.runs
	if len(runs) <= 2 {
		return seg
	}

	// Wrap-around: the row is a closed circle, so the last run may continue
	// the first one across column 0.
	first := &cells[runs[0].Start]
	last := &cells[runs[len(runs)-1].End]
	if d := distance2D(first, last); d < thres && first.Label != LabelNone {
		seg.merge(debug.MergeWrap, last.Label, first.Label, d)
	}

	// Occlusion skip: a foreground object splits a background surface into
	// runs whose facing ends are still close.
	for i := 0; i < len(runs)-1; i++ {
		for j := i + 1; j < len(runs); j++ {
			if runs[i].Label != runs[j].Label {
				a := &cells[runs[i].End]
				b := &cells[runs[j].Start]
				if d := distance2D(a, b); d < thres {
					seg.mergeOrdered(debug.MergeOcclusion, a.Label, b.Label, d)
				}
			}
			if j-i >= p.OcclusionSkipWindow {
				break
			}
		}
	}
	return seg
}

// mergeOrdered merges the larger of two labels into the smaller.
func (seg *rowSegment) mergeOrdered(kind debug.MergeKind, a, b int, d float64) {
	if a == b {
		return
	}
	if a < b {
		a, b = b, a
	}
	seg.merge(kind, a, b, d)
}

func (seg *rowSegment) merge(kind debug.MergeKind, src, dst int, d float64) {
	if src == dst {
		return
	}
	rec := debug.MergeRecord{Kind: kind, Row: seg.row, OtherRow: seg.row, Source: src, Target: dst, Distance: d}
	if err := seg.store.Merge(src, dst); err != nil {
		opsf("row %d: %s merge skipped: %v", seg.row, kind, err)
		seg.guarded++
		rec.Rejected = true
	} else {
		retarget(seg.runs, src, dst)
	}
	seg.merges = append(seg.merges, rec)
}
