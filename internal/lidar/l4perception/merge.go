package l4perception

import (
	"sort"

	"github.com/banshee-data/rangeseg/internal/lidar/debug"
	"github.com/banshee-data/rangeseg/internal/lidar/l3grid"
)

// crossRowMerger links each run with close runs in up to VerticalWindow
// preceding rows. Rows must be visited in increasing order.
type crossRowMerger struct {
	grid      *l3grid.RangeGrid
	runs      [][]Run // per row, global label hints
	store     *LabelStore
	params    *Params
	collector *debug.DebugCollector

	merges  int
	guarded int
}

// mergeRow processes every run of row against its candidate rows.
func (m *crossRowMerger) mergeRow(row int) {
	if row == 0 || m.grid.ValidCount(row) == 0 {
		return
	}
	cur := m.runs[row]
	for n := range cur {
		c := &cur[n]
		for l := row - 1; l >= row-m.params.VerticalWindow && l >= 0; l-- {
			if m.grid.ValidCount(l) == 0 {
				continue
			}
			prev := m.runs[l]
			lo, hi := m.candidates(c, prev)
			for idx := lo; idx < hi; idx++ {
				o := &prev[idx]
				if o.Label == c.Label {
					continue
				}
				m.mergePair(row, l, c, o)
			}
		}
	}
}

// candidates returns the half-open index range of runs in prev whose column
// interval intersects c widened by AzimuthExtension on both sides. Runs are
// disjoint and increasing, so both bounds are binary searches.
func (m *crossRowMerger) candidates(c *Run, prev []Run) (lo, hi int) {
	start := c.Start - m.params.AzimuthExtension
	end := c.End + m.params.AzimuthExtension
	lo = sort.Search(len(prev), func(i int) bool { return prev[i].End >= start })
	hi = sort.Search(len(prev), func(i int) bool { return prev[i].Start > end })
	return lo, hi
}

// mergePair classifies how c (in row) and o (in row l) overlap and probes
// for a pair of points closer than VerticalMergeThreshold.
func (m *crossRowMerger) mergePair(row, l int, c, o *Run) {
	la := m.grid.At(row, c.Start).Label
	lb := m.grid.At(l, o.Start).Label
	if la == lb {
		c.Label, o.Label = la, la
		return
	}

	var from, to int
	switch {
	case o.Start <= c.Start && c.End <= o.End:
		// c inside o
		from, to = c.Start, c.End
	case c.Start <= o.Start && o.End <= c.End:
		// o inside c
		from, to = o.Start, o.End
	case c.Start < o.Start && c.End >= o.Start && c.End <= o.End:
		// tail of c over head of o
		from, to = o.Start, c.End
	case o.Start <= c.Start && c.Start <= o.End && c.End > o.End:
		// head of c over tail of o
		from, to = c.Start, o.End
	default:
		// Disjoint but within the extension margin: compare facing ends.
		if o.End < c.Start {
			m.tryMerge(row, l, c, o, c.Start, o.End)
		} else if c.End < o.Start {
			m.tryMerge(row, l, c, o, c.End, o.Start)
		}
		return
	}

	w := m.params.HorizontalSearchWindow
	startLeft, startRight := from, from
	endLeft, endRight := to, to
	for {
		if startRight > endLeft && startLeft < from-w && endRight > to+w {
			return
		}
		if m.probe(row, l, c, o, startLeft) {
			return
		}
		if startLeft != endLeft && m.probe(row, l, c, o, endLeft) {
			return
		}
		if startLeft != startRight && m.probe(row, l, c, o, startRight) {
			return
		}
		if endLeft != endRight && m.probe(row, l, c, o, endRight) {
			return
		}
		startLeft--
		startRight++
		endLeft--
		endRight++
	}
}

// probe tests the cell of c at column q against cells of o within the
// horizontal search window around q.
func (m *crossRowMerger) probe(row, l int, c, o *Run, q int) bool {
	if q < c.Start || q > c.End || !m.grid.At(row, q).Valid {
		return false
	}
	w := m.params.HorizontalSearchWindow
	left, right := q, q
	for left > q-w || right < q+w {
		if left >= o.Start && left <= o.End && m.grid.At(l, left).Valid {
			if m.tryMerge(row, l, c, o, q, left) {
				return true
			}
		}
		if right >= o.Start && right <= o.End && m.grid.At(l, right).Valid {
			if m.tryMerge(row, l, c, o, q, right) {
				return true
			}
		}
		left--
		right++
	}
	return false
}

// tryMerge merges the clusters of cell (row, cq) and cell (l, oq) when they
// are closer than VerticalMergeThreshold. Labels are read from the cells,
// never from the run hints. It reports whether the pair is resolved.
func (m *crossRowMerger) tryMerge(row, l int, c, o *Run, cq, oq int) bool {
	a := m.grid.At(row, cq)
	b := m.grid.At(l, oq)
	d := distance3D(a, b)
	if d >= m.params.VerticalMergeThreshold {
		return false
	}
	src, dst := a.Label, b.Label
	if src == dst {
		return true
	}
	if src < dst {
		src, dst = dst, src
	}
	rec := debug.MergeRecord{Kind: debug.MergeCrossRow, Row: row, OtherRow: l, Source: src, Target: dst, Distance: d}
	if err := m.store.Merge(src, dst); err != nil {
		opsf("row %d/%d: cross-row merge skipped: %v", row, l, err)
		m.guarded++
		rec.Rejected = true
	} else {
		m.merges++
		c.Label, o.Label = dst, dst
	}
	m.collector.RecordMerge(rec)
	return true
}
