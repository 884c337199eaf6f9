package l4perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rangeseg/internal/lidar/debug"
)

func runSpans(runs []Run) [][2]int {
	out := make([][2]int, len(runs))
	for i, r := range runs {
		out[i] = [2]int{r.Start, r.End}
	}
	return out
}

func TestSegmentRow_SplitsOnDistance(t *testing.T) {
	p := testParams()
	g := buildGrid(t, 1, 8,
		cell{0, 0, 10, 0.0, 0},
		cell{0, 1, 10, 0.5, 0},
		cell{0, 3, 10, 1.0, 5}, // gap in columns is irrelevant; z is ignored
		cell{0, 5, 20, 1.0, 0},
		cell{0, 6, 20, 1.9, 0},
	)
	seg := segmentRow(g, 0, &p)

	assert.Equal(t, [][2]int{{0, 3}, {5, 6}}, runSpans(seg.runs))
	assert.Equal(t, 5, seg.valid)
	assert.Equal(t, 2, seg.store.Len())
	assert.Empty(t, seg.merges)
	assertStoreConsistent(t, seg.store, g)
}

func TestSegmentRow_ThresholdIsExclusive(t *testing.T) {
	p := testParams()
	g := buildGrid(t, 1, 4,
		cell{0, 0, 0, 0, 0},
		cell{0, 1, 1.0, 0, 0}, // exactly the threshold starts a new run
	)
	seg := segmentRow(g, 0, &p)
	assert.Len(t, seg.runs, 2)
}

func TestSegmentRow_EmptyRow(t *testing.T) {
	p := testParams()
	g := buildGrid(t, 2, 4, cell{1, 0, 1, 0, 0})
	seg := segmentRow(g, 0, &p)
	assert.Empty(t, seg.runs)
	assert.Equal(t, 0, seg.store.Len())
}

func TestSegmentRow_WrapMerge(t *testing.T) {
	p := testParams()
	g := buildGrid(t, 1, 8,
		cell{0, 0, 10, 0.0, 0},
		cell{0, 3, 0, 10, 0},
		cell{0, 5, -10, 0, 0},
		cell{0, 7, 10, 0.2, 0},
	)
	seg := segmentRow(g, 0, &p)

	require.Len(t, seg.runs, 4)
	assert.True(t, sameCluster(g, [2]int{0, 0}, [2]int{0, 7}), "columns 0 and 7 must share a label")
	assert.False(t, sameCluster(g, [2]int{0, 0}, [2]int{0, 3}))
	assert.Equal(t, 3, seg.store.Len())
	assert.Equal(t, seg.runs[0].Label, seg.runs[3].Label, "hint refreshed")

	require.Len(t, seg.merges, 1)
	m := seg.merges[0]
	assert.Equal(t, debug.MergeWrap, m.Kind)
	assert.Equal(t, g.At(0, 0).Label, m.Target)
	assert.InDelta(t, 0.2, m.Distance, 1e-9)
	assertStoreConsistent(t, seg.store, g)
}

func TestSegmentRow_WrapNeedsMoreThanTwoRuns(t *testing.T) {
	p := testParams()
	// Two runs whose outer ends are close: the first run walks away from
	// the origin and the second walks back.
	g := buildGrid(t, 1, 16,
		cell{0, 0, 0.0, 0.0, 0},
		cell{0, 1, 0.9, 0.0, 0},
		cell{0, 2, 1.8, 0.0, 0},
		cell{0, 3, 1.8, 3.0, 0},
		cell{0, 4, 1.2, 2.4, 0},
		cell{0, 5, 0.6, 1.7, 0},
		cell{0, 6, 0.2, 0.9, 0},
	)
	seg := segmentRow(g, 0, &p)

	require.Len(t, seg.runs, 2)
	assert.False(t, sameCluster(g, [2]int{0, 0}, [2]int{0, 6}))
	assert.Empty(t, seg.merges)
}

func TestSegmentRow_OcclusionSkip(t *testing.T) {
	build := func() ([]cell, int) {
		return []cell{
			{0, 0, 10, 0.0, 0}, // background
			{0, 1, 10, 0.5, 0},
			{0, 2, 5, 0.6, 0}, // occluder
			{0, 3, 5, 0.8, 0},
			{0, 4, 10, 1.0, 0}, // background resumes
			{0, 5, 10, 1.5, 0},
		}, 8
	}

	tests := []struct {
		name       string
		skip       int
		wantLabels int
		wantMerged bool
	}{
		{"window reaches", 2, 2, true},
		{"window too small", 1, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			p.OcclusionSkipWindow = tt.skip
			cells, cols := build()
			g := buildGrid(t, 1, cols, cells...)
			seg := segmentRow(g, 0, &p)

			require.Len(t, seg.runs, 3)
			assert.Equal(t, tt.wantLabels, seg.store.Len())
			assert.Equal(t, tt.wantMerged, sameCluster(g, [2]int{0, 1}, [2]int{0, 4}))
			assert.False(t, sameCluster(g, [2]int{0, 1}, [2]int{0, 2}), "occluder stays separate")
			if tt.wantMerged {
				require.Len(t, seg.merges, 1)
				assert.Equal(t, debug.MergeOcclusion, seg.merges[0].Kind)
				assert.Less(t, seg.merges[0].Target, seg.merges[0].Source, "larger label merges into smaller")
			}
			assertStoreConsistent(t, seg.store, g)
		})
	}
}
