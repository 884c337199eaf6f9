package l4perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossRowMerge_AdjacentColumns(t *testing.T) {
	// Row 1 has a point at column 3, row 0 at column 5. The column ranges do
	// not overlap, but both sit within the extension margin and are close in
	// 3-D.
	p := testParams()
	g := buildGrid(t, 2, 8,
		cell{1, 3, 10, 0.0, 0.3},
		cell{0, 5, 10, 0.2, 0.0},
	)
	clusters, stats := segment(t, g, p)

	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].Len())
	assert.Equal(t, 1, stats.CrossRowMerges)
	assert.True(t, sameCluster(g, [2]int{1, 3}, [2]int{0, 5}))
}

func TestCrossRowMerge_UsesThreeDimensionalDistance(t *testing.T) {
	// Same (x, y), 2 m apart in z.
	p := testParams()
	g := buildGrid(t, 2, 8,
		cell{1, 3, 10, 0, 2},
		cell{0, 3, 10, 0, 0},
	)
	clusters, _ := segment(t, g, p)
	assert.Len(t, clusters, 2)
}

func TestCrossRowMerge_OutsideExtension(t *testing.T) {
	p := testParams()
	p.AzimuthExtension = 1
	g := buildGrid(t, 2, 8,
		cell{1, 1, 10, 0, 0.1},
		cell{0, 6, 10, 0, 0.0},
	)
	clusters, stats := segment(t, g, p)
	assert.Len(t, clusters, 2)
	assert.Equal(t, 0, stats.CrossRowMerges)
}

func TestCrossRowMerge_VerticalWindow(t *testing.T) {
	cells := []cell{
		{3, 2, 10, 0, 0.3},
		{0, 2, 10, 0, 0.0},
	}
	tests := []struct {
		name   string
		window int
		want   int
	}{
		{"reaches row 0", 3, 1},
		{"stops at row 1", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			p.VerticalWindow = tt.window
			g := buildGrid(t, 4, 8, cells...)
			clusters, _ := segment(t, g, p)
			assert.Len(t, clusters, tt.want)
		})
	}
}

func TestCrossRowMerge_NestedRunProbe(t *testing.T) {
	// Row 0 spans columns 1..6, row 1 spans 3..4; only column 4 is close
	// vertically.
	p := testParams()
	var cells []cell
	for col := 1; col <= 6; col++ {
		cells = append(cells, cell{0, col, 10, float64(col) * 0.5, 0})
	}
	cells = append(cells,
		cell{1, 3, 10, 1.5, 3},   // 3 m above its neighbour below
		cell{1, 4, 10, 2.0, 2.3}, // still within 1 m of (1,3) horizontally
	)
	// (1,4) is 2.3 m above (0,4); raise the threshold just enough for it.
	p.VerticalMergeThreshold = 2.4
	g := buildGrid(t, 2, 8, cells...)
	clusters, stats := segment(t, g, p)

	require.Len(t, clusters, 1)
	assert.Equal(t, 8, clusters[0].Len())
	assert.Equal(t, 1, stats.CrossRowMerges)
}

func TestCrossRowMerge_ZeroSearchWindowSkipsProbe(t *testing.T) {
	p := testParams()
	p.HorizontalSearchWindow = 0
	g := buildGrid(t, 2, 8,
		cell{0, 2, 10, 0, 0},
		cell{1, 2, 10, 0, 0.1},
	)
	clusters, _ := segment(t, g, p)
	assert.Len(t, clusters, 2)
}

func TestCrossRowMerge_BridgesSeparateRuns(t *testing.T) {
	// Row 0 holds two separate runs A and B. Row 1 holds one long run C
	// touching both. Merging C with A rewrites C's label; the later C/B
	// merge must still join B with the combined cluster.
	p := testParams()
	var cells []cell
	cells = append(cells,
		cell{0, 0, 10, 0.0, 0}, cell{0, 1, 10, 0.5, 0}, // A
		cell{0, 5, 10, 2.5, 0}, cell{0, 6, 10, 3.0, 0}, // B, 2 m from A
	)
	for col := 0; col <= 6; col++ {
		cells = append(cells, cell{1, col, 10, float64(col) * 0.5, 0.2})
	}
	g := buildGrid(t, 2, 16, cells...)
	clusters, stats := segment(t, g, p)

	require.Len(t, clusters, 1)
	assert.Equal(t, 11, clusters[0].Len())
	assert.Equal(t, 2, stats.CrossRowMerges)
	assert.Equal(t, 2, g.At(0, 6).Label, "all points carry the smallest label")
}

func TestCandidates(t *testing.T) {
	p := testParams()
	p.AzimuthExtension = 2
	m := &crossRowMerger{params: &p}
	prev := []Run{{0, 1, 2}, {4, 5, 3}, {9, 12, 4}, {20, 25, 5}}

	tests := []struct {
		name   string
		cur    Run
		lo, hi int
	}{
		{"overlaps middle", Run{6, 7, 9}, 1, 3},
		{"before all", Run{-10, -5, 9}, 0, 0},
		{"after all", Run{30, 31, 9}, 4, 4},
		{"in a gap", Run{16, 16, 9}, 3, 3},
		{"spans everything", Run{0, 30, 9}, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := m.candidates(&tt.cur, prev)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}
