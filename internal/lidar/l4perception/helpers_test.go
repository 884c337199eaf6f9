package l4perception

import (
	"context"
	"sort"
	"testing"

	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
	"github.com/banshee-data/rangeseg/internal/lidar/l3grid"
)

// testParams returns unit-threshold params with the size filter at 1/100.
func testParams() Params {
	p := DefaultParams()
	p.HorizontalMergeThreshold = 1.0
	p.VerticalMergeThreshold = 1.0
	p.MinRange = 0
	p.MaxRange = 100
	p.MinClusterSize = 1
	p.MaxClusterSize = 100
	p.Workers = 2
	p.Seed = 1
	return p
}

type cell struct {
	row, col int
	x, y, z  float64
}

// buildGrid populates a grid by hand; Index follows the order of cells.
func buildGrid(t *testing.T, rows, cols int, cells ...cell) *l3grid.RangeGrid {
	t.Helper()
	g := l3grid.NewRangeGrid(rows, cols)
	for i, c := range cells {
		if !g.Set(c.row, c.col, l2frames.Point{X: c.x, Y: c.y, Z: c.z}, i) {
			t.Fatalf("cell (%d,%d) rejected", c.row, c.col)
		}
	}
	return g
}

// segment runs both phases on g with deterministic IDs.
func segment(t *testing.T, g *l3grid.RangeGrid, p Params, opts ...Option) ([]Cluster, Stats) {
	t.Helper()
	opts = append([]Option{WithPermuter(IdentityPermuter{})}, opts...)
	s, err := NewSegmenter(p, opts...)
	if err != nil {
		t.Fatalf("NewSegmenter: %v", err)
	}
	var stats Stats
	clusters, err := s.segmentGrid(context.Background(), g, &stats)
	if err != nil {
		t.Fatalf("segmentGrid: %v", err)
	}
	return clusters, stats
}

// partition returns each cluster's sorted indices, sorted by first index.
// It is independent of cluster IDs and bucket order.
func partition(clusters []Cluster) [][]int {
	out := make([][]int, 0, len(clusters))
	for _, c := range clusters {
		idx := append([]int(nil), c.Indices...)
		sort.Ints(idx)
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// sameCluster reports whether grid cells a and b ended up with one label.
func sameCluster(g *l3grid.RangeGrid, a, b [2]int) bool {
	return g.At(a[0], a[1]).Label == g.At(b[0], b[1]).Label
}
