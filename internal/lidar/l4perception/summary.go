package l4perception

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ClusterSummary holds descriptive statistics of a cluster.
type ClusterSummary struct {
	ID     int
	Points int

	CentroidX, CentroidY, CentroidZ float64

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	HeightP95 float64 // 95th percentile of Z
	ZStdDev   float64
}

// Extent returns the axis-aligned bounding box dimensions.
func (s ClusterSummary) Extent() (dx, dy, dz float64) {
	return s.MaxX - s.MinX, s.MaxY - s.MinY, s.MaxZ - s.MinZ
}

// Summarise computes the centroid, bounds and height spread of c.
// An empty cluster yields a zero summary carrying only the ID.
func Summarise(c Cluster) ClusterSummary {
	s := ClusterSummary{ID: c.ID, Points: len(c.Points)}
	if len(c.Points) == 0 {
		return s
	}
	xs := make([]float64, len(c.Points))
	ys := make([]float64, len(c.Points))
	zs := make([]float64, len(c.Points))
	for i, p := range c.Points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	s.CentroidX = stat.Mean(xs, nil)
	s.CentroidY = stat.Mean(ys, nil)
	s.CentroidZ = stat.Mean(zs, nil)
	s.MinX, s.MaxX = floats.Min(xs), floats.Max(xs)
	s.MinY, s.MaxY = floats.Min(ys), floats.Max(ys)
	s.MinZ, s.MaxZ = floats.Min(zs), floats.Max(zs)
	if len(zs) > 1 {
		s.ZStdDev = stat.StdDev(zs, nil)
	}

	sorted := append([]float64(nil), zs...)
	sort.Float64s(sorted)
	s.HeightP95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return s
}

// SummariseAll summarises every cluster in order.
func SummariseAll(clusters []Cluster) []ClusterSummary {
	out := make([]ClusterSummary, len(clusters))
	for i := range clusters {
		out[i] = Summarise(clusters[i])
	}
	return out
}
