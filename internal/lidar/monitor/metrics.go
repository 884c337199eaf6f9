package monitor

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/rangeseg/internal/lidar/l4perception"
)

// SegmentMetrics accumulates Prometheus metrics over segmentation calls.
// Each instance owns its registry so several can coexist.
type SegmentMetrics struct {
	Registry *prometheus.Registry

	scans         prometheus.Counter
	points        *prometheus.CounterVec
	merges        *prometheus.CounterVec
	clusters      *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	clusterSize   prometheus.Histogram
}

// NewSegmentMetrics creates and registers the segmentation metrics.
func NewSegmentMetrics() *SegmentMetrics {
	m := &SegmentMetrics{
		Registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rangeseg_scans_total",
			Help: "Number of scans segmented",
		}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangeseg_points_total",
			Help: "Input points by projection outcome",
		}, []string{"outcome"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangeseg_merges_total",
			Help: "Label merges by rule",
		}, []string{"kind"}),
		clusters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangeseg_clusters_total",
			Help: "Clusters found before and after the size filter",
		}, []string{"stage"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rangeseg_phase_duration_seconds",
			Help:    "Wall time per segmentation phase",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"phase"}),
		clusterSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rangeseg_cluster_points",
			Help:    "Points per emitted cluster",
			Buckets: prometheus.ExponentialBuckets(4, 2, 14),
		}),
	}
	m.Registry.MustRegister(m.scans, m.points, m.merges, m.clusters, m.phaseDuration, m.clusterSize)
	return m
}

// Observe records one segmentation result.
func (m *SegmentMetrics) Observe(res *l4perception.Result) {
	if res == nil {
		return
	}
	st := res.Stats
	m.scans.Inc()

	m.points.WithLabelValues("kept").Add(float64(st.Projection.Kept))
	m.points.WithLabelValues("out_of_range").Add(float64(st.Projection.OutOfRange))
	m.points.WithLabelValues("subsampled").Add(float64(st.Projection.Subsampled))
	m.points.WithLabelValues("out_of_row").Add(float64(st.Projection.OutOfRow))
	m.points.WithLabelValues("out_of_column").Add(float64(st.Projection.OutOfColumn))
	m.points.WithLabelValues("occupied").Add(float64(st.Projection.Occupied))

	m.merges.WithLabelValues("wrap").Add(float64(st.WrapMerges))
	m.merges.WithLabelValues("occlusion").Add(float64(st.OcclusionMerges))
	m.merges.WithLabelValues("cross_row").Add(float64(st.CrossRowMerges))
	m.merges.WithLabelValues("guarded").Add(float64(st.GuardedMerges))

	m.clusters.WithLabelValues("found").Add(float64(st.Clusters))
	m.clusters.WithLabelValues("emitted").Add(float64(st.Emitted))

	m.phaseDuration.WithLabelValues("project").Observe(st.ProjectDuration.Seconds())
	m.phaseDuration.WithLabelValues("rows").Observe(st.RowDuration.Seconds())
	m.phaseDuration.WithLabelValues("merge").Observe(st.MergeDuration.Seconds())
	m.phaseDuration.WithLabelValues("extract").Observe(st.ExtractDuration.Seconds())

	for i := range res.Clusters {
		m.clusterSize.Observe(float64(res.Clusters[i].Len()))
	}
}

// WriteTextfile writes the current metrics to path in the text exposition
// format read by the node_exporter textfile collector.
func (m *SegmentMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
