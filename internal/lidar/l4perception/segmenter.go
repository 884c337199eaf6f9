package l4perception

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/rangeseg/internal/lidar/debug"
	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
	"github.com/banshee-data/rangeseg/internal/lidar/l3grid"
)

// Stats describes one Segment call.
type Stats struct {
	HeightBand HeightBandStats // zero unless a height band is configured
	Projection l3grid.ProjectionStats

	Runs            int // runs found by row segmentation
	WrapMerges      int
	OcclusionMerges int
	CrossRowMerges  int
	GuardedMerges   int // merges refused by the label store
	Labels          int // labels allocated after adoption
	Clusters        int // clusters before the size filter
	Emitted         int // clusters after the size filter

	ProjectDuration time.Duration
	RowDuration     time.Duration // Phase 1
	MergeDuration   time.Duration // Phase 2
	ExtractDuration time.Duration
}

// Total returns the wall time of all phases.
func (s Stats) Total() time.Duration {
	return s.ProjectDuration + s.RowDuration + s.MergeDuration + s.ExtractDuration
}

// Result is the output of a Segment call. Cloud is the filtered input
// (points that survived projection); Cluster.Indices refer to it.
type Result struct {
	Cloud    []l2frames.Point
	Clusters []Cluster
	Stats    Stats
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithPermuter replaces the default RandomPermuter.
func WithPermuter(p Permuter) Option {
	return func(s *Segmenter) { s.permuter = p }
}

// WithDebugCollector attaches a collector that receives row and merge
// records of every scan while it is enabled.
func WithDebugCollector(c *debug.DebugCollector) Option {
	return func(s *Segmenter) { s.collector = c }
}

// WithHeightBand drops points outside f before projection.
func WithHeightBand(f *HeightBandFilter) Option {
	return func(s *Segmenter) { s.band = f }
}

// Segmenter partitions scans into clusters. It owns a reusable range grid,
// so concurrent Segment calls are serialised.
type Segmenter struct {
	mu sync.Mutex

	params    Params
	projector *l3grid.Projector
	permuter  Permuter
	collector *debug.DebugCollector
	band      *HeightBandFilter
	scans     uint64
	last      *debug.ScanDebug
}

// NewSegmenter validates params and allocates the range grid.
func NewSegmenter(params Params, opts ...Option) (*Segmenter, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmentation params: %w", err)
	}
	s := &Segmenter{
		params:    params,
		projector: l3grid.NewProjector(params.Projection()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.permuter == nil {
		s.permuter = NewRandomPermuter(params.Seed)
	}
	return s, nil
}

// Params returns the parameters the segmenter was built with.
func (s *Segmenter) Params() Params { return s.params }

// Segment projects cloud onto the range grid and clusters it. The input
// slice is not modified. The context is checked between rows.
func (s *Segmenter) Segment(ctx context.Context, cloud []l2frames.Point) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	s.collector.BeginScan(s.scans)
	defer s.collector.Reset()

	var stats Stats
	t0 := time.Now()
	if s.band != nil {
		cloud, stats.HeightBand = s.band.Filter(cloud)
		tracef("scan %d: height band kept %d of %d (%d below, %d above)", s.scans,
			stats.HeightBand.Kept, stats.HeightBand.Processed, stats.HeightBand.BelowFloor, stats.HeightBand.AboveCeiling)
	}
	filtered, pstats := s.projector.Project(cloud)
	stats.Projection = pstats
	stats.ProjectDuration = time.Since(t0)

	clusters, err := s.segmentGrid(ctx, s.projector.Grid(), &stats)
	if err != nil {
		return nil, err
	}

	diagf("scan %d: %d points in, %d kept, %d clusters (%d before size filter)",
		s.scans, pstats.Input, pstats.Kept, stats.Emitted, stats.Clusters)
	tracef("scan %d: project=%v rows=%v merge=%v extract=%v runs=%d wrap=%d occlusion=%d cross=%d guarded=%d",
		s.scans, stats.ProjectDuration, stats.RowDuration, stats.MergeDuration, stats.ExtractDuration,
		stats.Runs, stats.WrapMerges, stats.OcclusionMerges, stats.CrossRowMerges, stats.GuardedMerges)

	return &Result{Cloud: filtered, Clusters: clusters, Stats: stats}, nil
}

// LastScan returns the debug records of the most recent scan, or nil when
// no collector is attached or it is disabled.
func (s *Segmenter) LastScan() *debug.ScanDebug {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// segmentGrid runs both phases and extraction on an already populated grid.
func (s *Segmenter) segmentGrid(ctx context.Context, g *l3grid.RangeGrid, stats *Stats) ([]Cluster, error) {
	s.last = nil
	if g.TotalValid() == 0 {
		return nil, ctx.Err()
	}
	p := &s.params

	// Phase 1: rows are independent.
	t0 := time.Now()
	segs := make([]*rowSegment, g.Rows)
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers())
	for row := 0; row < g.Rows; row++ {
		if g.ValidCount(row) == 0 {
			continue
		}
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			segs[row] = segmentRow(g, row, p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Commit row stores in row order so label numbering does not depend on
	// scheduling.
	store := NewLabelStore()
	runs := make([][]Run, g.Rows)
	for row, seg := range segs {
		if seg == nil {
			continue
		}
		store.Adopt(seg.store)
		for i := range seg.runs {
			seg.runs[i].Label = g.At(row, seg.runs[i].Start).Label
		}
		runs[row] = seg.runs
		stats.Runs += len(seg.runs)
		stats.GuardedMerges += seg.guarded
		s.collector.RecordRow(row, seg.valid, len(seg.runs))
		for _, m := range seg.merges {
			if !m.Rejected {
				switch m.Kind {
				case debug.MergeWrap:
					stats.WrapMerges++
				case debug.MergeOcclusion:
					stats.OcclusionMerges++
				}
			}
			s.collector.RecordMerge(m)
		}
	}
	stats.Labels = store.Allocated()
	stats.RowDuration = time.Since(t0)

	// Phase 2: strictly increasing row order.
	t0 = time.Now()
	m := &crossRowMerger{grid: g, runs: runs, store: store, params: p, collector: s.collector}
	for row := 1; row < g.Rows; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.mergeRow(row)
	}
	stats.CrossRowMerges = m.merges
	stats.GuardedMerges += m.guarded
	stats.MergeDuration = time.Since(t0)

	t0 = time.Now()
	stats.Clusters = store.Len()
	clusters := extractClusters(store, s.permuter, p)
	stats.Emitted = len(clusters)
	stats.ExtractDuration = time.Since(t0)

	s.last = s.collector.Emit()
	return clusters, nil
}

func (s *Segmenter) workers() int {
	if s.params.Workers > 0 {
		return s.params.Workers
	}
	return runtime.GOMAXPROCS(0)
}
