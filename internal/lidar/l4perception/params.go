package l4perception

import (
	"fmt"
	"strings"

	"github.com/banshee-data/rangeseg/internal/config"
	"github.com/banshee-data/rangeseg/internal/lidar/l3grid"
)

// Params configures a Segmenter.
type Params struct {
	// Sensor geometry
	Rows            int     // elevation rows (laser channels)
	Columns         int     // azimuth columns per revolution
	MinElevationDeg float64 // elevation of row 0
	MaxElevationDeg float64 // elevation of the last row

	// Projection filters
	MinRange     float64 // metres
	MaxRange     float64 // metres
	RowSubsample int     // keep every n-th row (1 keeps all)

	HorizontalMergeThreshold float64 // same-row continuation distance, metres (x,y only)
	VerticalMergeThreshold   float64 // cross-row point distance, metres (3-D)

	VerticalWindow         int // preceding rows searched by the cross-row merger
	HorizontalSearchWindow int // column half-width of the cross-row probe
	OcclusionSkipWindow    int // max run-index gap bridged by the occlusion rule
	AzimuthExtension       int // columns a run is widened by when selecting candidates

	// Clusters outside [MinClusterSize, MaxClusterSize] are dropped. The
	// filter is disabled unless both bounds are non-zero.
	MinClusterSize int
	MaxClusterSize int

	Workers int   // Phase 1 concurrency; 0 means GOMAXPROCS
	Seed    int64 // cluster ID permutation seed; 0 means time-seeded
}

// DefaultParams returns the KITTI (Velodyne HDL-64E) preset.
func DefaultParams() Params {
	return Params{
		Rows:                     64,
		Columns:                  1800,
		MinElevationDeg:          -24.8,
		MaxElevationDeg:          2.0,
		MinRange:                 1.0,
		MaxRange:                 64.0,
		RowSubsample:             1,
		HorizontalMergeThreshold: 0.4,
		VerticalMergeThreshold:   0.5,
		VerticalWindow:           3,
		HorizontalSearchWindow:   5,
		OcclusionSkipWindow:      5,
		AzimuthExtension:         5,
		MinClusterSize:           10,
		MaxClusterSize:           30000,
	}
}

// PresetParams returns the named sensor preset ("kitti" or "vlp16").
func PresetParams(name string) (Params, error) {
	switch strings.ToLower(name) {
	case "kitti", "hdl64":
		return DefaultParams(), nil
	case "vlp16":
		p := DefaultParams()
		p.Rows = 16
		p.MinElevationDeg = -15
		p.MaxElevationDeg = 15
		p.MinRange = 0.5
		p.MaxRange = 100
		p.HorizontalMergeThreshold = 0.3
		p.VerticalMergeThreshold = 0.6
		p.VerticalWindow = 2
		p.MinClusterSize = 5
		return p, nil
	default:
		return Params{}, fmt.Errorf("unknown preset %q", name)
	}
}

// ParamsFromTuning builds Params from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		Rows:                     cfg.GetVertScan(),
		Columns:                  cfg.GetHorzScan(),
		MinElevationDeg:          cfg.GetMinVertAngle(),
		MaxElevationDeg:          cfg.GetMaxVertAngle(),
		MinRange:                 cfg.GetMinRange(),
		MaxRange:                 cfg.GetMaxRange(),
		RowSubsample:             cfg.GetDownsample(),
		HorizontalMergeThreshold: cfg.GetHorzMergeThres(),
		VerticalMergeThreshold:   cfg.GetVertMergeThres(),
		VerticalWindow:           cfg.GetVertScanSize(),
		HorizontalSearchWindow:   cfg.GetHorzScanSize(),
		OcclusionSkipWindow:      cfg.GetHorzSkipSize(),
		AzimuthExtension:         cfg.GetHorzExtensionSize(),
		MinClusterSize:           cfg.GetMinClusterSize(),
		MaxClusterSize:           cfg.GetMaxClusterSize(),
		Workers:                  cfg.GetWorkers(),
		Seed:                     cfg.GetSeed(),
	}
}

// Tuning converts p back into a fully populated TuningConfig, the form in
// which parameters are persisted alongside segmentation runs.
func (p Params) Tuning() *config.TuningConfig {
	return &config.TuningConfig{
		VertScan:          &p.Rows,
		HorzScan:          &p.Columns,
		MinVertAngle:      &p.MinElevationDeg,
		MaxVertAngle:      &p.MaxElevationDeg,
		MinRange:          &p.MinRange,
		MaxRange:          &p.MaxRange,
		Downsample:        &p.RowSubsample,
		HorzMergeThres:    &p.HorizontalMergeThreshold,
		VertMergeThres:    &p.VerticalMergeThreshold,
		VertScanSize:      &p.VerticalWindow,
		HorzScanSize:      &p.HorizontalSearchWindow,
		HorzSkipSize:      &p.OcclusionSkipWindow,
		HorzExtensionSize: &p.AzimuthExtension,
		MinClusterSize:    &p.MinClusterSize,
		MaxClusterSize:    &p.MaxClusterSize,
		Workers:           &p.Workers,
		Seed:              &p.Seed,
	}
}

// Validate checks if the parameters are usable.
func (p Params) Validate() error {
	if p.Rows <= 0 {
		return fmt.Errorf("Rows must be positive, got %d", p.Rows)
	}
	if p.Columns <= 0 {
		return fmt.Errorf("Columns must be positive, got %d", p.Columns)
	}
	if p.MinElevationDeg > p.MaxElevationDeg {
		return fmt.Errorf("MinElevationDeg %f exceeds MaxElevationDeg %f", p.MinElevationDeg, p.MaxElevationDeg)
	}
	if p.MinRange < 0 || p.MinRange > p.MaxRange {
		return fmt.Errorf("range bounds must satisfy 0 <= min <= max, got [%f, %f]", p.MinRange, p.MaxRange)
	}
	if p.RowSubsample < 1 {
		return fmt.Errorf("RowSubsample must be at least 1, got %d", p.RowSubsample)
	}
	if p.HorizontalMergeThreshold < 0 {
		return fmt.Errorf("HorizontalMergeThreshold must be non-negative, got %f", p.HorizontalMergeThreshold)
	}
	if p.VerticalMergeThreshold < 0 {
		return fmt.Errorf("VerticalMergeThreshold must be non-negative, got %f", p.VerticalMergeThreshold)
	}
	if p.VerticalWindow < 0 || p.HorizontalSearchWindow < 0 || p.OcclusionSkipWindow < 0 || p.AzimuthExtension < 0 {
		return fmt.Errorf("search windows must be non-negative, got vert=%d horz=%d skip=%d ext=%d",
			p.VerticalWindow, p.HorizontalSearchWindow, p.OcclusionSkipWindow, p.AzimuthExtension)
	}
	if p.MinClusterSize < 0 || p.MaxClusterSize < 0 {
		return fmt.Errorf("cluster size bounds must be non-negative, got [%d, %d]", p.MinClusterSize, p.MaxClusterSize)
	}
	if p.Workers < 0 {
		return fmt.Errorf("Workers must be non-negative, got %d", p.Workers)
	}
	return nil
}

// sizeFilterEnabled reports whether cluster size bounds apply.
func (p Params) sizeFilterEnabled() bool {
	return p.MinClusterSize != 0 && p.MaxClusterSize != 0
}

// Projection returns the grid projection parameters embedded in p.
func (p Params) Projection() l3grid.ProjectionParams {
	return l3grid.ProjectionParams{
		Rows:            p.Rows,
		Columns:         p.Columns,
		MinElevationDeg: p.MinElevationDeg,
		MaxElevationDeg: p.MaxElevationDeg,
		MinRange:        p.MinRange,
		MaxRange:        p.MaxRange,
		RowSubsample:    p.RowSubsample,
	}
}
