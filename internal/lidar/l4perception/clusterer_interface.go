package l4perception

import (
	"context"

	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
)

// ClustererInterface abstracts the segmentation engine.
// This interface lets callers swap clustering strategies, or stub the engine
// in tests, without modifying the persistence and rendering pipeline.
type ClustererInterface interface {
	// Segment partitions one scan. The input slice is not modified.
	Segment(ctx context.Context, cloud []l2frames.Point) (*Result, error)

	// Params returns the current segmentation parameters.
	Params() Params
}

var _ ClustererInterface = (*Segmenter)(nil)
