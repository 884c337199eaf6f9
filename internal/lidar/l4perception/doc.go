// Package l4perception owns Layer 4 (Perception) of the LiDAR data model.
//
// Responsibilities: run segmentation of range-grid rows, cross-row run
// merging, label bookkeeping, and cluster extraction.
// Key types: Segmenter, LabelStore, Run, Cluster, HeightBandFilter.
//
// Segmentation is two-phase. Phase 1 splits every row into runs of
// azimuthally adjacent returns, bridging wrap-around and occlusion gaps; rows
// are independent and processed concurrently. Phase 2 visits rows in
// increasing order and merges each run with close runs in a bounded window of
// preceding rows.
//
// Dependency rule: L4 may depend on L2-L3, but never on L5+.
// No SQL/database code is allowed in this package.
package l4perception
