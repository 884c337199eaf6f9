// Package l3grid owns Layer 3 (Grid) of the LiDAR data model.
//
// Responsibilities: spherical projection of an unordered scan onto a fixed
// rows x columns range image, one cell per beam direction, with range and
// row-subsample filtering and first-write-wins deduplication.
// Key types: RangeGrid, GridPoint, Projector, ProjectionStats.
//
// Dependency rule: L3 may depend on L2, but never on L4+.
// No disk or network I/O is allowed in this package.
package l3grid
