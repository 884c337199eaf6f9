// Package l2frames owns Layer 2 (Frames) of the LiDAR data model.
//
// Responsibilities: the Cartesian point type shared by every layer above,
// reading complete scans from disk (PCD, KITTI .bin, either optionally
// gzip, zstd or lz4 compressed) and exporting point sets to
// CloudCompare-compatible .asc files.
// Key types: Point, PointASC.
//
// Dependency rule: L2 never depends on L3+.
package l2frames
