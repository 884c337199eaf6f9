package l2frames

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression suffixes accepted after the cloud extension, e.g. scan.pcd.zst.
const (
	extGzip = ".gz"
	extZstd = ".zst"
	extLZ4  = ".lz4"
)

// LoadCloud reads a single scan from disk, choosing the decoder by file
// extension: .pcd for PCD v0.7, .bin for KITTI Velodyne scans. Either may be
// wrapped in a .gz, .zst or .lz4 stream.
func LoadCloud(path string) ([]Point, error) {
	cleanPath := filepath.Clean(path)
	inner, comp := splitCompression(cleanPath)
	ext := strings.ToLower(filepath.Ext(inner))
	if ext != ".pcd" && ext != ".bin" {
		return nil, fmt.Errorf("unsupported cloud format %q (want .pcd or .bin)", ext)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cloud: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompress(f, comp)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream: %w", comp, err)
	}
	defer closeFn()

	start := time.Now()
	var points []Point
	if ext == ".pcd" {
		points, err = ReadPCD(r)
	} else {
		points, err = ReadKITTIBin(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(cleanPath), err)
	}
	tracef("loaded %s: %d points in %v", filepath.Base(cleanPath), len(points), time.Since(start))
	return points, nil
}

// splitCompression strips a recognised compression suffix from path.
func splitCompression(path string) (inner, comp string) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case extGzip, extZstd, extLZ4:
		return strings.TrimSuffix(path, filepath.Ext(path)), ext
	}
	return path, ""
}

func decompress(r io.Reader, comp string) (io.Reader, func(), error) {
	switch comp {
	case extGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case extZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case extLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return r, func() {}, nil
	}
}
