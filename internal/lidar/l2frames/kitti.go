package l2frames

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// kittiRecordSize is four little-endian float32 values: x, y, z, reflectance.
const kittiRecordSize = 16

// ReadKITTIBin decodes a KITTI Velodyne scan (.bin). Reflectance is dropped.
func ReadKITTIBin(r io.Reader) ([]Point, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var rec [kittiRecordSize]byte
	var points []Point
	for n := 0; ; n++ {
		_, err := io.ReadFull(br, rec[:])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kitti: record %d: %w", n, err)
		}
		p := Point{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[0:4]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[8:12]))),
		}
		if p.IsFinite() {
			points = append(points, p)
		}
	}
	diagf("kitti: decoded %d points", len(points))
	return points, nil
}

// WriteKITTIBin encodes points in KITTI .bin layout with zero reflectance.
func WriteKITTIBin(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)
	var rec [kittiRecordSize]byte
	for _, p := range points {
		binary.LittleEndian.PutUint32(rec[0:4], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(rec[4:8], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(rec[8:12], math.Float32bits(float32(p.Z)))
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
