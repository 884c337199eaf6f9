package l2frames

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrUnsupportedPCD is returned for PCD encodings this reader does not decode.
var ErrUnsupportedPCD = errors.New("unsupported PCD encoding")

// ErrMalformedPCD is returned when header values are out of range.
var ErrMalformedPCD = errors.New("malformed PCD header")

// maxPCDPrealloc caps the point slice capacity taken from POINTS; append
// grows past it when the file really holds more.
const maxPCDPrealloc = 1 << 20

// pcdHeader holds the subset of the PCD v0.7 header needed to locate x, y, z.
type pcdHeader struct {
	fields []string
	sizes  []int
	types  []string
	counts []int
	points int
	data   string
}

// column returns the value offset (ascii) and byte offset (binary) of a field.
func (h *pcdHeader) column(name string) (valueIdx, byteOff int, ok bool) {
	for i, f := range h.fields {
		if f == name {
			return valueIdx, byteOff, true
		}
		valueIdx += h.counts[i]
		byteOff += h.sizes[i] * h.counts[i]
	}
	return 0, 0, false
}

func (h *pcdHeader) recordSize() int {
	n := 0
	for i := range h.fields {
		n += h.sizes[i] * h.counts[i]
	}
	return n
}

// ReadPCD decodes a PCD file with DATA ascii or DATA binary encoding and
// returns its finite x, y, z points in file order. Other fields are ignored.
func ReadPCD(r io.Reader) ([]Point, error) {
	br := bufio.NewReader(r)
	h, err := readPCDHeader(br)
	if err != nil {
		return nil, err
	}

	xi, xo, okX := h.column("x")
	yi, yo, okY := h.column("y")
	zi, zo, okZ := h.column("z")
	if !okX || !okY || !okZ {
		return nil, fmt.Errorf("pcd: FIELDS %v lacks x, y or z", h.fields)
	}

	var points []Point
	switch h.data {
	case "ascii":
		points, err = readPCDASCII(br, h, [3]int{xi, yi, zi})
	case "binary":
		points, err = readPCDBinary(br, h, [3]int{xo, yo, zo}, [3]string{"x", "y", "z"})
	default:
		return nil, fmt.Errorf("pcd: DATA %s: %w", h.data, ErrUnsupportedPCD)
	}
	if err != nil {
		return nil, err
	}
	diagf("pcd: decoded %d of %d points (%s)", len(points), h.points, h.data)
	return points, nil
}

func readPCDHeader(br *bufio.Reader) (*pcdHeader, error) {
	h := &pcdHeader{}
	for {
		line, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("pcd: header truncated: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tok := strings.Fields(line)
		key, vals := strings.ToUpper(tok[0]), tok[1:]
		switch key {
		case "FIELDS":
			h.fields = vals
		case "SIZE":
			if h.sizes, err = atoiAll(vals); err != nil {
				return nil, fmt.Errorf("pcd: SIZE: %w", err)
			}
		case "TYPE":
			h.types = vals
		case "COUNT":
			if h.counts, err = atoiAll(vals); err != nil {
				return nil, fmt.Errorf("pcd: COUNT: %w", err)
			}
		case "POINTS":
			if len(vals) != 1 {
				return nil, fmt.Errorf("pcd: malformed POINTS line %q", line)
			}
			if h.points, err = strconv.Atoi(vals[0]); err != nil {
				return nil, fmt.Errorf("pcd: POINTS: %w", err)
			}
		case "DATA":
			if len(vals) != 1 {
				return nil, fmt.Errorf("pcd: malformed DATA line %q", line)
			}
			h.data = strings.ToLower(vals[0])
			if h.counts == nil {
				h.counts = make([]int, len(h.fields))
				for i := range h.counts {
					h.counts[i] = 1
				}
			}
			if len(h.sizes) != len(h.fields) || len(h.types) != len(h.fields) || len(h.counts) != len(h.fields) {
				return nil, fmt.Errorf("pcd: FIELDS/SIZE/TYPE/COUNT length mismatch")
			}
			if err := h.validate(); err != nil {
				return nil, err
			}
			return h, nil
		}
	}
}

func (h *pcdHeader) validate() error {
	if h.points < 0 {
		return fmt.Errorf("pcd: POINTS %d: %w", h.points, ErrMalformedPCD)
	}
	for i, f := range h.fields {
		if h.sizes[i] <= 0 {
			return fmt.Errorf("pcd: field %s SIZE %d: %w", f, h.sizes[i], ErrMalformedPCD)
		}
		if h.counts[i] <= 0 {
			return fmt.Errorf("pcd: field %s COUNT %d: %w", f, h.counts[i], ErrMalformedPCD)
		}
	}
	return nil
}

func (h *pcdHeader) capacity() int {
	return min(h.points, maxPCDPrealloc)
}

func atoiAll(vals []string) ([]int, error) {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func readPCDASCII(br *bufio.Reader, h *pcdHeader, idx [3]int) ([]Point, error) {
	points := make([]Point, 0, h.capacity())
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		tok := strings.Fields(sc.Text())
		if len(tok) == 0 {
			continue
		}
		var xyz [3]float64
		for k, i := range idx {
			if i >= len(tok) {
				return nil, fmt.Errorf("pcd: data line %d has %d values", line, len(tok))
			}
			v, err := strconv.ParseFloat(tok[i], 64)
			if err != nil {
				return nil, fmt.Errorf("pcd: data line %d: %w", line, err)
			}
			xyz[k] = v
		}
		p := Point{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		if p.IsFinite() {
			points = append(points, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("pcd: reading ascii data: %w", err)
	}
	return points, nil
}

func readPCDBinary(br *bufio.Reader, h *pcdHeader, off [3]int, names [3]string) ([]Point, error) {
	var decoders [3]func([]byte) float64
	for k, name := range names {
		for i, f := range h.fields {
			if f != name {
				continue
			}
			switch {
			case h.types[i] == "F" && h.sizes[i] == 4:
				decoders[k] = func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
			case h.types[i] == "F" && h.sizes[i] == 8:
				decoders[k] = func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
			default:
				return nil, fmt.Errorf("pcd: field %s has TYPE %s SIZE %d: %w", name, h.types[i], h.sizes[i], ErrUnsupportedPCD)
			}
		}
	}

	rec := make([]byte, h.recordSize())
	points := make([]Point, 0, h.capacity())
	for n := 0; n < h.points; n++ {
		if _, err := io.ReadFull(br, rec); err != nil {
			return nil, fmt.Errorf("pcd: record %d of %d: %w", n, h.points, err)
		}
		p := Point{
			X: decoders[0](rec[off[0]:]),
			Y: decoders[1](rec[off[1]:]),
			Z: decoders[2](rec[off[2]:]),
		}
		if p.IsFinite() {
			points = append(points, p)
		}
	}
	return points, nil
}

// WritePCD encodes points as an unorganised DATA ascii PCD v0.7 file.
func WritePCD(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# .PCD v0.7 - Point Cloud Data file format\n"+
		"VERSION 0.7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA ascii\n", len(points), len(points))
	for _, p := range points {
		fmt.Fprintf(bw, "%g %g %g\n", p.X, p.Y, p.Z)
	}
	return bw.Flush()
}
