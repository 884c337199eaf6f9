// Package debug provides instrumentation for the range-image segmentation
// engine. The DebugCollector captures per-row run counts and every label
// merge decision (wrap-around, occlusion skip, cross-row) for offline
// inspection and threshold tuning.
package debug

import "fmt"

// Pre-allocation capacities for debug scan slices.
// A 64-row sensor produces one row record per row and typically a few
// hundred merges per scan.
const (
	defaultRowCapacity   = 64
	defaultMergeCapacity = 256
)

// MergeKind identifies the rule that triggered a label merge.
type MergeKind uint8

const (
	MergeWrap      MergeKind = iota // first and last run of a row
	MergeOcclusion                  // runs separated by an occluder in the same row
	MergeCrossRow                   // runs in neighbouring rows
)

func (k MergeKind) String() string {
	switch k {
	case MergeWrap:
		return "wrap"
	case MergeOcclusion:
		return "occlusion"
	case MergeCrossRow:
		return "cross-row"
	default:
		return fmt.Sprintf("MergeKind(%d)", uint8(k))
	}
}

// DebugCollector accumulates debug artifacts during a single scan.
//
// The collector is stateful: call BeginScan, then Record*() during
// processing, then Emit() at scan completion. It is not safe for concurrent
// use; the engine only records from its serial phases.
type DebugCollector struct {
	enabled bool
	current *ScanDebug
}

// ScanDebug contains all debug artifacts for one segmented scan.
type ScanDebug struct {
	ScanID uint64

	Rows   []RowRecord
	Merges []MergeRecord
}

// RowRecord summarises row segmentation of one non-empty row.
type RowRecord struct {
	Row         int
	ValidPoints int
	Runs        int
}

// MergeRecord captures one label merge.
//
// Source and Target of wrap and occlusion merges are row-local labels, since
// those merges happen before the row is committed to the global store.
// Cross-row merges carry global labels.
type MergeRecord struct {
	Kind     MergeKind
	Row      int
	OtherRow int // candidate row for cross-row merges, otherwise Row
	Source   int // label redirected
	Target   int // label kept
	Distance float64
	Rejected bool // the store refused the merge
}

// NewDebugCollector creates a collector that's initially disabled.
func NewDebugCollector() *DebugCollector {
	return &DebugCollector{}
}

// SetEnabled controls whether the collector records artifacts.
// When disabled, all Record*() calls are no-ops.
func (c *DebugCollector) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// IsEnabled returns true if the collector is actively recording.
func (c *DebugCollector) IsEnabled() bool {
	return c != nil && c.enabled
}

// BeginScan initialises collection for a new scan.
func (c *DebugCollector) BeginScan(scanID uint64) {
	if !c.IsEnabled() {
		return
	}
	c.current = &ScanDebug{
		ScanID: scanID,
		Rows:   make([]RowRecord, 0, defaultRowCapacity),
		Merges: make([]MergeRecord, 0, defaultMergeCapacity),
	}
}

// RecordRow captures the outcome of segmenting one row.
func (c *DebugCollector) RecordRow(row, validPoints, runs int) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	c.current.Rows = append(c.current.Rows, RowRecord{Row: row, ValidPoints: validPoints, Runs: runs})
}

// RecordMerge captures one merge decision.
func (c *DebugCollector) RecordMerge(rec MergeRecord) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	c.current.Merges = append(c.current.Merges, rec)
}

// Emit returns the accumulated scan and prepares for the next one.
// Returns nil if collection is disabled or no scan was begun.
func (c *DebugCollector) Emit() *ScanDebug {
	if !c.IsEnabled() || c.current == nil {
		return nil
	}
	scan := c.current
	c.current = nil
	return scan
}

// Reset clears any pending artifacts without emitting them.
func (c *DebugCollector) Reset() {
	if c != nil {
		c.current = nil
	}
}

// CountMerges returns the number of accepted merges of the given kind.
func (s *ScanDebug) CountMerges(kind MergeKind) int {
	n := 0
	for _, m := range s.Merges {
		if m.Kind == kind && !m.Rejected {
			n++
		}
	}
	return n
}
