package l4perception

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/rangeseg/internal/lidar/l3grid"
)

// Reserved labels. A valid cell never carries either of them once it has
// been segmented.
const (
	LabelNone     = 0 // cell not yet segmented
	LabelReserved = 1

	firstLabel = 2
)

var (
	// ErrReservedLabel is returned when a merge names label 0 or 1.
	ErrReservedLabel = errors.New("reserved label")
	// ErrUnknownLabel is returned when a merge names a label never allocated.
	ErrUnknownLabel = errors.New("unknown label")
)

// LabelStore maps each cluster label to the ordered bucket of grid points
// carrying it. It is the single authority for cluster membership: for every
// segmented point p, p.Label == l exactly when p is in bucket l.
//
// Merge takes an exclusive lock; readers take the shared lock.
type LabelStore struct {
	mu      sync.RWMutex
	buckets [][]*l3grid.GridPoint // indexed by label; 0 and 1 stay nil
}

// NewLabelStore returns an empty store. The first allocated label is 2.
func NewLabelStore() *LabelStore {
	return &LabelStore{buckets: make([][]*l3grid.GridPoint, firstLabel, 64)}
}

// Allocate returns a fresh label with an empty bucket.
func (s *LabelStore) Allocate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocateLocked()
}

func (s *LabelStore) allocateLocked() int {
	s.buckets = append(s.buckets, nil)
	return len(s.buckets) - 1
}

// Add labels p and appends it to the bucket of label.
func (s *LabelStore) Add(label int, p *l3grid.GridPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(label); err != nil {
		return err
	}
	p.Label = label
	s.buckets[label] = append(s.buckets[label], p)
	return nil
}

// push is Add for labels the caller has just allocated.
func (s *LabelStore) push(label int, p *l3grid.GridPoint) {
	s.mu.Lock()
	p.Label = label
	s.buckets[label] = append(s.buckets[label], p)
	s.mu.Unlock()
}

// Merge redirects every point of src to dst and empties src. Merging a label
// into itself is a no-op.
func (s *LabelStore) Merge(src, dst int) error {
	if src == dst {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(src); err != nil {
		return fmt.Errorf("merge %d into %d: %w", src, dst, err)
	}
	if err := s.checkLocked(dst); err != nil {
		return fmt.Errorf("merge %d into %d: %w", src, dst, err)
	}
	moved := s.buckets[src]
	for _, p := range moved {
		p.Label = dst
	}
	s.buckets[dst] = append(s.buckets[dst], moved...)
	s.buckets[src] = nil
	return nil
}

func (s *LabelStore) checkLocked(label int) error {
	switch {
	case label == LabelNone || label == LabelReserved:
		return fmt.Errorf("label %d: %w", label, ErrReservedLabel)
	case label < 0 || label >= len(s.buckets):
		return fmt.Errorf("label %d: %w", label, ErrUnknownLabel)
	}
	return nil
}

// Adopt moves every non-empty bucket of row into freshly allocated labels of
// s, in increasing label order, relabelling the points. It returns the
// mapping from row labels to labels of s. row is empty afterwards.
func (s *LabelStore) Adopt(row *LabelStore) map[int]int {
	row.mu.Lock()
	defer row.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping := make(map[int]int)
	for local := firstLabel; local < len(row.buckets); local++ {
		bucket := row.buckets[local]
		if len(bucket) == 0 {
			continue
		}
		global := s.allocateLocked()
		for _, p := range bucket {
			p.Label = global
		}
		s.buckets[global] = bucket
		mapping[local] = global
	}
	row.buckets = row.buckets[:firstLabel]
	return mapping
}

// Bucket returns the points carrying label, or nil. The slice aliases the
// store and must not be modified.
func (s *LabelStore) Bucket(label int) []*l3grid.GridPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if label < 0 || label >= len(s.buckets) {
		return nil
	}
	return s.buckets[label]
}

// Size returns the number of points carrying label.
func (s *LabelStore) Size(label int) int {
	return len(s.Bucket(label))
}

// Labels returns the labels with non-empty buckets in increasing order.
func (s *LabelStore) Labels() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var labels []int
	for l := firstLabel; l < len(s.buckets); l++ {
		if len(s.buckets[l]) > 0 {
			labels = append(labels, l)
		}
	}
	return labels
}

// Len returns the number of non-empty buckets.
func (s *LabelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for l := firstLabel; l < len(s.buckets); l++ {
		if len(s.buckets[l]) > 0 {
			n++
		}
	}
	return n
}

// Allocated returns the number of labels handed out so far, including
// labels whose buckets have since been merged away.
func (s *LabelStore) Allocated() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets) - firstLabel
}
