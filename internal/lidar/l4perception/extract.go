package l4perception

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
)

// Cluster is one output object. Points are in bucket order; Indices[i] is
// the position of Points[i] in the filtered cloud returned with it.
type Cluster struct {
	ID      int
	Points  []l2frames.Point
	Indices []int
}

// Len returns the number of points in the cluster.
func (c *Cluster) Len() int { return len(c.Points) }

// Permuter assigns external cluster IDs. Permute(n) must return a
// permutation of 1..n.
type Permuter interface {
	Permute(n int) []int
}

// RandomPermuter shuffles IDs so that consumers cannot rely on ID order.
// It is safe for concurrent use.
type RandomPermuter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// permuterStream fixes the PCG stream so a seed alone selects the sequence.
const permuterStream = 0x9e3779b97f4a7c15

// NewRandomPermuter returns a permuter seeded with seed, or with the current
// time when seed is 0.
func NewRandomPermuter(seed int64) *RandomPermuter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomPermuter{rng: rand.New(rand.NewPCG(uint64(seed), permuterStream))}
}

func (p *RandomPermuter) Permute(n int) []int {
	p.mu.Lock()
	perm := p.rng.Perm(n)
	p.mu.Unlock()
	for i := range perm {
		perm[i]++
	}
	return perm
}

// IdentityPermuter numbers clusters 1..n in label order.
type IdentityPermuter struct{}

func (IdentityPermuter) Permute(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// extractClusters walks the non-empty buckets of store in increasing label
// order, assigns each a permuted ID and emits those passing the size filter.
// IDs are assigned before filtering, so surviving IDs need not be dense.
func extractClusters(store *LabelStore, perm Permuter, p *Params) []Cluster {
	labels := store.Labels()
	if len(labels) == 0 {
		return nil
	}
	ids := perm.Permute(len(labels))
	filter := p.sizeFilterEnabled()

	clusters := make([]Cluster, 0, len(labels))
	for i, label := range labels {
		bucket := store.Bucket(label)
		if filter && (len(bucket) < p.MinClusterSize || len(bucket) > p.MaxClusterSize) {
			continue
		}
		c := Cluster{
			ID:      ids[i],
			Points:  make([]l2frames.Point, len(bucket)),
			Indices: make([]int, len(bucket)),
		}
		for j, gp := range bucket {
			c.Points[j] = gp.Point()
			c.Indices[j] = gp.Index
		}
		clusters = append(clusters, c)
	}
	return clusters
}
