// Package index implements an inverted-file (IVF) approximate nearest neighbour index
// over inner product. A spherical k-means quantizer partitions the space into clusters;
// queries probe only the nProbe clusters whose centroids are closest to the query.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// Defaults.
const (
	DefaultNProbe        = 8
	DefaultMaxIterations = 25
	DefaultSeed          = 1234
)

// Config configures an IVF index.
type Config struct {
	Dimensions    int
	NProbe        int    // clusters probed per query; 0 means DefaultNProbe
	MaxIterations int    // k-means iteration cap; 0 means DefaultMaxIterations
	Seed          uint64 // k-means initialization seed; 0 means DefaultSeed
}

// Hit is one search result. Distance is the inner product with the query (higher is closer).
type Hit struct {
	Distance float64
	VectorID int64
}

type entry struct {
	id  int64
	vec []float32
}

// IVF is an inverted-file index. Search may run concurrently with other searches;
// Build and Load take the write lock and exclude searches for their duration.
type IVF struct {
	mu        sync.RWMutex
	dim       int
	nProbe    int
	maxIter   int
	seed      uint64
	centroids [][]float32
	lists     [][]entry
	size      int64
	buildID   uuid.UUID
}

// New creates an untrained index.
func New(cfg Config) (*IVF, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("index dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.NProbe <= 0 {
		cfg.NProbe = DefaultNProbe
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	return &IVF{
		dim:     cfg.Dimensions,
		nProbe:  cfg.NProbe,
		maxIter: cfg.MaxIterations,
		seed:    cfg.Seed,
	}, nil
}

// Build trains the quantizer on embeddings if the index is untrained, then appends every
// embedding to its nearest cluster. Vector ids continue from the current size.
// Training needs at least nClusters embeddings; fewer fail with domain.ErrTraining.
// On an already trained index nClusters is ignored and the quantizer is kept.
func (x *IVF) Build(embeddings [][]float32, nClusters int) error {
	for i, v := range embeddings {
		if err := domain.CheckDimension(v, x.dim); err != nil {
			return fmt.Errorf("embedding %d: %w", i, err)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.centroids == nil {
		if nClusters <= 0 {
			return fmt.Errorf("%w: n_clusters must be positive, got %d", domain.ErrTraining, nClusters)
		}
		if len(embeddings) < nClusters {
			return fmt.Errorf("%w: need at least %d embeddings to train %d clusters, got %d",
				domain.ErrTraining, nClusters, nClusters, len(embeddings))
		}
		x.centroids = trainSpherical(embeddings, nClusters, x.maxIter, x.seed)
		x.lists = make([][]entry, nClusters)
	}

	for _, v := range embeddings {
		vec := make([]float32, x.dim)
		copy(vec, v)
		c := nearest(x.centroids, vec)
		x.lists[c] = append(x.lists[c], entry{id: x.size, vec: vec})
		x.size++
	}
	x.buildID = uuid.New()
	return nil
}

// Search returns up to topK hits ordered by descending inner product, ties broken by
// ascending vector id. Only the nProbe nearest clusters are scanned, so the true top-k
// may be missed when it lives in an unprobed cluster.
func (x *IVF) Search(query []float32, topK int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.centroids == nil {
		return nil, domain.ErrIndexNotInitialized
	}
	if err := domain.CheckDimension(query, x.dim); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if topK <= 0 {
		return nil, nil
	}

	var hits []Hit
	for _, c := range probeOrder(x.centroids, query, x.nProbe) {
		for _, e := range x.lists[c] {
			hits = append(hits, Hit{Distance: domain.Dot(query, e.vec), VectorID: e.id})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance > hits[j].Distance
		}
		return hits[i].VectorID < hits[j].VectorID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// IsTrained reports whether the quantizer exists (after Build or Load).
func (x *IVF) IsTrained() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.centroids != nil
}

// Size returns the number of stored vectors.
func (x *IVF) Size() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.size
}

// NClusters returns the number of clusters, or 0 when untrained.
func (x *IVF) NClusters() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.centroids)
}

// Dimensions returns the vector dimension.
func (x *IVF) Dimensions() int { return x.dim }

// BuildID identifies the last Build or the build that produced a loaded file.
func (x *IVF) BuildID() uuid.UUID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.buildID
}

// probeOrder returns the indices of the n centroids with the highest inner product
// with q, ties broken by lower index.
func probeOrder(centroids [][]float32, q []float32, n int) []int {
	type scored struct {
		idx int
		sim float64
	}
	all := make([]scored, len(centroids))
	for i, c := range centroids {
		all[i] = scored{idx: i, sim: domain.Dot(q, c)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].sim != all[j].sim {
			return all[i].sim > all[j].sim
		}
		return all[i].idx < all[j].idx
	})
	n = min(n, len(all))
	out := make([]int, n)
	for i := range out {
		out[i] = all[i].idx
	}
	return out
}
