package index

import (
	"math"
	"math/rand/v2"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// trainSpherical clusters vecs into k unit-norm centroids maximizing inner product.
// The result depends only on vecs, k, maxIter and seed.
func trainSpherical(vecs [][]float32, k, maxIter int, seed uint64) [][]float32 {
	dim := len(vecs[0])
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	centroids := make([][]float32, k)
	for i, p := range rng.Perm(len(vecs))[:k] {
		centroids[i] = unitCopy(vecs[p])
	}

	assign := make([]int, len(vecs))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vecs {
			c := nearest(centroids, v)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range vecs {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}

		for c := range centroids {
			if counts[c] == 0 {
				// Reseed from the point worst served by its current centroid.
				p := worstServed(vecs, centroids, assign)
				centroids[c] = unitCopy(vecs[p])
				assign[p] = c
				continue
			}
			if next := unitFrom(sums[c]); next != nil {
				centroids[c] = next
			}
		}
	}
	return centroids
}

// nearest returns the index of the centroid with the highest inner product with v.
func nearest(centroids [][]float32, v []float32) int {
	best, bestSim := 0, math.Inf(-1)
	for i, c := range centroids {
		if s := domain.Dot(v, c); s > bestSim {
			best, bestSim = i, s
		}
	}
	return best
}

func worstServed(vecs, centroids [][]float32, assign []int) int {
	worst, worstSim := 0, math.Inf(1)
	for i, v := range vecs {
		if s := domain.Dot(v, centroids[assign[i]]); s < worstSim {
			worst, worstSim = i, s
		}
	}
	return worst
}

func unitCopy(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return domain.Normalize(out)
}

// unitFrom returns sum scaled to unit length, or nil for a zero sum.
func unitFrom(sum []float64) []float32 {
	var n float64
	for _, x := range sum {
		n += x * x
	}
	if n == 0 {
		return nil
	}
	inv := 1 / math.Sqrt(n)
	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x * inv)
	}
	return out
}
