// Package kmeans implements k-means++ initialization followed by
// Lloyd iteration, shared by the coarse partitioner (internal/coarse)
// and the product-quantization trainer (internal/pq).
package kmeans

import (
	"math/rand"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/sampler"
	"github.com/annstore/annstore/internal/util"
	"github.com/annstore/annstore/internal/vecset"
)

// Codebook holds K centroids of dimension D'.
type Codebook struct {
	K   int
	Dim int
	// Centroids[i] is the i-th centroid, length Dim.
	Centroids [][]float32
}

// EventKind identifies a progress event emitted during Run.
type EventKind int

const (
	Initialized EventKind = iota
	IterationCompleted
	Converged
	MaxIterationsReached
)

// Event is pushed into an EventSink during Run.
type Event struct {
	Kind EventKind
	Iter int
	Shift float64
}

// EventSink receives progress events. A nil sink is valid and silently
// discards events.
type EventSink func(Event)

// Config configures a Run.
type Config struct {
	K             int
	MaxIterations int
	Tolerance     float64
	Rand          *rand.Rand
	Sink          EventSink
}

// Run executes k-means++ init then Lloyd iteration over vs, producing
// exactly K centroids and never leaving an empty cluster in the final
// result. assignment[i] is the cluster index chosen for vs.At(i).
func Run(vs vecset.VectorSet, cfg Config) (Codebook, []int, error) {
	n := vs.Len()
	if n == 0 {
		return Codebook{}, nil, annerr.New(annerr.KindEmptyData, "kmeans.Run", nil)
	}
	if cfg.K <= 0 {
		return Codebook{}, nil, annerr.New(annerr.KindInvalidArgument, "kmeans.Run", nil)
	}
	if cfg.K > n {
		return Codebook{}, nil, annerr.New(annerr.KindKExceedsN, "kmeans.Run", nil)
	}
	dim := vs.Dim()
	for i := 0; i < n; i++ {
		if !util.AllFinite(vs.At(i)) {
			return Codebook{}, nil, annerr.New(annerr.KindNonFinite, "kmeans.Run", nil)
		}
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	centroids, err := initPlusPlus(vs, cfg.K, rng)
	if err != nil {
		return Codebook{}, nil, err
	}
	emit(cfg.Sink, Event{Kind: Initialized})

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}

	assignment := make([]int, n)
	converged := false

	for iter := 0; iter < maxIter; iter++ {
		for i := 0; i < n; i++ {
			assignment[i] = nearest(vs.At(i), centroids)
		}

		newCentroids, counts := recomputeCentroids(vs, assignment, cfg.K, dim)

		for c := 0; c < cfg.K; c++ {
			if counts[c] == 0 {
				if err := respawnEmpty(vs, assignment, centroids, newCentroids, c, rng); err != nil {
					return Codebook{}, nil, err
				}
			}
		}

		shift := 0.0
		for c := 0; c < cfg.K; c++ {
			d := util.SquaredL2(centroids[c], newCentroids[c])
			shift += float64(d)
		}
		centroids = newCentroids

		emit(cfg.Sink, Event{Kind: IterationCompleted, Iter: iter, Shift: shift})

		if shift <= cfg.Tolerance {
			converged = true
			break
		}
	}

	if converged {
		emit(cfg.Sink, Event{Kind: Converged})
	} else {
		emit(cfg.Sink, Event{Kind: MaxIterationsReached})
	}

	// Final assignment pass so the returned assignment matches the
	// returned centroids exactly.
	for i := 0; i < n; i++ {
		assignment[i] = nearest(vs.At(i), centroids)
	}

	return Codebook{K: cfg.K, Dim: dim, Centroids: centroids}, assignment, nil
}

func emit(sink EventSink, ev Event) {
	if sink != nil {
		sink(ev)
	}
}

// nearest returns the index of the centroid closest to v by squared
// L2, tie-broken by lowest index.
func nearest(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := util.SquaredL2(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		d := util.SquaredL2(v, centroids[c])
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// initPlusPlus implements k-means++ seeding: the first centroid
// uniformly at random, each subsequent centroid sampled proportional
// to its squared distance to the nearest already-picked centroid via
// internal/sampler.
func initPlusPlus(vs vecset.VectorSet, k int, rng *rand.Rand) ([][]float32, error) {
	n := vs.Len()
	centroids := make([][]float32, k)

	first := rng.Intn(n)
	centroids[0] = cloneVec(vs.At(first))

	minDist := make([]float64, n)
	for picked := 1; picked < k; picked++ {
		for i := 0; i < n; i++ {
			d := util.SquaredL2(vs.At(i), centroids[picked-1])
			if picked == 1 || float64(d) < minDist[i] {
				minDist[i] = float64(d)
			}
		}

		samp, err := sampler.New(append([]float64(nil), minDist...))
		if err != nil {
			// All remaining points coincide with picked centroids;
			// fall back to the lowest-index unpicked point.
			centroids[picked] = cloneVec(vs.At(pickLowestIndex(vs, centroids[:picked])))
			continue
		}
		idx := samp.Sample(rng)
		centroids[picked] = cloneVec(vs.At(idx))
	}

	return centroids, nil
}

func pickLowestIndex(vs vecset.VectorSet, picked [][]float32) int {
	for i := 0; i < vs.Len(); i++ {
		dup := false
		for _, c := range picked {
			if util.SquaredL2(vs.At(i), c) == 0 {
				dup = true
				break
			}
		}
		if !dup {
			return i
		}
	}
	return 0
}

func recomputeCentroids(vs vecset.VectorSet, assignment []int, k, dim int) ([][]float32, []int) {
	sums := make([][]float32, k)
	counts := make([]int, k)
	for c := 0; c < k; c++ {
		sums[c] = make([]float32, dim)
	}

	for i, c := range assignment {
		counts[c]++
		v := vs.At(i)
		for d := 0; d < dim; d++ {
			sums[c][d] += v[d]
		}
	}

	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			inv := 1 / float32(counts[c])
			for d := 0; d < dim; d++ {
				sums[c][d] *= inv
			}
		}
	}

	return sums, counts
}

// respawnEmpty reinitializes an empty cluster c at a point sampled
// proportional to its current squared distance to its assigned
// centroid, the same rule as init.
func respawnEmpty(vs vecset.VectorSet, assignment []int, oldCentroids, newCentroids [][]float32, c int, rng *rand.Rand) error {
	n := vs.Len()
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		a := assignment[i]
		d := util.SquaredL2(vs.At(i), oldCentroids[a])
		weights[i] = float64(d)
	}

	samp, err := sampler.New(weights)
	if err != nil {
		// Every point is exactly on its centroid; respawn at point 0.
		copy(newCentroids[c], vs.At(0))
		return nil
	}
	idx := samp.Sample(rng)
	copy(newCentroids[c], vs.At(idx))
	return nil
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
