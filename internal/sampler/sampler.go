// Package sampler implements a discrete weighted sampler, used by
// internal/kmeans for k-means++ seeding and empty-cluster respawn.
//
// Sampling is roulette-wheel selection: a cumulative-sum prefix over
// weights, thresholded by one uniform draw per sample.
package sampler

import (
	"math/rand"
	"sort"

	"github.com/annstore/annstore/internal/annerr"
)

// Sampler draws indices from a fixed discrete distribution in O(log K)
// after O(K) preprocessing.
type Sampler struct {
	prefix []float64 // prefix[i] = sum(w[0..i])
}

// New builds a Sampler over non-negative weights w. Fails with
// KindEmptyDistribution if w is empty or its sum is not positive.
func New(w []float64) (*Sampler, error) {
	if len(w) == 0 {
		return nil, annerr.New(annerr.KindEmptyDistribution, "sampler.New", nil)
	}

	prefix := make([]float64, len(w))
	var sum float64
	for i, wi := range w {
		sum += wi
		prefix[i] = sum
	}
	if sum <= 0 {
		return nil, annerr.New(annerr.KindEmptyDistribution, "sampler.New", nil)
	}

	return &Sampler{prefix: prefix}, nil
}

// Sample draws an index with probability w[i]/sum(w), using rng for
// the single uniform draw.
func (s *Sampler) Sample(rng *rand.Rand) int {
	total := s.prefix[len(s.prefix)-1]
	target := rng.Float64() * total
	i := sort.Search(len(s.prefix), func(i int) bool { return s.prefix[i] > target })
	if i >= len(s.prefix) {
		i = len(s.prefix) - 1
	}
	return i
}
