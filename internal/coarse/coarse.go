// Package coarse implements the coarse partitioner: trains a coarse
// index of P centroids on the full input set, assigns every vector to
// its nearest centroid, and materializes the residual vector set
// consumed by internal/pq.
package coarse

import (
	"github.com/annstore/annstore/internal/kmeans"
	"github.com/annstore/annstore/internal/util"
	"github.com/annstore/annstore/internal/vecset"
)

// Result holds the outcome of Train: the coarse index (a Codebook
// with K=P), the per-input assignment, and the residual vector set of
// the same shape (N, D) as the input.
type Result struct {
	Coarse     kmeans.Codebook
	Assignment []int
	Residuals  *vecset.Set
}

// Train trains a CoarseIndex of p centroids over vs via internal/kmeans
// and computes residuals r_i = x_i - c_{assignment[i]}.
func Train(vs vecset.VectorSet, p int, cfg kmeans.Config) (Result, error) {
	cfg.K = p
	cb, assignment, err := kmeans.Run(vs, cfg)
	if err != nil {
		return Result{}, err
	}

	dim := vs.Dim()
	n := vs.Len()
	residualData := make([]float32, n*dim)
	for i := 0; i < n; i++ {
		dst := residualData[i*dim : (i+1)*dim]
		util.Sub(dst, vs.At(i), cb.Centroids[assignment[i]])
	}

	residuals, err := vecset.New(residualData, dim)
	if err != nil {
		return Result{}, err
	}

	return Result{Coarse: cb, Assignment: assignment, Residuals: residuals}, nil
}

// Assign returns the index of the coarse centroid nearest to v,
// tie-broken by lowest index.
func Assign(coarse kmeans.Codebook, v []float32) int {
	best := 0
	bestDist := util.SquaredL2(v, coarse.Centroids[0])
	for c := 1; c < coarse.K; c++ {
		d := util.SquaredL2(v, coarse.Centroids[c])
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
