// Package pq implements the product-quantization trainer and encoder:
// splits residual vectors into M sub-spaces, trains an independent
// codebook of C centroids per sub-space, and encodes each residual
// into an EncodedVector of M code indices.
//
// Codes are kept as plain uint32 rather than bit-packed, since C is
// caller-chosen and not constrained to a power of two. Per-sub-space
// training delegates to internal/kmeans.
package pq

import (
	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/kmeans"
	"github.com/annstore/annstore/internal/util"
	"github.com/annstore/annstore/internal/vecset"
)

// Codebooks holds the M independently-trained sub-space codebooks.
type Codebooks struct {
	M         int
	SubDim    int
	Codebooks []kmeans.Codebook // length M, each with K=C, Dim=SubDim
}

// EncodedVector is a length-M array of code indices, one per
// sub-space, each in [0, C).
type EncodedVector []uint32

// Train splits residuals (shape N x D) into m sub-spaces of D/m each,
// trains a codebook of c centroids per sub-space, and encodes every
// residual. D must be a multiple of m.
func Train(residuals *vecset.Set, m, c int, cfg kmeans.Config) (Codebooks, []EncodedVector, error) {
	dim := residuals.Dim()
	if m <= 0 || dim%m != 0 {
		return Codebooks{}, nil, annerr.New(annerr.KindInvalidArgument, "pq.Train", nil)
	}
	subDim := dim / m

	books := make([]kmeans.Codebook, m)
	for s := 0; s < m; s++ {
		sub := vecset.Sub(residuals, s*subDim, (s+1)*subDim)
		subCfg := cfg
		subCfg.K = c
		cb, _, err := kmeans.Run(sub, subCfg)
		if err != nil {
			return Codebooks{}, nil, err
		}
		books[s] = cb
	}

	codebooks := Codebooks{M: m, SubDim: subDim, Codebooks: books}

	n := residuals.Len()
	encoded := make([]EncodedVector, n)
	for i := 0; i < n; i++ {
		encoded[i] = Encode(codebooks, residuals.At(i))
	}

	return codebooks, encoded, nil
}

// Encode maps one full-dimension residual vector to its EncodedVector
// by choosing, per sub-space, the centroid index minimizing squared
// Euclidean distance (ties broken by lowest index).
func Encode(cb Codebooks, residual []float32) EncodedVector {
	out := make(EncodedVector, cb.M)
	for s := 0; s < cb.M; s++ {
		sub := residual[s*cb.SubDim : (s+1)*cb.SubDim]
		book := cb.Codebooks[s]
		best := 0
		bestDist := util.SquaredL2(sub, book.Centroids[0])
		for code := 1; code < book.K; code++ {
			d := util.SquaredL2(sub, book.Centroids[code])
			if d < bestDist {
				bestDist = d
				best = code
			}
		}
		out[s] = uint32(best)
	}
	return out
}

// DistanceTable precomputes, for one probed partition's residual query
// q' = q - c_p, the asymmetric distance table T[m][c] = ||q'_m -
// codebook_m[c]||^2 used by the query engine's PQ scan.
func DistanceTable(cb Codebooks, queryResidual []float32) [][]float32 {
	table := make([][]float32, cb.M)
	for s := 0; s < cb.M; s++ {
		sub := queryResidual[s*cb.SubDim : (s+1)*cb.SubDim]
		book := cb.Codebooks[s]
		row := make([]float32, book.K)
		for code := 0; code < book.K; code++ {
			row[code] = util.SquaredL2(sub, book.Centroids[code])
		}
		table[s] = row
	}
	return table
}

// Distance sums the precomputed table entries selected by an
// EncodedVector's codes: the PQ-approximated squared distance.
func Distance(table [][]float32, ev EncodedVector) float32 {
	var sum float32
	for m, code := range ev {
		sum += table[m][code]
	}
	return sum
}
