package coarse

import (
	"math/rand"
	"testing"

	"github.com/annstore/annstore/internal/kmeans"
	"github.com/annstore/annstore/internal/util"
	"github.com/annstore/annstore/internal/vecset"
)

func TestTrainProducesResidualsMatchingAssignment(t *testing.T) {
	data := []float32{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		10, 10,
		10, 11,
		10, 9,
		11, 10,
	}
	vs, err := vecset.New(data, 2)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Train(vs, 2, kmeans.Config{
		MaxIterations: 50,
		Tolerance:     1e-9,
		Rand:          rand.New(rand.NewSource(11)),
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Residuals.Len() != vs.Len() || res.Residuals.Dim() != vs.Dim() {
		t.Fatalf("residuals shape mismatch: got (%d,%d)", res.Residuals.Len(), res.Residuals.Dim())
	}

	for i := 0; i < vs.Len(); i++ {
		centroid := res.Coarse.Centroids[res.Assignment[i]]
		want := make([]float32, vs.Dim())
		util.Sub(want, vs.At(i), centroid)
		got := res.Residuals.At(i)
		if util.SquaredL2(got, want) > 1e-12 {
			t.Fatalf("residual %d mismatch: got %v, want %v", i, got, want)
		}
	}
}

func TestAssignTieBreaksLowestIndex(t *testing.T) {
	cb := kmeans.Codebook{
		K:   3,
		Dim: 1,
		Centroids: [][]float32{
			{0},
			{0}, // identical to centroid 0: lowest index must win
			{5},
		},
	}
	if got := Assign(cb, []float32{0}); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}
