package kmeans

import (
	"math"
	"math/rand"
	"testing"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/util"
	"github.com/annstore/annstore/internal/vecset"
)

func mustSet(t *testing.T, data []float32, dim int) *vecset.Set {
	t.Helper()
	s, err := vecset.New(data, dim)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTinyKMeansTwoWellSeparatedClusters(t *testing.T) {
	data := []float32{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		10, 10,
		10, 11,
	}
	vs := mustSet(t, data, 2)

	cb, assignment, err := Run(vs, Config{
		K:             2,
		MaxIterations: 100,
		Tolerance:     1e-9,
		Rand:          rand.New(rand.NewSource(7)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cb.K != 2 {
		t.Fatalf("got K=%d, want 2", cb.K)
	}

	// Figure out which label corresponds to which cluster.
	loLabel := assignment[0]
	hiLabel := assignment[4]
	if loLabel == hiLabel {
		t.Fatalf("expected two distinct labels, got same label %d for both clusters", loLabel)
	}
	want := []int{loLabel, loLabel, loLabel, loLabel, hiLabel, hiLabel}
	for i, w := range want {
		if assignment[i] != w {
			t.Fatalf("assignment mismatch at %d: got %v, want %v", i, assignment, want)
		}
	}

	loCentroid := cb.Centroids[loLabel]
	hiCentroid := cb.Centroids[hiLabel]
	if d := util.SquaredL2(loCentroid, []float32{0.5, 0.5}); d > 0.1 {
		t.Fatalf("low centroid %v not near (0.5,0.5)", loCentroid)
	}
	if d := util.SquaredL2(hiCentroid, []float32{10, 10.5}); d > 0.1 {
		t.Fatalf("high centroid %v not near (10,10.5)", hiCentroid)
	}
}

func TestRunRejectsDegenerateInputs(t *testing.T) {
	vs := mustSet(t, []float32{1, 2, 3, 4}, 2)

	if _, _, err := Run(vs, Config{K: 3}); !annerr.Is(err, annerr.KindKExceedsN) {
		t.Fatalf("expected KExceedsN, got %v", err)
	}
	if _, _, err := Run(vs, Config{K: 0}); !annerr.Is(err, annerr.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	nanSet := mustSet(t, []float32{1, 2, float32(math.NaN()), 4}, 2)
	if _, _, err := Run(nanSet, Config{K: 1}); !annerr.Is(err, annerr.KindNonFinite) {
		t.Fatalf("expected NonFinite, got %v", err)
	}
}

func TestRunNeverLeavesEmptyCluster(t *testing.T) {
	// Many duplicate points and a single outlier: naive Lloyd
	// iteration would strand a cluster with zero members.
	data := make([]float32, 0, 40)
	for i := 0; i < 19; i++ {
		data = append(data, 0, 0)
	}
	data = append(data, 100, 100)

	vs := mustSet(t, data, 2)
	cb, assignment, err := Run(vs, Config{
		K:             3,
		MaxIterations: 50,
		Tolerance:     1e-9,
		Rand:          rand.New(rand.NewSource(3)),
	})
	if err != nil {
		t.Fatal(err)
	}

	counts := make([]int, cb.K)
	for _, a := range assignment {
		counts[a]++
	}
	for c, n := range counts {
		if n == 0 {
			t.Fatalf("cluster %d left empty: counts=%v", c, counts)
		}
	}
}
