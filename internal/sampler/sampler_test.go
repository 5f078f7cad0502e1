package sampler

import (
	"math/rand"
	"testing"

	"github.com/annstore/annstore/internal/annerr"
)

func TestNewRejectsDegenerateInputs(t *testing.T) {
	if _, err := New(nil); !annerr.Is(err, annerr.KindEmptyDistribution) {
		t.Fatalf("expected EmptyDistribution, got %v", err)
	}
	if _, err := New([]float64{0, 0, 0}); !annerr.Is(err, annerr.KindEmptyDistribution) {
		t.Fatalf("expected EmptyDistribution, got %v", err)
	}
}

func TestSampleRespectsWeights(t *testing.T) {
	// Weight index 2 overwhelmingly; it should dominate draws.
	s, err := New([]float64{1, 1, 1000})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))

	counts := make(map[int]int)
	for i := 0; i < 2000; i++ {
		counts[s.Sample(rng)]++
	}
	if counts[2] < 1800 {
		t.Fatalf("expected index 2 to dominate, got counts %v", counts)
	}
}

func TestSampleSingleWeight(t *testing.T) {
	s, err := New([]float64{5})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		if got := s.Sample(rng); got != 0 {
			t.Fatalf("got %d, want 0", got)
		}
	}
}
