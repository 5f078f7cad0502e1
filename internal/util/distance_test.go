package util

import (
	"math"
	"testing"
)

func TestSquaredL2(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}
	if got := SquaredL2(a, b); got != 25 {
		t.Fatalf("got %v, want 25", got)
	}
}

func TestAllFinite(t *testing.T) {
	if !AllFinite([]float32{1, 2, 3}) {
		t.Fatal("expected finite")
	}
	if AllFinite([]float32{1, float32(math.NaN())}) {
		t.Fatal("expected non-finite")
	}
	if AllFinite([]float32{1, float32(math.Inf(1))}) {
		t.Fatal("expected non-finite")
	}
}

func TestSub(t *testing.T) {
	dst := make([]float32, 3)
	Sub(dst, []float32{5, 5, 5}, []float32{1, 2, 3})
	want := []float32{4, 3, 2}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("got %v, want %v", dst, want)
		}
	}
}
