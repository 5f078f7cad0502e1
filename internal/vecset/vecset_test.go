package vecset

import "testing"

func TestNewValidatesShape(t *testing.T) {
	if _, err := New(nil, 4); err == nil {
		t.Fatal("expected EmptyData error")
	}
	if _, err := New([]float32{1, 2, 3}, 4); err == nil {
		t.Fatal("expected DimensionMismatch error")
	}
	if _, err := New([]float32{1, 2}, 0); err == nil {
		t.Fatal("expected InvalidArgument error")
	}
}

func TestSetAtIsZeroCopy(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	s, err := New(data, 2)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 || s.Dim() != 2 {
		t.Fatalf("got len=%d dim=%d", s.Len(), s.Dim())
	}

	v := s.At(1)
	if v[0] != 3 || v[1] != 4 {
		t.Fatalf("unexpected vector %v", v)
	}
	v[0] = 99
	if data[2] != 99 {
		t.Fatal("At must return a zero-copy slice into the backing array")
	}
}

func TestSubViewPreservesOuterOrdering(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	s, err := New(data, 4)
	if err != nil {
		t.Fatal(err)
	}

	v := Sub(s, 2, 4)
	if v.Dim() != 2 || v.Len() != 2 {
		t.Fatalf("got dim=%d len=%d", v.Dim(), v.Len())
	}
	if got := v.At(0); got[0] != 3 || got[1] != 4 {
		t.Fatalf("unexpected sub-vector 0: %v", got)
	}
	if got := v.At(1); got[0] != 7 || got[1] != 8 {
		t.Fatalf("unexpected sub-vector 1: %v", got)
	}
}
