// Package vecset provides a read-only abstraction over a flat N x D
// scalar buffer.
//
// Two shapes exist: Set owns a dense backing buffer, View borrows a
// sub-range of an outer Set's dimension without copying. Both satisfy
// the same capability interface (Dim/Len/At) consumed by
// internal/kmeans and internal/coarse.
package vecset

import "github.com/annstore/annstore/internal/annerr"

// VectorSet is the capability interface the clustering and
// partitioning stages consume: dim, len, get(i). It is a capability
// interface, not an inheritance hierarchy — Set and View both satisfy
// it independently.
type VectorSet interface {
	Dim() int
	Len() int
	At(i int) []float32
}

// Set is a dense N x D block of float32 scalars. It owns its backing
// buffer and is immutable after construction.
type Set struct {
	dim  int
	data []float32
}

// New builds a Set from a flat buffer. len(data) must be a positive
// multiple of dim.
func New(data []float32, dim int) (*Set, error) {
	if dim < 1 {
		return nil, annerr.New(annerr.KindInvalidArgument, "vecset.New", nil)
	}
	if len(data) == 0 {
		return nil, annerr.New(annerr.KindEmptyData, "vecset.New", nil)
	}
	if len(data)%dim != 0 {
		return nil, annerr.New(annerr.KindDimensionMismatch, "vecset.New", nil)
	}
	return &Set{dim: dim, data: data}, nil
}

// Dim returns D.
func (s *Set) Dim() int { return s.dim }

// Len returns N.
func (s *Set) Len() int { return len(s.data) / s.dim }

// At returns a zero-copy slice of the i-th vector.
func (s *Set) At(i int) []float32 {
	start := i * s.dim
	return s.data[start : start+s.dim : start+s.dim]
}

// Raw returns the backing buffer. Callers must not mutate it; Set is
// documented immutable after construction.
func (s *Set) Raw() []float32 { return s.data }

// View is a zero-copy sub-vector window over an outer Set: the
// dimension range [lo, hi) of every vector in outer, in the outer
// set's original ordering. Used to slice residuals into product
// quantization sub-spaces.
type View struct {
	outer  VectorSet
	lo, hi int
}

// Sub builds a View over [lo, hi) of every vector in outer.
func Sub(outer VectorSet, lo, hi int) View {
	return View{outer: outer, lo: lo, hi: hi}
}

// Dim returns hi - lo.
func (v View) Dim() int { return v.hi - v.lo }

// Len delegates to the outer set.
func (v View) Len() int { return v.outer.Len() }

// At returns a zero-copy slice of the i-th vector's [lo, hi) window.
func (v View) At(i int) []float32 {
	full := v.outer.At(i)
	return full[v.lo:v.hi:v.hi]
}
