// Package anndb is the public API: build an index from vectors, attach
// attributes, serialize it to a content-addressed blob store, and
// reload/query it later without holding the whole corpus in memory at
// once.
package anndb

import (
	"context"
	"math/rand"

	"github.com/google/uuid"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/attrs"
	"github.com/annstore/annstore/internal/index/ivfpq"
	"github.com/annstore/annstore/internal/obs"
	"github.com/annstore/annstore/internal/obslog"
	"github.com/annstore/annstore/internal/vecset"
)

// Option configures a Build call.
type Option = ivfpq.Option

// WithPartitions sets P, the number of coarse centroids.
func WithPartitions(p int) Option { return ivfpq.WithPartitions(p) }

// WithDivisions sets M, the number of PQ sub-spaces.
func WithDivisions(m int) Option { return ivfpq.WithDivisions(m) }

// WithClusters sets C, the number of codes per PQ sub-space codebook.
func WithClusters(c int) Option { return ivfpq.WithClusters(c) }

// WithMaxIterations overrides the k-means iteration budget.
func WithMaxIterations(i int) Option { return ivfpq.WithMaxIterations(i) }

// WithTolerance overrides the k-means convergence tolerance.
func WithTolerance(tol float64) Option { return ivfpq.WithTolerance(tol) }

// WithRand overrides the RNG used for k-means++ seeding and respawn.
func WithRand(rng *rand.Rand) Option { return ivfpq.WithRand(rng) }

// WithMetrics installs a metrics sink for Build's duration.
func WithMetrics(m *obs.Metrics) Option { return ivfpq.WithMetrics(m) }

// WithLogger installs a structured logger for Build's progress.
func WithLogger(l *obslog.Logger) Option { return ivfpq.WithLogger(l) }

// BuiltDatabase is an in-memory index ready to be queried or
// serialized.
type BuiltDatabase struct {
	built *ivfpq.Built
}

// Build trains a coarse partitioning and PQ codebooks over vs and
// assigns a fresh vector ID to every row.
func Build(ctx context.Context, vs *vecset.Set, opts ...Option) (*BuiltDatabase, error) {
	built, err := ivfpq.Build(ctx, vs, opts...)
	if err != nil {
		return nil, err
	}
	return &BuiltDatabase{built: built}, nil
}

// VectorSize returns D.
func (b *BuiltDatabase) VectorSize() int { return b.built.Dim }

// SetAttributeAt attaches name=value to the vector at input index
// vectorIndex (its position in the VectorSet passed to Build).
func (b *BuiltDatabase) SetAttributeAt(vectorIndex int, name string, value attrs.Value) error {
	id, ok := b.built.VectorIDAt(vectorIndex)
	if !ok {
		return annerr.New(annerr.KindInvalidArgument, "anndb.BuiltDatabase.SetAttributeAt", nil)
	}
	return b.built.SetAttributeAt(id, name, value)
}

// Query answers a k-NN query against the in-memory index, returning
// the k nearest vectors among nprobe probed coarse partitions.
func (b *BuiltDatabase) Query(q []float32, k, nprobe int) ([]ivfpq.QueryResult, error) {
	return b.built.Query(q, k, nprobe)
}

// GetAttribute looks up an attribute on a result produced by Query.
func (b *BuiltDatabase) GetAttribute(result ivfpq.QueryResult, name string) (attrs.Value, bool) {
	return b.built.GetAttribute(result, name)
}

// VectorIDAt returns the vector ID assigned to input index i.
func (b *BuiltDatabase) VectorIDAt(i int) (uuid.UUID, bool) {
	return b.built.VectorIDAt(i)
}
