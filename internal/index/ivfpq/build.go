// Package ivfpq implements the IVFPQ index builder and query engine:
// coarse partitioning plus per-partition product-quantized vectors,
// searched via a coarse probe followed by an asymmetric-distance PQ
// scan.
package ivfpq

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/attrs"
	"github.com/annstore/annstore/internal/coarse"
	"github.com/annstore/annstore/internal/kmeans"
	"github.com/annstore/annstore/internal/obs"
	"github.com/annstore/annstore/internal/obslog"
	"github.com/annstore/annstore/internal/pq"
	"github.com/annstore/annstore/internal/vecset"
)

// Config controls a Build call. Use DefaultConfig and the With*
// options below rather than constructing it directly.
type Config struct {
	Partitions    int
	Divisions     int
	Codes         int
	MaxIterations int
	Tolerance     float64
	Rand          *rand.Rand
	Sink          kmeans.EventSink
	Metrics       *obs.Metrics
	Logger        *obslog.Logger
}

// Option configures a Config field; used with Build.
type Option func(*Config) error

// DefaultConfig returns the baseline configuration: 100 max
// iterations, 1e-6 tolerance, the default RNG, no event sink, and
// Partitions/Divisions/Codes left at zero (callers must set them via
// WithPartitions/WithDivisions/WithClusters).
func DefaultConfig() Config {
	return Config{MaxIterations: 100, Tolerance: 1e-6}
}

// WithPartitions sets P, the number of coarse centroids.
func WithPartitions(p int) Option {
	return func(c *Config) error {
		if p <= 0 {
			return annerr.New(annerr.KindInvalidArgument, "ivfpq.WithPartitions", nil)
		}
		c.Partitions = p
		return nil
	}
}

// WithDivisions sets M, the number of PQ sub-spaces.
func WithDivisions(m int) Option {
	return func(c *Config) error {
		if m <= 0 {
			return annerr.New(annerr.KindInvalidArgument, "ivfpq.WithDivisions", nil)
		}
		c.Divisions = m
		return nil
	}
}

// WithClusters sets C, the number of codes per PQ sub-space codebook.
func WithClusters(cCodes int) Option {
	return func(c *Config) error {
		if cCodes <= 0 {
			return annerr.New(annerr.KindInvalidArgument, "ivfpq.WithClusters", nil)
		}
		c.Codes = cCodes
		return nil
	}
}

// WithMaxIterations overrides the k-means iteration budget.
func WithMaxIterations(i int) Option {
	return func(c *Config) error {
		if i <= 0 {
			return annerr.New(annerr.KindInvalidArgument, "ivfpq.WithMaxIterations", nil)
		}
		c.MaxIterations = i
		return nil
	}
}

// WithTolerance overrides the k-means convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(c *Config) error {
		if tol < 0 {
			return annerr.New(annerr.KindInvalidArgument, "ivfpq.WithTolerance", nil)
		}
		c.Tolerance = tol
		return nil
	}
}

// WithRand overrides the RNG used for k-means++ seeding and respawn.
func WithRand(rng *rand.Rand) Option {
	return func(c *Config) error {
		c.Rand = rng
		return nil
	}
}

// WithEventSink installs a progress sink forwarded to the k-means
// engine during both the coarse and PQ training stages.
func WithEventSink(sink kmeans.EventSink) Option {
	return func(c *Config) error {
		c.Sink = sink
		return nil
	}
}

// WithMetrics installs a metrics sink. A nil Metrics (the default) is
// always safe and records nothing.
func WithMetrics(m *obs.Metrics) Option {
	return func(c *Config) error {
		c.Metrics = m
		return nil
	}
}

// WithLogger installs a structured logger. A nil Logger (the default)
// is always safe and logs nothing.
func WithLogger(l *obslog.Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}

// Partition holds one coarse cluster's vectors in the original input
// insertion order.
type Partition struct {
	Centroid  []float32
	VectorIDs []uuid.UUID
	Codes     []pq.EncodedVector
	Attrs     attrs.Log
}

// Built is the in-memory index produced by Build.
type Built struct {
	Dim        int
	Coarse     kmeans.Codebook
	PQ         pq.Codebooks
	Partitions []Partition
	Names      *attrs.NameTable
	// InputIDs[i] is the VectorId assigned to the i-th vector of the
	// VectorSet passed to Build.
	InputIDs []uuid.UUID
	// index maps a VectorId to its (partition, position within
	// partition) for SetAttributeAt.
	index map[uuid.UUID]vectorLocation
}

type vectorLocation struct {
	partition int
	position  int
}

// Build orchestrates coarse partitioning then PQ training/encoding
// over vs, assigning a fresh UUID v4 to every input vector.
func Build(ctx context.Context, vs *vecset.Set, opts ...Option) (*Built, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Partitions <= 0 || cfg.Divisions <= 0 || cfg.Codes <= 0 {
		return nil, annerr.New(annerr.KindInvalidArgument, "ivfpq.Build", nil)
	}

	start := time.Now()
	cfg.Logger.Info("build started", map[string]any{
		"n": vs.Len(), "dim": vs.Dim(), "partitions": cfg.Partitions,
		"divisions": cfg.Divisions, "codes": cfg.Codes,
	})
	defer func() { cfg.Metrics.BuildObserved(time.Since(start)) }()

	kmCfg := kmeans.Config{
		MaxIterations: cfg.MaxIterations,
		Tolerance:     cfg.Tolerance,
		Rand:          cfg.Rand,
		Sink:          cfg.Sink,
	}

	coarseResult, err := coarse.Train(vs, cfg.Partitions, kmCfg)
	if err != nil {
		return nil, err
	}

	pqCodebooks, encoded, err := pq.Train(coarseResult.Residuals, cfg.Divisions, cfg.Codes, kmCfg)
	if err != nil {
		return nil, err
	}

	n := vs.Len()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}

	partitions := make([]Partition, cfg.Partitions)
	for p := range partitions {
		partitions[p].Centroid = coarseResult.Coarse.Centroids[p]
	}

	index := make(map[uuid.UUID]vectorLocation, n)
	for i := 0; i < n; i++ {
		p := coarseResult.Assignment[i]
		pos := len(partitions[p].VectorIDs)
		partitions[p].VectorIDs = append(partitions[p].VectorIDs, ids[i])
		partitions[p].Codes = append(partitions[p].Codes, encoded[i])
		index[ids[i]] = vectorLocation{partition: p, position: pos}
	}

	cfg.Logger.Info("build completed", map[string]any{"duration": time.Since(start)})

	return &Built{
		Dim:        vs.Dim(),
		Coarse:     coarseResult.Coarse,
		PQ:         pqCodebooks,
		Partitions: partitions,
		Names:      attrs.NewNameTable(),
		InputIDs:   ids,
		index:      index,
	}, nil
}

// SetAttributeAt resolves vectorID to its partition, interns name,
// and appends a SetAttribute entry to that partition's log. A vectorID
// that Build did not assign fails with KindInvalidContext; use
// VectorIDAt to turn an input index into a vectorID.
func (b *Built) SetAttributeAt(vectorID uuid.UUID, name string, value attrs.Value) error {
	loc, ok := b.index[vectorID]
	if !ok {
		return annerr.New(annerr.KindInvalidContext, "ivfpq.Built.SetAttributeAt", nil)
	}
	nameIdx := b.Names.Intern(name)
	b.Partitions[loc.partition].Attrs.Append(vectorID, nameIdx, value)
	return nil
}

// VectorIDAt returns the VectorId assigned to input index i, for
// callers that built from a VectorSet and want to attach attributes
// by position.
func (b *Built) VectorIDAt(i int) (uuid.UUID, bool) {
	if i < 0 || i >= len(b.InputIDs) {
		return uuid.UUID{}, false
	}
	return b.InputIDs[i], true
}
