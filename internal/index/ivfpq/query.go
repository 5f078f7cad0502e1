package ivfpq

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/attrs"
	"github.com/annstore/annstore/internal/codec"
	"github.com/annstore/annstore/internal/kmeans"
	"github.com/annstore/annstore/internal/obs"
	"github.com/annstore/annstore/internal/obslog"
	"github.com/annstore/annstore/internal/pq"
	"github.com/annstore/annstore/internal/store"
	"github.com/annstore/annstore/internal/topn"
	"github.com/annstore/annstore/internal/util"
)

// QueryResult is one ranked hit.
type QueryResult struct {
	VectorID        uuid.UUID
	PartitionIndex  int
	SquaredDistance float32
}

// partitionSource abstracts over an in-memory Built (direct slice
// index) and a Loaded database (lazy, cached load) so both can share
// one search core.
type partitionSource func(p int) (*Partition, error)

// search runs the coarse probe, per-partition asymmetric distance
// scan, and N-best merge shared by Built.Query and Loaded.Query.
func search(dim int, coarseCb kmeans.Codebook, pqcb pq.Codebooks, get partitionSource, q []float32, k, nprobe int) ([]QueryResult, error) {
	if len(q) != dim {
		return nil, annerr.New(annerr.KindDimensionMismatch, "ivfpq.search", nil)
	}
	if k <= 0 {
		return nil, annerr.New(annerr.KindInvalidArgument, "ivfpq.search", nil)
	}
	p := coarseCb.K
	if nprobe <= 0 || nprobe > p {
		return nil, annerr.New(annerr.KindInvalidArgument, "ivfpq.search", nil)
	}

	probe := topn.New(nprobe)
	for c := 0; c < p; c++ {
		d := util.SquaredL2(q, coarseCb.Centroids[c])
		probe.Push(d, c)
	}
	probed := probe.IntoSorted()

	selector := topn.New(k)
	for _, cand := range probed {
		partitionIdx := cand.Value.(int)
		part, err := get(partitionIdx)
		if err != nil {
			return nil, err
		}

		residual := make([]float32, dim)
		util.Sub(residual, q, part.Centroid)
		table := pq.DistanceTable(pqcb, residual)

		for i, code := range part.Codes {
			dist := pq.Distance(table, code)
			selector.Push(dist, queryHit{vectorID: part.VectorIDs[i], partition: partitionIdx})
		}
	}

	ranked := selector.IntoSorted()
	out := make([]QueryResult, len(ranked))
	for i, c := range ranked {
		hit := c.Value.(queryHit)
		out[i] = QueryResult{VectorID: hit.vectorID, PartitionIndex: hit.partition, SquaredDistance: c.Key}
	}
	return out, nil
}

type queryHit struct {
	vectorID  uuid.UUID
	partition int
}

// Query answers a k-NN query against the in-memory index.
func (b *Built) Query(q []float32, k, nprobe int) ([]QueryResult, error) {
	total := 0
	for _, p := range b.Partitions {
		total += len(p.VectorIDs)
	}
	if total == 0 {
		return nil, annerr.New(annerr.KindInvalidContext, "ivfpq.Built.Query", nil)
	}
	if k > total {
		return nil, annerr.New(annerr.KindInvalidArgument, "ivfpq.Built.Query", nil)
	}
	return search(b.Dim, b.Coarse, b.PQ, func(p int) (*Partition, error) {
		return &b.Partitions[p], nil
	}, q, k, nprobe)
}

// GetAttribute resolves name through names, then scans the owning
// partition's log newest-to-oldest for (vectorID, nameIndex). ok is
// false if name is unknown or no entry exists.
func GetAttribute(names *attrs.NameTable, log *attrs.Log, vectorID uuid.UUID, name string) (attrs.Value, bool) {
	idx, ok := names.Lookup(name)
	if !ok {
		return attrs.Value{}, false
	}
	return log.Lookup(vectorID, idx)
}

// GetAttribute looks up an attribute on a result produced by this
// Built index.
func (b *Built) GetAttribute(result QueryResult, name string) (attrs.Value, bool) {
	return GetAttribute(b.Names, &b.Partitions[result.PartitionIndex].Attrs, result.VectorID, name)
}

// Loaded is a database reloaded from content-addressed storage.
// Centroids and codebooks are eager; partitions and attribute logs
// are loaded lazily and cached per reference ID.
type Loaded struct {
	dim            int
	coarse         kmeans.Codebook
	pqcb           pq.Codebooks
	partitionRefs  []string
	attrsLogRefs   []string
	totalVectors   int
	names          *attrs.NameTable
	blobs          store.BlobStore
	partitionCache *store.Cache[*Partition]
	attrsCache     *store.Cache[*attrs.Log]
	metrics        *obs.Metrics
	logger         *obslog.Logger
}

// SetMetrics installs a metrics sink, also wiring it into the
// partition and attribute-log caches' hit/miss counters. A nil
// Metrics is always safe and records nothing.
func (l *Loaded) SetMetrics(m *obs.Metrics) {
	l.metrics = m
	l.partitionCache.Metrics = m
	l.attrsCache.Metrics = m
}

// SetLogger installs a structured logger. A nil Logger is always safe
// and logs nothing.
func (l *Loaded) SetLogger(log *obslog.Logger) {
	l.logger = log
}

// NewLoaded constructs a Loaded database from its eagerly-parsed
// manifest parts. Callers in package anndb perform the manifest and
// codebook decode and hand the results here. totalVectors is the sum
// of every partition's vector count, used to reject k > total without
// eagerly fetching every partition.
func NewLoaded(dim int, coarseCb kmeans.Codebook, pqcb pq.Codebooks, partitionRefs, attrsLogRefs []string, totalVectors int, names *attrs.NameTable, blobs store.BlobStore) *Loaded {
	return &Loaded{
		dim:            dim,
		coarse:         coarseCb,
		pqcb:           pqcb,
		partitionRefs:  partitionRefs,
		attrsLogRefs:   attrsLogRefs,
		totalVectors:   totalVectors,
		names:          names,
		blobs:          blobs,
		partitionCache: store.NewCache[*Partition](),
		attrsCache:     store.NewCache[*attrs.Log](),
	}
}

// VectorSize returns D.
func (l *Loaded) VectorSize() int { return l.dim }

func (l *Loaded) readAll(ctx context.Context, ref string) ([]byte, error) {
	r, err := l.blobs.OpenHashedIn(ctx, ref)
	if err != nil {
		if annerr.Is(err, annerr.KindDigestMismatch) {
			l.metrics.DigestMismatch()
		}
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		if annerr.Is(err, annerr.KindDigestMismatch) {
			l.metrics.DigestMismatch()
			return nil, err
		}
		return nil, annerr.New(annerr.KindIoError, "ivfpq.Loaded", err)
	}
	return data, nil
}

func (l *Loaded) loadPartition(ctx context.Context, p int) (*Partition, error) {
	if p < 0 || p >= len(l.partitionRefs) {
		return nil, annerr.New(annerr.KindInvalidArgument, "ivfpq.Loaded.loadPartition", nil)
	}
	ref := l.partitionRefs[p]
	return l.partitionCache.Get(ref, func() (*Partition, error) {
		l.metrics.PartitionLoaded()
		l.logger.Debug("loading partition", map[string]any{"partition": p})
		data, err := l.readAll(ctx, ref)
		if err != nil {
			return nil, err
		}
		cp, err := codec.UnmarshalPartition(data)
		if err != nil {
			return nil, err
		}
		return fromCodecPartition(cp), nil
	})
}

func fromCodecPartition(cp codec.Partition) *Partition {
	vectorIDs := make([]uuid.UUID, len(cp.VectorIDs))
	for i, id := range cp.VectorIDs {
		vectorIDs[i] = uuidFromCodec(id)
	}
	m := int(cp.EncodedVectors.VectorSize)
	codes := make([]pq.EncodedVector, 0, len(vectorIDs))
	for i := 0; i < len(vectorIDs); i++ {
		codes = append(codes, pq.EncodedVector(cp.EncodedVectors.Data[i*m:(i+1)*m]))
	}
	return &Partition{
		Centroid:  cp.Centroid,
		VectorIDs: vectorIDs,
		Codes:     codes,
	}
}

func uuidFromCodec(id codec.Uuid) uuid.UUID {
	var out uuid.UUID
	for i := 0; i < 8; i++ {
		out[i] = byte(id.Upper >> (56 - 8*i))
		out[8+i] = byte(id.Lower >> (56 - 8*i))
	}
	return out
}

func uuidToCodec(id uuid.UUID) codec.Uuid {
	var upper, lower uint64
	for i := 0; i < 8; i++ {
		upper = upper<<8 | uint64(id[i])
		lower = lower<<8 | uint64(id[8+i])
	}
	return codec.Uuid{Upper: upper, Lower: lower}
}

// loadAttrs loads (or returns cached) partition p's attribute
// log.
func (l *Loaded) loadAttrs(ctx context.Context, p int) (*attrs.Log, error) {
	if p < 0 || p >= len(l.attrsLogRefs) {
		return nil, annerr.New(annerr.KindInvalidArgument, "ivfpq.Loaded.loadAttrs", nil)
	}
	ref := l.attrsLogRefs[p]
	return l.attrsCache.Get(ref, func() (*attrs.Log, error) {
		data, err := l.readAll(ctx, ref)
		if err != nil {
			return nil, err
		}
		cl, err := codec.UnmarshalAttributesLog(data)
		if err != nil {
			return nil, err
		}
		log := &attrs.Log{Entries: make([]attrs.SetAttribute, len(cl.Entries))}
		for i, e := range cl.Entries {
			log.Entries[i] = attrs.SetAttribute{
				VectorID:  uuidFromCodec(e.VectorID),
				NameIndex: e.NameIndex,
				Value:     fromCodecValue(e.Value),
			}
		}
		return log, nil
	})
}

func fromCodecValue(v codec.AttributeValue) attrs.Value {
	if v.HasString {
		return attrs.String(v.String)
	}
	return attrs.Uint64Value(v.Uint64)
}

// Query answers a k-NN query against a loaded database, lazily
// loading (and caching) every probed partition.
func (l *Loaded) Query(ctx context.Context, q []float32, k, nprobe int) ([]QueryResult, error) {
	if len(l.partitionRefs) == 0 {
		return nil, annerr.New(annerr.KindInvalidContext, "ivfpq.Loaded.Query", nil)
	}
	if k > l.totalVectors {
		return nil, annerr.New(annerr.KindInvalidArgument, "ivfpq.Loaded.Query", nil)
	}
	start := time.Now()
	defer func() { l.metrics.QueryObserved(time.Since(start)) }()
	results, err := search(l.dim, l.coarse, l.pqcb, func(p int) (*Partition, error) {
		return l.loadPartition(ctx, p)
	}, q, k, nprobe)
	if err != nil {
		l.logger.Warn("query failed", map[string]any{"err": err})
		return nil, err
	}
	l.logger.Debug("query completed", map[string]any{"k": k, "nprobe": nprobe, "results": len(results)})
	return results, nil
}

// GetAttributeOf resolves name to a name_index then loads (if not
// cached) the result's owning partition's attribute log and scans it
// newest-to-oldest.
func (l *Loaded) GetAttributeOf(ctx context.Context, result QueryResult, name string) (attrs.Value, bool, error) {
	idx, ok := l.names.Lookup(name)
	if !ok {
		return attrs.Value{}, false, nil
	}
	log, err := l.loadAttrs(ctx, result.PartitionIndex)
	if err != nil {
		return attrs.Value{}, false, err
	}
	v, ok := log.Lookup(result.VectorID, idx)
	return v, ok, nil
}
