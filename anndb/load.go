package anndb

import (
	"context"
	"io"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/attrs"
	"github.com/annstore/annstore/internal/codec"
	"github.com/annstore/annstore/internal/index/ivfpq"
	"github.com/annstore/annstore/internal/kmeans"
	"github.com/annstore/annstore/internal/obs"
	"github.com/annstore/annstore/internal/obslog"
	"github.com/annstore/annstore/internal/pq"
	"github.com/annstore/annstore/internal/store"
)

// LoadOption configures a LoadDatabase call.
type LoadOption func(*LoadedDatabase)

// WithLoadMetrics installs a metrics sink on the loaded database,
// wired into its partition/attribute-log cache hit/miss counters.
func WithLoadMetrics(m *obs.Metrics) LoadOption {
	return func(l *LoadedDatabase) { l.loaded.SetMetrics(m) }
}

// WithLoadLogger installs a structured logger on the loaded database.
func WithLoadLogger(log *obslog.Logger) LoadOption {
	return func(l *LoadedDatabase) { l.loaded.SetLogger(log) }
}

// LoadedDatabase is a database reloaded from a blob store. Coarse
// centroids and PQ codebooks are read eagerly at load time; partitions
// and attribute logs are loaded lazily, on first query, and cached.
type LoadedDatabase struct {
	loaded *ivfpq.Loaded
}

// LoadDatabase reads the manifest record named manifestName, eagerly
// decodes the coarse centroids and PQ codebooks, and returns a
// database ready to serve Query calls. Partitions and attribute logs
// are fetched from blobs on demand.
func LoadDatabase(ctx context.Context, blobs store.BlobStore, manifestName string, opts ...LoadOption) (*LoadedDatabase, error) {
	raw, err := readAllNamed(ctx, blobs, manifestName)
	if err != nil {
		return nil, err
	}
	d, err := codec.UnmarshalDatabase(raw)
	if err != nil {
		return nil, err
	}

	centroidsRaw, err := readAllByRef(ctx, blobs, d.PartitionCentroidsID)
	if err != nil {
		return nil, err
	}
	centroidsVS, err := codec.UnmarshalVectorSet(centroidsRaw)
	if err != nil {
		return nil, err
	}
	dim := int(d.VectorSize)
	coarseCb := kmeans.Codebook{K: int(d.NumPartitions), Dim: dim}
	for p := 0; p < coarseCb.K; p++ {
		coarseCb.Centroids = append(coarseCb.Centroids, centroidsVS.Data[p*dim:(p+1)*dim])
	}

	m := int(d.NumDivisions)
	if m == 0 || dim%m != 0 {
		return nil, annerr.New(annerr.KindCodecError, "anndb.LoadDatabase", nil)
	}
	subDim := dim / m
	pqcb := pq.Codebooks{M: m, SubDim: subDim}
	for _, ref := range d.CodebookIDs {
		raw, err := readAllByRef(ctx, blobs, ref)
		if err != nil {
			return nil, err
		}
		vs, err := codec.UnmarshalVectorSet(raw)
		if err != nil {
			return nil, err
		}
		book := kmeans.Codebook{K: int(vs.VectorSize), Dim: subDim}
		for c := 0; c < book.K; c++ {
			book.Centroids = append(book.Centroids, vs.Data[c*subDim:(c+1)*subDim])
		}
		pqcb.Codebooks = append(pqcb.Codebooks, book)
	}

	names := attrs.FromNames(d.AttributeNames)
	loaded := ivfpq.NewLoaded(dim, coarseCb, pqcb, d.PartitionIDs, d.AttributesLogIDs, int(d.TotalVectors), names, blobs)
	ld := &LoadedDatabase{loaded: loaded}
	for _, opt := range opts {
		opt(ld)
	}
	return ld, nil
}

func readAllByRef(ctx context.Context, blobs store.BlobStore, ref string) ([]byte, error) {
	r, err := blobs.OpenHashedIn(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		if annerr.Is(err, annerr.KindDigestMismatch) {
			return nil, err
		}
		return nil, annerr.New(annerr.KindIoError, "anndb.LoadDatabase", err)
	}
	return data, nil
}

// VectorSize returns D.
func (l *LoadedDatabase) VectorSize() int { return l.loaded.VectorSize() }

// Query answers a k-NN query, lazily loading and caching any probed
// partition not already in memory.
func (l *LoadedDatabase) Query(ctx context.Context, q []float32, k, nprobe int) ([]ivfpq.QueryResult, error) {
	return l.loaded.Query(ctx, q, k, nprobe)
}

// GetAttributeOf looks up an attribute on a result produced by Query,
// loading (and caching) the result's owning partition's attribute log
// if needed.
func (l *LoadedDatabase) GetAttributeOf(ctx context.Context, result ivfpq.QueryResult, name string) (attrs.Value, bool, error) {
	return l.loaded.GetAttributeOf(ctx, result, name)
}

// Close is a no-op: LoadedDatabase holds no resources beyond its
// BlobStore handle, which callers own and close themselves.
func (l *LoadedDatabase) Close() error { return nil }
