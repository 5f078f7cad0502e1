package anndb

import (
	"context"
	"io"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/annstore/annstore/internal/codec"
	"github.com/annstore/annstore/internal/store"
)

// writeHashed marshals payload and streams it through a hashed blob
// writer, returning the resulting reference ID.
func writeHashed(ctx context.Context, blobs store.BlobStore, hint string, payload []byte) (string, error) {
	w, err := blobs.OpenHashedOut(ctx, hint)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Abort()
		return "", annerr.New(annerr.KindIoError, "anndb.Serialize", err)
	}
	ref, err := w.Close()
	if err != nil {
		return "", err
	}
	return ref, nil
}

// Serialize writes b's coarse centroids, PQ codebooks, partitions, and
// attribute logs as individually content-addressed blobs, then writes
// the manifest record under manifestName. A round-tripped LoadDatabase
// against the same store reproduces identical query results.
func Serialize(ctx context.Context, b *BuiltDatabase, blobs store.BlobStore, manifestName string) error {
	built := b.built
	var totalVectors int
	for _, p := range built.Partitions {
		totalVectors += len(p.VectorIDs)
	}
	d := codec.Database{
		VectorSize:    uint32(built.Dim),
		NumPartitions: uint32(len(built.Partitions)),
		NumDivisions:  uint32(built.PQ.M),
		NumCodes:      uint32(built.PQ.Codebooks[0].K),
		TotalVectors:  uint32(totalVectors),
	}

	centroids := make([]float32, 0, len(built.Partitions)*built.Dim)
	for _, p := range built.Partitions {
		centroids = append(centroids, p.Centroid...)
	}
	centroidsID, err := writeHashed(ctx, blobs, "centroids",
		codec.MarshalVectorSet(codec.VectorSet{VectorSize: uint32(len(built.Partitions)), Data: centroids}))
	if err != nil {
		return err
	}
	d.PartitionCentroidsID = centroidsID

	for _, book := range built.PQ.Codebooks {
		flat := make([]float32, 0, book.K*book.Dim)
		for _, c := range book.Centroids {
			flat = append(flat, c...)
		}
		ref, err := writeHashed(ctx, blobs, "codebook",
			codec.MarshalVectorSet(codec.VectorSet{VectorSize: uint32(book.K), Data: flat}))
		if err != nil {
			return err
		}
		d.CodebookIDs = append(d.CodebookIDs, ref)
	}

	for _, p := range built.Partitions {
		cp := codec.Partition{
			VectorSize:   uint32(built.Dim),
			NumDivisions: uint32(built.PQ.M),
			Centroid:     p.Centroid,
			EncodedVectors: codec.EncodedVectorSet{
				VectorSize: uint32(built.PQ.M),
			},
			VectorIDs: make([]codec.Uuid, len(p.VectorIDs)),
		}
		for j, id := range p.VectorIDs {
			cp.VectorIDs[j] = uuidToCodec(id)
			cp.EncodedVectors.Data = append(cp.EncodedVectors.Data, p.Codes[j]...)
		}
		ref, err := writeHashed(ctx, blobs, "partition", codec.MarshalPartition(cp))
		if err != nil {
			return err
		}
		d.PartitionIDs = append(d.PartitionIDs, ref)

		cl := codec.AttributesLog{PartitionID: ref}
		for _, e := range p.Attrs.Entries {
			cl.Entries = append(cl.Entries, codec.OperationSetAttribute{
				VectorID:  uuidToCodec(e.VectorID),
				NameIndex: e.NameIndex,
				Value:     toCodecValue(e.Value),
			})
		}
		attrsRef, err := writeHashed(ctx, blobs, "attrs", codec.MarshalAttributesLog(cl))
		if err != nil {
			return err
		}
		d.AttributesLogIDs = append(d.AttributesLogIDs, attrsRef)
	}

	d.AttributeNames = built.Names.Names()

	manifest, err := blobs.OpenOut(ctx, manifestName)
	if err != nil {
		return err
	}
	if _, err := manifest.Write(codec.MarshalDatabase(d)); err != nil {
		return annerr.New(annerr.KindIoError, "anndb.Serialize", err)
	}
	return manifest.Close()
}

func readAllNamed(ctx context.Context, blobs store.BlobStore, name string) ([]byte, error) {
	r, err := blobs.OpenIn(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, annerr.New(annerr.KindIoError, "anndb.LoadDatabase", err)
	}
	return data, nil
}
