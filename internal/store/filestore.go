package store

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/klauspost/compress/flate"
)

// FileStore is a local-filesystem BlobStore. Content-addressed blobs
// live in blobsDir; the manifest and any other unhashed stream live in
// baseDir directly.
type FileStore struct {
	baseDir  string
	blobsDir string
}

// NewFileStore creates a FileStore rooted at baseDir, with blobs in
// baseDir/blobs. Both directories are created if absent.
func NewFileStore(baseDir string) (*FileStore, error) {
	blobsDir := filepath.Join(baseDir, "blobs")
	if err := os.MkdirAll(blobsDir, 0o755); err != nil {
		return nil, annerr.New(annerr.KindIoError, "store.NewFileStore", err)
	}
	return &FileStore{baseDir: baseDir, blobsDir: blobsDir}, nil
}

type fileHashedWriter struct {
	tmp      *os.File
	blobsDir string
	hasher   hash.Hash
	flateW   *flate.Writer
	done     bool
}

func (w *fileHashedWriter) Write(p []byte) (int, error) {
	return w.flateW.Write(p)
}

func (w *fileHashedWriter) Close() (string, error) {
	if w.done {
		return "", annerr.New(annerr.KindIoError, "store.HashedWriter.Close", fmt.Errorf("already closed"))
	}
	w.done = true
	if err := w.flateW.Close(); err != nil {
		w.tmp.Close()
		os.Remove(w.tmp.Name())
		return "", annerr.New(annerr.KindIoError, "store.HashedWriter.Close", err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return "", annerr.New(annerr.KindIoError, "store.HashedWriter.Close", err)
	}
	ref := base64.RawURLEncoding.EncodeToString(w.hasher.Sum(nil))
	finalPath := filepath.Join(w.blobsDir, ref)
	if err := os.Rename(w.tmp.Name(), finalPath); err != nil {
		os.Remove(w.tmp.Name())
		return "", annerr.New(annerr.KindIoError, "store.HashedWriter.Close", err)
	}
	return ref, nil
}

func (w *fileHashedWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.flateW.Close()
	w.tmp.Close()
	return os.Remove(w.tmp.Name())
}

// OpenHashedOut opens a pending hashed blob. hint labels the temp file
// for debugging; it plays no role in the published object's name.
func (s *FileStore) OpenHashedOut(ctx context.Context, hint string) (HashedWriter, error) {
	tmp, err := os.CreateTemp(s.blobsDir, "tmp-"+filepath.Base(hint)+"-*")
	if err != nil {
		return nil, annerr.New(annerr.KindIoError, "store.FileStore.OpenHashedOut", err)
	}
	hasher := sha256.New()
	flateW, err := flate.NewWriter(io.MultiWriter(tmp, hasher), flate.DefaultCompression)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, annerr.New(annerr.KindIoError, "store.FileStore.OpenHashedOut", err)
	}
	return &fileHashedWriter{tmp: tmp, blobsDir: s.blobsDir, hasher: hasher, flateW: flateW}, nil
}

type digestVerifyingReader struct {
	flateR io.ReadCloser
	raw    io.ReadCloser
	// tee reads the raw compressed bytes through hasher; draining it on
	// any terminating read (EOF or a decode error) lets the digest check
	// cover bytes flate itself never got around to decoding.
	tee      io.Reader
	hasher   hash.Hash
	expected []byte
	verified bool
}

func (r *digestVerifyingReader) Read(p []byte) (int, error) {
	n, err := r.flateR.Read(p)
	if err != nil && !r.verified {
		r.verified = true
		if _, drainErr := io.Copy(io.Discard, r.tee); drainErr != nil {
			return n, annerr.New(annerr.KindIoError, "store.OpenHashedIn", drainErr)
		}
		sum := r.hasher.Sum(nil)
		if !equalBytes(sum, r.expected) {
			return n, annerr.New(annerr.KindDigestMismatch, "store.OpenHashedIn", nil)
		}
	}
	return n, err
}

func (r *digestVerifyingReader) Close() error {
	r.flateR.Close()
	return r.raw.Close()
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// OpenHashedIn opens a content-addressed blob by its reference ID,
// verifying the SHA-256 digest of the compressed bytes as they are
// streamed and decompressed.
func (s *FileStore) OpenHashedIn(ctx context.Context, ref string) (io.ReadCloser, error) {
	expected, err := base64.RawURLEncoding.DecodeString(ref)
	if err != nil {
		return nil, annerr.New(annerr.KindInvalidArgument, "store.FileStore.OpenHashedIn", err)
	}
	f, err := os.Open(filepath.Join(s.blobsDir, ref))
	if err != nil {
		return nil, annerr.New(annerr.KindIoError, "store.FileStore.OpenHashedIn", err)
	}
	hasher := sha256.New()
	tee := io.TeeReader(f, hasher)
	flateR := flate.NewReader(tee)
	return &digestVerifyingReader{flateR: flateR, raw: f, tee: tee, hasher: hasher, expected: expected}, nil
}

// OpenOut opens an unhashed write stream for the manifest (or any
// other non-content-addressed file) at baseDir/name.
func (s *FileStore) OpenOut(ctx context.Context, name string) (io.WriteCloser, error) {
	f, err := os.Create(filepath.Join(s.baseDir, name))
	if err != nil {
		return nil, annerr.New(annerr.KindIoError, "store.FileStore.OpenOut", err)
	}
	return f, nil
}

// OpenIn opens an unhashed read stream at baseDir/name.
func (s *FileStore) OpenIn(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.baseDir, name))
	if err != nil {
		return nil, annerr.New(annerr.KindIoError, "store.FileStore.OpenIn", err)
	}
	return f, nil
}
