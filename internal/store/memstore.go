package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"io"
	"sync"

	"github.com/annstore/annstore/internal/annerr"
	"github.com/klauspost/compress/flate"
)

// MemStore is an in-memory BlobStore, for tests that need a fast
// round-trip without touching the filesystem.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	named map[string][]byte
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte), named: make(map[string][]byte)}
}

type memHashedWriter struct {
	store  *MemStore
	buf    *bytes.Buffer
	hasher hash.Hash
	flateW *flate.Writer
	done   bool
}

func (w *memHashedWriter) Write(p []byte) (int, error) {
	return w.flateW.Write(p)
}

func (w *memHashedWriter) Close() (string, error) {
	if w.done {
		return "", annerr.New(annerr.KindIoError, "store.HashedWriter.Close", nil)
	}
	w.done = true
	if err := w.flateW.Close(); err != nil {
		return "", annerr.New(annerr.KindIoError, "store.HashedWriter.Close", err)
	}
	ref := base64.RawURLEncoding.EncodeToString(w.hasher.Sum(nil))
	w.store.mu.Lock()
	w.store.blobs[ref] = append([]byte(nil), w.buf.Bytes()...)
	w.store.mu.Unlock()
	return ref, nil
}

func (w *memHashedWriter) Abort() error {
	w.done = true
	return nil
}

// OpenHashedOut opens a pending hashed blob held in memory.
func (s *MemStore) OpenHashedOut(ctx context.Context, hint string) (HashedWriter, error) {
	buf := &bytes.Buffer{}
	hasher := sha256.New()
	flateW, err := flate.NewWriter(io.MultiWriter(buf, hasher), flate.DefaultCompression)
	if err != nil {
		return nil, annerr.New(annerr.KindIoError, "store.MemStore.OpenHashedOut", err)
	}
	return &memHashedWriter{store: s, buf: buf, hasher: hasher, flateW: flateW}, nil
}

// OpenHashedIn reads a blob by reference ID, verifying its digest.
func (s *MemStore) OpenHashedIn(ctx context.Context, ref string) (io.ReadCloser, error) {
	expected, err := base64.RawURLEncoding.DecodeString(ref)
	if err != nil {
		return nil, annerr.New(annerr.KindInvalidArgument, "store.MemStore.OpenHashedIn", err)
	}
	s.mu.RLock()
	raw, ok := s.blobs[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, annerr.New(annerr.KindIoError, "store.MemStore.OpenHashedIn", nil)
	}
	hasher := sha256.New()
	tee := io.TeeReader(bytes.NewReader(raw), hasher)
	flateR := flate.NewReader(tee)
	return &digestVerifyingReader{flateR: flateR, raw: io.NopCloser(nil), tee: tee, hasher: hasher, expected: expected}, nil
}

// OpenOut opens an in-memory unhashed write stream for name.
func (s *MemStore) OpenOut(ctx context.Context, name string) (io.WriteCloser, error) {
	return &memNamedWriter{store: s, name: name}, nil
}

// OpenIn opens an in-memory unhashed read stream for name.
func (s *MemStore) OpenIn(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.named[name]
	s.mu.RUnlock()
	if !ok {
		return nil, annerr.New(annerr.KindIoError, "store.MemStore.OpenIn", nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memNamedWriter struct {
	store *MemStore
	name  string
	buf   bytes.Buffer
}

func (w *memNamedWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memNamedWriter) Close() error {
	w.store.mu.Lock()
	w.store.named[w.name] = append([]byte(nil), w.buf.Bytes()...)
	w.store.mu.Unlock()
	return nil
}

// CorruptBlob flips the first byte of a stored blob, for digest-
// mismatch tests.
func (s *MemStore) CorruptBlob(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.blobs[ref]; ok && len(b) > 0 {
		b[0] ^= 0xFF
	}
}
