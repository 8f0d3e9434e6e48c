// Package compressstore wraps an httpcachestore.EntityStore to
// brotli-compress bodies at rest, adapted from the teacher's
// wrapper/compresscache (BrotliCache).
package compressstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/andybalholm/brotli"
)

// marker byte prefixed to every stored blob: 0 means uncompressed
// (fallback path), 1 means brotli. Mirrors the teacher's
// algorithm-plus-one marker scheme, trimmed to the one algorithm this
// package wires in.
const (
	markerUncompressed byte = 0
	markerBrotli       byte = 1
)

// BlobStore is the subset of httpcachestore.EntityStore this wrapper
// decorates.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) bool
	Path(key string) (string, error)
}

// Stats holds running compression statistics across every Save call.
type Stats struct {
	CompressedBytes   int64
	UncompressedBytes int64
	CompressedCount   int64
	FallbackCount     int64
}

// Store wraps a BlobStore with brotli compression, falling back to
// storing the value uncompressed (with a marker byte) if compression
// ever fails rather than losing the write.
type Store struct {
	next   BlobStore
	level  int
	logger *slog.Logger

	compressedBytes   atomic.Int64
	uncompressedBytes atomic.Int64
	compressedCount   atomic.Int64
	fallbackCount     atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithLevel sets the brotli compression level (0-11, default 6).
func WithLevel(level int) Option {
	return func(s *Store) { s.level = level }
}

// WithLogger installs a logger used to report compression/decompression
// failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New wraps next with brotli compression.
func New(next BlobStore, opts ...Option) *Store {
	s := &Store{next: next, level: 6, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, s.level)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compressstore: brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressstore: brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compressstore: brotli read: %w", err)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	compressed, err := s.compress(data)
	if err != nil {
		s.logger.Warn("compressstore: compression failed, storing uncompressed", "key", key, "err", err)
		s.fallbackCount.Add(1)
		s.uncompressedBytes.Add(int64(len(data)))
		return s.next.Save(ctx, key, append([]byte{markerUncompressed}, data...))
	}

	s.compressedCount.Add(1)
	s.compressedBytes.Add(int64(len(compressed)))
	s.uncompressedBytes.Add(int64(len(data)))
	return s.next.Save(ctx, key, append([]byte{markerBrotli}, compressed...))
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.next.Load(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(raw) == 0 {
		return raw, true, nil
	}

	marker, body := raw[0], raw[1:]
	if marker == markerUncompressed {
		return body, true, nil
	}
	out, err := s.decompress(body)
	if err != nil {
		return nil, false, fmt.Errorf("compressstore: decompressing %s: %w", key, err)
	}
	return out, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) bool {
	return s.next.Delete(ctx, key)
}

func (s *Store) Path(key string) (string, error) {
	return s.next.Path(key)
}

// Stats returns a snapshot of this Store's compression statistics.
func (s *Store) Stats() Stats {
	return Stats{
		CompressedBytes:   s.compressedBytes.Load(),
		UncompressedBytes: s.uncompressedBytes.Load(),
		CompressedCount:   s.compressedCount.Load(),
		FallbackCount:     s.fallbackCount.Load(),
	}
}
