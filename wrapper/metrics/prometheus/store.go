package prometheus

import (
	"context"
	"time"
)

// BlobStore is the subset of httpcachestore.BlobStore this wrapper
// decorates.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) bool
	Path(key string) (string, error)
}

// InstrumentedStore wraps a BlobStore, recording operation outcomes and
// latency on a Collector, grounded on the teacher's InstrumentedCache.
type InstrumentedStore struct {
	next      BlobStore
	collector *Collector
	backend   string
}

// NewInstrumentedStore wraps next, labeling every recorded metric with
// backend (e.g. "entities" or "metadata") so a shared Collector can
// distinguish the two stores a *httpcachestore.Store keeps.
func NewInstrumentedStore(next BlobStore, collector *Collector, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, collector: collector, backend: backend}
}

func (s *InstrumentedStore) Save(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.next.Save(ctx, key, data)
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	s.collector.RecordOperation(s.backend+".save", result, time.Since(start))
	return err
}

func (s *InstrumentedStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	data, ok, err := s.next.Load(ctx, key)
	result := resultMiss
	switch {
	case err != nil:
		result = resultError
	case ok:
		result = resultHit
	}
	s.collector.RecordOperation(s.backend+".load", result, time.Since(start))
	return data, ok, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) bool {
	start := time.Now()
	removed := s.next.Delete(ctx, key)
	result := resultSuccess
	if !removed {
		result = resultMiss
	}
	s.collector.RecordOperation(s.backend+".delete", result, time.Since(start))
	return removed
}

func (s *InstrumentedStore) Path(key string) (string, error) {
	return s.next.Path(key)
}
