package compressstore

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *memStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok
}

func (m *memStore) Path(key string) (string, error) { return "/mem/" + key, nil }

func TestStoreCompressesAtRest(t *testing.T) {
	inner := newMemStore()
	store := New(inner)

	ctx := context.Background()
	body := []byte(strings.Repeat("compress me please ", 100))
	key := "en00000000000000000000000000000000000000key"

	if err := store.Save(ctx, key, body); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, ok, err := inner.Load(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected inner store to hold the blob, ok=%v err=%v", ok, err)
	}
	if len(raw) >= len(body) {
		t.Fatalf("expected stored blob (%d bytes) smaller than input (%d bytes)", len(raw), len(body))
	}

	got, ok, err := store.Load(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, body) {
		t.Fatal("round-tripped body does not match original")
	}

	stats := store.Stats()
	if stats.CompressedCount != 1 {
		t.Fatalf("CompressedCount = %d, want 1", stats.CompressedCount)
	}
}
