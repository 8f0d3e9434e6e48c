// Package storetest provides a shared conformance exerciser for any
// httpcachestore.BlobStore implementation or decorator (the default disk
// store, wrapper/cryptostore, wrapper/compressstore, wrapper/s3mirror),
// modeled on the teacher's test/test.go which exercises any
// httpcache.Cache.
package storetest

import (
	"bytes"
	"context"
	"testing"
)

// BlobStore is the subset of httpcachestore.BlobStore this package
// exercises, restated here to avoid storetest depending on the root
// package (keeps it usable by wrapper subpackages without a cycle back
// through the thing they wrap).
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) bool
	Path(key string) (string, error)
}

// Exercise runs a BlobStore implementation through save/load/delete and
// checks the write-once/read-back contract a cache key demands.
func Exercise(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()
	key := "en0000000000000000000000000000000000000testkey"

	_, ok, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("error loading key before it exists: %v", err)
	}
	if ok {
		t.Fatal("retrieved key before saving it")
	}

	val := []byte("some bytes")
	if err := store.Save(ctx, key, val); err != nil {
		t.Fatalf("error saving key: %v", err)
	}

	retVal, ok, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("error loading key: %v", err)
	}
	if !ok {
		t.Fatal("could not retrieve a key we just saved")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatalf("retrieved %q, want %q", retVal, val)
	}

	if _, err := store.Path(key); err != nil {
		t.Fatalf("error resolving path for a saved key: %v", err)
	}

	if !store.Delete(ctx, key) {
		t.Fatal("delete reported no file removed for a key that was saved")
	}

	_, ok, err = store.Load(ctx, key)
	if err != nil {
		t.Fatalf("error loading key after delete: %v", err)
	}
	if ok {
		t.Fatal("deleted key still present")
	}
}

// ExerciseOverwrite checks that saving the same key twice with identical
// content is a no-op observable as a successful idempotent save (spec I4:
// "re-writing the same content is a no-op").
func ExerciseOverwrite(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()
	key := "en1111111111111111111111111111111111111testkey"
	val := []byte("identical content")

	if err := store.Save(ctx, key, val); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := store.Save(ctx, key, val); err != nil {
		t.Fatalf("second save of identical content failed: %v", err)
	}

	retVal, ok, err := store.Load(ctx, key)
	if err != nil || !ok {
		t.Fatalf("load after double-save failed: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(retVal, val) {
		t.Fatalf("retrieved %q, want %q", retVal, val)
	}

	store.Delete(ctx, key)
}
