package httpcachestore

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // test fixture digests, not security
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandrolain/httpcachestore/freshness"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir, WithFreshnessPredicate(freshness.RFC9111{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Cleanup)
	return store
}

func newTestRequest(t *testing.T, rawURL string, headers map[string]string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func newTestResponse(body string, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     h,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func entityDigest(body string) string {
	sum := sha1.Sum([]byte(body)) //nolint:gosec
	return "en" + hex.EncodeToString(sum[:])
}

// Scenario 1: empty lookup returns nil and creates nothing.
func TestLookupEmptyMiss(t *testing.T) {
	store := newTestStore(t)
	req := newTestRequest(t, "http://example.com/nothing", nil)

	resp, err := store.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if resp != nil {
		t.Fatal("expected nil response on empty lookup")
	}

	entries, err := os.ReadDir(store.root)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files created, found %d entries", len(entries))
	}
}

// Scenario 2: simple store + lookup.
func TestWriteThenLookupHits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req := newTestRequest(t, "http://example.com/test", nil)
	resp := newTestResponse("test", map[string]string{"Cache-Control": "max-age=420"})

	if _, err := store.Write(ctx, req, resp); err != nil {
		t.Fatalf("Write: %v", err)
	}

	digest := entityDigest("test")
	if got := resp.Header.Get(headerContentDigest); got != digest {
		t.Fatalf("x-content-digest = %q, want %q", got, digest)
	}

	path, err := store.GetPath(digest)
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading entity file: %v", err)
	}
	if string(data) != "test" {
		t.Fatalf("entity file content = %q, want %q", data, "test")
	}

	hit, err := store.Lookup(ctx, newTestRequest(t, "http://example.com/test", nil))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit == nil {
		t.Fatal("expected a hit")
	}
	if hit.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", hit.StatusCode)
	}
}

// Scenario 3: a Vary mismatch misses.
func TestVaryMismatchMisses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	writeReq := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": "Foo", "Bar": "Bar"})
	resp := newTestResponse("test", map[string]string{"Vary": "Foo Bar"})
	if _, err := store.Write(ctx, writeReq, resp); err != nil {
		t.Fatalf("Write: %v", err)
	}

	missReq := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": "Bling", "Bar": "Bam"})
	hit, err := store.Lookup(ctx, missReq)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit != nil {
		t.Fatal("expected a miss on differing Vary headers")
	}
}

// Scenario 4: three distinct variants coexist, each resolving its own body.
func TestThreeVariantsCoexist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pairs := [][2]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}
	for i, p := range pairs {
		req := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": p[0], "Bar": p[1]})
		resp := newTestResponse("test "+itoa(i+1), map[string]string{"Vary": "Foo Bar"})
		if _, err := store.Write(ctx, req, resp); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	key := newMetadataKey(canonicalURI(newTestRequest(t, "http://example.com/test", nil)))
	entry, ok, err := store.loadMetadata(ctx, key)
	if err != nil {
		t.Fatalf("loadMetadata: %v", err)
	}
	if !ok || len(entry) != 3 {
		t.Fatalf("metadata length = %d, want 3 (ok=%v)", len(entry), ok)
	}

	for i, p := range pairs {
		req := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": p[0], "Bar": p[1]})
		hit, err := store.Lookup(ctx, req)
		if err != nil {
			t.Fatalf("Lookup %d: %v", i, err)
		}
		if hit == nil {
			t.Fatalf("variant %d: expected a hit", i)
		}
		body, _ := io.ReadAll(hit.Body)
		if want := "test " + itoa(i+1); string(body) != want {
			t.Fatalf("variant %d body = %q, want %q", i, body, want)
		}
	}
}

// Scenario 5: writing a variant with a Vary identity already present
// replaces it (the new variant goes to the head of the list) rather than
// growing the list (P3).
func TestVaryOverwriteReplacesMatchingVariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pairs := [][2]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}
	for i, p := range pairs {
		req := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": p[0], "Bar": p[1]})
		resp := newTestResponse("test "+itoa(i+1), map[string]string{"Vary": "Foo Bar"})
		if _, err := store.Write(ctx, req, resp); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	overwriteReq := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": "1", "Bar": "a"})
	overwriteResp := newTestResponse("test 3", map[string]string{"Vary": "Foo Bar"})
	if _, err := store.Write(ctx, overwriteReq, overwriteResp); err != nil {
		t.Fatalf("overwrite Write: %v", err)
	}

	key := newMetadataKey(canonicalURI(newTestRequest(t, "http://example.com/test", nil)))
	entry, ok, err := store.loadMetadata(ctx, key)
	if err != nil {
		t.Fatalf("loadMetadata: %v", err)
	}
	if !ok || len(entry) != 3 {
		t.Fatalf("metadata length = %d, want 3 after overwrite", len(entry))
	}

	hit, err := store.Lookup(ctx, overwriteReq)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit == nil {
		t.Fatal("expected a hit for the overwritten variant")
	}
	body, _ := io.ReadAll(hit.Body)
	if string(body) != "test 3" {
		t.Fatalf("body = %q, want %q", body, "test 3")
	}
}

// Scenario 6: clear deletes only the stale variant, keeps fresh ones and
// their shared entity blob.
func TestClearDeletesOnlyStaleVariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(http.TimeFormat)

	fresh1 := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": "1"})
	fresh2 := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": "2"})
	stale := newTestRequest(t, "http://example.com/test", map[string]string{"Foo": "3"})

	for _, req := range []*http.Request{fresh1, fresh2} {
		resp := newTestResponse("shared body", map[string]string{
			"Vary":          "Foo",
			"Cache-Control": "max-age=100",
			"Date":          now,
		})
		if _, err := store.Write(ctx, req, resp); err != nil {
			t.Fatalf("Write fresh: %v", err)
		}
	}
	staleResp := newTestResponse("stale body", map[string]string{
		"Vary":          "Foo",
		"Cache-Control": "max-age=0",
		"Date":          now,
	})
	if _, err := store.Write(ctx, stale, staleResp); err != nil {
		t.Fatalf("Write stale: %v", err)
	}

	deleted, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Clear deleted = %d, want 1", deleted)
	}

	if hit, err := store.Lookup(ctx, stale); err != nil || hit != nil {
		t.Fatalf("expected the stale variant to miss after Clear, hit=%v err=%v", hit, err)
	}
	for _, req := range []*http.Request{fresh1, fresh2} {
		hit, err := store.Lookup(ctx, req)
		if err != nil {
			t.Fatalf("Lookup fresh: %v", err)
		}
		if hit == nil {
			t.Fatal("expected fresh variants to still hit after Clear")
		}
	}

	digest := entityDigest("shared body")
	path, err := store.GetPath(digest)
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected shared entity blob to be retained: %v", err)
	}
}

// Scenario 7: invalidate then clear removes both the metadata file and the
// now-orphaned entity blob.
func TestClearRemovesOrphanBodyAfterInvalidate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(http.TimeFormat)

	req := newTestRequest(t, "http://example.com/orphan", nil)
	resp := newTestResponse("orphan body", map[string]string{
		"Cache-Control": "max-age=100",
		"Date":          now,
	})
	if _, err := store.Write(ctx, req, resp); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := store.Invalidate(ctx, newTestRequest(t, "http://example.com/orphan", nil)); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	deleted, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("Clear deleted = %d, want 2", deleted)
	}

	key := newMetadataKey(canonicalURI(req))
	mdPath, err := store.GetPath(key)
	if err != nil {
		t.Fatalf("GetPath metadata: %v", err)
	}
	if _, err := os.Stat(mdPath); !os.IsNotExist(err) {
		t.Fatal("expected metadata file to be gone")
	}

	digest := entityDigest("orphan body")
	enPath, err := store.GetPath(digest)
	if err != nil {
		t.Fatalf("GetPath entity: %v", err)
	}
	if _, err := os.Stat(enPath); !os.IsNotExist(err) {
		t.Fatal("expected entity blob to be gone")
	}
}

// Scenario 8: lock lifecycle.
func TestLockLifecycle(t *testing.T) {
	store := newTestStore(t)
	req := newTestRequest(t, "http://example.com/locked", nil)

	outcome, err := store.Lock(req)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if !outcome.Acquired {
		t.Fatal("expected first Lock to be acquired")
	}
	if !store.IsLocked(req) {
		t.Fatal("expected IsLocked true after acquiring")
	}

	second, err := store.Lock(req)
	if err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	if second.Acquired {
		t.Fatal("expected second Lock on the same key to not be acquired")
	}
	if second.Path != outcome.Path {
		t.Fatalf("second Lock path = %q, want %q", second.Path, outcome.Path)
	}

	if !store.Unlock(req) {
		t.Fatal("expected Unlock to report success")
	}
	if store.IsLocked(req) {
		t.Fatal("expected IsLocked false after Unlock")
	}
}

// P4: writing the same body from N distinct requests dedups to one blob.
func TestContentDedupAcrossDistinctRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	urls := []string{"http://example.com/a", "http://example.com/b", "http://example.com/c"}
	for _, u := range urls {
		resp := newTestResponse("shared", nil)
		if _, err := store.Write(ctx, newTestRequest(t, u, nil), resp); err != nil {
			t.Fatalf("Write %s: %v", u, err)
		}
	}

	digest := entityDigest("shared")
	path, err := store.GetPath(digest)
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected exactly one entity blob on disk: %v", err)
	}
	if string(data) != "shared" {
		t.Fatalf("entity content = %q, want %q", data, "shared")
	}
}

// P5: purge removes only the targeted URL's metadata.
func TestPurgeIsLocalToOneURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keep := newTestRequest(t, "http://example.com/keep", nil)
	remove := newTestRequest(t, "http://example.com/remove", nil)
	for _, req := range []*http.Request{keep, remove} {
		if _, err := store.Write(ctx, req, newTestResponse("body", nil)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	removed, err := store.Purge(ctx, "http://example.com/remove")
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if !removed {
		t.Fatal("expected Purge to report removal")
	}

	if hit, err := store.Lookup(ctx, remove); err != nil || hit != nil {
		t.Fatalf("expected purged URL to miss, hit=%v err=%v", hit, err)
	}
	if hit, err := store.Lookup(ctx, keep); err != nil || hit == nil {
		t.Fatalf("expected untouched URL to still hit, hit=%v err=%v", hit, err)
	}

	digest := entityDigest("body")
	path, err := store.GetPath(digest)
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("expected the shared entity blob to survive purge")
	}
}

// P6: invalidating twice leaves the same state as invalidating once.
func TestInvalidateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(http.TimeFormat)

	req := newTestRequest(t, "http://example.com/idempotent", nil)
	resp := newTestResponse("body", map[string]string{
		"Cache-Control": "max-age=100",
		"Date":          now,
	})
	if _, err := store.Write(ctx, req, resp); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := store.Invalidate(ctx, req); err != nil {
		t.Fatalf("first Invalidate: %v", err)
	}
	key := newMetadataKey(canonicalURI(req))
	first, _, err := store.loadMetadata(ctx, key)
	if err != nil {
		t.Fatalf("loadMetadata: %v", err)
	}
	firstBytes, err := encodeMetadataEntry(first)
	if err != nil {
		t.Fatalf("encodeMetadataEntry: %v", err)
	}

	if err := store.Invalidate(ctx, req); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
	second, _, err := store.loadMetadata(ctx, key)
	if err != nil {
		t.Fatalf("loadMetadata: %v", err)
	}
	secondBytes, err := encodeMetadataEntry(second)
	if err != nil {
		t.Fatalf("encodeMetadataEntry: %v", err)
	}

	if !bytes.Equal(firstBytes, secondBytes) {
		t.Fatal("expected invalidate to be idempotent")
	}
}

// P9: getPath/getKeyByPath round-trip for every key shape this package
// produces.
func TestGetPathGetKeyByPathRoundTrip(t *testing.T) {
	store := newTestStore(t)
	keys := []string{
		entityDigest("some body"),
		newMetadataKey("http://example.com/roundtrip"),
	}
	for _, key := range keys {
		path, err := store.GetPath(key)
		if err != nil {
			t.Fatalf("GetPath(%q): %v", key, err)
		}
		got, err := store.GetKeyByPath(path)
		if err != nil {
			t.Fatalf("GetKeyByPath(%q): %v", path, err)
		}
		if got != key {
			t.Fatalf("round-trip key = %q, want %q", got, key)
		}
	}
}

// P1: a round-tripped response carries the injected headers plus the
// original status.
func TestWriteLookupRoundTripHeaders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req := newTestRequest(t, "http://example.com/roundtrip-headers", nil)
	resp := newTestResponse("payload", map[string]string{"X-Custom": "value"})

	if _, err := store.Write(ctx, req, resp); err != nil {
		t.Fatalf("Write: %v", err)
	}

	hit, err := store.Lookup(ctx, newTestRequest(t, "http://example.com/roundtrip-headers", nil))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit == nil {
		t.Fatal("expected a hit")
	}
	if hit.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", hit.StatusCode)
	}
	if got := hit.Header.Get("X-Custom"); got != "value" {
		t.Fatalf("X-Custom = %q, want %q", got, "value")
	}
	if hit.Header.Get(headerContentDigest) == "" {
		t.Fatal("expected x-content-digest to be present")
	}
	if hit.Header.Get(headerBodyFile) == "" {
		t.Fatal("expected x-body-file to be present")
	}
	if hit.Header.Get(headerContentLength) == "" {
		t.Fatal("expected content-length to be present")
	}
}

func TestPruneTempFilesRemovesLeftoverTemps(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, diskvTempDirName)
	if err := os.MkdirAll(tempDir, 0o777); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	leftover := filepath.Join(tempDir, "818934027")
	if err := os.WriteFile(leftover, []byte("partial"), 0o666); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store, err := New(dir, WithPruneTempFilesOnStart())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Cleanup)

	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Fatal("expected leftover temp file to be pruned on start")
	}
}
