package httpcachestore

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/sandrolain/httpcachestore/pathkey"
)

// errNoFreshnessPredicate is returned by operations that need a freshness
// verdict (Invalidate, Clear) when none was configured via
// WithFreshnessPredicate.
var errNoFreshnessPredicate = errors.New("httpcachestore: no freshness predicate configured")

// Store is the cache facade of spec §4.2/§6: lookup, write, invalidate,
// purge, lock/unlock/isLocked, cleanup, clear, getPath, getKeyByPath. Its
// cache state (key cache, owned locks) lives in fields of this value, so
// multiple Stores in one process never share it (spec §9 "no process-wide
// singletons"). The logger is the one package-level setting: WithLogger and
// SetLogger change it for every Store.
type Store struct {
	root string

	entities EntityStore
	metadata MetadataStore
	locks    *LockRegistry
	keys     *keyCache

	freshness    FreshnessPredicate
	pruneOnStart bool
}

// New opens (creating if absent) a Store rooted at root. The entity store,
// metadata store, and lock registry all resolve keys to paths under root
// via the shared pathkey fan-out (spec §4.1).
func New(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:     root,
		entities: newDiskBlobStore(root),
		metadata: newDiskBlobStore(root),
		locks:    newLockRegistry(root),
		keys:     newKeyCache(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pruneOnStart {
		if err := s.PruneTempFiles(); err != nil {
			GetLogger().Warn("httpcachestore: startup temp-file prune failed", "err", err)
		}
	}
	return s, nil
}

func (s *Store) cacheKey(req *http.Request) string {
	return s.keys.get(req)
}

// Lookup implements spec §4.2's lookup algorithm.
func (s *Store) Lookup(ctx context.Context, req *http.Request) (*http.Response, error) {
	key := s.cacheKey(req)
	entry, ok, err := s.loadMetadata(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	envA := headersFromHTTP(req.Header)
	for _, variant := range entry {
		if requestsMatch(variant.varyOf(), envA, variant.Request) {
			digest := variant.Response.get(headerContentDigest)
			body, bodyOK, loadErr := s.entities.Load(ctx, digest)
			if loadErr != nil {
				return nil, newStorageError("lookup", key, loadErr)
			}
			if !bodyOK {
				// I1 violation at read time: the spec permits either
				// leaving this for the sweeper or dropping the variant
				// immediately. We leave it for the sweeper and miss.
				return nil, nil
			}
			path, _ := s.entities.Path(digest)
			return reconstructResponse(variant.Response, path, body), nil
		}
	}
	return nil, nil
}

// Write implements spec §4.2's write algorithm, returning the metadata key.
func (s *Store) Write(ctx context.Context, req *http.Request, resp *http.Response) (string, error) {
	key := s.cacheKey(req)
	env := headersFromHTTP(req.Header)

	body, err := readAndResetBody(resp)
	if err != nil {
		return "", newStorageError("write", key, err)
	}

	digest := resp.Header.Get(headerContentDigest)
	if digest == "" {
		digest = newEntityKey(body)
		if err := s.entities.Save(ctx, digest, body); err != nil {
			return "", newStorageError("write-entity", digest, err)
		}
		resp.Header.Set(headerContentDigest, digest)
	}
	if resp.Header.Get(headerTransferEncoding) == "" && resp.Header.Get(headerContentLength) == "" {
		resp.Header.Set(headerContentLength, itoa(len(body)))
	}

	stored := persistResponse(resp)
	varyNew := stored.get(headerVary)

	entry, _, err := s.loadMetadata(ctx, key)
	if err != nil {
		return "", err
	}

	retained := make(MetadataEntry, 0, len(entry)+1)
	for _, v := range entry {
		if v.varyOf() == varyNew && requestsMatch(varyNew, v.Request, env) {
			continue
		}
		retained = append(retained, v)
	}
	newEntry := append(MetadataEntry{{Request: env.clone(), Response: stored}}, retained...)

	if err := s.saveMetadata(ctx, key, newEntry); err != nil {
		return "", err
	}
	return key, nil
}

// Invalidate implements spec §4.2's invalidate algorithm, including the
// bounded Location/Content-Location recursion (spec §9: "Implementers MUST
// bound depth").
func (s *Store) Invalidate(ctx context.Context, req *http.Request) error {
	return s.invalidate(ctx, req, make(map[string]bool))
}

func (s *Store) invalidate(ctx context.Context, req *http.Request, visited map[string]bool) error {
	uri := canonicalURI(req)
	if visited[uri] {
		return nil
	}
	visited[uri] = true

	if s.freshness == nil {
		return newStorageError("invalidate", uri, errNoFreshnessPredicate)
	}

	key := s.cacheKey(req)
	entry, ok, err := s.loadMetadata(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		mutated := false
		for i := range entry {
			resp := reconstructResponse(entry[i].Response, "", nil)
			if s.freshness.IsFresh(resp) {
				s.freshness.Expire(resp)
				entry[i].Response = persistResponse(resp)
				mutated = true
			}
		}
		if mutated {
			if err := s.saveMetadata(ctx, key, entry); err != nil {
				return err
			}
		}
	}

	for _, name := range []string{headerLocation, headerContentLocation} {
		for _, loc := range req.Header.Values(name) {
			target, err := url.Parse(loc)
			if err != nil {
				continue
			}
			subreq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
			if err != nil {
				continue
			}
			if err := s.invalidate(ctx, subreq, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// Purge implements spec §4.2's purge operation: unlink the metadata file
// for a synthetic GET to rawURL, leaving entity blobs and locks untouched.
func (s *Store) Purge(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, newStorageError("purge", rawURL, err)
	}
	key := s.cacheKey(req)
	return s.metadata.Delete(ctx, key), nil
}

// Lock attempts to acquire the per-URL fill lock for req.
func (s *Store) Lock(req *http.Request) (LockOutcome, error) {
	return s.locks.Lock(s.cacheKey(req))
}

// Unlock releases req's fill lock.
func (s *Store) Unlock(req *http.Request) bool {
	return s.locks.Unlock(s.cacheKey(req))
}

// IsLocked reports whether req's fill lock is currently held.
func (s *Store) IsLocked(req *http.Request) bool {
	return s.locks.IsLocked(s.cacheKey(req))
}

// Cleanup releases every lock this Store instance has acquired (spec §4.2,
// §5). It does not run the sweeper.
func (s *Store) Cleanup() {
	s.locks.Cleanup()
}

// GetPath resolves key to its on-disk path without touching the
// filesystem.
func (s *Store) GetPath(key string) (string, error) {
	return pathkey.Encode(s.root, key)
}

// GetKeyByPath is the inverse of GetPath (spec P9).
func (s *Store) GetKeyByPath(path string) (string, error) {
	return pathkey.Decode(s.root, path)
}

func (s *Store) loadMetadata(ctx context.Context, key string) (MetadataEntry, bool, error) {
	data, ok, err := s.metadata.Load(ctx, key)
	if err != nil {
		return nil, false, newStorageError("lookup-metadata", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	entry, err := decodeMetadataEntry(data)
	if err != nil {
		GetLogger().Warn("httpcachestore: corrupt metadata treated as miss", "key", key, "err", err)
		return nil, false, nil
	}
	return entry, true, nil
}

func (s *Store) saveMetadata(ctx context.Context, key string, entry MetadataEntry) error {
	data, err := encodeMetadataEntry(entry)
	if err != nil {
		return newStorageError("write-metadata", key, err)
	}
	if err := s.metadata.Save(ctx, key, data); err != nil {
		return newStorageError("write-metadata", key, err)
	}
	return nil
}
