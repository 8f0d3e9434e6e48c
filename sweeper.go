package httpcachestore

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sandrolain/httpcachestore/pathkey"
	"golang.org/x/sync/errgroup"
)

// maxSweepDepth bounds the metadata-tree walk (spec §4.6: "Walk the
// metadata subtree to depth < 5"). Depth is counted from root/md, where the
// walk starts; metadata files sit at root/md/aa/bb/rest, depth 3, so no
// directory at depth 5 or more is ever entered.
const maxSweepDepth = 5

// Clear runs the two-phase sweeper (spec §4.6) and returns the number of
// files deleted: fully-stale metadata entries in phase 1, then orphan
// entity blobs in phase 2. A deleted entry's lock sibling is removed too but
// is not counted.
func (s *Store) Clear(ctx context.Context) (int, error) {
	if s.freshness == nil {
		return 0, newStorageError("clear", "", errNoFreshnessPredicate)
	}

	mdRoot := filepath.Join(s.root, metadataKeyPrefix)
	referenced := make(map[string]bool)
	deleted := 0

	err := filepath.WalkDir(mdRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if depth(mdRoot, path) >= maxSweepDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".lck") {
			return nil
		}

		key, err := pathkey.Decode(s.root, path)
		if err != nil {
			GetLogger().Warn("httpcachestore: sweeper could not decode metadata path", "path", path, "err", err)
			return nil
		}

		data, ok, err := s.metadata.Load(ctx, key)
		if err != nil || !ok {
			return nil
		}
		entry, err := decodeMetadataEntry(data)
		if err != nil {
			GetLogger().Warn("httpcachestore: sweeper found corrupt metadata", "key", key, "err", err)
			return nil
		}

		allStale := true
		for _, variant := range entry {
			digest := variant.Response.get(headerContentDigest)
			fresh := s.sweepVariantIsFresh(ctx, digest, variant.Response)
			if digest != "" {
				referenced[digest] = referenced[digest] || fresh
			}
			if fresh {
				allStale = false
			}
		}

		if allStale {
			if s.metadata.Delete(ctx, key) {
				deleted++
			}
			s.locks.Unlock(key)
		}
		return nil
	})
	if err != nil {
		return deleted, newStorageError("clear-scan", mdRoot, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	var mu sync.Mutex
	for digest, needed := range referenced {
		if needed || digest == "" {
			continue
		}
		digest := digest
		g.Go(func() error {
			if s.entities.Delete(gctx, digest) {
				mu.Lock()
				deleted++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return deleted, nil
}

// sweepVariantIsFresh applies the freshness predicate to a reconstructed
// variant. Per spec §4.6's edge policy, a variant whose body is missing is
// treated as stale: it cannot be served regardless of what the predicate
// would otherwise say.
func (s *Store) sweepVariantIsFresh(ctx context.Context, digest string, storedResponse Headers) bool {
	if digest == "" {
		resp := reconstructResponse(storedResponse, "", nil)
		return s.freshness.IsFresh(resp)
	}
	body, ok, err := s.entities.Load(ctx, digest)
	if err != nil || !ok {
		return false
	}
	path, _ := s.entities.Path(digest)
	resp := reconstructResponse(storedResponse, path, body)
	return s.freshness.IsFresh(resp)
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return maxSweepDepth
	}
	if rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}
