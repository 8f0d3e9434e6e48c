package httpcachestore

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/diskv"
	"github.com/sandrolain/httpcachestore/pathkey"
)

// diskvTempDirName is the sibling directory diskv's WriteStream writes its
// pre-rename temp files into (diskv.Options.TempDir). Keeping it outside the
// fan-out tree means a leftover from an interrupted write can never be
// mistaken for, or collide with, a real cache entry, and PruneTempFiles can
// just empty the directory instead of pattern-matching file names.
const diskvTempDirName = ".diskv-tmp"

// BlobStore is the shared shape of the entity store and the metadata store:
// both persist an opaque byte blob under a cache key using the same
// fan-out path layout and the same atomic write protocol (spec §4.4/§4.5).
// EntityStore and MetadataStore are aliases of it so the two concerns stay
// named the way the spec names them while sharing one implementation and
// one set of decorators (wrapper/cryptostore, wrapper/compressstore,
// wrapper/s3mirror all operate on a BlobStore).
type BlobStore interface {
	// Save persists data under key, ensuring parent directories exist,
	// writing atomically, and verifying the result reads back unchanged.
	Save(ctx context.Context, key string, data []byte) error
	// Load returns data for key. ok is false (with a nil error) if the
	// key is absent; NotFound is never surfaced as an error.
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Delete best-effort removes key, reporting whether a file was
	// actually unlinked.
	Delete(ctx context.Context, key string) bool
	// Path resolves key to its absolute filesystem location without
	// touching the filesystem.
	Path(key string) (string, error)
}

// EntityStore persists content-addressed response bodies (spec §4.4).
type EntityStore = BlobStore

// MetadataStore persists the serialized variant list for a cache key
// (spec §4.5).
type MetadataStore = BlobStore

// diskBlobStore is the default BlobStore, backed by diskv configured with
// an AdvancedTransform that defers to pathkey for the fan-out layout. diskv
// already writes via temp-file-then-rename internally; diskBlobStore adds
// the read-back verification spec §4.4 asks for on top, plus permissions
// via diskv's FilePerm/PathPerm options rather than a manual umask query.
type diskBlobStore struct {
	root string
	dv   *diskv.Diskv
}

// newDiskBlobStore opens (creating if absent) a diskv store rooted at
// root. CacheSizeMax is 0: this package carries no in-memory tier (spec §1
// non-goal), every Load hits the filesystem.
func newDiskBlobStore(root string) *diskBlobStore {
	tempDir := filepath.Join(root, diskvTempDirName)
	dv := diskv.New(diskv.Options{
		BasePath:          root,
		TempDir:           tempDir,
		AdvancedTransform: diskvTransform,
		InverseTransform:  diskvInverseTransform,
		CacheSizeMax:      0,
		PathPerm:          0o777,
		FilePerm:          0o666,
	})
	return &diskBlobStore{root: root, dv: dv}
}

func diskvTransform(key string) *diskv.PathKey {
	dirs, file, err := pathkey.Segments(key)
	if err != nil {
		// diskv requires a PathKey even for malformed keys; fall back to
		// a single-level bucket so the error surfaces from Save (which
		// checks the key shape itself) instead of from the transform.
		return &diskv.PathKey{Path: []string{"_malformed"}, FileName: key}
	}
	return &diskv.PathKey{Path: dirs, FileName: file}
}

func diskvInverseTransform(pk *diskv.PathKey) string {
	return strings.Join(pk.Path, "") + pk.FileName
}

func (s *diskBlobStore) Save(_ context.Context, key string, data []byte) error {
	if _, _, err := pathkey.Segments(key); err != nil {
		return newStorageError("save", key, err)
	}
	if err := s.dv.WriteStream(key, bytes.NewReader(data), true); err != nil {
		return newStorageError("save", key, err)
	}
	readBack, err := s.dv.Read(key)
	if err != nil {
		return newStorageError("save-verify", key, err)
	}
	if !bytes.Equal(readBack, data) {
		return newStorageError("save-verify", key, fmt.Errorf("read-back mismatch: wrote %d bytes, read %d", len(data), len(readBack)))
	}
	return nil
}

func (s *diskBlobStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	data, err := s.dv.Read(key)
	if err != nil {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *diskBlobStore) Delete(_ context.Context, key string) bool {
	return s.dv.Erase(key) == nil
}

func (s *diskBlobStore) Path(key string) (string, error) {
	return pathkey.Encode(s.root, key)
}
