package httpcachestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandrolain/httpcachestore/pathkey"
)

// LockOutcome is the result of a Lock call (spec §4.2/§6).
type LockOutcome struct {
	// Acquired is true when this call created the lock file.
	Acquired bool
	// Path is the lock file's resolved path, populated whether acquired
	// here or already held elsewhere.
	Path string
}

// LockRegistry implements the per-key advisory lock described in spec
// §3/§4.2: presence of a ".lck" sibling file means "in flight". It tracks
// the locks this process instance has acquired so Cleanup can release them
// on shutdown (spec §4.2 cleanup, §5 lifecycle).
type LockRegistry struct {
	root string

	mu    sync.Mutex
	owned map[string]string // cache key -> lock file path
}

func newLockRegistry(root string) *LockRegistry {
	return &LockRegistry{root: root, owned: make(map[string]string)}
}

func (lr *LockRegistry) lockPath(key string) (string, error) {
	return pathkey.Encode(lr.root, key+".lck")
}

// Lock attempts to exclusively create the lock file for key. Per spec §9
// open question, the lock body records "pid\tstart-time" so an operator
// (via Diagnose) can tell who holds a stale lock; this package never reaps
// another process's lock automatically.
func (lr *LockRegistry) Lock(key string) (LockOutcome, error) {
	path, err := lr.lockPath(key)
	if err != nil {
		return LockOutcome{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return LockOutcome{}, newStorageError("lock-mkdir", key, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		if os.IsExist(err) {
			return LockOutcome{Acquired: false, Path: path}, nil
		}
		return LockOutcome{}, newStorageError("lock", key, err)
	}
	defer f.Close()

	body := fmt.Sprintf("%d\t%s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(body); err != nil {
		GetLogger().Warn("httpcachestore: failed writing lock body", "key", key, "err", err)
	}

	lr.mu.Lock()
	lr.owned[key] = path
	lr.mu.Unlock()
	return LockOutcome{Acquired: true, Path: path}, nil
}

// Unlock removes key's lock file, reporting whether one was actually
// removed.
func (lr *LockRegistry) Unlock(key string) bool {
	path, err := lr.lockPath(key)
	if err != nil {
		return false
	}
	removed := os.Remove(path) == nil

	lr.mu.Lock()
	delete(lr.owned, key)
	lr.mu.Unlock()
	return removed
}

// IsLocked reports whether key's lock file currently exists.
func (lr *LockRegistry) IsLocked(key string) bool {
	path, err := lr.lockPath(key)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

// Diagnose returns the raw "pid\tstart-time" body of key's lock file, for
// operator inspection of a possibly-stale lock (spec §9 open question).
func (lr *LockRegistry) Diagnose(key string) (string, bool) {
	path, err := lr.lockPath(key)
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Cleanup best-effort releases every lock this instance has acquired (spec
// §4.2 "cleanup", §5 "cleanup ... releases this process's locks").
func (lr *LockRegistry) Cleanup() {
	lr.mu.Lock()
	owned := lr.owned
	lr.owned = make(map[string]string)
	lr.mu.Unlock()

	for key, path := range owned {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			GetLogger().Warn("httpcachestore: lock cleanup failed", "key", key, "path", path, "err", err)
		}
	}
}
