package httpcachestore

import (
	"os"
	"path/filepath"
)

// PruneTempFiles removes leftover files from writes that were interrupted
// before diskv's rename-into-place (spec §5: "a cancelled write leaves at
// most a leftover temp file ... implementers SHOULD prune stale temps on
// start"). Both the entity and metadata stores share one root and so share
// one diskv.Options.TempDir (diskvTempDirName); every pre-rename temp file
// diskv's WriteStream creates lives there rather than alongside real cache
// entries, so pruning is just emptying that directory. Best-effort:
// individual removal failures are logged, not returned.
func (s *Store) PruneTempFiles() error {
	tempDir := filepath.Join(s.root, diskvTempDirName)
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newStorageError("prune-temp", tempDir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(tempDir, e.Name())
		if rmErr := os.Remove(path); rmErr != nil {
			GetLogger().Warn("httpcachestore: failed pruning temp file", "path", path, "err", rmErr)
		}
	}
	return nil
}
