// Package pathkey implements the deterministic key-to-path mapping used by
// every on-disk subsystem of httpcachestore: the entity store, the metadata
// store, and the lock registry all resolve a cache key to a filesystem path
// through the same three-level, hex-pair fan-out scheme.
package pathkey

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MinKeyLen is the shortest key the encoder accepts. Cache keys are always
// a 2-char prefix ("md"/"en") plus a 40-char hex digest, so 8 is generous
// slack for anything shorter that still carries at least three fan-out
// segments worth of characters.
const MinKeyLen = 8

// Encode maps key to its path under root: root/k[0:2]/k[2:4]/k[4:6]/k[6:].
// This gives three levels of 256-way fan-out before the remainder of the
// key, keeping any single directory from accumulating too many entries.
func Encode(root, key string) (string, error) {
	if len(key) < MinKeyLen {
		return "", fmt.Errorf("pathkey: key %q shorter than minimum length %d", key, MinKeyLen)
	}
	return filepath.Join(root, key[0:2], key[2:4], key[4:6], key[6:]), nil
}

// Segments splits key into the directory components and file name diskv
// expects from an AdvancedTransform: the same three fan-out levels Encode
// uses, without the root.
func Segments(key string) ([]string, string, error) {
	if len(key) < MinKeyLen {
		return nil, "", fmt.Errorf("pathkey: key %q shorter than minimum length %d", key, MinKeyLen)
	}
	return []string{key[0:2], key[2:4], key[4:6]}, key[6:], nil
}

// Decode inverts Encode: given root and a path previously produced by
// Encode (or by a diskv store using Segments as its transform), it
// reconstructs the original key. It is tolerant of a trailing ".lck" lock
// suffix, stripping it before returning.
func Decode(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("pathkey: %q is not under root %q: %w", path, root, err)
	}
	rel = strings.TrimSuffix(rel, ".lck")
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 {
		return "", fmt.Errorf("pathkey: path %q does not decode to a 4-segment key layout", path)
	}
	for _, p := range parts[:3] {
		if len(p) != 2 {
			return "", fmt.Errorf("pathkey: path %q has a malformed fan-out segment %q", path, p)
		}
	}
	key := parts[0] + parts[1] + parts[2] + parts[3]
	if len(key) < MinKeyLen {
		return "", fmt.Errorf("pathkey: decoded key %q shorter than minimum length %d", key, MinKeyLen)
	}
	return key, nil
}
