package httpcachestore

import (
	"crypto/sha1" //nolint:gosec // content-addressing digest, not used for security
	"encoding/hex"
	"net/http"
)

const (
	metadataKeyPrefix = "md"
	entityKeyPrefix   = "en"

	// cacheKeyLen is the fixed total length of every CacheKey: a 2-char
	// prefix plus a 40-char hex SHA-1 digest.
	cacheKeyLen = len(metadataKeyPrefix) + 2*sha1.Size
)

// canonicalURI returns the string form of req's URL used to derive a
// metadata key. http.Request preserves the original query string
// verbatim in URL.RawQuery, so two requests that differ only in header
// content but agree on path+query hash to the same metadata key.
func canonicalURI(req *http.Request) string {
	return req.URL.String()
}

// newMetadataKey computes "md" + sha1(canonical URI).
func newMetadataKey(uri string) string {
	sum := sha1.Sum([]byte(uri)) //nolint:gosec
	return metadataKeyPrefix + hex.EncodeToString(sum[:])
}

// newEntityKey computes "en" + sha1(body bytes).
func newEntityKey(body []byte) string {
	sum := sha1.Sum(body) //nolint:gosec
	return entityKeyPrefix + hex.EncodeToString(sum[:])
}

// IsMetadataKey reports whether key has the "md" cache-key shape.
func IsMetadataKey(key string) bool {
	return len(key) == cacheKeyLen && key[:2] == metadataKeyPrefix
}

// IsEntityKey reports whether key has the "en" cache-key shape.
func IsEntityKey(key string) bool {
	return len(key) == cacheKeyLen && key[:2] == entityKeyPrefix
}
