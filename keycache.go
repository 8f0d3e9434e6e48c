package httpcachestore

import (
	"net/http"
	"sync"
)

// keyCache memoizes cacheKey(request) per request instance within one
// process (spec §4.2, §9 "lazy key memoization by request identity"). It is
// owned by a single Store, never a process-wide singleton.
type keyCache struct {
	mu sync.Mutex
	m  map[*http.Request]string
}

func newKeyCache() *keyCache {
	return &keyCache{m: make(map[*http.Request]string)}
}

func (c *keyCache) get(req *http.Request) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.m[req]; ok {
		return key
	}
	key := newMetadataKey(canonicalURI(req))
	c.m[req] = key
	return key
}
