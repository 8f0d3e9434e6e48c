// Package httpcachestore implements the persistent, content-addressed cache
// store behind an HTTP reverse-proxy cache: given a request it returns a
// previously stored response, and given a request/response pair it persists
// the pair so later equivalent requests can be served without hitting the
// origin again.
//
// The store is organized around four cooperating subsystems: a metadata
// store holding, per URL, an ordered list of Vary variants; an entity store
// deduplicating response bodies by content digest; a lock registry
// coordinating concurrent cache fills; and a sweeper that garbage-collects
// stale metadata and orphaned bodies. Freshness computation, origin
// fetching, and transport are left to the caller — this package only
// consumes a FreshnessPredicate and *http.Request/*http.Response values.
package httpcachestore
