// Package freshness provides a default FreshnessPredicate implementation so
// a caller of httpcachestore isn't required to write its own Cache-Control
// parser before it can call Invalidate or Clear. RFC9111 implements the
// predicate interface structurally (IsFresh(*http.Response) bool,
// Expire(*http.Response)) without importing the root package, so it has no
// dependency on it and can be swapped out freely.
package freshness
