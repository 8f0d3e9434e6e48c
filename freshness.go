package httpcachestore

import "net/http"

// FreshnessPredicate is supplied by the surrounding cache kernel (spec §4.8):
// this package never parses Cache-Control itself, it only asks whether a
// stored response is still servable and, on invalidation, asks the
// predicate to mutate the response so a later IsFresh call returns false.
type FreshnessPredicate interface {
	// IsFresh reports whether resp may still be served as-is.
	IsFresh(resp *http.Response) bool
	// Expire mutates resp's headers in place so a subsequent IsFresh call
	// on the same response returns false.
	Expire(resp *http.Response)
}
