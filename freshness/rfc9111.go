package freshness

import (
	"net/http"
	"time"
)

// clock is swappable for tests, grounded on the teacher's timer/realClock
// indirection in freshness.go.
type clock interface {
	since(t time.Time) time.Duration
}

type realClock struct{}

func (realClock) since(t time.Time) time.Duration { return time.Since(t) }

// RFC9111 is a default, swappable FreshnessPredicate (httpcachestore's
// interface, implemented here structurally with no import of that package)
// covering the common subset of RFC 9111 response freshness: max-age,
// s-maxage, Expires, must-revalidate, and stale-while-revalidate. It does
// not evaluate request Cache-Control directives (no-cache, max-stale,
// min-fresh): those apply to a live request choosing whether to accept a
// stored response, which is the surrounding cache kernel's job, not this
// store's.
type RFC9111 struct {
	Clock clock
}

func (r RFC9111) clock() clock {
	if r.Clock != nil {
		return r.Clock
	}
	return realClock{}
}

// IsFresh reports whether resp may still be served without revalidation.
func (r RFC9111) IsFresh(resp *http.Response) bool {
	cc := parseCacheControl(resp.Header)
	if _, ok := cc[directiveNoStore]; ok {
		return false
	}
	if _, ok := cc[directiveNoCache]; ok {
		return false
	}

	date, ok := responseDate(resp.Header)
	if !ok {
		return false
	}

	age := r.clock().since(date) + responseAge(resp.Header)
	life := lifetime(cc, resp.Header, date)
	if life > age {
		return true
	}

	if swr, ok := cc.durationOf(directiveStaleWhileRevalidate); ok {
		if _, must := cc[directiveMustRevalidate]; !must && life+swr > age {
			return true
		}
	}
	return false
}

// Expire mutates resp so a subsequent IsFresh call returns false
// regardless of its Date/Age/max-age, by forcing Cache-Control: no-cache.
func (r RFC9111) Expire(resp *http.Response) {
	existing := resp.Header.Get("Cache-Control")
	if existing == "" {
		resp.Header.Set("Cache-Control", directiveNoCache)
		return
	}
	resp.Header.Set("Cache-Control", existing+", "+directiveNoCache)
}
