package freshness

import (
	"net/http"
	"strings"
	"time"
)

const (
	directiveNoStore              = "no-store"
	directiveNoCache              = "no-cache"
	directiveMustRevalidate       = "must-revalidate"
	directivePrivate              = "private"
	directiveMaxAge               = "max-age"
	directiveSMaxAge              = "s-maxage"
	directiveStaleWhileRevalidate = "stale-while-revalidate"
	directiveMinFresh             = "min-fresh"
	directiveMaxStale             = "max-stale"
)

// cacheControl is a parsed Cache-Control header: directive name to its
// (possibly empty) value.
type cacheControl map[string]string

// parseCacheControl implements the directive-splitting half of RFC 9111
// §4.2.1: comma-separated tokens, optionally carrying a "=value", first
// occurrence of a duplicate wins.
func parseCacheControl(h http.Header) cacheControl {
	cc := cacheControl{}
	for _, part := range strings.Split(h.Get("Cache-Control"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(strings.ToLower(name))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if _, exists := cc[name]; exists {
			continue
		}
		cc[name] = value
	}
	return cc
}

func (cc cacheControl) durationOf(directive string) (time.Duration, bool) {
	v, ok := cc[directive]
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

// responseDate reads the Date header, required by RFC 9111's age
// calculation. A response with no Date cannot have its age computed, so
// callers treat that as stale (conservative).
func responseDate(h http.Header) (time.Time, bool) {
	v := h.Get("Date")
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC1123, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// responseAge reads the Age header (RFC 9111 §5.1): non-negative integer
// seconds, first value wins on duplicates, invalid values are ignored.
func responseAge(h http.Header) time.Duration {
	values := h.Values("Age")
	if len(values) == 0 {
		return 0
	}
	d, err := time.ParseDuration(strings.TrimSpace(values[0]) + "s")
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// lifetime computes the response's freshness lifetime from max-age (or
// s-maxage, for a shared cache) falling back to Expires, per RFC 9111 §4.2.1.
func lifetime(cc cacheControl, h http.Header, date time.Time) time.Duration {
	if d, ok := cc.durationOf(directiveMaxAge); ok {
		return d
	}
	if d, ok := cc.durationOf(directiveSMaxAge); ok {
		return d
	}
	expiresHeader := h.Get("Expires")
	if expiresHeader == "" {
		return 0
	}
	expires, err := time.Parse(time.RFC1123, expiresHeader)
	if err != nil {
		return 0
	}
	return expires.Sub(date)
}
