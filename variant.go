package httpcachestore

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Headers is the on-disk representation of a stored request or response:
// a mapping of lowercase header name to its ordered list of raw values
// (spec §3: "Header names are lowercase").
type Headers map[string][]string

const (
	headerContentDigest     = "x-content-digest"
	headerStatus            = "x-status"
	headerVary              = "vary"
	headerAge               = "age"
	headerContentLength     = "content-length"
	headerTransferEncoding  = "transfer-encoding"
	headerBodyFile          = "x-body-file"
	headerLocation          = "location"
	headerContentLocation   = "content-location"
)

// headersFromHTTP lowercases every header name from h, preserving value
// order, and drops nothing — callers strip what they don't want to persist.
func headersFromHTTP(h http.Header) Headers {
	out := make(Headers, len(h))
	for name, values := range h {
		lower := strings.ToLower(name)
		cp := make([]string, len(values))
		copy(cp, values)
		out[lower] = cp
	}
	return out
}

// headersToHTTP reconstructs a canonical http.Header from a stored Headers
// map, for handing back to callers that expect *http.Response.
func headersToHTTP(h Headers) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		canon := http.CanonicalHeaderKey(name)
		cp := make([]string, len(values))
		copy(cp, values)
		out[canon] = cp
	}
	return out
}

func (h Headers) get(name string) string {
	v := h[name]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (h Headers) set(name, value string) {
	h[name] = []string{value}
}

func (h Headers) clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// sortedNames returns h's header names in a deterministic order, used by
// the codec so identical variants serialize to identical bytes.
func (h Headers) sortedNames() []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Variant pairs the request headers that selected a response with the
// stored response headers themselves (spec §3).
type Variant struct {
	Request  Headers
	Response Headers
}

// MetadataEntry is the ordered, MRU-first list of variants stored under one
// cache key (spec §3). Position 0 is the most recently written variant.
type MetadataEntry []Variant

// varyOf returns the variant's effective Vary value, empty string when
// absent (spec §3: "absent ⇒ treated as empty string").
func (v Variant) varyOf() string {
	return v.Response.get(headerVary)
}

// persistResponse copies resp's headers, injects x-status from the status
// code, and strips the hop-by-hop Age header — the stored representation
// never carries Age (spec §3).
func persistResponse(resp *http.Response) Headers {
	h := headersFromHTTP(resp.Header)
	delete(h, headerAge)
	h.set(headerStatus, strconv.Itoa(resp.StatusCode))
	return h
}

// reconstructResponse rebuilds an *http.Response from a stored variant's
// response headers, the resolved body path, and optional body bytes. The
// x-status header becomes the status code and is stripped from the header
// set along with x-content-digest staying intact (callers may still want
// it); x-body-file is injected pointing at the resolved path on disk.
func reconstructResponse(stored Headers, bodyPath string, body []byte) *http.Response {
	h := stored.clone()
	status, _ := strconv.Atoi(h.get(headerStatus))
	delete(h, headerStatus)
	if bodyPath != "" {
		h.set(headerBodyFile, bodyPath)
	}

	resp := &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     headersToHTTP(h),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	if body != nil {
		resp.ContentLength = int64(len(body))
		resp.Body = newBodyReadCloser(body)
	}
	return resp
}
