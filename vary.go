package httpcachestore

import "strings"

// splitVary splits a Vary header value on whitespace and commas into
// canonicalized (lowercase, underscore-to-hyphen) header names.
func splitVary(vary string) []string {
	fields := strings.FieldsFunc(vary, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		names = append(names, canonicalVaryName(f))
	}
	return names
}

// canonicalVaryName lowercases a header name and replaces underscores with
// hyphens, accommodating environments that surface HTTP headers with
// underscore names (spec §4.3 design rationale).
func canonicalVaryName(name string) string {
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, "_", "-")
}

// requestsMatch reports whether envA and envB agree on every header named
// in vary (spec §4.3). An empty vary matches unconditionally. Both
// environments missing a header counts as a match; only one missing does
// not.
func requestsMatch(vary string, envA, envB Headers) bool {
	if strings.TrimSpace(vary) == "" {
		return true
	}
	for _, name := range splitVary(vary) {
		a, aok := envA[name]
		b, bok := envB[name]
		if !aok && !bok {
			continue
		}
		if aok != bok {
			return false
		}
		if !stringSlicesEqual(a, b) {
			return false
		}
	}
	return true
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
