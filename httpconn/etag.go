package httpconn

import "strings"

// etagSetter is implemented by model DTOs that carry a non-owning etag field
// populated from a response's ETag header, for later optimistic-concurrency
// writes (If-Match).
type etagSetter interface {
	SetETag(etag string)
}

// stripETag normalizes a raw ETag header value by removing the weak-validator
// prefix and surrounding quotes, so the value compares equal to what a
// subsequent If-Match header needs regardless of how the server formatted it.
func stripETag(header string) string {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	return v
}

// ifMatchHeader renders an If-Match header value for etag, or "" when bypass
// is requested (used by callers that intentionally want to skip optimistic
// concurrency, e.g. a forced overwrite).
func ifMatchHeader(etag string, bypass bool) string {
	if bypass || etag == "" {
		return ""
	}
	return `"` + etag + `"`
}
