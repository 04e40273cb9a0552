package httpconn

import "net/url"

type requestConfig struct {
	headers     map[string]string
	query       url.Values
	etag        string
	bypassETag  bool
	contentType string
}

func newRequestConfig(opts []RequestOption) *requestConfig {
	cfg := &requestConfig{headers: map[string]string{}, query: url.Values{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// RequestOption customizes a single Connection call.
type RequestOption func(*requestConfig)

// WithHeader sets an additional request header.
func WithHeader(key, value string) RequestOption {
	return func(c *requestConfig) { c.headers[key] = value }
}

// WithQuery adds a query-string parameter.
func WithQuery(key, value string) RequestOption {
	return func(c *requestConfig) { c.query.Add(key, value) }
}

// WithIfMatch attaches an optimistic-concurrency precondition built from a
// previously observed ETag.
func WithIfMatch(etag string) RequestOption {
	return func(c *requestConfig) { c.etag = etag }
}

// WithoutIfMatch explicitly skips sending an If-Match header even if the
// caller has an ETag on hand.
func WithoutIfMatch() RequestOption {
	return func(c *requestConfig) { c.bypassETag = true }
}

// WithContentType overrides the Content-Type header (for PutStream, where it
// otherwise falls back to the stream Source's ContentType()).
func WithContentType(ct string) RequestOption {
	return func(c *requestConfig) { c.contentType = ct }
}
