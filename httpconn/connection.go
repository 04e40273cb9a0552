// Package httpconn is the single HTTP boundary every other package talks
// through: one Connection per repository, carrying its bearer token, its
// concurrency Limiter, and its retry policy, so a record client, a requests
// client and a transfer engine sharing a Connection also share rate limiting
// and backoff behavior.
package httpconn

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nrp-cz/nrp-go-client/errs"
	"github.com/nrp-cz/nrp-go-client/logging"
	"github.com/nrp-cz/nrp-go-client/streams"
	"github.com/nrp-cz/nrp-go-client/version"
)

type tokenKey struct {
	scheme string
	host   string
}

// Response is the normalized result of a non-streaming Connection call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	ETag       string
	Duration   time.Duration
}

// Connection is a configured HTTP client bound to one repository base URL.
// It is safe for concurrent use by multiple goroutines; the embedded Limiter
// is what keeps them from overrunning the repository's own rate limits.
type Connection struct {
	BaseURL *url.URL

	httpClient  *http.Client
	limiter     *Limiter
	rateLimiter *rate.Limiter
	logger      *logging.Contextual

	tokensMu sync.RWMutex
	tokens   map[tokenKey]string

	RetryCount        int
	RetryAfterSeconds float64
	UserAgent         string
}

// ConnectionOption configures a Connection at construction time.
type ConnectionOption func(*Connection)

// WithHTTPClient overrides the default *http.Client (tests substitute one
// pointed at an httptest.Server's transport).
func WithHTTPClient(client *http.Client) ConnectionOption {
	return func(c *Connection) { c.httpClient = client }
}

// WithLimiterCapacity overrides the default concurrency ceiling.
func WithLimiterCapacity(capacity int) ConnectionOption {
	return func(c *Connection) { c.limiter = NewLimiter(capacity) }
}

// WithRetryPolicy overrides the default retry count and initial backoff.
func WithRetryPolicy(retryCount int, retryAfterSeconds float64) ConnectionOption {
	return func(c *Connection) {
		c.RetryCount = retryCount
		c.RetryAfterSeconds = retryAfterSeconds
	}
}

// WithLogger overrides the package default logger.
func WithLogger(logger *logging.Contextual) ConnectionOption {
	return func(c *Connection) { c.logger = logger }
}

// WithUserAgent overrides the User-Agent header sent on every request.
func WithUserAgent(ua string) ConnectionOption {
	return func(c *Connection) { c.UserAgent = ua }
}

// WithInsecureSkipVerify disables TLS certificate verification, mirroring
// a repository configured with verify_tls=false. Never the default.
func WithInsecureSkipVerify() ConnectionOption {
	return func(c *Connection) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		c.httpClient.Transport = transport
	}
}

// WithRateLimit caps request issuance to rps requests per second, with
// burst allowed momentarily. It complements the concurrency Limiter: the
// Limiter bounds how many requests are in flight, this bounds how fast new
// ones may start, for repositories that police request rate rather than
// (or in addition to) concurrency.
func WithRateLimit(rps float64, burst int) ConnectionOption {
	return func(c *Connection) { c.rateLimiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewConnection builds a Connection rooted at baseURL, which must be an
// https:// URL (plain http is rejected — the repository model assumes TLS).
func NewConnection(baseURL string, opts ...ConnectionOption) (*Connection, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpconn: parse base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("httpconn: base URL %q must use https", baseURL)
	}

	c := &Connection{
		BaseURL:           u,
		httpClient:        &http.Client{Timeout: 5 * time.Minute},
		limiter:           NewLimiter(DefaultLimiterCapacity),
		logger:            logging.NewContextual(logging.Logger, nil),
		tokens:            map[tokenKey]string{},
		RetryCount:        5,
		RetryAfterSeconds: 1,
		UserAgent:         version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken registers a bearer token to attach to every request whose URL
// shares rawURL's scheme and host. This is how a client authenticates to
// more than one repository (or to a record's direct file-storage host)
// through a single Connection.
func (c *Connection) SetToken(rawURL, token string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("httpconn: parse token URL %q: %w", rawURL, err)
	}
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	c.tokens[tokenKey{scheme: u.Scheme, host: u.Host}] = token
	return nil
}

func (c *Connection) tokenFor(u *url.URL) (string, bool) {
	c.tokensMu.RLock()
	defer c.tokensMu.RUnlock()
	tok, ok := c.tokens[tokenKey{scheme: u.Scheme, host: u.Host}]
	return tok, ok
}

// resolve turns path into an absolute URL, either relative to BaseURL or, if
// path is already absolute (a direct file-storage link), used verbatim.
func (c *Connection) resolve(path string, query url.Values) (*url.URL, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("httpconn: parse path %q: %w", path, err)
	}
	if !u.IsAbs() {
		u = c.BaseURL.ResolveReference(u)
	}
	if len(query) > 0 {
		merged := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u, nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Get performs an HTTP GET, decoding a JSON response body into target (if
// non-nil).
func (c *Connection) Get(ctx context.Context, path string, target any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, target, opts...)
}

// Head performs an HTTP HEAD.
func (c *Connection) Head(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodHead, path, nil, nil, opts...)
}

// Post performs an HTTP POST with a JSON-encoded body.
func (c *Connection) Post(ctx context.Context, path string, body any, target any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, target, opts...)
}

// Put performs an HTTP PUT with a JSON-encoded body.
func (c *Connection) Put(ctx context.Context, path string, body any, target any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body, target, opts...)
}

// Delete performs an HTTP DELETE.
func (c *Connection) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// do is the shared request/retry/decode path for every non-streaming verb.
func (c *Connection) do(ctx context.Context, method, path string, body, target any, opts ...RequestOption) (*Response, error) {
	cfg := newRequestConfig(opts)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpconn: encode request body: %w", err)
		}
	}

	requestID := uuid.New().String()
	log := c.logger.With(logging.Fields{"request_id": requestID, "method": method})

	u, err := c.resolve(path, cfg.query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.retryLoop(ctx, method, fmt.Sprintf("%s %s", method, u), log, func(ctx context.Context, attempt int) (*Response, time.Duration, error) {
		return c.attempt(ctx, method, u, payload, cfg, log, attempt)
	})
	if err != nil {
		return nil, err
	}

	resp.Duration = time.Since(start)
	if target != nil && len(resp.Body) > 0 {
		if jerr := json.Unmarshal(resp.Body, target); jerr != nil {
			return resp, fmt.Errorf("httpconn: decode response body: %w", jerr)
		}
	}
	return resp, nil
}

// retryLoop drives attemptFn up to RetryCount+1 times under the Connection's
// concurrency and rate limiting, applying the same idempotent-method/4xx/
// Retry-After retry policy every verb shares: PutStream and GetStream route
// through this exactly like do() does, so a transient failure partway
// through a multipart part or a ranged download chunk is retried instead of
// failing the whole transfer.
func (c *Connection) retryLoop(ctx context.Context, method, desc string, log *logging.Contextual, attemptFn func(ctx context.Context, attemptNum int) (*Response, time.Duration, error)) (*Response, error) {
	var lastErr error
	attempts := c.RetryCount + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("httpconn: acquire request slot: %w", err)
		}
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				c.limiter.Release()
				return nil, fmt.Errorf("httpconn: wait for rate limit: %w", err)
			}
		}
		resp, retryAfter, err := attemptFn(ctx, attempt)
		c.limiter.Release()

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if errs.IsClientError(err) && errs.StatusCode(err) != http.StatusTooManyRequests {
			return nil, err
		}
		if !idempotent(method) {
			return nil, err
		}
		if attempt == attempts-1 {
			break
		}

		var delay time.Duration
		if retryAfter > 0 {
			delay = retryAfter
		} else {
			delay = calculateBackoff(attempt, c.RetryCount, c.RetryAfterSeconds)
		}
		log.WithError(err).Debugf("retrying %s in %s (attempt %d/%d)", desc, delay, attempt+1, attempts)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("httpconn: %s failed after %d attempts: %w", desc, attempts, lastErr)
}

// attempt performs one HTTP round trip and classifies the outcome. It
// returns a non-zero retryAfter when the server sent a Retry-After header
// that must override the computed backoff.
func (c *Connection) attempt(ctx context.Context, method string, u *url.URL, payload []byte, cfg *requestConfig, log *logging.Contextual, attemptNum int) (*Response, time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("httpconn: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}
	if ifMatch := ifMatchHeader(cfg.etag, cfg.bypassETag); ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	if tok, ok := c.tokenFor(u); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	log.Debugf("-> %s %s (attempt %d)", method, u, attemptNum+1)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errs.NewCommunicationError(u.String(), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, 0, errs.NewCommunicationError(u.String(), fmt.Errorf("read response body: %w", err))
	}

	log.Debugf("<- %s %s %d (%d bytes)", method, u, httpResp.StatusCode, len(respBody))

	if httpResp.StatusCode >= 400 {
		var retryAfter time.Duration
		if httpResp.StatusCode == http.StatusTooManyRequests {
			if ra := parseRetryAfter(httpResp.Header.Get("Retry-After")); ra > 0 {
				retryAfter = retryAfterOverride(ra.Seconds())
			}
		}
		return nil, retryAfter, classifyError(u.String(), httpResp.StatusCode, respBody)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
		ETag:       stripETag(httpResp.Header.Get("ETag")),
	}, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// classifyError turns a >=400 HTTP response into the errs taxonomy,
// preferring a decoded JSON error envelope when the body parses as one.
func classifyError(url string, status int, body []byte) error {
	var je errs.JSONError
	if json.Valid(body) && len(body) > 0 {
		if err := json.Unmarshal(body, &je); err == nil && je.Message != "" {
			je.Status = status
			if status >= 500 {
				je.Cause = &errs.ServerError{URL: url, StatusCode: status, Body: body, Reason: je.Message}
			} else {
				je.Cause = &errs.ClientError{URL: url, StatusCode: status, Body: body, Reason: je.Message}
			}
			return &je
		}
	}
	if status >= 500 {
		return &errs.ServerError{URL: url, StatusCode: status, Body: body}
	}
	return &errs.ClientError{URL: url, StatusCode: status, Body: body}
}

// RangeProbe is the outcome of probing a content URL for its size and
// range support, via either HEAD or a fallback zero-length ranged GET.
type RangeProbe struct {
	StatusCode    int
	Size          int64 // -1 if unknown
	AcceptsRanges bool
}

// headResponse performs a plain HEAD request against path, returning the
// raw Response headers (no body is expected).
func (c *Connection) headResponse(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodHead, path, nil, nil)
}

// ProbeRange determines a content URL's size and range support. It tries
// HEAD first; if the server rejects HEAD with a 4xx (the typical case for
// pre-signed object-storage URLs), it falls back to a one-byte ranged GET
// and reads the total size back out of the Content-Range header.
func (c *Connection) ProbeRange(ctx context.Context, path string) (*RangeProbe, error) {
	resp, err := c.headResponse(ctx, path)
	if err == nil {
		return &RangeProbe{
			StatusCode:    resp.StatusCode,
			Size:          contentLength(resp.Header),
			AcceptsRanges: acceptsRangesHeader(resp.Header),
		}, nil
	}
	if !errs.IsClientError(err) {
		return nil, err
	}

	u, rerr := c.resolve(path, nil)
	if rerr != nil {
		return nil, rerr
	}
	if aerr := c.limiter.Acquire(ctx); aerr != nil {
		return nil, fmt.Errorf("httpconn: acquire request slot: %w", aerr)
	}
	req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if rerr != nil {
		c.limiter.Release()
		return nil, fmt.Errorf("httpconn: build probe request: %w", rerr)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", c.UserAgent)
	if tok, ok := c.tokenFor(u); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	httpResp, derr := c.httpClient.Do(req)
	c.limiter.Release()
	if derr != nil {
		return nil, errs.NewCommunicationError(u.String(), derr)
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	if httpResp.StatusCode >= 400 {
		return nil, classifyError(u.String(), httpResp.StatusCode, nil)
	}

	return &RangeProbe{
		StatusCode:    httpResp.StatusCode,
		Size:          contentRangeTotal(httpResp.Header),
		AcceptsRanges: httpResp.StatusCode == http.StatusPartialContent,
	}, nil
}

func contentLength(h http.Header) int64 {
	v := h.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func acceptsRangesHeader(h http.Header) bool {
	return strings.EqualFold(strings.TrimSpace(h.Get("Accept-Ranges")), "bytes")
}

// contentRangeTotal parses the total size out of a `Content-Range:
// bytes 0-0/12345` header, returning -1 if absent or malformed.
func contentRangeTotal(h http.Header) int64 {
	v := h.Get("Content-Range")
	idx := strings.LastIndex(v, "/")
	if idx < 0 || idx == len(v)-1 {
		return -1
	}
	n, err := strconv.ParseInt(v[idx+1:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// PutStream uploads source's bytes to path via HTTP PUT, streaming directly
// from the Source without buffering the whole payload in memory. It retries
// under the same policy as do(): source.Open is called fresh on every
// attempt (including retries), so a transient failure mid-upload re-reads
// the source from the start instead of sending a partial or stale body.
func (c *Connection) PutStream(ctx context.Context, path string, source streams.Source, opts ...RequestOption) (*Response, error) {
	cfg := newRequestConfig(opts)
	u, err := c.resolve(path, cfg.query)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	log := c.logger.With(logging.Fields{"request_id": requestID, "method": http.MethodPut})

	return c.retryLoop(ctx, http.MethodPut, fmt.Sprintf("PUT %s", u), log, func(ctx context.Context, attempt int) (*Response, time.Duration, error) {
		return c.putStreamAttempt(ctx, u, source, cfg, log, attempt)
	})
}

func (c *Connection) putStreamAttempt(ctx context.Context, u *url.URL, source streams.Source, cfg *requestConfig, log *logging.Contextual, attemptNum int) (*Response, time.Duration, error) {
	body, err := source.Open(ctx, 0, -1)
	if err != nil {
		return nil, 0, fmt.Errorf("httpconn: open upload source: %w", err)
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), body)
	if err != nil {
		return nil, 0, fmt.Errorf("httpconn: build upload request: %w", err)
	}
	req.ContentLength = source.Size()
	contentType := cfg.contentType
	if contentType == "" {
		contentType = source.ContentType()
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}
	if ifMatch := ifMatchHeader(cfg.etag, cfg.bypassETag); ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	if tok, ok := c.tokenFor(u); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	log.Debugf("-> PUT %s (attempt %d)", u, attemptNum+1)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errs.NewCommunicationError(u.String(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errs.NewCommunicationError(u.String(), fmt.Errorf("read response body: %w", err))
	}

	log.Debugf("<- PUT %s %d (%d bytes)", u, resp.StatusCode, len(respBody))

	if resp.StatusCode >= 400 {
		var retryAfter time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				retryAfter = retryAfterOverride(ra.Seconds())
			}
		}
		return nil, retryAfter, classifyError(u.String(), resp.StatusCode, respBody)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		ETag:       stripETag(resp.Header.Get("ETag")),
	}, 0, nil
}

// GetStream performs a ranged (or full, when size < 0) GET of path and
// copies the response body into a chunk writer opened on sink at offset. It
// retries under the same policy as do(): each attempt reissues the range
// request and reopens the sink's chunk writer from scratch, so a transient
// failure partway through a chunk is retried rather than left corrupt.
func (c *Connection) GetStream(ctx context.Context, path string, sink streams.Sink, offset, size int64) error {
	u, err := c.resolve(path, nil)
	if err != nil {
		return err
	}

	requestID := uuid.New().String()
	log := c.logger.With(logging.Fields{"request_id": requestID, "method": http.MethodGet})

	_, err = c.retryLoop(ctx, http.MethodGet, fmt.Sprintf("GET %s", u), log, func(ctx context.Context, attempt int) (*Response, time.Duration, error) {
		return c.getStreamAttempt(ctx, u, sink, offset, size, log, attempt)
	})
	return err
}

func (c *Connection) getStreamAttempt(ctx context.Context, u *url.URL, sink streams.Sink, offset, size int64, log *logging.Contextual, attemptNum int) (*Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("httpconn: build download request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	if size >= 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))
	} else if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	if tok, ok := c.tokenFor(u); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	log.Debugf("-> GET %s (attempt %d)", u, attemptNum+1)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errs.NewCommunicationError(u.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var retryAfter time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				retryAfter = retryAfterOverride(ra.Seconds())
			}
		}
		return nil, retryAfter, classifyError(u.String(), resp.StatusCode, body)
	}

	w, err := sink.OpenChunk(ctx, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("httpconn: open sink chunk at %d: %w", offset, err)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		w.Close()
		return nil, 0, errs.NewCommunicationError(u.String(), fmt.Errorf("copy response body: %w", err))
	}
	if err := w.Close(); err != nil {
		return nil, 0, err
	}

	log.Debugf("<- GET %s %d", u, resp.StatusCode)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header}, 0, nil
}
