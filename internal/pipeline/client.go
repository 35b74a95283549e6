// Package pipeline is the single entry point for outbound calls. Every
// request flows through interceptors, input validation, rate limiting, the
// read cache, and the retry executor; every outcome lands in the metrics
// collector and every failure surfaces as a normalized *apierr.Error.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/relay/internal/apierr"
	"github.com/opsdesk/relay/internal/handling"
	"github.com/opsdesk/relay/internal/metrics"
)

// Config holds client settings. Zero values fall back to safe defaults.
type Config struct {
	BaseURL string

	Timeout    time.Duration // per-attempt timeout (default 30s)
	MaxRetries int           // attempts per call (default 3)
	Backoff    apierr.Backoff

	CacheEnabled bool
	CacheTTL     time.Duration // default 5m

	RateLimitEnabled bool
	RateLimit        int           // requests per window per identity×pattern (default 60)
	RateLimitWindow  time.Duration // default 60s

	Identity string // rate-limit identity when the request carries none
}

// Request describes one outbound call.
type Request struct {
	Method   string
	Endpoint string
	Body     any // nil, []byte, string, or a JSON-marshalable value
	Header   map[string]string

	Timeout    time.Duration // overrides the client default
	MaxRetries int           // overrides the client default
	SkipCache  bool
	Identity   string

	// ValidateInput runs before any network activity; failure aborts the
	// call with a VALIDATION error and records no metrics sample.
	ValidateInput func(*Request) error
	// ValidateOutput runs on the parsed response; failure is terminal and
	// never retried.
	ValidateOutput func(*Response) error
}

// Response is the result of a successful call.
type Response struct {
	Data      any // parsed by content type: JSON value, string, or []byte
	Raw       []byte
	Status    int
	Header    http.Header
	RequestID string
	Timestamp time.Time
	Cached    bool
}

// RequestInterceptor may transform the request before it is sent. An error
// aborts the call.
type RequestInterceptor func(*Request) error

// ResponseInterceptor may inspect or transform a network response. Cache
// hits bypass response interceptors: cached payloads already passed the
// chain when first fetched.
type ResponseInterceptor func(*Response) error

// Client executes outbound requests. Construct one per composition root;
// it owns the rate-limit table and drives the cache and collector it is
// given.
type Client struct {
	cfg       Config
	http      *http.Client
	handler   *handling.Handler
	collector *metrics.Collector
	cache     Store
	limiter   *RateLimiter
	logger    *slog.Logger

	reqInterceptors  []RequestInterceptor
	respInterceptors []ResponseInterceptor

	now func() time.Time
}

// NewClient wires the pipeline. cache may be nil when caching is disabled.
func NewClient(cfg Config, handler *handling.Handler, collector *metrics.Collector, cache Store, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.Identity == "" {
		cfg.Identity = "anonymous"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			// Per-attempt deadlines come from the request context so the
			// transport is actually aborted on timeout.
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		handler:   handler,
		collector: collector,
		cache:     cache,
		limiter:   NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow),
		logger:    logger,
		now:       time.Now,
	}
}

// UseRequestInterceptor appends an interceptor; they run in registration order.
func (c *Client) UseRequestInterceptor(fn RequestInterceptor) {
	c.reqInterceptors = append(c.reqInterceptors, fn)
}

// UseResponseInterceptor appends an interceptor; they run in registration order.
func (c *Client) UseResponseInterceptor(fn ResponseInterceptor) {
	c.respInterceptors = append(c.respInterceptors, fn)
}

// AuthInterceptor sets a bearer token on every request.
func AuthInterceptor(token func() string) RequestInterceptor {
	return func(r *Request) error {
		if r.Header == nil {
			r.Header = make(map[string]string)
		}
		r.Header["Authorization"] = "Bearer " + token()
		return nil
	}
}

// HeaderInterceptor sets a fixed header on every request.
func HeaderInterceptor(key, value string) RequestInterceptor {
	return func(r *Request) error {
		if r.Header == nil {
			r.Header = make(map[string]string)
		}
		r.Header[key] = value
		return nil
	}
}

// Get issues a GET, served from cache when a live entry exists.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Endpoint: endpoint})
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body})
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Endpoint: endpoint, Body: body})
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Endpoint: endpoint, Body: body})
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Endpoint: endpoint})
}

// Do executes the full pipeline for one request.
//
// Near-simultaneous cache misses on the same key are not coalesced: both
// callers fetch and the last write wins. Acceptable for idempotent reads;
// single-flight was deliberately left out so one caller's cancellation
// cannot abort another's read.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	ectx := handling.Context{
		Operation: req.Method + " " + EndpointPattern(req.Endpoint),
		Component: "pipeline",
	}

	for _, fn := range c.reqInterceptors {
		if err := fn(&req); err != nil {
			return nil, c.fail(ctx, requestID, ectx, err)
		}
	}

	if req.ValidateInput != nil {
		if err := req.ValidateInput(&req); err != nil {
			verr := apierr.Validation(err.Error(), nil).WithCorrelationID(requestID)
			return nil, c.fail(ctx, requestID, ectx, verr)
		}
	}

	pattern := EndpointPattern(req.Endpoint)

	if c.cfg.RateLimitEnabled {
		identity := req.Identity
		if identity == "" {
			identity = c.cfg.Identity
		}
		if ok, retryAfter := c.limiter.Allow(identity, pattern); !ok {
			rlErr := apierr.New(apierr.CodeRateLimited, apierr.CategoryRateLimit, "request rate limit exceeded").
				WithRetryAfter(retryAfter).
				WithContext("endpoint", pattern)
			return nil, c.fail(ctx, requestID, ectx, rlErr)
		}
	}

	cacheable := req.Method == http.MethodGet && c.cfg.CacheEnabled && c.cache != nil && !req.SkipCache
	if cacheable {
		if resp := c.fromCache(ctx, req.Endpoint); resp != nil {
			resp.RequestID = requestID
			return resp, nil
		}
	}

	policy := handling.RetryPolicy{
		MaxAttempts: c.cfg.MaxRetries,
		Backoff:     c.cfg.Backoff,
	}
	if req.MaxRetries > 0 {
		policy.MaxAttempts = req.MaxRetries
	}

	resp, err := handling.ExecuteWithRetry(ctx, c.handler, ectx, policy,
		func(ctx context.Context) (*Response, error) {
			return c.attempt(ctx, req, pattern, requestID)
		})
	if err != nil {
		e := apierr.Normalize(err)
		if e.CorrelationID == "" {
			e.WithCorrelationID(requestID)
		}
		return nil, e
	}
	resp.RequestID = requestID

	if req.ValidateOutput != nil {
		if err := req.ValidateOutput(resp); err != nil {
			verr := apierr.Validation("response validation failed: "+err.Error(), nil).
				WithCorrelationID(requestID)
			return nil, c.fail(ctx, requestID, ectx, verr)
		}
	}

	if cacheable {
		c.toCache(ctx, req.Endpoint, resp)
	}

	for _, fn := range c.respInterceptors {
		if err := fn(resp); err != nil {
			return nil, c.fail(ctx, requestID, ectx, err)
		}
	}

	return resp, nil
}

// fail routes a terminal pre-flight or post-processing failure through the
// handler and guarantees a correlated *apierr.Error.
func (c *Client) fail(ctx context.Context, requestID string, ectx handling.Context, err error) *apierr.Error {
	e := c.handler.Handle(ctx, err, ectx)
	if e.CorrelationID == "" {
		e.WithCorrelationID(requestID)
	}
	return e
}

// attempt performs one network call and records exactly one metrics sample,
// success or failure.
func (c *Client) attempt(ctx context.Context, req Request, pattern, requestID string) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.buildHTTPRequest(attemptCtx, req, requestID)
	if err != nil {
		return nil, err
	}

	start := c.now()
	httpResp, err := c.http.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		e := apierr.Normalize(err).WithCorrelationID(requestID)
		c.collector.RecordError(pattern, e.Code, duration, req.Identity)
		return nil, e
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		e := apierr.Wrap(err, apierr.CodeNetwork, apierr.CategoryNetwork, "read response body").
			WithCorrelationID(requestID)
		c.collector.RecordError(pattern, e.Code, duration, req.Identity)
		return nil, e
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		e := apierr.FromHTTPStatus(&apierr.HTTPError{
			Status:     httpResp.StatusCode,
			StatusText: httpResp.Status,
			Body:       string(body),
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After")),
		}).WithCorrelationID(requestID)
		c.collector.RecordError(pattern, e.Code, duration, req.Identity)
		return nil, e
	}

	c.collector.RecordRequest(pattern, req.Method, duration, true, httpResp.StatusCode, req.Identity)

	return &Response{
		Data:      parseBody(httpResp.Header.Get("Content-Type"), body),
		Raw:       body,
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Timestamp: c.now(),
	}, nil
}

func (c *Client) buildHTTPRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	var reader io.Reader
	contentType := ""
	switch body := req.Body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(body)
	case string:
		reader = strings.NewReader(body)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apierr.Wrap(err, apierr.CodeValidation, apierr.CategoryValidation, "marshal request body").
				WithCorrelationID(requestID)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.cfg.BaseURL+req.Endpoint, reader)
	if err != nil {
		return nil, apierr.Wrap(err, apierr.CodeConfiguration, apierr.CategoryConfiguration, "build request").
			WithCorrelationID(requestID)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	return httpReq, nil
}

// parseBody decodes by content type: JSON into a generic value, text as a
// string, anything else as raw bytes.
func parseBody(contentType string, body []byte) any {
	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}

	switch {
	case strings.Contains(mediaType, "json"):
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			return data
		}
		return string(body)
	case strings.HasPrefix(mediaType, "text/"):
		return string(body)
	default:
		return body
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// cacheEnvelope is the stored form of a cached response.
type cacheEnvelope struct {
	Status      int         `json:"status"`
	ContentType string      `json:"contentType"`
	Header      http.Header `json:"header"`
	Body        []byte      `json:"body"`
	StoredAt    time.Time   `json:"storedAt"`
}

func (c *Client) fromCache(ctx context.Context, endpoint string) *Response {
	data, ok, err := c.cache.Get(ctx, endpoint)
	if err != nil {
		c.logger.Warn("cache read failed, fetching fresh", "endpoint", endpoint, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping corrupt cache entry", "endpoint", endpoint, "error", err)
		_ = c.cache.Delete(ctx, endpoint)
		return nil
	}

	return &Response{
		Data:      parseBody(env.ContentType, env.Body),
		Raw:       env.Body,
		Status:    env.Status,
		Header:    env.Header,
		Timestamp: c.now(),
		Cached:    true,
	}
}

func (c *Client) toCache(ctx context.Context, endpoint string, resp *Response) {
	env := cacheEnvelope{
		Status:      resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        resp.Raw,
		StoredAt:    c.now(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Warn("cache encode failed", "endpoint", endpoint, "error", err)
		return
	}
	if err := c.cache.Set(ctx, endpoint, data, c.cfg.CacheTTL); err != nil {
		c.logger.Warn("cache write failed", "endpoint", endpoint, "error", err)
	}
}
