// Package apiclient performs HTTP requests with bounded latency, automatic
// retry of transient failures and transparent offline deferral.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hirely/hirely-cli/internal/apierr"
	"github.com/hirely/hirely-cli/internal/model"
	"github.com/hirely/hirely-cli/internal/queue"
	"github.com/hirely/hirely-cli/internal/resilience"
)

// Defaults applied when Options leaves a field unset.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

// NoRetry disables retries when set as Options.Retries.
const NoRetry = -1

// TokenSource supplies the bearer token for the current session. It is
// consulted on every attempt so a refreshed token is picked up immediately.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns t.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Connectivity reports whether the device is online. *netstatus.Monitor satisfies it.
type Connectivity interface {
	IsOnline() bool
}

// Enqueuer defers a request for later replay. *queue.Queue satisfies it.
type Enqueuer interface {
	Add(ctx context.Context, req queue.NewRequest) (string, error)
}

// Options describes one logical request. Zero fields fall back to the
// client defaults.
type Options struct {
	Method          string
	Body            any
	Headers         map[string]string
	Timeout         time.Duration
	Retries         int // NoRetry for a single attempt
	RetryDelay      time.Duration
	MaxQueueRetries int
}

// Result is the outcome of Request. Exactly one of Data or Error is meaningful.
type Result struct {
	Data   any                   `json:"data"`
	Error  *apierr.ErrorResponse `json:"error"`
	Status int                   `json:"status"`
}

// OK reports whether the request succeeded.
func (r Result) OK() bool { return r.Error == nil }

// Decode converts Data into v by round-tripping it through JSON.
func (r Result) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return eris.Wrap(err, "api client: encode result")
	}
	return eris.Wrap(json.Unmarshal(raw, v), "api client: decode result")
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL resolves relative request paths against url.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets the bearer token provider.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithConnectivity sets the connectivity check used for the offline short-circuit.
func WithConnectivity(conn Connectivity) Option {
	return func(c *Client) { c.net = conn }
}

// WithQueue sets where mutating requests go while offline.
func WithQueue(q Enqueuer) Option {
	return func(c *Client) { c.queue = q }
}

// WithDefaults overrides the per-request defaults.
func WithDefaults(o Options) Option {
	return func(c *Client) { c.defaults = mergeOptions(o, c.defaults) }
}

// WithRateLimit throttles requests per host. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiters = newHostLimiters(rps)
		}
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// Client is the resilient HTTP client. It is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	net      Connectivity
	queue    Enqueuer
	defaults Options
	limiters *hostLimiters
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		defaults: Options{
			Method:          http.MethodGet,
			Timeout:         DefaultTimeout,
			Retries:         DefaultRetries,
			RetryDelay:      DefaultRetryDelay,
			MaxQueueRetries: model.DefaultMaxRetries,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func mergeOptions(o, def Options) Options {
	if o.Method == "" {
		o.Method = def.Method
	}
	o.Method = strings.ToUpper(o.Method)
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	switch {
	case o.Retries == 0:
		o.Retries = def.Retries
	case o.Retries < 0:
		o.Retries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = def.RetryDelay
	}
	if o.MaxQueueRetries <= 0 {
		o.MaxQueueRetries = def.MaxQueueRetries
	}
	return o
}

// response is what a single attempt observed.
type response struct {
	status int
	data   any
}

// Request performs one logical request. It never returns a Go error; every
// failure is reported through Result.Error.
func (c *Client) Request(ctx context.Context, url string, o Options) Result {
	o = mergeOptions(o, c.defaults)
	url = c.resolve(url)

	body, err := encodeBody(o.Body)
	if err != nil {
		return Result{Error: apierr.Classify(err)}
	}
	headers := requestHeaders(o.Method, o.Headers)

	if c.net != nil && !c.net.IsOnline() {
		return c.offline(ctx, url, o, body, headers)
	}

	out := resilience.Run(ctx, c.retryConfig(o), func(ctx context.Context, _ int) resilience.Outcome[response] {
		return c.attempt(ctx, o.Method, url, body, headers, o.Timeout)
	})
	if out.Err != nil {
		return Result{Error: apierr.Classify(out.Err), Status: out.Value.status}
	}
	return Result{Data: out.Value.data, Status: out.Value.status}
}

// Get is Request with method GET.
func (c *Client) Get(ctx context.Context, url string) Result {
	return c.Request(ctx, url, Options{Method: http.MethodGet})
}

// Post is Request with method POST and a JSON body.
func (c *Client) Post(ctx context.Context, url string, body any) Result {
	return c.Request(ctx, url, Options{Method: http.MethodPost, Body: body})
}

// Replay sends a queued request once. The queue owns the retry budget.
func (c *Client) Replay(ctx context.Context, req model.QueuedRequest) error {
	if c.net != nil && !c.net.IsOnline() {
		return apierr.ErrOffline
	}
	headers := requestHeaders(req.Method, req.Headers)
	out := c.attempt(ctx, req.Method, c.resolve(req.URL), req.Body, headers, c.defaults.Timeout)
	if out.Err != nil {
		return eris.Wrapf(out.Err, "api client: replay %s", req.ID)
	}
	return nil
}

func (c *Client) offline(ctx context.Context, url string, o Options, body []byte, headers map[string]string) Result {
	if !model.IsMutating(o.Method) {
		return Result{Error: apierr.Offline("")}
	}
	if c.queue == nil {
		zap.L().Warn("api client: offline and no queue configured, dropping request",
			zap.String("method", o.Method),
			zap.String("url", url),
		)
		return Result{Error: apierr.Offline("")}
	}

	id, err := c.queue.Add(ctx, queue.NewRequest{
		URL:        url,
		Method:     o.Method,
		Body:       body,
		Headers:    headers,
		MaxRetries: o.MaxQueueRetries,
	})
	if err != nil {
		// Nothing was stored, so the caller must not be told it was saved.
		return Result{Error: apierr.OfflineNotQueued(err)}
	}
	return Result{Error: apierr.Offline(id)}
}

// attempt performs a single HTTP exchange bounded by timeout.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, headers map[string]string, timeout time.Duration) resilience.Outcome[response] {
	var host string
	var lim *AdaptiveLimiter
	if c.limiters != nil {
		host, lim = c.limiters.forURL(url)
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return resilience.Fail[response](eris.Wrap(err, "api client: rate limiter wait"), false)
			}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return resilience.Fail[response](eris.Wrap(err, "api client: build request"), false)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			zap.L().Warn("api client: token unavailable, sending without auth", zap.Error(err))
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return resilience.Fail[response](eris.Wrapf(apierr.ErrTimeout, "%s %s exceeded %s", method, url, timeout), true)
		}
		if ctx.Err() != nil {
			return resilience.Fail[response](eris.Wrap(err, "api client: request cancelled"), false)
		}
		return resilience.Fail[response](eris.Wrapf(err, "api client: %s %s", method, url), resilience.IsTransient(err))
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = apierr.ErrTimeout
		}
		return resilience.FailWith(response{status: resp.StatusCode}, eris.Wrap(err, "api client: read body"), true)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if lim != nil && resp.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit(host)
		}
		se := apierr.NewStatusError(resp.StatusCode, raw)
		return resilience.FailWith(response{status: resp.StatusCode}, se, resilience.IsTransientHTTPStatus(resp.StatusCode))
	}
	if lim != nil {
		lim.OnSuccess()
	}

	data, err := parseBody(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return resilience.FailWith(response{status: resp.StatusCode}, err, false)
	}
	return resilience.Succeed(response{status: resp.StatusCode, data: data})
}

func (c *Client) retryConfig(o Options) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.Retries = o.Retries
	cfg.BaseDelay = o.RetryDelay
	cfg.Sleep = c.sleep
	cfg.OnRetry = resilience.RetryLogger("api", o.Method)
	return cfg
}

func (c *Client) resolve(url string) string {
	if c.baseURL != "" && strings.HasPrefix(url, "/") {
		return c.baseURL + url
	}
	return url
}

// requestHeaders copies h, adds the JSON content type for requests with a
// body and drops any stored Authorization header.
func requestHeaders(method string, h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") {
			continue
		}
		out[k] = v
	}
	if method != http.MethodGet && !hasHeader(out, "Content-Type") {
		out["Content-Type"] = "application/json"
	}
	return out
}

func hasHeader(h map[string]string, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, eris.Wrap(err, "api client: encode body")
		}
		return raw, nil
	}
}

// parseBody decodes raw by media type: JSON into a generic value, text/* into
// a string, anything else stays bytes.
func parseBody(contentType string, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, eris.Wrap(err, "api client: decode json response")
		}
		return v, nil
	case strings.HasPrefix(mediaType, "text/"):
		return string(raw), nil
	default:
		return raw, nil
	}
}
