// Package api is a typed client for the escala REST backend.
//
// Every call carries the session's bearer token when there is one, a fresh
// X-Request-ID, and maps non-2xx responses to *errors.Error values whose code
// follows the HTTP status and whose public message is taken from the
// response's "message" or "title" field.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/logging"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8081/api"

// RequestIDHeader is sent with every request.
const RequestIDHeader = "X-Request-ID"

// Maximum size of an error body that will be read.
const maxErrorBody = 64 << 10

var (
	// Returned when the server can't be reached.
	ErrNetwork = errors.NewC("api: network error", codes.Unavailable).
			WithPublicMessage("Could not reach the server, check your connection.")

	// Returned when a 2xx response can't be decoded.
	ErrBadResponse = errors.NewC("api: unexpected response", codes.Internal).
			WithPublicMessage("The server sent an unexpected response.")
)

// TokenSource supplies the bearer token. session.Store implements it.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithRateLimit limits outgoing requests to r per second with the given
// burst. A zero rate disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithMetrics records request metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTimeout bounds each request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to the backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	metrics *Metrics
	timeout time.Duration
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		tokens:  TokenFunc(func() string { return "" }),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes a single request. route is the path template, used for
// metrics and logs so that ids don't explode label cardinality.
type call struct {
	method string
	route  string
	path   string
	in     any
	out    any
}

func (c *Client) do(ctx context.Context, cl call) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Mark(ErrNetwork, 0).Append("rate limit: " + err.Error())
		}
	}

	var body io.Reader
	if cl.in != nil {
		b, err := json.Marshal(cl.in)
		if err != nil {
			return errors.WrapPrefix(err, "api: encoding request", 0)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return errors.WrapPrefix(err, "api: building request", 0)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	logger := logging.FromContext(ctx).With("http.request_id", reqID).With("http.route", cl.method+" "+cl.route)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(cl.method, cl.route, 0, time.Since(start))
		logger.Warnw("api: request failed", "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Mark(ErrNetwork, 0).WithCode(codes.DeadlineExceeded).Append(ctxErr.Error())
		}
		return errors.Mark(ErrNetwork, 0).Append(err.Error())
	}
	defer resp.Body.Close()

	c.metrics.observe(cl.method, cl.route, resp.StatusCode, time.Since(start))
	logger.Debugw("api: response", "http.status", resp.StatusCode, "http.duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(cl, resp)
	}

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body, leave out as is.
			return nil
		}
		return errors.Mark(ErrBadResponse, 0).Append(err.Error())
	}
	return nil
}

// errorBody is the shape of backend error responses. ASP.NET problem details
// use "title", hand written handlers use "message".
type errorBody struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

func responseError(cl call, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	err := errors.Codef(errors.CodeFromHTTPStatus(resp.StatusCode),
		"api: %s %s: %s", cl.method, cl.route, resp.Status).
		WithHTTPStatusCode(resp.StatusCode)

	var eb errorBody
	if json.Unmarshal(b, &eb) == nil {
		if eb.Message != "" {
			return err.WithPublicMessage(eb.Message)
		}
		if eb.Title != "" {
			return err.WithPublicMessage(eb.Title)
		}
	}
	return err
}
