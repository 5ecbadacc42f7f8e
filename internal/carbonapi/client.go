// Package carbonapi is the typed HTTP client for the Grumeter backend.
// It holds no state beyond its configuration: every method is one request
// and one decoded response. Caching and retry live in the callers.
package carbonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkordes/grumeter/internal/domain"
)

// DefaultTimeout bounds a single request when no *http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger used for request-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the API rooted at baseURL
// (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  StaticToken(""),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request and returns the Data of the enveloped response.
// A nil body sends no payload.
func do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return zero, &Error{Code: CodeRequest, Message: err.Error(), Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return zero, fmt.Errorf("read auth token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		return zero, &Error{Code: CodeNetwork, Message: networkMessage, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return zero, decodeError(resp, path)
	}

	var env domain.Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, &Error{Status: resp.StatusCode, Code: CodeDecode, Message: "malformed response", Path: path, Err: err}
	}
	return env.Data, nil
}

// decodeError builds an *Error from a non-2xx response. A body that is not a
// JSON envelope still yields an error carrying the status code.
func decodeError(resp *http.Response, path string) error {
	apiErr := &Error{Status: resp.StatusCode, Path: path}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env domain.Envelope[json.RawMessage]
	if len(raw) > 0 && json.Unmarshal(raw, &env) == nil {
		apiErr.Message = env.Message
		apiErr.Code = env.Code
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// sessionScoped marks 404/410 answers from a session endpoint as a stale
// session so callers can restart the funnel.
func sessionScoped(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusGone) {
		apiErr.Err = ErrSessionExpired
	}
	return err
}
