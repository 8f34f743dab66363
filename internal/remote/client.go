package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/outbox/internal/engine"
	"github.com/roach88/outbox/internal/netstate"
	"github.com/roach88/outbox/internal/payload"
)

// Ensure Client implements the core interfaces at compile time.
var (
	_ engine.Invoker  = (*Client)(nil)
	_ netstate.Prober = (*Client)(nil)
)

const (
	defaultBaseURL   = "http://127.0.0.1:8080"
	defaultUserAgent = "outbox/0.1"
	probeTimeout     = 3 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20

	// IdempotencyKeyHeader carries the entry's idempotency key.
	IdempotencyKeyHeader = "Idempotency-Key"
)

// StatusError is returned for HTTP responses with status 400 or above.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api %s returned status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.StatusCode, e.Body)
}

// Client talks to the command API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the server at baseURL. A bare host:port is
// accepted; an empty value uses http://127.0.0.1:8080.
//
// The client sets no overall timeout of its own: invokes are bounded by
// the synchronizer's context, probes by a short internal deadline.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Invoke posts one command and classifies the answer.
func (c *Client) Invoke(ctx context.Context, commandName string, args payload.Value) (engine.Result, error) {
	if c == nil {
		return engine.Result{}, fmt.Errorf("client is nil")
	}
	if args == nil {
		args = payload.Null{}
	}
	body, err := payload.Marshal(args)
	if err != nil {
		return engine.Result{}, fmt.Errorf("encode args: %w", err)
	}

	rel, err := commandPath(commandName)
	if err != nil {
		return engine.Result{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, rel, bytes.NewReader(body))
	if err != nil {
		return engine.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := engine.IdempotencyKey(ctx); key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}

	raw, err := c.do(req, rel)
	if err != nil {
		return engine.Result{}, err
	}
	return decodeResult(raw), nil
}

// Probe reports whether the server answers its health endpoint.
func (c *Client) Probe(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	rel := &url.URL{Path: "/api/health"}
	req, err := c.newRequest(ctx, http.MethodGet, rel, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, rel)
	return err
}

// commandPath escapes the command name into a single path segment, so a
// name containing '/' or '..' cannot address another endpoint.
func commandPath(commandName string) (*url.URL, error) {
	switch commandName {
	case "", ".", "..":
		return nil, fmt.Errorf("invalid command name %q", commandName)
	}
	const prefix = "/api/commands/"
	return &url.URL{
		Path:    prefix + commandName,
		RawPath: prefix + url.PathEscape(commandName),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL, body io.Reader) (*http.Request, error) {
	// Copied rather than resolved: resolution would remove dot segments.
	reqURL := *c.baseURL
	reqURL.Path = rel.Path
	reqURL.RawPath = rel.RawPath
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) do(req *http.Request, rel *url.URL) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{
			Path:       rel.Path,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(raw)), 200),
		}
	}
	return raw, nil
}

// decodeResult reads the explicit success indicator. Bodies that are not
// JSON are ignored.
func decodeResult(raw []byte) engine.Result {
	if len(bytes.TrimSpace(raw)) == 0 {
		return engine.Result{}
	}
	body, err := payload.Parse(raw)
	if err != nil {
		return engine.Result{}
	}
	res := engine.Result{Body: body}
	if obj, ok := body.(payload.Object); ok {
		if flag, ok := obj["success"].(payload.Bool); ok {
			success := bool(flag)
			res.Success = &success
		}
	}
	return res
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse server_url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
