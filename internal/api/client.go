// Package api is the HTTP client for the task tracker REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxBodySize caps how much of a buffered response body is read into
// memory. Streamed downloads are not capped.
const maxBodySize = 16 << 20

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	cookie  string
	log     *slog.Logger
	timeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTransport wraps requests in rt, e.g. an instrumented transport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// WithSessionCookie forwards an opaque session cookie ("name=value") on every request
func WithSessionCookie(cookie string) Option {
	return func(c *Client) { c.cookie = strings.TrimSpace(cookie) }
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client for the backend rooted at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Transport: http.DefaultTransport},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// request describes one API call
type request struct {
	method      string
	path        string
	query       url.Values
	rawQuery    string
	body        io.Reader
	contentType string
	// sink receives a 2xx body instead of buffering it
	sink io.Writer
}

// response is a completed 2xx exchange
type response struct {
	contentType string
	header      http.Header
	body        []byte
}

func (c *Client) send(ctx context.Context, r request) (*response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.endpoint(r.path, r.query)
	if r.rawQuery != "" {
		target += "?" + r.rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", r.method, "path", r.path, "request_id", reqID, "error", err)
		return nil, &TransportError{Method: r.method, Path: r.path, Err: err}
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	c.log.Debug("request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return nil, &HTTPError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(ct, body),
		}
	}

	if r.sink != nil {
		sw := &sinkWriter{w: r.sink}
		if _, err := io.Copy(sw, resp.Body); err != nil {
			if sw.err != nil {
				return nil, fmt.Errorf("write body: %w", sw.err)
			}
			return nil, &TransportError{Method: r.method, Path: r.path, Err: err}
		}
		return &response{contentType: ct, header: resp.Header}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &TransportError{Method: r.method, Path: r.path, Err: err}
	}
	if len(body) > maxBodySize {
		return nil, &DecodeError{Method: r.method, Path: r.path, ContentType: ct,
			Err: fmt.Errorf("response body exceeds %d bytes", maxBodySize)}
	}
	return &response{contentType: ct, header: resp.Header, body: body}, nil
}

// sinkWriter remembers write errors so they are not reported as transport failures
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

// do sends r and decodes a JSON body into out when out is non-nil
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if !isJSON(resp.contentType) {
		return &DecodeError{Method: r.method, Path: r.path, ContentType: resp.contentType,
			Err: fmt.Errorf("expected JSON body")}
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &DecodeError{Method: r.method, Path: r.path, ContentType: resp.contentType, Err: err}
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bytes.NewReader(b), nil
}
