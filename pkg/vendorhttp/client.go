// Package vendorhttp is a cookie-jar backed HTTP client for talking to a
// vendor web UI as if it were an API. Each Client owns exactly one jar, so
// one Client corresponds to one vendor login.
package vendorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// MaxBodyBytes caps how much of a vendor response body is read.
const MaxBodyBytes = 4 << 20

// DefaultTimeout applies to calls made without an explicit timeout.
const DefaultTimeout = 30 * time.Second

// ErrTransport wraps DNS, connection, TLS and timeout failures.
var ErrTransport = errors.New("vendorhttp: transport error")

// Options configures a Client.
type Options struct {
	// Headers are sent on every request unless overridden per call.
	Headers http.Header
	// Transport is shared between clients; nil uses http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout is the default per-call timeout.
	Timeout time.Duration
}

// Client wraps two http.Clients sharing one jar: one that follows
// redirects and one that stops at the first response.
type Client struct {
	BaseURL string

	headers    http.Header
	timeout    time.Duration
	jar        http.CookieJar
	follow     *http.Client
	noRedirect *http.Client
}

// Response is a fully read vendor response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final URL after redirects.
	URL *url.URL
}

// Location returns the redirect target, if any.
func (r *Response) Location() string { return r.Header.Get("Location") }

// IsRedirect reports a 3xx status.
func (r *Response) IsRedirect() bool { return r.StatusCode >= 300 && r.StatusCode < 400 }

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// New creates a Client with a fresh, empty cookie jar.
func New(baseURL string, opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		headers: opts.Headers.Clone(),
		timeout: timeout,
		jar:     jar,
		follow:  &http.Client{Jar: jar, Transport: transport},
		noRedirect: &http.Client{
			Jar:       jar,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// URL resolves a path against the base URL. Absolute URLs pass through.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

// SetHeader changes a default header for all later calls.
func (c *Client) SetHeader(key, value string) {
	if c.headers == nil {
		c.headers = http.Header{}
	}
	c.headers.Set(key, value)
}

// Header returns a copy of the default headers.
func (c *Client) Header() http.Header { return c.headers.Clone() }

// Request describes one call.
type Request struct {
	Method   string
	Path     string
	Body     []byte
	Header   http.Header
	Timeout  time.Duration
	Redirect bool
}

// Do performs the request and reads the whole body.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.URL(r.Path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	for key, values := range r.Header {
		req.Header[key] = append([]string(nil), values...)
	}

	hc := c.noRedirect
	if r.Redirect {
		hc = c.follow
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s body: %w", ErrTransport, r.Path, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL,
	}, nil
}

// Get follows redirects.
func (c *Client) Get(ctx context.Context, path string, header http.Header, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Header: header, Timeout: timeout, Redirect: true})
}

// GetNoRedirect returns the first response, redirect or not.
func (c *Client) GetNoRedirect(ctx context.Context, path string, header http.Header, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Header: header, Timeout: timeout})
}

// PostForm submits url-encoded form data and follows redirects.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, header http.Header, timeout time.Duration) (*Response, error) {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     path,
		Body:     []byte(form.Encode()),
		Header:   h,
		Timeout:  timeout,
		Redirect: true,
	})
}

// PostJSON marshals v and posts it, following redirects.
func (c *Client) PostJSON(ctx context.Context, path string, v any, header http.Header, timeout time.Duration) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	return c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     path,
		Body:     data,
		Header:   h,
		Timeout:  timeout,
		Redirect: true,
	})
}

// Cookies returns the jar's cookies visible to the given path.
func (c *Client) Cookies(path string) []*http.Cookie {
	u, err := url.Parse(c.URL(path))
	if err != nil {
		return nil
	}
	return c.jar.Cookies(u)
}

// CookiePath is where cookies are looked up by default. Vendors scope
// session cookies to "/" or "/action", and this path sees both.
const CookiePath = "/action/Dashboard/view"

// Cookie returns a named cookie value visible under CookiePath.
func (c *Client) Cookie(name string) (string, bool) {
	for _, ck := range c.Cookies(CookiePath) {
		if ck.Name == name && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

// CookieNames lists the cookie names visible under CookiePath.
func (c *Client) CookieNames() []string {
	cookies := c.Cookies(CookiePath)
	names := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		names = append(names, ck.Name)
	}
	return names
}
