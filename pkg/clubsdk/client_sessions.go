package clubsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListSessions returns the cached vendor sessions.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/sessions", nil, true)
	if err != nil {
		return nil, err
	}

	var out ListSessionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Login asks the server for a session with service, reusing a cached one
// when it is still alive.
func (c *Client) Login(ctx context.Context, service string, req LoginRequest) (*SessionInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(service), req, true)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// InvalidateSession drops a cached session. It reports false when there
// was nothing to drop.
func (c *Client) InvalidateSession(ctx context.Context, service, username string) (bool, error) {
	path := "/v1/sessions/" + url.PathEscape(service) + "/" + url.PathEscape(username)
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil, true)
	if err != nil {
		return false, err
	}

	var out InvalidateResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Invalidated, nil
}

// ListLoginAttempts reads the login audit trail, newest first.
func (c *Client) ListLoginAttempts(ctx context.Context, q LoginAttemptsQuery) ([]LoginAttempt, error) {
	v := url.Values{}
	if q.Service != "" {
		v.Set("service", q.Service)
	}
	if q.Username != "" {
		v.Set("username", q.Username)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/v1/login-attempts"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}

	var out ListLoginAttemptsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Attempts, nil
}
