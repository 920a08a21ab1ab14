// Package clubsdk is a client for the clubauth admin API: listing, opening
// and dropping cached vendor sessions and reading the login audit trail.
//
//	client := clubsdk.NewClient("http://localhost:8080", adminToken)
//	sessions, err := client.ListSessions(ctx)
//	info, err := client.Login(ctx, "clubos", clubsdk.LoginRequest{})
//	_, err = client.InvalidateSession(ctx, "clubos", info.Username)
//
// Health endpoints need no token.
package clubsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one clubauth server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// AdminToken is sent as a bearer token on /v1 endpoints.
	AdminToken string
}

// NewClient creates a client. Vendor logins can take a while, so the
// default timeout is generous.
func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		AdminToken: adminToken,
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doRequest sends a request, JSON encoding body when it is not nil.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, authenticated bool) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// decodeJSON decodes a response with expectedStatus into target, or returns
// an *APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		if err := parseErrorResponse(resp, bodyBytes); err != nil {
			return err
		}
		return &APIError{StatusCode: resp.StatusCode, Code: ErrorCodeServerError, Description: "unexpected status"}
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
