package clubsdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is a machine readable code (e.g. "authentication_failed")
	Error string `json:"error"`

	// ErrorDescription is a human readable description
	ErrorDescription string `json:"error_description,omitempty"`
}

// ============================================================================
// Session Types
// ============================================================================

// SessionInfo is the diagnostic view of one cached vendor session. It never
// carries cookies or tokens.
type SessionInfo struct {
	ID            string            `json:"id"`
	Service       string            `json:"service"`
	Username      string            `json:"username"`
	Authenticated bool              `json:"authenticated"`
	CreatedAt     time.Time         `json:"created_at"`
	LastUsedAt    time.Time         `json:"last_used_at"`
	Expired       bool              `json:"is_expired"`
	Stale         bool              `json:"is_stale"`
	HasBearer     bool              `json:"has_bearer"`
	VendorContext map[string]string `json:"vendor_context,omitempty"`
}

// ListSessionsResponse is returned from GET /v1/sessions.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// LoginRequest is the optional body of POST /v1/sessions/{service}. Empty
// fields are resolved from the configured credential chain.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// LoginResponse is returned from POST /v1/sessions/{service}.
type LoginResponse struct {
	Session SessionInfo `json:"session"`
}

// InvalidateResponse is returned from DELETE /v1/sessions/{service}/{username}.
type InvalidateResponse struct {
	// Invalidated is false when there was no cached session
	Invalidated bool `json:"invalidated"`
}

// ============================================================================
// Audit Types
// ============================================================================

// LoginAttempt is one recorded run of a vendor login.
type LoginAttempt struct {
	ID         string    `json:"id"`
	Service    string    `json:"service"`
	Username   string    `json:"username"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
}

// ListLoginAttemptsResponse is returned from GET /v1/login-attempts.
type ListLoginAttemptsResponse struct {
	Attempts []LoginAttempt `json:"attempts"`
}

// LoginAttemptsQuery filters GET /v1/login-attempts. Zero fields match all.
type LoginAttemptsQuery struct {
	Service  string
	Username string
	Limit    int
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz (readyz adds Checks).
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is the service uptime (e.g. "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	Version string `json:"version,omitempty"`

	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency.
type HealthChecks struct {
	// Database is "ok", "disabled" or an error
	Database string `json:"database"`

	// Vendors maps each service to its circuit breaker state
	Vendors map[string]string `json:"vendors"`

	// CachedSessions is the number of sessions in the cache
	CachedSessions int `json:"cached_sessions"`
}
