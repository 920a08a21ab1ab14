package domain

import (
	"maps"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/clubauth/pkg/idx"
	"github.com/aussiebroadwan/clubauth/pkg/vendorhttp"
)

// Keys used in Session.VendorContext.
const (
	CtxSessionID       = "sessionId"
	CtxLoggedInUserID  = "loggedInUserId"
	CtxDelegatedUserID = "delegatedUserId"
	CtxClubID          = "clubId"
	CtxClubLocationID  = "clubLocationId"
)

// Default lifetime thresholds for cached sessions.
const (
	DefaultMaxAge  = 8 * time.Hour
	DefaultMaxIdle = 2 * time.Hour
)

// Session is the outcome of a successful vendor login. It owns its cookie
// jar through Client. Once published to the cache everything except the
// last-used timestamp and the authenticated flag is read only.
type Session struct {
	ID          string
	Service     Service
	Username    string
	BaseURL     string
	CreatedAt   time.Time
	BearerToken string

	// VendorContext holds vendor identifiers extracted after login (club id,
	// delegated user id, ...). Opaque to the auth layer.
	VendorContext map[string]string

	client        *vendorhttp.Client
	lastUsed      atomic.Int64
	authenticated atomic.Bool
}

// SessionParams carries everything a login state machine gathered.
type SessionParams struct {
	Service       Service
	Username      string
	BaseURL       string
	BearerToken   string
	VendorContext map[string]string
	Client        *vendorhttp.Client
	Now           time.Time
}

// NewAuthenticatedSession builds a session that is ready to be cached.
// Only login state machines call this, and only on success.
func NewAuthenticatedSession(p SessionParams) *Session {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	s := &Session{
		ID:            idx.NewAt(now).String(),
		Service:       p.Service,
		Username:      p.Username,
		BaseURL:       p.BaseURL,
		CreatedAt:     now,
		BearerToken:   p.BearerToken,
		VendorContext: maps.Clone(p.VendorContext),
		client:        p.Client,
	}
	if s.VendorContext == nil {
		s.VendorContext = map[string]string{}
	}
	s.lastUsed.Store(now.UnixNano())
	s.authenticated.Store(true)
	return s
}

// Authenticated reports whether the session has not been invalidated.
func (s *Session) Authenticated() bool { return s.authenticated.Load() }

// Invalidate marks the session unusable. It is never revived.
func (s *Session) Invalidate() { s.authenticated.Store(false) }

// LastUsedAt returns the last time the session was handed to a caller.
func (s *Session) LastUsedAt() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Touch records use of the session. Concurrent touches race harmlessly.
func (s *Session) Touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

// IsExpired reports whether the session is older than maxAge.
func (s *Session) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.CreatedAt) > maxAge
}

// IsStale reports whether the session has been idle longer than maxIdle.
func (s *Session) IsStale(now time.Time, maxIdle time.Duration) bool {
	return now.Sub(s.LastUsedAt()) > maxIdle
}

// Usable is the single rule deciding whether a session may be returned.
func (s *Session) Usable(now time.Time, maxAge, maxIdle time.Duration) bool {
	return s.Authenticated() && !s.IsExpired(now, maxAge) && !s.IsStale(now, maxIdle)
}

// Client returns the HTTP client bound to this session's cookie jar.
func (s *Session) Client() *vendorhttp.Client { return s.client }

// Cookie returns a cookie value from the session's jar.
func (s *Session) Cookie(name string) (string, bool) {
	if s.client == nil {
		return "", false
	}
	return s.client.Cookie(name)
}

// AuthHeaders returns the headers downstream AJAX calls attach.
func (s *Session) AuthHeaders() http.Header {
	h := http.Header{}
	if s.BearerToken != "" {
		h.Set("Authorization", "Bearer "+s.BearerToken)
	}
	return h
}

// SessionInfo is a diagnostic view of a session. It carries no secrets.
type SessionInfo struct {
	ID            string            `json:"id"`
	Service       Service           `json:"service"`
	Username      string            `json:"username"`
	Authenticated bool              `json:"authenticated"`
	CreatedAt     time.Time         `json:"created_at"`
	LastUsedAt    time.Time         `json:"last_used_at"`
	Expired       bool              `json:"is_expired"`
	Stale         bool              `json:"is_stale"`
	HasBearer     bool              `json:"has_bearer"`
	VendorContext map[string]string `json:"vendor_context,omitempty"`
}

// Info snapshots the session for diagnostics.
func (s *Session) Info(now time.Time, maxAge, maxIdle time.Duration) SessionInfo {
	return SessionInfo{
		ID:            s.ID,
		Service:       s.Service,
		Username:      s.Username,
		Authenticated: s.Authenticated(),
		CreatedAt:     s.CreatedAt,
		LastUsedAt:    s.LastUsedAt(),
		Expired:       s.IsExpired(now, maxAge),
		Stale:         s.IsStale(now, maxIdle),
		HasBearer:     s.BearerToken != "",
		VendorContext: maps.Clone(s.VendorContext),
	}
}
