// Package clubos logs in to the ClubOS web application by driving its
// HTML login form, and probes whether an existing session is still alive.
package clubos

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/pkg/vendorhttp"
)

// Vendor paths.
const (
	LoginPagePath    = "/action/Login/view"
	LoginActionPath  = "/action/Login"
	DashboardPath    = "/action/Dashboard/view"
	ClubSelectAction = "/action/Club/select"
)

// Cookie names.
const (
	CookieSessionID       = "JSESSIONID"
	CookieLoggedInUserID  = "loggedInUserId"
	CookieDelegatedUserID = "delegatedUserId"
	CookieAccessToken     = "apiV3AccessToken"
)

// DefaultBaseURL is the production ClubOS host.
const DefaultBaseURL = "https://secure.club-os.com"

// Config configures a Vendor.
type Config struct {
	BaseURL string

	// LoginTimeout bounds each request of the login flow.
	LoginTimeout time.Duration
	// ValidateTimeout bounds the liveness probe.
	ValidateTimeout time.Duration
	// ClubInfo enables scraping club ids from the dashboard after login.
	ClubInfo bool

	Retry     vendorhttp.Retry
	Transport http.RoundTripper
	Now       func() time.Time
}

// Vendor is the ClubOS login state machine and session validator.
type Vendor struct {
	cfg Config
}

// New applies defaults to cfg.
func New(cfg Config) *Vendor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 30 * time.Second
	}
	if cfg.ValidateTimeout <= 0 {
		cfg.ValidateTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Vendor{cfg: cfg}
}

func (v *Vendor) Service() domain.Service { return domain.ServiceClubOS }

// BrowserHeaders imitate a desktop browser. ClubOS rejects login posts
// that carry X-Requested-With, so the login flow uses these.
func BrowserHeaders() http.Header {
	return http.Header{
		"User-Agent":      {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.9"},
	}
}

// AJAXHeaders are attached to an authenticated session for the XHR-style
// calls made on top of it.
func AJAXHeaders() http.Header {
	return http.Header{
		"User-Agent":         {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36 Edg/138.0.0.0"},
		"Accept":             {"*/*"},
		"Accept-Language":    {"en-US,en;q=0.9"},
		"Sec-Ch-Ua":          {`"Not)A;Brand";v="8", "Chromium";v="138", "Microsoft Edge";v="138"`},
		"Sec-Ch-Ua-Mobile":   {"?0"},
		"Sec-Ch-Ua-Platform": {`"Windows"`},
		"Sec-Fetch-Site":     {"same-origin"},
		"Sec-Fetch-Mode":     {"cors"},
		"Sec-Fetch-Dest":     {"empty"},
		"X-Requested-With":   {"XMLHttpRequest"},
		"Cache-Control":      {"no-cache"},
		"Pragma":             {"no-cache"},
	}
}
