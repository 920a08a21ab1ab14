// Package clubhub logs in to the ClubHub mobile API. ClubHub issues a
// bearer token from a JSON login, so there is no form scraping and no
// cookie requirement.
package clubhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
	"github.com/aussiebroadwan/clubauth/pkg/vendorhttp"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultBaseURL = "https://clubhub-ios-api.anytimefitness.com"
	LoginPath      = "/api/login"
)

// expirySkew treats tokens about to expire as already expired.
const expirySkew = 30 * time.Second

// Config configures a Vendor.
type Config struct {
	BaseURL      string
	LoginTimeout time.Duration
	Retry        vendorhttp.Retry
	Transport    http.RoundTripper
	Now          func() time.Time
}

// Vendor is the ClubHub login flow and token validator.
type Vendor struct {
	cfg Config
}

func New(cfg Config) *Vendor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Vendor{cfg: cfg}
}

func (v *Vendor) Service() domain.Service { return domain.ServiceClubHub }

// AppHeaders imitate the ClubHub iOS app.
func AppHeaders() http.Header {
	return http.Header{
		"Api-Version":     {"1"},
		"Accept":          {"application/json"},
		"User-Agent":      {"ClubHub Store/2.15.1 (com.anytimefitness.Club-Hub; build:1007; iOS 18.5.0) Alamofire/5.6.4"},
		"Accept-Language": {"en-US"},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login posts the credentials and keeps the issued access token.
func (v *Vendor) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	log := slogx.FromContext(ctx).With("vendor", domain.ServiceClubHub, "username", creds.Username)

	client, err := vendorhttp.New(v.cfg.BaseURL, vendorhttp.Options{
		Headers:   AppHeaders(),
		Transport: v.cfg.Transport,
		Timeout:   v.cfg.LoginTimeout,
	})
	if err != nil {
		return nil, &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "http client setup failed", Err: err}
	}

	// ClubHub is a JSON API: one POST, no login page or CSRF tokens
	var resp *vendorhttp.Response
	err = creds.WithSecret(func(secret []byte) error {
		body := loginRequest{Username: creds.Username, Password: string(secret)}
		var err error
		resp, err = v.cfg.Retry.Do(ctx, func(ctx context.Context) (*vendorhttp.Response, error) {
			return client.PostJSON(ctx, LoginPath, body, nil, 0)
		}, func(a vendorhttp.Attempt) {
			if a.Status == http.StatusForbidden || a.Err != nil {
				log.Warn("clubhub_login_retry", "attempt", a.N, "status", a.Status, "err", a.Err)
			}
		})
		return err
	})

	switch {
	case errors.Is(err, vendorhttp.ErrRetriesExhausted):
		return nil, &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "login post failed: 403", Err: domain.ErrRateLimited}
	case errors.Is(err, vendorhttp.ErrTransport):
		return nil, &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "login post failed: transport error", Err: errors.Join(domain.ErrTransport, err)}
	case err != nil:
		return nil, &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "login post failed", Err: err}
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.LoginError{
			State:  domain.StateSubmitCredentials,
			Reason: fmt.Sprintf("login post failed: %d", resp.StatusCode),
			Err:    domain.ErrLoginRejected,
		}
	}

	// A 200 without a token is as good as a rejection
	var lr loginResponse
	if err := json.Unmarshal(resp.Body, &lr); err != nil || lr.AccessToken == "" {
		return nil, &domain.LoginError{
			State:  domain.StateExtractSessionCookies,
			Reason: "no accessToken in login response",
			Err:    domain.ErrMissingSessionArtifacts,
		}
	}

	// Every later call on this session carries the token
	client.SetHeader("Authorization", "Bearer "+lr.AccessToken)
	log.Info("clubhub_login_succeeded")

	return domain.NewAuthenticatedSession(domain.SessionParams{
		Service:     domain.ServiceClubHub,
		Username:    creds.Username,
		BaseURL:     v.cfg.BaseURL,
		BearerToken: lr.AccessToken,
		Client:      client,
		Now:         v.cfg.Now(),
	}), nil
}

// Alive reads the token's exp claim without verifying the signature; the
// signing key is ClubHub's. Tokens without a readable exp are trusted
// until the cache's own age and idle limits evict them.
func (v *Vendor) Alive(ctx context.Context, s *domain.Session) bool {
	if s.BearerToken == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.BearerToken, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	// Treat a token about to expire as already gone
	alive := v.cfg.Now().Add(expirySkew).Before(exp.Time)
	if !alive {
		slogx.FromContext(ctx).Info("clubhub_token_expired", "username", s.Username, "exp", exp.Time)
	}
	return alive
}
