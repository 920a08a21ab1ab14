package clubos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/pkg/htmlx"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
	"github.com/aussiebroadwan/clubauth/pkg/vendorhttp"
)

// clubSelectMarkers identify the club selection interstitial by URL.
var clubSelectMarkers = []string{"selectclub", "club/select"}

// clubSelectFields are the selector names the interstitial uses.
var clubSelectFields = []string{domain.CtxClubLocationID, domain.CtxClubID}

// login carries the data gathered between states.
type login struct {
	v      *Vendor
	client *vendorhttp.Client
	creds  domain.Credentials

	page       *vendorhttp.Response
	sourcePage string
	fp         string
	landing    *vendorhttp.Response

	sessionID   string
	userID      string
	vendorCtx   map[string]string
	bearerToken string
}

func fail(state domain.LoginState, err error, format string, args ...any) error {
	return &domain.LoginError{State: state, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Login runs the state machine to completion. It returns a session only
// from the Authenticated state; every other exit is a *domain.LoginError.
func (v *Vendor) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	client, err := vendorhttp.New(v.cfg.BaseURL, vendorhttp.Options{
		Headers:   BrowserHeaders(),
		Transport: v.cfg.Transport,
		Timeout:   v.cfg.LoginTimeout,
	})
	if err != nil {
		return nil, fail(domain.StateFetchLoginPage, err, "http client setup failed")
	}

	// The client and its jar belong to this login only; on success they
	// move into the session.
	l := &login{v: v, client: client, creds: creds, vendorCtx: map[string]string{}}
	log := slogx.FromContext(ctx).With("vendor", domain.ServiceClubOS, "username", creds.Username)

	state := domain.StateFetchLoginPage
	for state != domain.StateAuthenticated {
		next, err := l.step(ctx, state)
		if err != nil {
			log.Warn("clubos_login_failed", "state", state.String(), "err", err)
			return nil, err
		}
		log.Debug("clubos_login_transition", "from", state.String(), "to", next.String())
		state = next
	}

	// Later calls on the session are AJAX calls made with the bearer token
	for k, vals := range AJAXHeaders() {
		client.SetHeader(k, vals[0])
	}
	client.SetHeader("Authorization", "Bearer "+l.bearerToken)

	return domain.NewAuthenticatedSession(domain.SessionParams{
		Service:       domain.ServiceClubOS,
		Username:      creds.Username,
		BaseURL:       v.cfg.BaseURL,
		BearerToken:   l.bearerToken,
		VendorContext: l.vendorCtx,
		Client:        client,
		Now:           v.cfg.Now(),
	}), nil
}

func (l *login) step(ctx context.Context, state domain.LoginState) (domain.LoginState, error) {
	switch state {
	case domain.StateFetchLoginPage:
		return l.fetchLoginPage(ctx)
	case domain.StateExtractTokens:
		return l.extractTokens()
	case domain.StateSubmitCredentials:
		return l.submitCredentials(ctx)
	case domain.StateClubSelection:
		return l.selectClub(ctx)
	case domain.StateExtractSessionCookies:
		return l.extractSessionCookies()
	case domain.StateDeriveBearerToken:
		return l.deriveBearerToken()
	case domain.StateValidate:
		return l.validate(ctx)
	default:
		return domain.StateFailed, fail(state, nil, "unexpected login state")
	}
}

func (l *login) fetchLoginPage(ctx context.Context) (domain.LoginState, error) {
	resp, err := l.client.Get(ctx, LoginPagePath, nil, 0)
	if err != nil {
		return domain.StateFailed, fail(domain.StateFetchLoginPage, errors.Join(domain.ErrTransport, err), "login page unreachable")
	}
	// The redirect client follows most hops; a bare 302 is still the page
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return domain.StateFailed, fail(domain.StateFetchLoginPage, domain.ErrLoginRejected, "login page unreachable: %d", resp.StatusCode)
	}
	l.page = resp
	return domain.StateExtractTokens, nil
}

// extractTokens never fails: absent tokens are submitted empty.
func (l *login) extractTokens() (domain.LoginState, error) {
	doc := htmlx.Parse(l.page.Body)
	l.sourcePage = doc.InputValue("_sourcePage").Or("")
	l.fp = doc.InputValue("__fp").Or("")
	return domain.StateSubmitCredentials, nil
}

func (l *login) submitCredentials(ctx context.Context) (domain.LoginState, error) {
	header := http.Header{
		"Origin":  {l.v.cfg.BaseURL},
		"Referer": {l.client.URL(LoginPagePath)},
	}
	log := slogx.FromContext(ctx)

	// The password only exists as a string inside this callback, for the
	// lifetime of the form.
	var resp *vendorhttp.Response
	err := l.creds.WithSecret(func(secret []byte) error {
		form := url.Values{
			"login":       {"Submit"},
			"username":    {l.creds.Username},
			"password":    {string(secret)},
			"_sourcePage": {l.sourcePage},
			"__fp":        {l.fp},
		}
		var err error
		resp, err = l.v.cfg.Retry.Do(ctx, func(ctx context.Context) (*vendorhttp.Response, error) {
			return l.client.PostForm(ctx, LoginActionPath, form, header, 0)
		}, func(a vendorhttp.Attempt) {
			if a.Status == http.StatusForbidden || a.Err != nil {
				log.Warn("clubos_login_post_retry", "attempt", a.N, "status", a.Status, "err", a.Err)
			}
		})
		return err
	})

	// Every attempt got a 403: the vendor is rate limiting us
	switch {
	case errors.Is(err, vendorhttp.ErrRetriesExhausted):
		return domain.StateFailed, fail(domain.StateSubmitCredentials, domain.ErrRateLimited, "login post failed: %d", resp.StatusCode)
	case errors.Is(err, vendorhttp.ErrTransport):
		return domain.StateFailed, fail(domain.StateSubmitCredentials, errors.Join(domain.ErrTransport, err), "login post failed: transport error")
	case err != nil:
		return domain.StateFailed, fail(domain.StateSubmitCredentials, err, "login post failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return domain.StateFailed, fail(domain.StateSubmitCredentials, domain.ErrLoginRejected, "login post failed: %d", resp.StatusCode)
	}

	// Multi-club accounts land on a picker before the dashboard
	l.landing = resp
	if isClubSelection(resp.URL) {
		return domain.StateClubSelection, nil
	}
	return domain.StateExtractSessionCookies, nil
}

func isClubSelection(u *url.URL) bool {
	if u == nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, m := range clubSelectMarkers {
		if strings.Contains(p, m) {
			return true
		}
	}
	return false
}

// selectClub always takes the first offered club.
func (l *login) selectClub(ctx context.Context) (domain.LoginState, error) {
	doc := htmlx.Parse(l.landing.Body)

	var field string
	var choice htmlx.Result
	for _, name := range clubSelectFields {
		if choice = doc.FirstOption(name); choice.Found {
			field = name
			break
		}
	}
	if !choice.Found {
		return domain.StateFailed, fail(domain.StateClubSelection, domain.ErrMissingSessionArtifacts, "club selection: no club offered")
	}

	// Echo the picker's hidden fields back with our choice
	form := url.Values{}
	for _, f := range doc.HiddenInputs() {
		form.Set(f.Name, f.Value)
	}
	form.Set(field, choice.Value)

	// Prefer the form's own action, resolved against where we landed
	action := ClubSelectAction
	if a := doc.FormAction(field); a.Found {
		if ref, err := url.Parse(a.Value); err == nil {
			action = l.landing.URL.ResolveReference(ref).String()
		}
	}

	resp, err := l.client.PostForm(ctx, action, form, http.Header{"Referer": {l.landing.URL.String()}}, 0)
	if err != nil {
		return domain.StateFailed, fail(domain.StateClubSelection, errors.Join(domain.ErrTransport, err), "club selection failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return domain.StateFailed, fail(domain.StateClubSelection, domain.ErrLoginRejected, "club selection failed: %d", resp.StatusCode)
	}

	l.vendorCtx[field] = choice.Value
	l.landing = resp
	slogx.FromContext(ctx).Info("clubos_club_selected", field, choice.Value)
	return domain.StateExtractSessionCookies, nil
}

func (l *login) extractSessionCookies() (domain.LoginState, error) {
	sid, okSID := l.client.Cookie(CookieSessionID)
	uid, okUID := l.client.Cookie(CookieLoggedInUserID)
	if !okSID || !okUID {
		var missing []string
		if !okSID {
			missing = append(missing, CookieSessionID)
		}
		if !okUID {
			missing = append(missing, CookieLoggedInUserID)
		}
		return domain.StateFailed, fail(domain.StateExtractSessionCookies, domain.ErrMissingSessionArtifacts,
			"missing session cookies: %s", strings.Join(missing, ", "))
	}

	l.sessionID, l.userID = sid, uid
	l.vendorCtx[domain.CtxSessionID] = sid
	l.vendorCtx[domain.CtxLoggedInUserID] = uid
	if d, ok := l.client.Cookie(CookieDelegatedUserID); ok {
		l.vendorCtx[domain.CtxDelegatedUserID] = d
	}
	return domain.StateDeriveBearerToken, nil
}

func (l *login) deriveBearerToken() (domain.LoginState, error) {
	// Newer deployments hand the token out as a cookie
	if tok, ok := l.client.Cookie(CookieAccessToken); ok {
		l.bearerToken = tok
		return domain.StateValidate, nil
	}

	// Otherwise mint it from the session cookies
	tok, err := DeriveBearer(l.sessionID, l.userID)
	if err != nil {
		return domain.StateFailed, fail(domain.StateDeriveBearerToken, domain.ErrMissingSessionArtifacts, "bearer token unavailable")
	}
	l.bearerToken = tok
	return domain.StateValidate, nil
}

// validate trusts the cookies; liveness is probed on reuse. The optional
// club info scrape is best effort and never fails the login.
func (l *login) validate(ctx context.Context) (domain.LoginState, error) {
	if !l.v.cfg.ClubInfo {
		return domain.StateAuthenticated, nil
	}

	// Reuse the landing page when it already is the dashboard
	page := l.landing
	if page == nil || page.URL == nil || page.URL.Path != DashboardPath {
		resp, err := l.client.Get(ctx, DashboardPath, nil, l.v.cfg.ValidateTimeout)
		if err != nil || !resp.IsSuccess() {
			slogx.FromContext(ctx).Debug("clubos_club_info_unavailable", "err", err)
			return domain.StateAuthenticated, nil
		}
		page = resp
	}

	doc := htmlx.Parse(page.Body)
	for _, key := range []string{domain.CtxClubID, domain.CtxClubLocationID} {
		// Club selection already recorded the authoritative value
		if _, set := l.vendorCtx[key]; set {
			continue
		}
		if r := doc.ScriptVar(key); r.Found {
			l.vendorCtx[key] = r.Value
		}
	}
	return domain.StateAuthenticated, nil
}
