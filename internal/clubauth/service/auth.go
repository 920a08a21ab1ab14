// Package service ties the vendor login flows to the session cache, the
// login throttle and the credential chain.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/metrics"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/pkg/idx"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
)

// maxRounds bounds how often Authenticate goes back to the cache after
// evicting a dead session or losing a race with a failed leader.
const maxRounds = 3

// Vendor is one vendor's login state machine and liveness probe.
type Vendor interface {
	Service() domain.Service
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Alive(ctx context.Context, s *domain.Session) bool
}

// AuthOptions configures an AuthService. Zero values take defaults.
type AuthOptions struct {
	MaxAge       time.Duration
	MaxIdle      time.Duration
	Cooldown     time.Duration
	InflightWait time.Duration
	Breaker      BreakerConfig
	Now          func() time.Time
	Sleep        func(context.Context, time.Duration) error
}

// AuthService is the entry point for callers that need a vendor session.
type AuthService struct {
	Credentials *CredentialProvider
	// Store records login attempts. It may be nil.
	Store  store.Store
	Logger *slog.Logger

	vendors      map[domain.Service]Vendor
	breakers     map[domain.Service]*breaker
	cache        *SessionCache
	throttle     *Throttle
	inflightWait time.Duration
	now          func() time.Time
}

func NewAuthService(creds *CredentialProvider, st store.Store, logger *slog.Logger, opts AuthOptions, vendors ...Vendor) *AuthService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.InflightWait <= 0 {
		opts.InflightWait = DefaultInflightWait
	}

	s := &AuthService{
		Credentials: creds,
		Store:       st,
		Logger:      logger,
		vendors:     map[domain.Service]Vendor{},
		breakers:    map[domain.Service]*breaker{},
		cache: NewSessionCache(CacheOptions{
			MaxAge:  opts.MaxAge,
			MaxIdle: opts.MaxIdle,
			Now:     opts.Now,
		}),
		throttle:     NewThrottle(opts.Cooldown, opts.Now, opts.Sleep),
		inflightWait: opts.InflightWait,
		now:          opts.Now,
	}
	for _, v := range vendors {
		s.vendors[v.Service()] = v
		s.breakers[v.Service()] = newBreaker(v.Service(), opts.Breaker, logger)
	}
	return s
}

// Cache exposes the session cache to housekeeping.
func (s *AuthService) Cache() *SessionCache { return s.cache }

// Throttle exposes the login throttle to housekeeping.
func (s *AuthService) Throttle() *Throttle { return s.throttle }

// Services lists the configured vendors.
func (s *AuthService) Services() []domain.Service {
	out := make([]domain.Service, 0, len(s.vendors))
	for _, svc := range []domain.Service{domain.ServiceClubOS, domain.ServiceClubHub} {
		if _, ok := s.vendors[svc]; ok {
			out = append(out, svc)
		}
	}
	return out
}

// BreakerState reports the circuit state of one vendor.
func (s *AuthService) BreakerState(service domain.Service) string {
	return s.breakers[service].State()
}

// Authenticate returns a usable session for (service, username). An empty
// username is resolved from the credential chain; an empty password is
// resolved only when a login is actually needed. Every failure is an
// *domain.AuthFailure.
func (s *AuthService) Authenticate(ctx context.Context, service domain.Service, username, password string) (*domain.Session, error) {
	v, ok := s.vendors[service]
	if !ok {
		return nil, domain.NewAuthFailure(service, fmt.Errorf("%w: %s", domain.ErrUnknownService, service))
	}

	// No username means "the configured account" for this vendor.
	if username == "" {
		u, err := s.Credentials.Username(ctx, service)
		if err != nil {
			return nil, domain.NewAuthFailure(service, err)
		}
		username = u
	}

	key := KeyOf(service, username)
	log := s.Logger.With("service", service, "username", username)
	ctx = slogx.WithContext(ctx, log)

	for range maxRounds {
		hit, f, leader := s.cache.Acquire(key)

		switch {
		case hit != nil:
			// A usable entry is still probed: the vendor may have ended the
			// session on its side before our age and idle limits did.
			if v.Alive(ctx, hit) {
				hit.Touch(s.now())
				metrics.RecordCacheLookup(string(service), "hit")
				return hit, nil
			}
			log.Info("cached session is dead, evicting", "session_id", hit.ID)
			metrics.RecordCacheLookup(string(service), "dead")
			s.cache.InvalidateIf(key, hit)
			continue

		case !leader:
			// Someone else is already logging in for this key; share their
			// result rather than racing them to the vendor.
			metrics.RecordCacheLookup(string(service), "shared")
			sess, err := f.Wait(ctx, s.inflightWait)
			if err != nil {
				return nil, domain.NewAuthFailure(service, err)
			}
			sess.Touch(s.now())
			return sess, nil
		}

		metrics.RecordCacheLookup(string(service), "miss")

		// The login runs detached from this caller: waiters share its
		// outcome, so one caller going away must not fail all of them. The
		// vendor request timeouts still bound it.
		go s.lead(context.WithoutCancel(ctx), v, key, f, username, password)

		sess, err := f.Result(ctx)
		if err != nil {
			return nil, domain.NewAuthFailure(service, err)
		}
		return sess, nil
	}

	return nil, domain.NewAuthFailure(service, errors.New("session kept failing validation"))
}

// lead runs the login for key and publishes the outcome to every waiter,
// including the caller that started it.
func (s *AuthService) lead(ctx context.Context, v Vendor, key Key, f *Flight, username, password string) {
	var (
		sess *domain.Session
		err  error
	)
	defer func() { s.cache.Finish(key, f, sess, err) }()

	service := v.Service()
	log := slogx.FromContext(ctx)

	// Resolve credentials before touching the throttle, so a missing
	// password does not burn an attempt slot.
	creds, err := s.credentials(ctx, service, username, password)
	if err != nil {
		log.Warn("no credentials for login", "error", err)
		return
	}

	// Book the attempt and wait out the cooldown since the previous one.
	start := s.now()
	wait, err := s.throttle.Wait(ctx, key.String())
	metrics.ThrottleWait.WithLabelValues(string(service)).Observe(wait.Seconds())
	if err != nil {
		return
	}
	if wait > 0 {
		log.Info("login throttled", "wait", wait)
	}

	attemptStart := s.now()
	sess, err = s.breakers[service].Run(ctx, func() (*domain.Session, error) {
		return v.Login(ctx, creds)
	})
	s.recordAttempt(ctx, service, username, attemptStart, err)

	if err != nil {
		metrics.RecordLogin(string(service), domain.OutcomeFailure, s.now().Sub(start))
		log.Warn("vendor login failed", "error", err)
		return
	}
	metrics.RecordLogin(string(service), domain.OutcomeSuccess, s.now().Sub(start))
	if sess != nil {
		log.Info("vendor login succeeded", "session_id", sess.ID, "credential_source", creds.Source)
	}
}

func (s *AuthService) credentials(ctx context.Context, service domain.Service, username, password string) (domain.Credentials, error) {
	if password != "" {
		if s.Credentials != nil && s.Credentials.IsPlaceholder(password) {
			return domain.Credentials{}, fmt.Errorf("%w: placeholder password", domain.ErrCredentialsUnavailable)
		}
		return domain.NewCredentials(service, username, []byte(password), "caller")
	}

	creds, err := s.Credentials.Resolve(ctx, service)
	if err != nil {
		return domain.Credentials{}, err
	}
	if !strings.EqualFold(creds.Username, username) {
		return domain.Credentials{}, fmt.Errorf("%w: no stored password for %s", domain.ErrCredentialsUnavailable, username)
	}
	return creds, nil
}

func (s *AuthService) recordAttempt(ctx context.Context, service domain.Service, username string, started time.Time, err error) {
	if s.Store == nil {
		return
	}
	a := domain.LoginAttempt{
		ID:         idx.NewAt(started).String(),
		Service:    service,
		Username:   username,
		StartedAt:  started,
		FinishedAt: s.now(),
		Outcome:    domain.OutcomeSuccess,
	}
	if err != nil {
		a.Outcome = domain.OutcomeFailure
		a.Reason = domain.NewAuthFailure(service, err).Reason
	}
	// Use a detached context so a cancelled caller still leaves a record.
	if rerr := s.Store.LoginAttempts().RecordLoginAttempt(context.WithoutCancel(ctx), a); rerr != nil {
		s.Logger.Error("failed to record login attempt", "error", rerr)
	}
}

// InvalidateSession drops the cached session for (service, username). It
// reports whether there was one; an empty key is a no-op.
func (s *AuthService) InvalidateSession(service domain.Service, username string) bool {
	ok := s.cache.Invalidate(KeyOf(service, username))
	if ok {
		s.Logger.Info("session invalidated", "service", service, "username", username)
	}
	return ok
}

// SessionInfo is a diagnostic snapshot of the cache.
func (s *AuthService) SessionInfo() []domain.SessionInfo {
	return s.cache.Snapshot()
}

// LoginAttempts lists recorded attempts, newest first.
func (s *AuthService) LoginAttempts(ctx context.Context, f store.LoginAttemptFilter) ([]domain.LoginAttempt, error) {
	if s.Store == nil {
		return nil, nil
	}
	return s.Store.LoginAttempts().ListLoginAttempts(ctx, f)
}
