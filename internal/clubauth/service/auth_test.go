package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/clubos"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/fakevendor"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store/drivers/sqlite"
	"github.com/aussiebroadwan/clubauth/pkg/vendorhttp"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(context.Context, time.Duration) error { return nil }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubVendor logs in without a network.
type stubVendor struct {
	service domain.Service
	now     func() time.Time

	delay   time.Duration
	release chan struct{}
	err     error
	dead    atomic.Bool

	logins atomic.Int32
	probes atomic.Int32
}

func (v *stubVendor) Service() domain.Service { return v.service }

func (v *stubVendor) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	v.logins.Add(1)
	if v.release != nil {
		<-v.release
	}
	if v.delay > 0 {
		time.Sleep(v.delay)
	}
	if v.err != nil {
		return nil, v.err
	}
	return domain.NewAuthenticatedSession(domain.SessionParams{
		Service:     v.service,
		Username:    creds.Username,
		BearerToken: "token",
		Now:         v.now(),
	}), nil
}

func (v *stubVendor) Alive(context.Context, *domain.Session) bool {
	v.probes.Add(1)
	return !v.dead.Load()
}

func envProvider(vars map[string]string) *CredentialProvider {
	return NewCredentialProvider(testLogger(), nil, EnvSource{LookupEnv: func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}})
}

var clubOSEnv = map[string]string{"CLUBOS_USERNAME": "svc_user", "CLUBOS_PASSWORD": "svc_pass"}

type fixture struct {
	auth   *AuthService
	vendor *stubVendor
	clock  *clock
	sleeps *[]time.Duration
}

func newFixture(t *testing.T, opts AuthOptions) fixture {
	t.Helper()

	c := newClock()
	var mu sync.Mutex
	sleeps := []time.Duration{}

	opts.Now = c.Now
	opts.Sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		sleeps = append(sleeps, d)
		return nil
	}

	v := &stubVendor{service: domain.ServiceClubOS, now: c.Now}
	auth := NewAuthService(envProvider(clubOSEnv), nil, testLogger(), opts, v)
	return fixture{auth: auth, vendor: v, clock: c, sleeps: &sleeps}
}

func TestAuthenticateExampleScenario(t *testing.T) {
	t.Parallel()

	fake := fakevendor.NewClubOS()
	t.Cleanup(fake.Close)

	v := clubos.New(clubos.Config{BaseURL: fake.URL(), Retry: vendorhttp.Retry{Sleep: noSleep}})
	auth := NewAuthService(envProvider(clubOSEnv), nil, testLogger(), AuthOptions{Sleep: noSleep}, v)

	ctx := context.Background()
	s1, err := auth.Authenticate(ctx, domain.ServiceClubOS, "", "")
	require.NoError(t, err)
	require.True(t, s1.Authenticated())
	require.Equal(t, "999", s1.VendorContext[domain.CtxLoggedInUserID])
	sid, ok := s1.Cookie("JSESSIONID")
	require.True(t, ok)
	require.Equal(t, "sess123", sid)

	probesBefore := fake.DashboardGets.Load()
	s2, err := auth.Authenticate(ctx, domain.ServiceClubOS, "", "")
	require.NoError(t, err)
	require.Same(t, s1, s2)
	require.EqualValues(t, 1, fake.LoginPosts.Load())
	require.LessOrEqual(t, fake.DashboardGets.Load()-probesBefore, int32(1))
}

func TestAuthenticateReusesCachedSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	ctx := context.Background()

	s1, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)
	s2, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "SVC_User", "")
	require.NoError(t, err)

	require.Same(t, s1, s2)
	require.EqualValues(t, 1, f.vendor.logins.Load())
	require.EqualValues(t, 1, f.vendor.probes.Load())
}

func TestAuthenticateSingleFlight(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	f.vendor.delay = 50 * time.Millisecond

	const n = 16
	sessions := make([]*domain.Session, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions[i], errs[i] = f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, f.vendor.logins.Load())
	for i := range n {
		require.NoError(t, errs[i])
		require.Same(t, sessions[0], sessions[i])
	}
}

func TestAuthenticateSingleFlightSharesFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	f.vendor.delay = 50 * time.Millisecond
	f.vendor.err = &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "login post failed: 500", Err: domain.ErrLoginRejected}

	const n = 8
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, f.vendor.logins.Load())
	for _, err := range errs {
		var af *domain.AuthFailure
		require.ErrorAs(t, err, &af)
		require.Equal(t, "login post failed: 500", af.Reason)
	}
	require.Empty(t, f.auth.SessionInfo())
}

func TestAuthenticateEvictsExpiredAndStaleSessions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		advance time.Duration
		relogin bool
	}{
		{name: "fresh", advance: time.Hour, relogin: false},
		{name: "stale", advance: domain.DefaultMaxIdle + time.Minute, relogin: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, AuthOptions{})
			ctx := context.Background()

			s1, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
			require.NoError(t, err)

			f.clock.Advance(tt.advance)
			s2, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
			require.NoError(t, err)

			if tt.relogin {
				require.NotSame(t, s1, s2)
				require.False(t, s1.Authenticated())
				require.EqualValues(t, 2, f.vendor.logins.Load())
			} else {
				require.Same(t, s1, s2)
				require.EqualValues(t, 1, f.vendor.logins.Load())
			}
		})
	}
}

func TestAuthenticateNeverReturnsExpiredSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{MaxIdle: 24 * time.Hour})
	ctx := context.Background()

	s1, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)

	// Keep the session busy so only its age can expire it.
	for range 9 {
		f.clock.Advance(59 * time.Minute)
		_, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
		require.NoError(t, err)
	}

	require.False(t, s1.Authenticated())
	require.EqualValues(t, 2, f.vendor.logins.Load())
}

func TestAuthenticateReplacesDeadSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	ctx := context.Background()

	s1, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)

	f.vendor.dead.Store(true)
	s2, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)

	require.NotSame(t, s1, s2)
	require.False(t, s1.Authenticated())
	require.EqualValues(t, 2, f.vendor.logins.Load())
}

func TestAuthenticateThrottlesSequentialLogins(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{Cooldown: 5 * time.Second})
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)
	require.True(t, f.auth.InvalidateSession(domain.ServiceClubOS, "svc_user"))

	f.clock.Advance(2 * time.Second)
	_, err = f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)

	require.Equal(t, []time.Duration{3 * time.Second}, *f.sleeps)
	require.EqualValues(t, 2, f.vendor.logins.Load())
}

func TestAuthenticateMissingSessionCookie(t *testing.T) {
	t.Parallel()

	fake := fakevendor.NewClubOS()
	fake.OmitSessionCookie = true
	t.Cleanup(fake.Close)

	v := clubos.New(clubos.Config{BaseURL: fake.URL(), Retry: vendorhttp.Retry{Sleep: noSleep}})
	auth := NewAuthService(envProvider(clubOSEnv), nil, testLogger(), AuthOptions{Sleep: noSleep}, v)

	s, err := auth.Authenticate(context.Background(), domain.ServiceClubOS, "", "")
	require.Nil(t, s)
	require.ErrorIs(t, err, domain.ErrMissingSessionArtifacts)

	var af *domain.AuthFailure
	require.ErrorAs(t, err, &af)
	require.Contains(t, af.Error(), "could not authenticate with ClubOS")
	require.Empty(t, auth.SessionInfo())
}

func TestInvalidateSessionIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	require.False(t, f.auth.InvalidateSession(domain.ServiceClubOS, "nobody"))

	s, err := f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)

	require.True(t, f.auth.InvalidateSession(domain.ServiceClubOS, "SVC_USER"))
	require.False(t, f.auth.InvalidateSession(domain.ServiceClubOS, "svc_user"))
	require.False(t, s.Authenticated())
	require.Empty(t, f.auth.SessionInfo())
}

func TestAuthenticatePlaceholderCredentials(t *testing.T) {
	t.Parallel()

	v := &stubVendor{service: domain.ServiceClubOS, now: time.Now}
	env := map[string]string{"CLUBOS_USERNAME": "svc_user", "CLUBOS_PASSWORD": "replace_me"}
	auth := NewAuthService(envProvider(env), nil, testLogger(), AuthOptions{Sleep: noSleep}, v)

	_, err := auth.Authenticate(context.Background(), domain.ServiceClubOS, "", "")
	require.ErrorIs(t, err, domain.ErrCredentialsUnavailable)

	_, err = auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "CHANGEME")
	require.ErrorIs(t, err, domain.ErrCredentialsUnavailable)

	require.Zero(t, v.logins.Load())
}

func TestAuthenticateWithCallerCredentials(t *testing.T) {
	t.Parallel()

	v := &stubVendor{service: domain.ServiceClubOS, now: time.Now}
	auth := NewAuthService(envProvider(nil), nil, testLogger(), AuthOptions{Sleep: noSleep}, v)

	s, err := auth.Authenticate(context.Background(), domain.ServiceClubOS, "other_user", "secret")
	require.NoError(t, err)
	require.Equal(t, "other_user", s.Username)

	// A cached session needs no password.
	s2, err := auth.Authenticate(context.Background(), domain.ServiceClubOS, "other_user", "")
	require.NoError(t, err)
	require.Same(t, s, s2)

	// Resolved credentials belong to a different account.
	_, err = NewAuthService(envProvider(clubOSEnv), nil, testLogger(), AuthOptions{Sleep: noSleep}, v).
		Authenticate(context.Background(), domain.ServiceClubOS, "other_user", "")
	require.ErrorIs(t, err, domain.ErrCredentialsUnavailable)
}

func TestAuthenticateUnknownService(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	_, err := f.auth.Authenticate(context.Background(), domain.ServiceClubHub, "x", "y")
	require.ErrorIs(t, err, domain.ErrUnknownService)
}

func TestAuthenticateInflightTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{InflightWait: 20 * time.Millisecond})
	f.vendor.release = make(chan struct{})

	leaderDone := make(chan error, 1)
	go func() {
		_, err := f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
		leaderDone <- err
	}()

	key := KeyOf(domain.ServiceClubOS, "svc_user")
	require.Eventually(t, func() bool { return f.auth.Cache().InFlight(key) }, time.Second, time.Millisecond)

	_, err := f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
	require.ErrorIs(t, err, domain.ErrInflightTimeout)

	close(f.vendor.release)
	require.NoError(t, <-leaderDone)
	require.EqualValues(t, 1, f.vendor.logins.Load())
}

func TestBreakerOpensOnVendorFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{Breaker: BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour}})
	f.vendor.err = &domain.LoginError{State: domain.StateFetchLoginPage, Reason: "login page unreachable", Err: domain.ErrTransport}

	ctx := context.Background()
	for range 2 {
		_, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
		require.ErrorIs(t, err, domain.ErrTransport)
	}

	_, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	require.EqualValues(t, 2, f.vendor.logins.Load())
	require.Equal(t, "open", f.auth.BreakerState(domain.ServiceClubOS))
}

func TestBreakerIgnoresRejectedCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{Breaker: BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour}})
	f.vendor.err = &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "bad credentials", Err: domain.ErrLoginRejected}

	for range 3 {
		_, err := f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
		require.ErrorIs(t, err, domain.ErrLoginRejected)
	}
	require.EqualValues(t, 3, f.vendor.logins.Load())
	require.Equal(t, "closed", f.auth.BreakerState(domain.ServiceClubOS))
}

func TestLoginAttemptsAreRecorded(t *testing.T) {
	t.Parallel()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "clubauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	c := newClock()
	v := &stubVendor{service: domain.ServiceClubOS, now: c.Now}
	auth := NewAuthService(envProvider(clubOSEnv), st, testLogger(), AuthOptions{Now: c.Now, Sleep: noSleep}, v)
	ctx := context.Background()

	_, err = auth.Authenticate(ctx, domain.ServiceClubOS, "", "")
	require.NoError(t, err)

	auth.InvalidateSession(domain.ServiceClubOS, "svc_user")
	c.Advance(time.Minute)
	v.err = &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "bad credentials", Err: domain.ErrLoginRejected}
	_, err = auth.Authenticate(ctx, domain.ServiceClubOS, "", "")
	require.Error(t, err)

	attempts, err := auth.LoginAttempts(ctx, store.LoginAttemptFilter{Service: domain.ServiceClubOS})
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, domain.OutcomeFailure, attempts[0].Outcome)
	require.Equal(t, "bad credentials", attempts[0].Reason)
	require.Equal(t, domain.OutcomeSuccess, attempts[1].Outcome)

	hk := NewHousekeepingService(auth, testLogger(), time.Minute, 30*time.Second)
	hk.Cleanup(ctx)

	attempts, err = auth.LoginAttempts(ctx, store.LoginAttemptFilter{})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
}

func TestHousekeepingSweepsCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	_, err := f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
	require.NoError(t, err)
	require.Len(t, f.auth.SessionInfo(), 1)

	f.clock.Advance(domain.DefaultMaxAge + time.Minute)
	NewHousekeepingService(f.auth, testLogger(), 0, 0).Cleanup(context.Background())
	require.Empty(t, f.auth.SessionInfo())
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{})
	hk := NewHousekeepingService(f.auth, testLogger(), 5*time.Millisecond, 0)
	hk.Start()
	time.Sleep(20 * time.Millisecond)
	hk.Stop()
}

func TestVendorFault(t *testing.T) {
	t.Parallel()

	require.False(t, vendorFault(nil))
	require.False(t, vendorFault(context.Canceled))
	require.False(t, vendorFault(&domain.LoginError{Err: domain.ErrLoginRejected}))
	require.False(t, vendorFault(&callerDone{err: context.DeadlineExceeded}))
	require.True(t, vendorFault(&domain.LoginError{Err: domain.ErrRateLimited}))
	require.True(t, vendorFault(errors.Join(vendorhttp.ErrTransport, context.DeadlineExceeded)))
	require.True(t, vendorFault(errors.New("boom")))
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	b := newBreaker(domain.ServiceClubOS, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour}, testLogger())

	// Cancelled during the retry backoff: the POST is never sent.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Run(cancelled, func() (*domain.Session, error) {
		_, err := vendorhttp.Retry{}.Do(cancelled, func(context.Context) (*vendorhttp.Response, error) {
			t.Error("request sent after cancellation")
			return nil, nil
		}, nil)
		return nil, &domain.LoginError{State: domain.StateSubmitCredentials, Reason: "login post failed: transport error", Err: errors.Join(domain.ErrTransport, err)}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, domain.ErrTransport)
	require.Equal(t, "closed", b.State())

	// The caller's own deadline passing is not the vendor's fault either.
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = b.Run(expired, func() (*domain.Session, error) {
		return nil, errors.Join(domain.ErrTransport, vendorhttp.ErrTransport, expired.Err())
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "closed", b.State())

	// A request timeout while the caller is still waiting is.
	_, err = b.Run(context.Background(), func() (*domain.Session, error) {
		return nil, errors.Join(domain.ErrTransport, vendorhttp.ErrTransport, context.DeadlineExceeded)
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "open", b.State())
}

func TestAuthenticateLeaderCancelDoesNotFailWaiters(t *testing.T) {
	t.Parallel()

	f := newFixture(t, AuthOptions{Breaker: BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour}})
	f.vendor.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := f.auth.Authenticate(ctx, domain.ServiceClubOS, "svc_user", "")
		leaderDone <- err
	}()

	key := KeyOf(domain.ServiceClubOS, "svc_user")
	require.Eventually(t, func() bool { return f.auth.Cache().InFlight(key) }, time.Second, time.Millisecond)

	type result struct {
		sess *domain.Session
		err  error
	}
	waiterDone := make(chan result, 1)
	go func() {
		sess, err := f.auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
		waiterDone <- result{sess, err}
	}()

	cancel()
	require.ErrorIs(t, <-leaderDone, context.Canceled)

	close(f.vendor.release)
	got := <-waiterDone
	require.NoError(t, got.err)
	require.True(t, got.sess.Authenticated())

	require.EqualValues(t, 1, f.vendor.logins.Load())
	require.Len(t, f.auth.SessionInfo(), 1)
	require.Equal(t, "closed", f.auth.BreakerState(domain.ServiceClubOS))
}

// nilSessionVendor is a broken vendor that reports neither a session nor
// an error.
type nilSessionVendor struct {
	*stubVendor
}

func (v nilSessionVendor) Login(context.Context, domain.Credentials) (*domain.Session, error) {
	v.logins.Add(1)
	<-v.release
	return nil, nil
}

func TestAuthenticateNilSessionIsAFailure(t *testing.T) {
	t.Parallel()

	c := newClock()
	v := nilSessionVendor{&stubVendor{service: domain.ServiceClubOS, now: c.Now, release: make(chan struct{})}}
	auth := NewAuthService(envProvider(clubOSEnv), nil, testLogger(), AuthOptions{Now: c.Now, Sleep: noSleep}, v)

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = auth.Authenticate(context.Background(), domain.ServiceClubOS, "svc_user", "")
		}()
	}

	key := KeyOf(domain.ServiceClubOS, "svc_user")
	require.Eventually(t, func() bool { return auth.Cache().InFlight(key) }, time.Second, time.Millisecond)
	close(v.release)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, domain.ErrMissingSessionArtifacts)
	}
	require.Empty(t, auth.SessionInfo())
}
