package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/fakevendor"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
)

func testConfig(t *testing.T, baseURL string) Config {
	t.Helper()

	cfg := defaultConfig()
	cfg.Log.Level = "error"
	cfg.Database.File = filepath.Join(t.TempDir(), "clubauth.db")
	cfg.ClubOS.BaseURL = baseURL
	cfg.ClubOS.ClubInfo = false
	cfg.ClubHub.Enabled = false
	cfg.Retry.Delays = []time.Duration{0}
	cfg.Server.Port = 0
	return cfg
}

func newApp(t *testing.T, cfg Config) *Application {
	t.Helper()

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApplicationLoginThroughAdminAPI(t *testing.T) {
	fake := fakevendor.NewClubOS()
	t.Cleanup(fake.Close)

	t.Setenv("CLUBOS_USERNAME", "svc_user")
	t.Setenv("CLUBOS_PASSWORD", "svc_pass")

	a := newApp(t, testConfig(t, fake.URL()))

	token, generated := a.AdminToken()
	require.True(t, generated)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/clubos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp clubsdk.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "svc_user", resp.Session.Username)
	require.Equal(t, []domain.Service{domain.ServiceClubOS}, a.Auth().Services())
}

func TestApplicationStoredCredentials(t *testing.T) {
	fake := fakevendor.NewClubOS()
	t.Cleanup(fake.Close)

	cfg := testConfig(t, fake.URL())
	cfg.Secrets.Env = false
	cfg.Server.AdminToken = "configured"
	a := newApp(t, cfg)

	token, generated := a.AdminToken()
	require.False(t, generated)
	require.Equal(t, "configured", token)

	ctx := context.Background()
	_, err := a.Auth().Authenticate(ctx, domain.ServiceClubOS, "", "")
	require.ErrorIs(t, err, domain.ErrCredentialsUnavailable)

	require.NotNil(t, a.CredentialStore())
	require.NoError(t, a.CredentialStore().Save(ctx, domain.ServiceClubOS, "svc_user", []byte("svc_pass")))

	sess, err := a.Auth().Authenticate(ctx, domain.ServiceClubOS, "", "")
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
}

func TestApplicationWithoutDatabase(t *testing.T) {
	fake := fakevendor.NewClubOS()
	t.Cleanup(fake.Close)

	cfg := testConfig(t, fake.URL())
	cfg.Database.Enabled = false
	cfg.Secrets.Store = false
	a := newApp(t, cfg)

	require.Nil(t, a.CredentialStore())

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health clubsdk.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	require.Equal(t, "disabled", health.Checks.Database)
}
