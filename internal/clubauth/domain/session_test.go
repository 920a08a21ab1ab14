package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionLifetime(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewAuthenticatedSession(SessionParams{
		Service:  ServiceClubOS,
		Username: "svc_user",
		Now:      created,
	})

	t.Run("fresh session is usable", func(t *testing.T) {
		require.True(t, s.Usable(created.Add(time.Minute), DefaultMaxAge, DefaultMaxIdle))
		require.NotEmpty(t, s.ID)
		require.NotNil(t, s.VendorContext)
	})

	t.Run("idle longer than max idle is stale", func(t *testing.T) {
		now := created.Add(2*time.Hour + time.Second)
		require.True(t, s.IsStale(now, DefaultMaxIdle))
		require.False(t, s.IsExpired(now, DefaultMaxAge))
		require.False(t, s.Usable(now, DefaultMaxAge, DefaultMaxIdle))
	})

	t.Run("touch keeps a session fresh until max age", func(t *testing.T) {
		s.Touch(created.Add(7 * time.Hour))
		require.True(t, s.Usable(created.Add(8*time.Hour), DefaultMaxAge, DefaultMaxIdle))
		require.False(t, s.Usable(created.Add(8*time.Hour+time.Second), DefaultMaxAge, DefaultMaxIdle))
	})
}

func TestSessionInvalidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewAuthenticatedSession(SessionParams{Service: ServiceClubHub, Username: "a@b.c", Now: now})
	require.True(t, s.Authenticated())

	s.Invalidate()
	require.False(t, s.Authenticated())
	require.False(t, s.Usable(now, DefaultMaxAge, DefaultMaxIdle))
}

func TestSessionAuthHeaders(t *testing.T) {
	t.Parallel()

	s := NewAuthenticatedSession(SessionParams{Service: ServiceClubOS, BearerToken: "tok"})
	require.Equal(t, "Bearer tok", s.AuthHeaders().Get("Authorization"))

	empty := NewAuthenticatedSession(SessionParams{Service: ServiceClubOS})
	require.Empty(t, empty.AuthHeaders().Get("Authorization"))
}

func TestSessionInfoCopiesVendorContext(t *testing.T) {
	t.Parallel()

	ctx := map[string]string{CtxLoggedInUserID: "999"}
	s := NewAuthenticatedSession(SessionParams{Service: ServiceClubOS, VendorContext: ctx})
	ctx[CtxLoggedInUserID] = "mutated"

	info := s.Info(time.Now(), DefaultMaxAge, DefaultMaxIdle)
	require.Equal(t, "999", info.VendorContext[CtxLoggedInUserID])
	info.VendorContext[CtxClubID] = "1"
	require.NotContains(t, s.VendorContext, CtxClubID)
}

func TestParseService(t *testing.T) {
	t.Parallel()

	svc, err := ParseService(" ClubOS ")
	require.NoError(t, err)
	require.Equal(t, ServiceClubOS, svc)

	_, err = ParseService("square")
	require.ErrorIs(t, err, ErrUnknownService)

	require.Equal(t, "clubhub-email", ServiceClubHub.UsernameSecret())
	require.Equal(t, "clubos-username", ServiceClubOS.UsernameSecret())
	require.Equal(t, "clubos-password", ServiceClubOS.PasswordSecret())
}

func TestNewAuthFailure(t *testing.T) {
	t.Parallel()

	t.Run("keeps login state reason", func(t *testing.T) {
		le := &LoginError{State: StateExtractSessionCookies, Reason: "missing session cookies", Err: ErrMissingSessionArtifacts}
		af := NewAuthFailure(ServiceClubOS, fmt.Errorf("login: %w", le))
		require.Equal(t, "missing session cookies", af.Reason)
		require.ErrorIs(t, af, ErrMissingSessionArtifacts)
		require.Equal(t, "could not authenticate with ClubOS: missing session cookies", af.Error())
	})

	t.Run("passes through existing failures", func(t *testing.T) {
		orig := &AuthFailure{Service: ServiceClubHub, Reason: "x"}
		require.Same(t, orig, NewAuthFailure(ServiceClubHub, orig))
	})

	t.Run("plain errors keep their text", func(t *testing.T) {
		af := NewAuthFailure(ServiceClubHub, errors.New("boom"))
		require.Equal(t, "boom", af.Reason)
	})
}

func TestCredentialsWithSecret(t *testing.T) {
	t.Parallel()

	creds, err := NewCredentials(ServiceClubOS, "svc_user", []byte("svc_pass"), "env")
	require.NoError(t, err)
	require.True(t, creds.Valid())

	var got string
	require.NoError(t, creds.WithSecret(func(secret []byte) error {
		got = string(secret)
		return nil
	}))
	require.Equal(t, "svc_pass", got)

	_, err = NewCredentials(ServiceClubOS, "svc_user", nil, "env")
	require.ErrorIs(t, err, ErrCredentialsUnavailable)

	require.ErrorIs(t, Credentials{}.WithSecret(func([]byte) error { return nil }), ErrCredentialsUnavailable)
}

func TestLoginStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SubmitCredentials", StateSubmitCredentials.String())
	require.Equal(t, "LoginState(42)", LoginState(42).String())
}
