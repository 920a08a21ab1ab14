package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store/drivers/sqlite"
	"github.com/aussiebroadwan/clubauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mapSource struct {
	name string
	vals map[string]string
	err  error
}

func (m mapSource) Name() string { return m.name }

func (m mapSource) Lookup(_ context.Context, _ domain.Service, name string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.vals[name]
	return v, ok, nil
}

func secret(t *testing.T, c domain.Credentials) string {
	t.Helper()
	var out string
	require.NoError(t, c.WithSecret(func(b []byte) error {
		out = string(b)
		return nil
	}))
	return out
}

func TestCredentialProviderChain(t *testing.T) {
	t.Parallel()

	broken := mapSource{name: "broken", err: errors.New("backend down")}
	templated := mapSource{name: "file", vals: map[string]string{
		"clubos-username": "svc_user",
		"clubos-password": " Replace_Me ",
	}}
	vault := mapSource{name: "vault", vals: map[string]string{
		"clubos-password": "svc_pass",
	}}

	p := NewCredentialProvider(testLogger(), nil, broken, templated, vault)
	c, err := p.Resolve(context.Background(), domain.ServiceClubOS)
	require.NoError(t, err)
	require.Equal(t, "svc_user", c.Username)
	require.Equal(t, "svc_pass", secret(t, c))
	require.Equal(t, "file+vault", c.Source)
}

func TestCredentialProviderPlaceholderIsNotFound(t *testing.T) {
	t.Parallel()

	for _, ph := range DefaultPlaceholders {
		p := NewCredentialProvider(testLogger(), nil, mapSource{name: "env", vals: map[string]string{
			"clubhub-email":    "club@example.com",
			"clubhub-password": ph,
		}})
		_, err := p.Resolve(context.Background(), domain.ServiceClubHub)
		require.ErrorIs(t, err, domain.ErrCredentialsUnavailable, ph)
	}

	p := NewCredentialProvider(testLogger(), []string{"hunter2"}, mapSource{name: "env", vals: map[string]string{
		"clubos-username": "svc_user",
		"clubos-password": "changeme",
	}})
	_, err := p.Resolve(context.Background(), domain.ServiceClubOS)
	require.NoError(t, err, "custom list replaces the defaults")
}

func TestCredentialProviderReportsSourceErrors(t *testing.T) {
	t.Parallel()

	down := errors.New("backend down")
	p := NewCredentialProvider(testLogger(), nil, mapSource{name: "gcp", err: down})

	_, err := p.Username(context.Background(), domain.ServiceClubOS)
	require.ErrorIs(t, err, domain.ErrCredentialsUnavailable)
	require.ErrorIs(t, err, down)
}

func TestEnvSource(t *testing.T) {
	t.Parallel()

	require.Equal(t, "CLUBHUB_EMAIL", EnvName("clubhub-email"))

	src := EnvSource{LookupEnv: func(k string) (string, bool) {
		if k == "CLUBOS_PASSWORD" {
			return "svc_pass", true
		}
		return "", false
	}}
	v, ok, err := src.Lookup(context.Background(), domain.ServiceClubOS, "clubos-password")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "svc_pass", v)

	_, ok, err = src.Lookup(context.Background(), domain.ServiceClubOS, "clubos-username")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreSource(t *testing.T) {
	t.Parallel()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "clubauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sealer, err := cryptox.NewSealer([]byte("test master key material"))
	require.NoError(t, err)

	src := &StoreSource{Store: st, Sealer: sealer}
	ctx := context.Background()

	_, ok, err := src.Lookup(ctx, domain.ServiceClubOS, "clubos-password")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, src.Save(ctx, domain.ServiceClubOS, "svc_user", []byte("svc_pass")))

	p := NewCredentialProvider(testLogger(), nil, src)
	c, err := p.Resolve(ctx, domain.ServiceClubOS)
	require.NoError(t, err)
	require.Equal(t, "svc_user", c.Username)
	require.Equal(t, "svc_pass", secret(t, c))
	require.Equal(t, "store", c.Source)

	// Values are sealed at rest.
	raw, err := st.Credentials().GetSecret(ctx, domain.ServiceClubOS, "clubos-password")
	require.NoError(t, err)
	require.NotContains(t, string(raw), "svc_pass")

	n, err := src.Delete(ctx, domain.ServiceClubOS)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = p.Resolve(ctx, domain.ServiceClubOS)
	require.ErrorIs(t, err, domain.ErrCredentialsUnavailable)
}

func TestGCPSource(t *testing.T) {
	t.Parallel()

	var asked []string
	src := &GCPSource{
		Project: "club-prod",
		Access: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			asked = append(asked, req.GetName())
			switch req.GetName() {
			case "projects/club-prod/secrets/clubos-password/versions/latest":
				return &secretmanagerpb.AccessSecretVersionResponse{
					Payload: &secretmanagerpb.SecretPayload{Data: []byte("svc_pass\n")},
				}, nil
			case "projects/club-prod/secrets/clubos-username/versions/latest":
				return nil, status.Error(codes.NotFound, "no such secret")
			}
			return nil, status.Error(codes.PermissionDenied, "denied")
		},
	}
	ctx := context.Background()

	v, ok, err := src.Lookup(ctx, domain.ServiceClubOS, "clubos-password")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "svc_pass", v)

	_, ok, err = src.Lookup(ctx, domain.ServiceClubOS, "clubos-username")
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = src.Lookup(ctx, domain.ServiceClubHub, "clubhub-email")
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	require.Len(t, asked, 3)
	require.NoError(t, src.Close())
}
