package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "clubauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestCredentialsRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newStore(t).Credentials()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := repo.GetSecret(ctx, domain.ServiceClubOS, "clubos-password")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.PutSecret(ctx, domain.ServiceClubOS, "clubos-password", []byte{1, 2, 3}, now))
	require.NoError(t, repo.PutSecret(ctx, domain.ServiceClubOS, "clubos-password", []byte{4, 5}, now.Add(time.Hour)))
	require.NoError(t, repo.PutSecret(ctx, domain.ServiceClubOS, "clubos-username", []byte{6}, now))
	require.NoError(t, repo.PutSecret(ctx, domain.ServiceClubHub, "clubhub-email", []byte{7}, now))

	got, err := repo.GetSecret(ctx, domain.ServiceClubOS, "clubos-password")
	require.NoError(t, err)
	require.Equal(t, []byte{4, 5}, got)

	refs, err := repo.ListSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	require.Equal(t, domain.ServiceClubHub, refs[0].Service)
	require.Equal(t, "clubos-password", refs[1].Name)
	require.Equal(t, now.Add(time.Hour), refs[1].UpdatedAt)

	n, err := repo.DeleteSecrets(ctx, domain.ServiceClubOS)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = repo.DeleteSecrets(ctx, domain.ServiceClubOS)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLoginAttemptsRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newStore(t).LoginAttempts()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	record := func(id string, svc domain.Service, user string, at time.Time, outcome string) {
		require.NoError(t, repo.RecordLoginAttempt(ctx, domain.LoginAttempt{
			ID: id, Service: svc, Username: user,
			StartedAt: at, FinishedAt: at.Add(time.Second),
			Outcome: outcome,
		}))
	}
	record("a1", domain.ServiceClubOS, "Svc_User", base, domain.OutcomeFailure)
	record("a2", domain.ServiceClubOS, "svc_user", base.Add(time.Minute), domain.OutcomeSuccess)
	record("a3", domain.ServiceClubHub, "club@example.com", base.Add(2*time.Minute), domain.OutcomeSuccess)

	all, err := repo.ListLoginAttempts(ctx, store.LoginAttemptFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a3", all[0].ID, "newest first")

	mine, err := repo.ListLoginAttempts(ctx, store.LoginAttemptFilter{Service: domain.ServiceClubOS, Username: "SVC_USER"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, "svc_user", mine[1].Username)
	require.Equal(t, base.Add(time.Second), mine[1].FinishedAt)

	limited, err := repo.ListLoginAttempts(ctx, store.LoginAttemptFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	n, err := repo.DeleteLoginAttemptsBefore(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// unknown outcome violates the CHECK constraint
	require.Error(t, repo.RecordLoginAttempt(ctx, domain.LoginAttempt{ID: "bad", Service: domain.ServiceClubOS, Username: "x", Outcome: "maybe"}))
}

func TestWithTx(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Credentials().PutSecret(ctx, domain.ServiceClubOS, "clubos-password", []byte{1}, time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Credentials().GetSecret(ctx, domain.ServiceClubOS, "clubos-password")
	require.ErrorIs(t, err, store.ErrNotFound, "rolled back")

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Credentials().PutSecret(ctx, domain.ServiceClubOS, "clubos-password", []byte{2}, time.Now())
	}))
	got, err := s.Credentials().GetSecret(ctx, domain.ServiceClubOS, "clubos-password")
	require.NoError(t, err)
	require.Equal(t, []byte{2}, got)
}
