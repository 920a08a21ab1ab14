package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
)

type credentialsRepo struct {
	q querier
}

func (r *credentialsRepo) GetSecret(ctx context.Context, service domain.Service, name string) ([]byte, error) {
	var sealed []byte
	err := r.q.QueryRowContext(ctx,
		`SELECT sealed_value FROM credentials WHERE service = ? AND name = ?`,
		string(service), name,
	).Scan(&sealed)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return sealed, nil
}

func (r *credentialsRepo) PutSecret(ctx context.Context, service domain.Service, name string, sealed []byte, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO credentials (service, name, sealed_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (service, name) DO UPDATE SET
			sealed_value = excluded.sealed_value,
			updated_at   = excluded.updated_at`,
		string(service), name, sealed, toMillis(now),
	)
	return err
}

func (r *credentialsRepo) DeleteSecrets(ctx context.Context, service domain.Service) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM credentials WHERE service = ?`, string(service))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *credentialsRepo) ListSecrets(ctx context.Context) ([]store.SecretRef, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT service, name, updated_at FROM credentials ORDER BY service, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SecretRef
	for rows.Next() {
		var (
			ref     store.SecretRef
			service string
			updated int64
		)
		if err := rows.Scan(&service, &ref.Name, &updated); err != nil {
			return nil, err
		}
		ref.Service = domain.Service(service)
		ref.UpdatedAt = fromMillis(updated)
		out = append(out, ref)
	}
	return out, rows.Err()
}
