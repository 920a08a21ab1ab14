package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
)

const defaultAttemptLimit = 100

type loginAttemptsRepo struct {
	q querier
}

func (r *loginAttemptsRepo) RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_attempts (id, service, username, started_at, finished_at, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Service), strings.ToLower(a.Username),
		toMillis(a.StartedAt), toMillis(a.FinishedAt), a.Outcome, a.Reason,
	)
	return err
}

func (r *loginAttemptsRepo) ListLoginAttempts(ctx context.Context, f store.LoginAttemptFilter) ([]domain.LoginAttempt, error) {
	var (
		where []string
		args  []any
	)
	if f.Service != "" {
		where = append(where, "service = ?")
		args = append(args, string(f.Service))
	}
	if f.Username != "" {
		where = append(where, "username = ?")
		args = append(args, strings.ToLower(f.Username))
	}

	query := `SELECT id, service, username, started_at, finished_at, outcome, reason FROM login_attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var (
			a                 domain.LoginAttempt
			service           string
			started, finished int64
		)
		if err := rows.Scan(&a.ID, &service, &a.Username, &started, &finished, &a.Outcome, &a.Reason); err != nil {
			return nil, err
		}
		a.Service = domain.Service(service)
		a.StartedAt = fromMillis(started)
		a.FinishedAt = fromMillis(finished)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *loginAttemptsRepo) DeleteLoginAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM login_attempts WHERE started_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
