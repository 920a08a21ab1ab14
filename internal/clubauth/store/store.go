package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Drivers implement it and
// expose sub-repositories so transactions cannot nest by accident.
type Store interface {
	Credentials() Credentials
	LoginAttempts() LoginAttempts

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// SecretRef names a stored secret without its value.
type SecretRef struct {
	Service   domain.Service
	Name      string
	UpdatedAt time.Time
}

// Credentials holds sealed vendor secrets. Values are opaque ciphertext;
// sealing and opening happen above the store.
type Credentials interface {
	// GetSecret returns the sealed value or ErrNotFound.
	GetSecret(ctx context.Context, service domain.Service, name string) ([]byte, error)

	// PutSecret inserts or replaces a sealed value.
	PutSecret(ctx context.Context, service domain.Service, name string, sealed []byte, now time.Time) error

	// DeleteSecrets removes every secret of a service and reports how many
	// rows went.
	DeleteSecrets(ctx context.Context, service domain.Service) (int64, error)

	ListSecrets(ctx context.Context) ([]SecretRef, error)
}

// LoginAttemptFilter narrows ListLoginAttempts. Zero fields match all.
type LoginAttemptFilter struct {
	Service  domain.Service
	Username string
	Limit    int
}

// LoginAttempts is the audit trail of vendor logins.
type LoginAttempts interface {
	RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error

	// ListLoginAttempts returns newest first.
	ListLoginAttempts(ctx context.Context, f LoginAttemptFilter) ([]domain.LoginAttempt, error)

	DeleteLoginAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
