package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/pkg/cryptox"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultPlaceholders are template values that must never be used as
// real credentials.
var DefaultPlaceholders = []string{
	"your_password_here",
	"your_username_here",
	"your_email_here",
	"replace_me",
	"changeme",
	"xxx",
}

// SecretSource is one credential backend.
type SecretSource interface {
	Name() string
	// Lookup returns ok=false when the backend has no value. Errors are
	// reserved for backend failures.
	Lookup(ctx context.Context, service domain.Service, name string) (value string, ok bool, err error)
}

// CredentialProvider resolves vendor credentials from an ordered chain of
// sources. The first non-placeholder value wins per secret name. Nothing
// is cached between calls.
type CredentialProvider struct {
	sources      []SecretSource
	placeholders map[string]struct{}
	logger       *slog.Logger
}

func NewCredentialProvider(logger *slog.Logger, placeholders []string, sources ...SecretSource) *CredentialProvider {
	if placeholders == nil {
		placeholders = DefaultPlaceholders
	}
	p := &CredentialProvider{
		sources:      sources,
		placeholders: make(map[string]struct{}, len(placeholders)),
		logger:       logger,
	}
	for _, ph := range placeholders {
		p.placeholders[strings.ToLower(strings.TrimSpace(ph))] = struct{}{}
	}
	return p
}

// IsPlaceholder reports whether v is a known template value.
func (p *CredentialProvider) IsPlaceholder(v string) bool {
	_, ok := p.placeholders[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

func (p *CredentialProvider) lookup(ctx context.Context, service domain.Service, name string) (string, string, error) {
	// First source with a real value wins; a failing source is skipped so
	// that a later one can still answer.
	var errs []error
	for _, src := range p.sources {
		v, ok, err := src.Lookup(ctx, service, name)
		if err != nil {
			p.logger.Warn("secret source failed", "source", src.Name(), "secret", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if p.IsPlaceholder(v) {
			p.logger.Warn("ignoring placeholder credential", "source", src.Name(), "secret", name)
			continue
		}
		return v, src.Name(), nil
	}

	// Nothing found: report the miss along with any source failures
	err := fmt.Errorf("%w: %s", domain.ErrCredentialsUnavailable, name)
	if len(errs) > 0 {
		err = errors.Join(append([]error{err}, errs...)...)
	}
	return "", "", err
}

// Username resolves only the identifier half of the pair.
func (p *CredentialProvider) Username(ctx context.Context, service domain.Service) (string, error) {
	v, _, err := p.lookup(ctx, service, service.UsernameSecret())
	return v, err
}

// Resolve returns the credential pair for service. The secret is sealed in
// an enclave and never logged; only the source names are.
func (p *CredentialProvider) Resolve(ctx context.Context, service domain.Service) (domain.Credentials, error) {
	user, userSrc, err := p.lookup(ctx, service, service.UsernameSecret())
	if err != nil {
		return domain.Credentials{}, err
	}
	pass, passSrc, err := p.lookup(ctx, service, service.PasswordSecret())
	if err != nil {
		return domain.Credentials{}, err
	}

	source := userSrc
	if passSrc != userSrc {
		source = userSrc + "+" + passSrc
	}
	return domain.NewCredentials(service, user, []byte(pass), source)
}

// EnvSource reads CLUBOS_PASSWORD style variables: the secret name upper
// cased with dashes turned into underscores.
type EnvSource struct {
	LookupEnv func(string) (string, bool)
}

func (EnvSource) Name() string { return "env" }

// EnvName maps a secret name to its environment variable.
func EnvName(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(secret, "-", "_"))
}

func (s EnvSource) Lookup(_ context.Context, _ domain.Service, name string) (string, bool, error) {
	lookup := s.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(EnvName(name))
	return v, ok, nil
}

// StoreSource keeps secrets sealed in the local database.
type StoreSource struct {
	Store  store.Store
	Sealer *cryptox.Sealer
	Now    func() time.Time
}

func (*StoreSource) Name() string { return "store" }

func associated(service domain.Service, name string) []byte {
	return []byte(string(service) + "/" + name)
}

func (s *StoreSource) Lookup(ctx context.Context, service domain.Service, name string) (string, bool, error) {
	sealed, err := s.Store.Credentials().GetSecret(ctx, service, name)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	plain, err := s.Sealer.Open(sealed, associated(service, name))
	if err != nil {
		return "", false, err
	}
	return string(plain), true, nil
}

// Save seals and stores a credential pair in one transaction.
func (s *StoreSource) Save(ctx context.Context, service domain.Service, username string, password []byte) error {
	if username == "" || len(password) == 0 {
		return domain.ErrCredentialsUnavailable
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	sealedUser, err := s.Sealer.Seal([]byte(username), associated(service, service.UsernameSecret()))
	if err != nil {
		return err
	}
	sealedPass, err := s.Sealer.Seal(password, associated(service, service.PasswordSecret()))
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Credentials().PutSecret(ctx, service, service.UsernameSecret(), sealedUser, now()); err != nil {
			return err
		}
		return tx.Credentials().PutSecret(ctx, service, service.PasswordSecret(), sealedPass, now())
	})
}

// Delete removes every stored secret of service.
func (s *StoreSource) Delete(ctx context.Context, service domain.Service) (int64, error) {
	return s.Store.Credentials().DeleteSecrets(ctx, service)
}

// AccessFunc fetches one secret version. It matches
// (*secretmanager.Client).AccessSecretVersion without call options.
type AccessFunc func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)

// GCPSource reads the latest version of each secret from Google Cloud
// Secret Manager.
type GCPSource struct {
	Project string
	Access  AccessFunc
	Timeout time.Duration

	closeFn func() error
}

// NewGCPSource dials Secret Manager with application default credentials.
func NewGCPSource(ctx context.Context, project string) (*GCPSource, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}
	return &GCPSource{
		Project: project,
		Access: func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return client.AccessSecretVersion(ctx, req)
		},
		Timeout: 10 * time.Second,
		closeFn: client.Close,
	}, nil
}

func (*GCPSource) Name() string { return "gcp" }

func (s *GCPSource) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func (s *GCPSource) Lookup(ctx context.Context, _ domain.Service, name string) (string, bool, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	resp, err := s.Access(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.Project, name),
	})
	switch status.Code(err) {
	case codes.OK:
	case codes.NotFound:
		return "", false, nil
	default:
		return "", false, err
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), true, nil
}
