package domain

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
)

// ErrCredentialsUnavailable means no backend produced a usable credential.
var ErrCredentialsUnavailable = errors.New("credentials unavailable")

// Credentials is a vendor login pair. The secret lives in a memguard
// enclave and is only decrypted for the duration of WithSecret.
type Credentials struct {
	Service  Service
	Username string

	// Source names the backend that supplied the secret, for logging.
	Source string

	secret *memguard.Enclave
}

// NewCredentials seals secret into an enclave. The caller's byte slice is
// wiped by memguard.
func NewCredentials(service Service, username string, secret []byte, source string) (Credentials, error) {
	if username == "" || len(secret) == 0 {
		return Credentials{}, ErrCredentialsUnavailable
	}
	return Credentials{
		Service:  service,
		Username: username,
		Source:   source,
		secret:   memguard.NewEnclave(secret),
	}, nil
}

// WithSecret opens the enclave, hands the plaintext to fn and destroys the
// buffer again. fn must not retain the slice.
func (c Credentials) WithSecret(fn func(secret []byte) error) error {
	if c.secret == nil {
		return ErrCredentialsUnavailable
	}
	buf, err := c.secret.Open()
	if err != nil {
		return fmt.Errorf("open credential enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Valid reports whether both halves of the pair are present.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.secret != nil
}
