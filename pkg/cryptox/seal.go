package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// MasterKeyEnv is consulted when no master key file is configured.
const MasterKeyEnv = "CLUBAUTH_MASTER_KEY"

// hkdfInfo binds derived keys to their purpose.
const hkdfInfo = "clubauth credential store v1"

// ErrCiphertextTooShort is returned for inputs shorter than a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts stored secrets with AES-256-GCM.
// Output format: [12-byte nonce][ciphertext][16-byte auth tag].
type Sealer struct {
	aead cipher.AEAD
}

// LoadMasterKey reads key material from path, or from CLUBAUTH_MASTER_KEY
// when path is empty. With neither set a random key is generated and the
// returned flag is true: sealed values will not survive a restart.
func LoadMasterKey(path string) (material []byte, ephemeral bool, err error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read master key file: %w", err)
		}
		return []byte(strings.TrimSpace(string(data))), false, nil
	}

	if env := os.Getenv(MasterKeyEnv); env != "" {
		return []byte(env), false, nil
	}

	material = make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, false, fmt.Errorf("failed to generate ephemeral master key: %w", err)
	}
	return material, true, nil
}

// NewSealer derives a 32-byte AES key from material with HKDF-SHA256.
func NewSealer(material []byte) (*Sealer, error) {
	if len(material) == 0 {
		return nil, errors.New("empty master key material")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext. The associated data binds the ciphertext to
// its row, so a value cannot be swapped between secret names.
func (s *Sealer) Seal(plaintext, associated []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, associated), nil
}

// Open decrypts data produced by Seal with the same associated data.
func (s *Sealer) Open(sealed, associated []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], associated)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
