package token

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SecretSize is the length of a signing secret in bytes.
const SecretSize = 32

// hkdfInfo binds derived secrets to this use.
const hkdfInfo = "svcreg token-manager v1"

// ErrShortMaster is returned when a master secret is too short to derive from.
var ErrShortMaster = errors.New("token: master secret shorter than 16 bytes")

// NewSecret returns SecretSize random bytes.
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// DeriveSecret derives a signing secret from a configured master secret.
// The same master always yields the same secret, so tokens survive a
// restart only in the sense that their MACs stay verifiable; the id table
// itself is never persisted.
func DeriveSecret(master []byte) ([]byte, error) {
	if len(master) < 16 {
		return nil, ErrShortMaster
	}
	r := hkdf.New(sha256.New, master, nil, []byte(hkdfInfo))
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, err
	}
	return secret, nil
}
