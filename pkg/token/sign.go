package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	// IDSize is the size of the id prefix.
	IDSize = 8
	// MACSize is the size of the truncated MAC.
	MACSize = 16
	// Size is the full binary token size.
	Size = IDSize + MACSize

	// Prefix marks the text form of a token.
	Prefix = "srtk_"
)

var (
	// ErrNoSecret is returned by Sign when the secret is empty.
	ErrNoSecret = errors.New("token: empty signing secret")
	// ErrFormat is returned by Decode for text that is not a token.
	ErrFormat = errors.New("token: invalid format")
)

// Sign returns the truncated MAC of id under secret.
func Sign(secret []byte, id uint64) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	var buf [IDSize]byte
	binary.BigEndian.PutUint64(buf[:], id)

	mac := hmac.New(sha256.New, secret)
	mac.Write(buf[:])
	return mac.Sum(nil)[:MACSize], nil
}

// Build returns id ‖ Sign(secret, id).
func Build(secret []byte, id uint64) ([]byte, error) {
	sum, err := Sign(secret, id)
	if err != nil {
		return nil, err
	}
	tok := make([]byte, 0, Size)
	tok = binary.BigEndian.AppendUint64(tok, id)
	return append(tok, sum...), nil
}

// ID extracts the id prefix. It reports false for tokens shorter than
// IDSize.
func ID(tok []byte) (uint64, bool) {
	if len(tok) < IDSize {
		return 0, false
	}
	return binary.BigEndian.Uint64(tok[:IDSize]), true
}

// Equal compares two tokens in constant time. Tokens of different lengths
// are never equal.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Encode renders tok in its text form.
func Encode(tok []byte) string {
	return Prefix + hex.EncodeToString(tok)
}

// Decode parses the text form produced by Encode. The body length is not
// checked; short or long tokens are rejected by the broker itself.
func Decode(s string) ([]byte, error) {
	body, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return nil, ErrFormat
	}
	tok, err := hex.DecodeString(body)
	if err != nil {
		return nil, ErrFormat
	}
	return tok, nil
}

// Mask returns a log-safe rendering of a text token: the prefix and the
// first four body characters.
func Mask(s string) string {
	body, ok := strings.CutPrefix(s, Prefix)
	if !ok || len(body) <= 4 {
		return "***"
	}
	return Prefix + body[:4] + "***"
}
