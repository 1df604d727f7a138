// Package token implements the capability-token format used by the
// registry's token broker.
//
// Token Format (binary):
//
//   - ID: 8 bytes, big endian, never 0
//   - MAC: first 16 bytes of HMAC-SHA256(secret, ID)
//   - Total: 24 bytes
//
// Text Format:
//
//   - Prefix: srtk_ (5 characters)
//   - Body: 48 characters of lowercase hex
//
// Security:
//
//   - Secrets come from crypto/rand, or are derived from a configured master
//     secret with HKDF-SHA256
//   - Comparison is constant time
package token
