package protocol

import (
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HandshakeString builds the canonical "k=v:k=v:..." serialization of the
// protocol constants used to detect version skew during AUTHENTICATE.
func HandshakeString(c Constants) string {
	pairs := canonicalPairs(c)
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key+"="+p.value)
	}
	return strings.Join(parts, ":")
}

// Fingerprint returns a short hex digest of the handshake string, logged as a
// debug aid when AUTHENTICATE fails. It is never part of the comparison
// itself, which stays byte-for-byte on the full string.
func Fingerprint(s string) string {
	sum := blake2b.Sum256([]byte(s))
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 8)
	for i := 0; i < 4; i++ {
		out[i*2] = hexDigits[sum[i]>>4]
		out[i*2+1] = hexDigits[sum[i]&0xf]
	}
	return string(out)
}
