package filevault

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// DigestSize is the length of a content checksum in bytes
const DigestSize = sha256.Size

// Digest is a SHA-256 content checksum
type Digest [DigestSize]byte

// Checksum computes the SHA-256 digest of data
func Checksum(data []byte) Digest {
	return sha256.Sum256(data)
}

// Hex returns the lowercase hex encoding stored in blobs
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// ParseDigest decodes a hex-encoded checksum
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(DigestSize) {
		return d, NewValidationError("content_checksum", len(s),
			fmt.Sprintf("checksum must be %d hex characters, got %d", hex.EncodedLen(DigestSize), len(s)))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, &ValidationError{
			Field:   "content_checksum",
			Message: "checksum is not valid hex",
			Err:     err,
		}
	}
	return d, nil
}

// VerifyChecksum reports whether data hashes to want, in constant time
func VerifyChecksum(data []byte, want Digest) bool {
	got := Checksum(data)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

// VerifyChecksumHex is VerifyChecksum for a hex-encoded digest. Malformed
// hex never verifies.
func VerifyChecksumHex(data []byte, want string) bool {
	d, err := ParseDigest(want)
	if err != nil {
		return false
	}
	return VerifyChecksum(data, d)
}
