package filevault

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the sealed blob format version written by this package
const CurrentVersion = uint8(1)

// SealedBlob is the at-rest form of one encrypted file. It is created whole
// by one encryption call and never mutated afterwards.
//
// OriginalFilename, OriginalSize, CreatedAt and ContentChecksum are stored
// unencrypted and are visible to the storage layer.
type SealedBlob struct {
	ID               string      `json:"id"`
	Version          uint8       `json:"version"`
	Cipher           CipherSuite `json:"cipher"`
	KDF              KDFParams   `json:"kdf"`
	Ciphertext       []byte      `json:"ciphertext"`
	AuthTag          []byte      `json:"auth_tag"`
	Nonce            []byte      `json:"nonce"`
	Salt             []byte      `json:"salt"`
	OriginalFilename string      `json:"original_filename"`
	OriginalSize     int64       `json:"original_size"`
	CreatedAt        time.Time   `json:"created_at"`
	ContentChecksum  string      `json:"content_checksum"`
}

// BlobInfo is the public metadata of a blob, as listed by a BlobStore
type BlobInfo struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Info returns the blob's public metadata
func (b *SealedBlob) Info() BlobInfo {
	return BlobInfo{
		ID:        b.ID,
		Filename:  b.OriginalFilename,
		Size:      b.OriginalSize,
		CreatedAt: b.CreatedAt,
	}
}

// Payload returns the ciphertext and tag as a SealedPayload
func (b *SealedBlob) Payload() SealedPayload {
	return SealedPayload{Ciphertext: b.Ciphertext, Tag: b.AuthTag}
}

// Validate checks the blob is structurally well formed. It does not touch
// the password or the ciphertext contents.
func (b *SealedBlob) Validate() error {
	if b == nil {
		return &ValidationError{Message: "blob cannot be nil", Err: ErrNilBlob}
	}
	if _, err := uuid.Parse(b.ID); err != nil {
		return &ValidationError{Field: "id", Value: b.ID, Message: "id must be a UUID", Err: err}
	}
	if b.Version == 0 || b.Version > CurrentVersion {
		return &ValidationError{Field: "version", Value: b.Version, Message: "unsupported format version", Err: ErrUnsupportedVersion}
	}
	if !b.Cipher.valid() {
		return &ValidationError{Field: "cipher", Value: b.Cipher, Message: "unsupported cipher suite", Err: ErrUnsupportedCipher}
	}
	if err := b.KDF.Validate(); err != nil {
		return err
	}
	if err := ValidateSalt(b.Salt); err != nil {
		return err
	}
	if err := ValidateNonce(b.Nonce); err != nil {
		return err
	}
	if err := ValidateTag(b.AuthTag); err != nil {
		return err
	}
	if err := ValidateFilename(b.OriginalFilename); err != nil {
		return err
	}
	if b.OriginalSize < 0 || int64(len(b.Ciphertext)) != b.OriginalSize {
		return NewValidationError("original_size", b.OriginalSize,
			fmt.Sprintf("ciphertext is %d bytes but original size is %d", len(b.Ciphertext), b.OriginalSize))
	}
	if _, err := ParseDigest(b.ContentChecksum); err != nil {
		return err
	}
	if b.CreatedAt.IsZero() {
		return NewValidationError("created_at", b.CreatedAt, "creation time must be set")
	}
	return nil
}

// Clone returns a deep copy of the blob
func (b *SealedBlob) Clone() *SealedBlob {
	c := *b
	c.Ciphertext = bytes.Clone(b.Ciphertext)
	c.AuthTag = bytes.Clone(b.AuthTag)
	c.Nonce = bytes.Clone(b.Nonce)
	c.Salt = bytes.Clone(b.Salt)
	return &c
}

// newBlobID returns a fresh random blob identifier
func newBlobID() string {
	return uuid.NewString()
}
