package filevault

import (
	"fmt"
	"strings"
)

// Input validation helpers for the fixed-size blob fields

func validateExact(field string, b []byte, size int) error {
	if b == nil {
		return &ValidationError{
			Field:   field,
			Message: field + " cannot be nil",
		}
	}
	if len(b) != size {
		return &ValidationError{
			Field:   field,
			Value:   len(b),
			Message: fmt.Sprintf("invalid %s size: got %d bytes, expected %d bytes", field, len(b), size),
		}
	}
	return nil
}

// ValidateSalt checks the salt is exactly SaltSize bytes
func ValidateSalt(salt []byte) error {
	return validateExact("salt", salt, SaltSize)
}

// ValidateNonce checks the nonce is exactly NonceSize bytes
func ValidateNonce(nonce []byte) error {
	return validateExact("nonce", nonce, NonceSize)
}

// ValidateTag checks the authentication tag is exactly TagSize bytes
func ValidateTag(tag []byte) error {
	return validateExact("auth_tag", tag, TagSize)
}

// ValidateKey checks a derived key is exactly KeySize bytes
func ValidateKey(key []byte) error {
	err := validateExact("key", key, KeySize)
	if ve, ok := err.(*ValidationError); ok {
		ve.Err = ErrInvalidKey
	}
	return err
}

// MaxFilenameLength bounds the stored original filename
const MaxFilenameLength = 4096

// ValidateFilename checks a filename can be stored as blob metadata
func ValidateFilename(name string) error {
	if name == "" {
		return &ValidationError{
			Field:   "filename",
			Message: "filename cannot be empty",
		}
	}
	if len(name) > MaxFilenameLength {
		return &ValidationError{
			Field:   "filename",
			Value:   len(name),
			Message: fmt.Sprintf("filename too long: %d bytes, maximum is %d", len(name), MaxFilenameLength),
		}
	}
	if strings.ContainsRune(name, 0) {
		return &ValidationError{
			Field:   "filename",
			Message: "filename cannot contain NUL",
		}
	}
	return nil
}

// ValidateSize checks a size parameter against an optional upper bound
func ValidateSize(size int64, name string, maxSize int64) error {
	if size < 0 {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: "size cannot be negative",
		}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too large: got %d, maximum is %d", size, maxSize),
			Err:     ErrTooLarge,
		}
	}
	return nil
}
