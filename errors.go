package filevault

import (
	"errors"
	"fmt"
)

// Error types represent the failure taxonomy of the engine

// ValidationError represents malformed input: wrong field sizes, bad
// parameters or a structurally broken blob. It indicates caller or storage
// corruption rather than a user mistake and is never retried.
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AuthenticationError reports that tag verification failed. The message is
// the same whatever the cause: wrong password, corrupted ciphertext,
// corrupted tag or nonce.
type AuthenticationError struct {
	BlobID string // Blob identifier, if known
	Err    error  // Always ErrAuthFailed
}

func (e *AuthenticationError) Error() string {
	return e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IntegrityError represents a secondary checksum or size mismatch after the
// tag already verified
type IntegrityError struct {
	BlobID  string // Blob identifier, if known
	Message string // Human-readable error message
	Err     error  // Always ErrIntegrity
}

func (e *IntegrityError) Error() string {
	if e.BlobID != "" {
		return fmt.Sprintf("integrity error: %s: %s", e.BlobID, e.Message)
	}
	return fmt.Sprintf("integrity error: %s", e.Message)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// ResourceError wraps a failure from a collaborator: a reader, the random
// source or a blob store. The cause is propagated unchanged.
type ResourceError struct {
	Operation string // "read", "random", "put", "get", "delete", "list"
	Target    string // Blob id or path, if applicable
	Err       error  // Underlying error
}

func (e *ResourceError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("resource error: %s %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("resource error: %s: %v", e.Operation, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Common sentinel errors
var (
	ErrAuthFailed         = errors.New("decryption failed: wrong password or corrupted data")
	ErrIntegrity          = errors.New("content checksum mismatch")
	ErrInvalidKey         = errors.New("invalid encryption key")
	ErrInvalidHeader      = errors.New("invalid blob header")
	ErrUnsupportedVersion = errors.New("unsupported blob format version")
	ErrUnsupportedCipher  = errors.New("unsupported cipher suite")
	ErrUnsupportedKDF     = errors.New("unsupported key derivation function")
	ErrNilConfig          = errors.New("config cannot be nil")
	ErrNilBlob            = errors.New("blob cannot be nil")
	ErrTooLarge           = errors.New("plaintext exceeds configured maximum size")
	ErrBlobNotFound       = errors.New("blob not found")
	ErrBlobExists         = errors.New("blob already exists")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewAuthenticationError creates the uniform authentication failure
func NewAuthenticationError(blobID string) error {
	return &AuthenticationError{
		BlobID: blobID,
		Err:    ErrAuthFailed,
	}
}

// NewIntegrityError creates a new integrity error
func NewIntegrityError(blobID, message string) error {
	return &IntegrityError{
		BlobID:  blobID,
		Message: message,
		Err:     ErrIntegrity,
	}
}

// NewResourceError creates a new resource error
func NewResourceError(operation, target string, err error) error {
	return &ResourceError{
		Operation: operation,
		Target:    target,
		Err:       err,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsIntegrityError checks if an error is an integrity error
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsResourceError checks if an error is a resource error
func IsResourceError(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}
