package filevault

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &ValidationError{
				Field:   "salt",
				Value:   16,
				Message: "must be 32 bytes",
			},
			wantMsg: "validation error: salt: must be 32 bytes",
		},
		{
			name: "without field",
			err: &ValidationError{
				Message: "blob cannot be nil",
			},
			wantMsg: "validation error: blob cannot be nil",
		},
		{
			name: "with wrapped error",
			err: &ValidationError{
				Field:   "key",
				Message: "invalid key",
				Err:     ErrInvalidKey,
			},
			wantMsg: "validation error: key: invalid key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
			if tt.err.Err != nil {
				if unwrapped := tt.err.Unwrap(); unwrapped != tt.err.Err {
					t.Errorf("ValidationError.Unwrap() = %v, want %v", unwrapped, tt.err.Err)
				}
			}
		})
	}
}

func TestAuthenticationError(t *testing.T) {
	// The message must not depend on the blob or the cause
	a := NewAuthenticationError("11111111-1111-1111-1111-111111111111")
	b := NewAuthenticationError("")

	if a.Error() != b.Error() {
		t.Errorf("messages differ: %q vs %q", a.Error(), b.Error())
	}
	if a.Error() != "decryption failed: wrong password or corrupted data" {
		t.Errorf("unexpected message %q", a.Error())
	}
	if !errors.Is(a, ErrAuthFailed) {
		t.Error("expected errors.Is(err, ErrAuthFailed)")
	}

	var ae *AuthenticationError
	if !errors.As(a, &ae) || ae.BlobID != "11111111-1111-1111-1111-111111111111" {
		t.Error("expected blob id to be carried")
	}
}

func TestIntegrityError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "with blob id",
			err:     NewIntegrityError("abc", "checksum mismatch"),
			wantMsg: "integrity error: abc: checksum mismatch",
		},
		{
			name:    "without blob id",
			err:     NewIntegrityError("", "size mismatch"),
			wantMsg: "integrity error: size mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("IntegrityError.Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrIntegrity) {
				t.Error("expected errors.Is(err, ErrIntegrity)")
			}
		})
	}
}

func TestResourceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "with target",
			err:     NewResourceError("read", "report.pdf", io.ErrUnexpectedEOF),
			wantMsg: "resource error: read report.pdf: unexpected EOF",
		},
		{
			name:    "without target",
			err:     NewResourceError("random", "", io.EOF),
			wantMsg: "resource error: random: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ResourceError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	// The cause is propagated unchanged
	if err := NewResourceError("read", "x", io.ErrClosedPipe); !errors.Is(err, io.ErrClosedPipe) {
		t.Error("expected cause to unwrap")
	}
}

func TestErrorCheckers(t *testing.T) {
	validation := NewValidationError("f", 1, "bad")
	auth := NewAuthenticationError("id")
	integrity := NewIntegrityError("id", "bad")
	resource := NewResourceError("put", "id", io.EOF)

	tests := []struct {
		name  string
		check func(error) bool
		match error
	}{
		{"validation", IsValidationError, validation},
		{"authentication", IsAuthenticationError, auth},
		{"integrity", IsIntegrityError, integrity},
		{"resource", IsResourceError, resource},
	}

	all := []error{validation, auth, integrity, resource, errors.New("plain")}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, err := range all {
				want := err == tt.match
				if got := tt.check(err); got != want {
					t.Errorf("check(%v) = %v, want %v", err, got, want)
				}
			}
			wrapped := fmt.Errorf("context: %w", tt.match)
			if !tt.check(wrapped) {
				t.Error("checker should see through wrapping")
			}
		})
	}
}
