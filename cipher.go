package filevault

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealedPayload is the output of one AEAD seal: the ciphertext and its
// authentication tag, kept as separate fields
type SealedPayload struct {
	Ciphertext []byte
	Tag        []byte
}

// CipherEngine provides AEAD sealing and opening under a fixed key
type CipherEngine interface {
	// Seal encrypts plaintext with the given nonce. The ciphertext has the
	// same length as the plaintext.
	Seal(nonce, plaintext []byte) (SealedPayload, error)

	// Open verifies the tag and decrypts. On any verification failure it
	// returns ErrAuthFailed and no plaintext.
	Open(nonce []byte, payload SealedPayload) ([]byte, error)

	// NonceSize returns the size of nonces in bytes
	NonceSize() int

	// Overhead returns the authentication tag size
	Overhead() int
}

// aeadEngine adapts a cipher.AEAD, which appends the tag to the ciphertext,
// to the CipherEngine pair-based API
type aeadEngine struct {
	aead cipher.AEAD
}

func (e *aeadEngine) Seal(nonce, plaintext []byte) (SealedPayload, error) {
	if len(nonce) != e.aead.NonceSize() {
		return SealedPayload{}, NewValidationError("nonce", len(nonce),
			fmt.Sprintf("nonce must be %d bytes, got %d", e.aead.NonceSize(), len(nonce)))
	}

	sealed := e.aead.Seal(make([]byte, 0, len(plaintext)+e.aead.Overhead()), nonce, plaintext, nil)

	n := len(plaintext)
	payload := SealedPayload{
		Ciphertext: sealed[:n:n],
		Tag:        make([]byte, e.aead.Overhead()),
	}
	copy(payload.Tag, sealed[n:])
	return payload, nil
}

func (e *aeadEngine) Open(nonce []byte, payload SealedPayload) ([]byte, error) {
	if len(nonce) != e.aead.NonceSize() {
		return nil, NewValidationError("nonce", len(nonce),
			fmt.Sprintf("nonce must be %d bytes, got %d", e.aead.NonceSize(), len(nonce)))
	}
	if len(payload.Tag) != e.aead.Overhead() {
		return nil, NewValidationError("auth_tag", len(payload.Tag),
			fmt.Sprintf("tag must be %d bytes, got %d", e.aead.Overhead(), len(payload.Tag)))
	}

	sealed := make([]byte, 0, len(payload.Ciphertext)+len(payload.Tag))
	sealed = append(sealed, payload.Ciphertext...)
	sealed = append(sealed, payload.Tag...)

	plaintext, err := e.aead.Open(sealed[:0], nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func (e *aeadEngine) NonceSize() int {
	return e.aead.NonceSize()
}

func (e *aeadEngine) Overhead() int {
	return e.aead.Overhead()
}

// NewAESGCMEngine creates a new AES-256-GCM cipher engine
func NewAESGCMEngine(key []byte) (CipherEngine, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aeadEngine{aead: aead}, nil
}

// NewChaCha20Poly1305Engine creates a new ChaCha20-Poly1305 cipher engine
func NewChaCha20Poly1305Engine(key []byte) (CipherEngine, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}

	return &aeadEngine{aead: aead}, nil
}

// NewCipherEngine creates a new cipher engine based on the cipher suite
func NewCipherEngine(suite CipherSuite, key []byte) (CipherEngine, error) {
	switch suite {
	case CipherAES256GCM:
		return NewAESGCMEngine(key)
	case CipherChaCha20Poly1305:
		return NewChaCha20Poly1305Engine(key)
	default:
		return nil, &ValidationError{
			Field:   "cipher",
			Value:   suite,
			Message: "unsupported cipher suite",
			Err:     ErrUnsupportedCipher,
		}
	}
}

// Provider constructs the cryptographic primitives used by the engine. It
// lets a hardware-backed implementation replace the software one without
// touching the orchestration.
type Provider interface {
	NewCipher(suite CipherSuite, key []byte) (CipherEngine, error)
	NewKDF(params KDFParams) (KDF, error)
}

// StdProvider is the software Provider built on crypto/aes and x/crypto
type StdProvider struct{}

// NewCipher returns NewCipherEngine(suite, key)
func (StdProvider) NewCipher(suite CipherSuite, key []byte) (CipherEngine, error) {
	return NewCipherEngine(suite, key)
}

// NewKDF returns NewKDF(params)
func (StdProvider) NewKDF(params KDFParams) (KDF, error) {
	return NewKDF(params)
}
