package filevault

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Fixed sizes of the sealed blob fields
const (
	// KeySize is the derived key length in bytes (256 bits)
	KeySize = 32

	// SaltSize is the per-blob key derivation salt length in bytes
	SaltSize = 32

	// NonceSize is the AEAD nonce length in bytes
	NonceSize = 12

	// TagSize is the AEAD authentication tag length in bytes
	TagSize = 16

	// DefaultPBKDF2Iterations is the PBKDF2 work factor used when none is configured
	DefaultPBKDF2Iterations = 100000
)

// Upper bounds on a KDF record. Blobs carry their own parameters, so these
// cap the work a decoded blob can demand before it is rejected as invalid.
const (
	MaxPBKDF2Iterations  = 10_000_000
	MaxArgon2Time        = 16
	MaxArgon2Memory      = 4 * 1024 * 1024 // KiB, 4 GiB
	MaxArgon2Parallelism = 64
)

// CipherSuite represents the AEAD construction used to seal a blob
type CipherSuite uint8

const (
	// CipherAES256GCM uses AES-256 with Galois/Counter Mode
	CipherAES256GCM CipherSuite = iota + 1
	// CipherChaCha20Poly1305 uses ChaCha20 stream cipher with Poly1305 MAC
	CipherChaCha20Poly1305
)

// String returns the string representation of the cipher suite
func (c CipherSuite) String() string {
	switch c {
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// ParseCipherSuite maps a name as produced by String back to a CipherSuite
func ParseCipherSuite(name string) (CipherSuite, error) {
	switch name {
	case "aes-256-gcm", "aes", "":
		return CipherAES256GCM, nil
	case "chacha20-poly1305", "chacha20":
		return CipherChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCipher, name)
	}
}

func (c CipherSuite) valid() bool {
	return c == CipherAES256GCM || c == CipherChaCha20Poly1305
}

// KDFAlgorithm identifies the password-based key derivation function
type KDFAlgorithm uint8

const (
	// KDFPBKDF2SHA256 is PBKDF2 with HMAC-SHA256
	KDFPBKDF2SHA256 KDFAlgorithm = iota + 1
	// KDFPBKDF2SHA512 is PBKDF2 with HMAC-SHA512
	KDFPBKDF2SHA512
	// KDFArgon2id is the memory-hard Argon2id function
	KDFArgon2id
)

func (a KDFAlgorithm) String() string {
	switch a {
	case KDFPBKDF2SHA256:
		return "pbkdf2-sha256"
	case KDFPBKDF2SHA512:
		return "pbkdf2-sha512"
	case KDFArgon2id:
		return "argon2id"
	default:
		return "unknown"
	}
}

// ParseKDFAlgorithm maps a name as produced by String back to a KDFAlgorithm
func ParseKDFAlgorithm(name string) (KDFAlgorithm, error) {
	switch name {
	case "pbkdf2-sha256", "pbkdf2", "":
		return KDFPBKDF2SHA256, nil
	case "pbkdf2-sha512":
		return KDFPBKDF2SHA512, nil
	case "argon2id", "argon2":
		return KDFArgon2id, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKDF, name)
	}
}

// KDFParams is the key derivation record stored with every blob.
// Iterations is the PBKDF2 round count, or the Argon2id time parameter.
// Memory (KiB) and Parallelism only apply to Argon2id.
type KDFParams struct {
	Algorithm   KDFAlgorithm `json:"algorithm"`
	Iterations  uint32       `json:"iterations"`
	Memory      uint32       `json:"memory,omitempty"`
	Parallelism uint8        `json:"parallelism,omitempty"`
}

// DefaultKDFParams returns PBKDF2-HMAC-SHA256 with 100,000 rounds
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algorithm:  KDFPBKDF2SHA256,
		Iterations: DefaultPBKDF2Iterations,
	}
}

// DefaultArgon2idParams returns the Argon2id parameters recommended for interactive use
func DefaultArgon2idParams() KDFParams {
	return KDFParams{
		Algorithm:   KDFArgon2id,
		Iterations:  3,
		Memory:      64 * 1024, // 64 MB
		Parallelism: 4,
	}
}

func (p KDFParams) String() string {
	if p.Algorithm == KDFArgon2id {
		return fmt.Sprintf("%s(t=%d,m=%d,p=%d)", p.Algorithm, p.Iterations, p.Memory, p.Parallelism)
	}
	return fmt.Sprintf("%s(i=%d)", p.Algorithm, p.Iterations)
}

// Validate checks the parameters describe a usable derivation
func (p KDFParams) Validate() error {
	switch p.Algorithm {
	case KDFPBKDF2SHA256, KDFPBKDF2SHA512:
		if p.Iterations == 0 {
			return NewValidationError("kdf.iterations", p.Iterations, "iterations must be positive")
		}
		if p.Iterations > MaxPBKDF2Iterations {
			return NewValidationError("kdf.iterations", p.Iterations,
				fmt.Sprintf("iterations exceed maximum of %d", MaxPBKDF2Iterations))
		}
	case KDFArgon2id:
		if p.Iterations == 0 {
			return NewValidationError("kdf.iterations", p.Iterations, "time parameter must be positive")
		}
		if p.Iterations > MaxArgon2Time {
			return NewValidationError("kdf.iterations", p.Iterations,
				fmt.Sprintf("time parameter exceeds maximum of %d", MaxArgon2Time))
		}
		if p.Parallelism == 0 {
			return NewValidationError("kdf.parallelism", p.Parallelism, "parallelism must be positive")
		}
		if p.Parallelism > MaxArgon2Parallelism {
			return NewValidationError("kdf.parallelism", p.Parallelism,
				fmt.Sprintf("parallelism exceeds maximum of %d", MaxArgon2Parallelism))
		}
		if p.Memory < 8*uint32(p.Parallelism) {
			return NewValidationError("kdf.memory", p.Memory, "memory must be at least 8 KiB per lane")
		}
		if p.Memory > MaxArgon2Memory {
			return NewValidationError("kdf.memory", p.Memory,
				fmt.Sprintf("memory exceeds maximum of %d KiB", MaxArgon2Memory))
		}
	default:
		return &ValidationError{
			Field:   "kdf.algorithm",
			Value:   p.Algorithm,
			Message: "unsupported key derivation function",
			Err:     ErrUnsupportedKDF,
		}
	}
	return nil
}

// Config contains configuration for the encryption engine
type Config struct {
	// Cipher suite used for new blobs (defaults to AES-256-GCM)
	Cipher CipherSuite

	// KDF parameters used for new blobs (defaults to DefaultKDFParams)
	KDF KDFParams

	// Random supplies salts and nonces (defaults to crypto/rand)
	Random RandomSource

	// Provider constructs cipher engines and KDFs (defaults to StdProvider)
	Provider Provider

	// Logger receives debug and warning output (defaults to a silent logger)
	Logger *logrus.Logger

	// Metrics, if set, records operation counters and latencies
	Metrics *Metrics

	// MaxPlaintextSize rejects larger inputs when positive
	MaxPlaintextSize int64

	// Parallel controls the batch worker pool
	Parallel ParallelConfig

	// Now returns the creation timestamp for new blobs (defaults to time.Now)
	Now func() time.Time
}

// DefaultConfig returns a configuration with every default filled in
func DefaultConfig() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Cipher == 0 {
		c.Cipher = CipherAES256GCM
	}
	if c.KDF.Algorithm == 0 {
		c.KDF = DefaultKDFParams()
	}
	if c.Random == nil {
		c.Random = SystemRandom()
	}
	if c.Provider == nil {
		c.Provider = StdProvider{}
	}
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
	if c.Parallel == (ParallelConfig{}) {
		c.Parallel = DefaultParallelConfig()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Cipher != 0 && !c.Cipher.valid() {
		return errors.New("unsupported cipher suite")
	}
	if c.KDF.Algorithm != 0 {
		if err := c.KDF.Validate(); err != nil {
			return err
		}
	}
	if c.MaxPlaintextSize < 0 {
		return errors.New("max plaintext size cannot be negative")
	}
	if err := c.Parallel.Validate(); err != nil {
		return err
	}
	return nil
}

// MarshalText encodes the cipher suite by name
func (c CipherSuite) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, ErrUnsupportedCipher
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a cipher suite name
func (c *CipherSuite) UnmarshalText(text []byte) error {
	parsed, err := ParseCipherSuite(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText encodes the algorithm by name
func (a KDFAlgorithm) MarshalText() ([]byte, error) {
	if a.String() == "unknown" {
		return nil, ErrUnsupportedKDF
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes an algorithm name
func (a *KDFAlgorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseKDFAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
