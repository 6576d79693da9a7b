package filevault

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// KDF derives a symmetric key from a password and a salt. Derivation is
// deterministic and deliberately slow. Passwords are never rejected here; a
// wrong one simply yields a key that fails authentication later.
type KDF interface {
	// DeriveKey derives a KeySize-byte key. The salt must be SaltSize bytes.
	DeriveKey(password, salt []byte) ([]byte, error)

	// Params returns the parameters recorded into blobs sealed with this KDF
	Params() KDFParams
}

// PBKDF2 implements KDF using PBKDF2-HMAC
type PBKDF2 struct {
	params KDFParams
	hash   func() hash.Hash
}

// NewPBKDF2 creates a PBKDF2 key deriver. Zero iterations default to 100,000.
func NewPBKDF2(params KDFParams) (*PBKDF2, error) {
	if params.Algorithm == 0 {
		params.Algorithm = KDFPBKDF2SHA256
	}
	if params.Iterations == 0 {
		params.Iterations = DefaultPBKDF2Iterations
	}
	params.Memory, params.Parallelism = 0, 0

	var h func() hash.Hash
	switch params.Algorithm {
	case KDFPBKDF2SHA256:
		h = sha256.New
	case KDFPBKDF2SHA512:
		h = sha512.New
	default:
		return nil, fmt.Errorf("unsupported hash function for pbkdf2: %v", params.Algorithm)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &PBKDF2{params: params, hash: h}, nil
}

// DeriveKey derives the key with PBKDF2
func (p *PBKDF2) DeriveKey(password, salt []byte) ([]byte, error) {
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}
	return pbkdf2.Key(password, salt, int(p.params.Iterations), KeySize, p.hash), nil
}

// Params returns the PBKDF2 parameters
func (p *PBKDF2) Params() KDFParams {
	return p.params
}

// Argon2id implements KDF using Argon2id
type Argon2id struct {
	params KDFParams
}

// NewArgon2id creates an Argon2id key deriver, filling zero fields from DefaultArgon2idParams
func NewArgon2id(params KDFParams) (*Argon2id, error) {
	def := DefaultArgon2idParams()
	params.Algorithm = KDFArgon2id
	if params.Iterations == 0 {
		params.Iterations = def.Iterations
	}
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Parallelism == 0 {
		params.Parallelism = def.Parallelism
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2id{params: params}, nil
}

// DeriveKey derives the key with Argon2id
func (a *Argon2id) DeriveKey(password, salt []byte) ([]byte, error) {
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}
	key := argon2.IDKey(
		password,
		salt,
		a.params.Iterations,
		a.params.Memory,
		a.params.Parallelism,
		KeySize,
	)
	return key, nil
}

// Params returns the Argon2id parameters
func (a *Argon2id) Params() KDFParams {
	return a.params
}

// NewKDF creates the key deriver described by params
func NewKDF(params KDFParams) (KDF, error) {
	switch params.Algorithm {
	case KDFPBKDF2SHA256, KDFPBKDF2SHA512:
		return NewPBKDF2(params)
	case KDFArgon2id:
		return NewArgon2id(params)
	default:
		return nil, &ValidationError{
			Field:   "kdf.algorithm",
			Value:   params.Algorithm,
			Message: "unsupported key derivation function",
			Err:     ErrUnsupportedKDF,
		}
	}
}
