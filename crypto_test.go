package filevault

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCipherEngine_SealOpen(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeySize)
	nonce := bytes.Repeat([]byte{0x01}, NonceSize)

	for _, suite := range []CipherSuite{CipherAES256GCM, CipherChaCha20Poly1305} {
		t.Run(suite.String(), func(t *testing.T) {
			engine, err := NewCipherEngine(suite, key)
			if err != nil {
				t.Fatalf("failed to create engine: %v", err)
			}
			if engine.NonceSize() != NonceSize || engine.Overhead() != TagSize {
				t.Fatalf("nonce %d / tag %d, want %d / %d", engine.NonceSize(), engine.Overhead(), NonceSize, TagSize)
			}

			for _, plaintext := range [][]byte{{}, []byte("a"), bytes.Repeat([]byte("x"), 1000)} {
				payload, err := engine.Seal(nonce, plaintext)
				if err != nil {
					t.Fatalf("seal failed: %v", err)
				}
				if len(payload.Ciphertext) != len(plaintext) {
					t.Fatalf("ciphertext %d bytes, want %d", len(payload.Ciphertext), len(plaintext))
				}
				if len(payload.Tag) != TagSize {
					t.Fatalf("tag %d bytes, want %d", len(payload.Tag), TagSize)
				}

				got, err := engine.Open(nonce, payload)
				if err != nil {
					t.Fatalf("open failed: %v", err)
				}
				if !bytes.Equal(got, plaintext) {
					t.Fatal("plaintext mismatch")
				}
			}
		})
	}
}

func TestCipherEngine_OpenDoesNotAlias(t *testing.T) {
	engine, err := NewAESGCMEngine(make([]byte, KeySize))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	nonce := make([]byte, NonceSize)

	payload, err := engine.Seal(nonce, []byte("hello world"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	ciphertext := bytes.Clone(payload.Ciphertext)
	tag := bytes.Clone(payload.Tag)

	if _, err := engine.Open(nonce, payload); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(payload.Ciphertext, ciphertext) || !bytes.Equal(payload.Tag, tag) {
		t.Fatal("open modified its input")
	}
}

func TestCipherEngine_Failures(t *testing.T) {
	key := make([]byte, KeySize)
	otherKey := bytes.Repeat([]byte{1}, KeySize)
	nonce := make([]byte, NonceSize)

	engine, _ := NewAESGCMEngine(key)
	other, _ := NewAESGCMEngine(otherKey)
	payload, err := engine.Seal(nonce, []byte("secret"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	if _, err := other.Open(nonce, payload); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("wrong key: expected ErrAuthFailed, got %v", err)
	}

	otherNonce := bytes.Repeat([]byte{9}, NonceSize)
	if _, err := engine.Open(otherNonce, payload); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("wrong nonce: expected ErrAuthFailed, got %v", err)
	}

	if _, err := engine.Seal(nonce[:8], []byte("x")); !IsValidationError(err) {
		t.Errorf("short nonce on seal: expected validation error, got %v", err)
	}
	if _, err := engine.Open(nonce, SealedPayload{Ciphertext: payload.Ciphertext, Tag: payload.Tag[:8]}); !IsValidationError(err) {
		t.Errorf("short tag: expected validation error, got %v", err)
	}

	for _, bad := range [][]byte{nil, make([]byte, 16), make([]byte, 33)} {
		if _, err := NewAESGCMEngine(bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("AES key of %d bytes: expected ErrInvalidKey, got %v", len(bad), err)
		}
		if _, err := NewChaCha20Poly1305Engine(bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ChaCha key of %d bytes: expected ErrInvalidKey, got %v", len(bad), err)
		}
	}

	if _, err := NewCipherEngine(0, key); !errors.Is(err, ErrUnsupportedCipher) {
		t.Errorf("expected ErrUnsupportedCipher, got %v", err)
	}
}

func TestKDF_Derive(t *testing.T) {
	salt := bytes.Repeat([]byte{0xAB}, SaltSize)
	otherSalt := bytes.Repeat([]byte{0xCD}, SaltSize)

	tests := []struct {
		name   string
		params KDFParams
	}{
		{"pbkdf2-sha256", KDFParams{Algorithm: KDFPBKDF2SHA256, Iterations: 100}},
		{"pbkdf2-sha512", KDFParams{Algorithm: KDFPBKDF2SHA512, Iterations: 100}},
		{"argon2id", KDFParams{Algorithm: KDFArgon2id, Iterations: 1, Memory: 256, Parallelism: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kdf, err := NewKDF(tt.params)
			if err != nil {
				t.Fatalf("NewKDF failed: %v", err)
			}
			if kdf.Params() != tt.params {
				t.Fatalf("Params() = %v, want %v", kdf.Params(), tt.params)
			}

			k1, err := kdf.DeriveKey([]byte("password"), salt)
			if err != nil {
				t.Fatalf("derive failed: %v", err)
			}
			if len(k1) != KeySize {
				t.Fatalf("key is %d bytes, want %d", len(k1), KeySize)
			}

			k2, _ := kdf.DeriveKey([]byte("password"), salt)
			if !bytes.Equal(k1, k2) {
				t.Fatal("derivation is not deterministic")
			}

			k3, _ := kdf.DeriveKey([]byte("passwore"), salt)
			k4, _ := kdf.DeriveKey([]byte("password"), otherSalt)
			if bytes.Equal(k1, k3) || bytes.Equal(k1, k4) {
				t.Fatal("different password or salt gave the same key")
			}

			empty, err := kdf.DeriveKey(nil, salt)
			if err != nil || len(empty) != KeySize {
				t.Fatalf("empty password: %d bytes, %v", len(empty), err)
			}

			if _, err := kdf.DeriveKey([]byte("password"), salt[:16]); !IsValidationError(err) {
				t.Fatalf("short salt: expected validation error, got %v", err)
			}
		})
	}
}

func TestKDF_Defaults(t *testing.T) {
	p, err := NewPBKDF2(KDFParams{})
	if err != nil {
		t.Fatalf("NewPBKDF2 failed: %v", err)
	}
	if p.Params() != DefaultKDFParams() {
		t.Errorf("defaults = %v, want %v", p.Params(), DefaultKDFParams())
	}

	a, err := NewArgon2id(KDFParams{})
	if err != nil {
		t.Fatalf("NewArgon2id failed: %v", err)
	}
	if a.Params() != DefaultArgon2idParams() {
		t.Errorf("defaults = %v, want %v", a.Params(), DefaultArgon2idParams())
	}

	if _, err := NewKDF(KDFParams{Algorithm: 77}); !errors.Is(err, ErrUnsupportedKDF) {
		t.Errorf("expected ErrUnsupportedKDF, got %v", err)
	}
}

func TestKDF_RejectsOutOfRange(t *testing.T) {
	for _, params := range []KDFParams{
		{Algorithm: KDFPBKDF2SHA256, Iterations: 1 << 31},
		{Algorithm: KDFPBKDF2SHA512, Iterations: MaxPBKDF2Iterations + 1},
		{Algorithm: KDFArgon2id, Iterations: 1, Memory: 1 << 31, Parallelism: 1},
		{Algorithm: KDFArgon2id, Iterations: 1 << 20, Memory: 1024, Parallelism: 1},
	} {
		if _, err := NewKDF(params); !IsValidationError(err) {
			t.Errorf("NewKDF(%v): expected validation error, got %v", params, err)
		}
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		d := Checksum([]byte(tt.input))
		if d.Hex() != tt.want {
			t.Errorf("Checksum(%q) = %s, want %s", tt.input, d.Hex(), tt.want)
		}
		parsed, err := ParseDigest(tt.want)
		if err != nil || parsed != d {
			t.Errorf("ParseDigest(%s) = %v, %v", tt.want, parsed, err)
		}
		if !VerifyChecksum([]byte(tt.input), d) || !VerifyChecksumHex([]byte(tt.input), tt.want) {
			t.Errorf("verification of %q failed", tt.input)
		}
		if VerifyChecksum([]byte(tt.input+"!"), d) {
			t.Errorf("modified input verified")
		}
	}

	for _, bad := range []string{"", "abc", "zz" + strings.Repeat("0", 62)} {
		if _, err := ParseDigest(bad); !IsValidationError(err) {
			t.Errorf("ParseDigest(%q): expected validation error, got %v", bad, err)
		}
		if VerifyChecksumHex(nil, bad) {
			t.Errorf("malformed digest %q verified", bad)
		}
	}
}
