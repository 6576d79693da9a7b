package filevault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Engine seals files into SealedBlobs and opens them again. It holds only
// immutable configuration and is safe for concurrent use; every call draws
// its own salt and nonce.
type Engine struct {
	config   *Config
	cipher   CipherSuite
	kdf      KDF
	random   RandomSource
	provider Provider
	log      *logrus.Logger
	metrics  *Metrics
}

// DecryptedFile is the result of a successful decryption
type DecryptedFile struct {
	Filename  string
	Data      []byte
	Checksum  Digest
	CreatedAt time.Time
}

// Size returns the recovered plaintext length
func (f *DecryptedFile) Size() int64 {
	return int64(len(f.Data))
}

// New creates a new engine. A nil config selects DefaultConfig.
func New(config *Config) (*Engine, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := *config
	cfg.setDefaults()

	kdf, err := cfg.Provider.NewKDF(cfg.KDF)
	if err != nil {
		return nil, fmt.Errorf("failed to create key deriver: %w", err)
	}

	return &Engine{
		config:   &cfg,
		cipher:   cfg.Cipher,
		kdf:      kdf,
		random:   cfg.Random,
		provider: cfg.Provider,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Cipher returns the cipher suite used for new blobs
func (e *Engine) Cipher() CipherSuite {
	return e.cipher
}

// KDFParams returns the key derivation parameters used for new blobs
func (e *Engine) KDFParams() KDFParams {
	return e.kdf.Params()
}

// EncryptFile seals raw under a key derived from password. The returned blob
// is complete; on any error nothing is returned.
func (e *Engine) EncryptFile(ctx context.Context, raw []byte, filename string, password []byte) (*SealedBlob, error) {
	start := time.Now()
	blob, err := e.encrypt(ctx, raw, filename, password)
	e.metrics.observe("encrypt", start, len(raw), err)
	if err != nil {
		e.log.WithField("filename", filename).WithError(err).Debug("encryption failed")
		return nil, err
	}
	return blob, nil
}

// EncryptReader reads r to the end and seals the contents. Read failures
// are returned as a ResourceError.
func (e *Engine) EncryptReader(ctx context.Context, r io.Reader, filename string, password []byte) (*SealedBlob, error) {
	raw, err := e.readAll(r, filename)
	if err != nil {
		return nil, err
	}
	return e.EncryptFile(ctx, raw, filename, password)
}

func (e *Engine) readAll(r io.Reader, filename string) ([]byte, error) {
	limit := e.config.MaxPlaintextSize
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, NewResourceError("read", filename, err)
	}
	if err := ValidateSize(int64(len(raw)), "plaintext", limit); err != nil {
		return nil, err
	}
	return raw, nil
}

func (e *Engine) encrypt(ctx context.Context, raw []byte, filename string, password []byte) (*SealedBlob, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	if err := ValidateSize(int64(len(raw)), "plaintext", e.config.MaxPlaintextSize); err != nil {
		return nil, err
	}

	salt, err := generateSalt(e.random)
	if err != nil {
		return nil, err
	}

	key, err := e.deriveKey(ctx, e.kdf, password, salt)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	digest := Checksum(raw)

	engine, err := e.newCipher(e.cipher, key)
	if err != nil {
		return nil, err
	}

	nonce, err := generateNonce(e.random, engine.NonceSize())
	if err != nil {
		return nil, err
	}

	payload, err := engine.Seal(nonce, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to seal: %w", err)
	}

	blob := &SealedBlob{
		ID:               newBlobID(),
		Version:          CurrentVersion,
		Cipher:           e.cipher,
		KDF:              e.kdf.Params(),
		Ciphertext:       payload.Ciphertext,
		AuthTag:          payload.Tag,
		Nonce:            nonce,
		Salt:             salt,
		OriginalFilename: filename,
		OriginalSize:     int64(len(raw)),
		CreatedAt:        e.config.Now().UTC(),
		ContentChecksum:  digest.Hex(),
	}
	if err := ValidateTag(blob.AuthTag); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"blob_id": blob.ID,
		"cipher":  blob.Cipher.String(),
		"kdf":     blob.KDF.String(),
		"size":    blob.OriginalSize,
	}).Debug("sealed blob")

	return blob, nil
}

// DecryptFile re-derives the key from the blob's salt and password, verifies
// the tag and the stored content checksum, and returns the plaintext with
// its original filename. A wrong password, a corrupted ciphertext, tag or
// nonce all yield the same AuthenticationError.
func (e *Engine) DecryptFile(ctx context.Context, blob *SealedBlob, password []byte) (*DecryptedFile, error) {
	start := time.Now()
	file, err := e.decrypt(ctx, blob, password)
	size := 0
	if file != nil {
		size = len(file.Data)
	}
	e.metrics.observe("decrypt", start, size, err)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (e *Engine) decrypt(ctx context.Context, blob *SealedBlob, password []byte) (*DecryptedFile, error) {
	if err := blob.Validate(); err != nil {
		return nil, err
	}
	fields := logrus.Fields{"blob_id": blob.ID, "cipher": blob.Cipher.String(), "kdf": blob.KDF.String()}

	kdf, err := e.kdfFor(blob.KDF)
	if err != nil {
		return nil, err
	}

	key, err := e.deriveKey(ctx, kdf, password, blob.Salt)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	engine, err := e.newCipher(blob.Cipher, key)
	if err != nil {
		return nil, err
	}

	plaintext, err := engine.Open(blob.Nonce, blob.Payload())
	if err != nil {
		if IsValidationError(err) {
			return nil, err
		}
		if !errors.Is(err, ErrAuthFailed) {
			return nil, fmt.Errorf("failed to open blob: %w", err)
		}
		e.log.WithFields(fields).Warn("blob authentication failed")
		return nil, NewAuthenticationError(blob.ID)
	}

	digest, err := ParseDigest(blob.ContentChecksum)
	if err != nil {
		clear(plaintext)
		return nil, err
	}
	if !VerifyChecksum(plaintext, digest) {
		clear(plaintext)
		e.log.WithFields(fields).Warn("content checksum mismatch after tag verification")
		return nil, NewIntegrityError(blob.ID, "recovered plaintext does not match stored checksum")
	}
	if int64(len(plaintext)) != blob.OriginalSize {
		clear(plaintext)
		return nil, NewIntegrityError(blob.ID,
			fmt.Sprintf("recovered %d bytes, expected %d", len(plaintext), blob.OriginalSize))
	}

	e.log.WithFields(fields).WithField("size", len(plaintext)).Debug("opened blob")

	return &DecryptedFile{
		Filename:  blob.OriginalFilename,
		Data:      plaintext,
		Checksum:  digest,
		CreatedAt: blob.CreatedAt,
	}, nil
}

// NeedsUpgrade reports whether blob was sealed with a cipher or KDF
// parameters other than the engine's current ones
func (e *Engine) NeedsUpgrade(blob *SealedBlob) bool {
	return blob.Cipher != e.cipher || blob.KDF != e.kdf.Params()
}

// kdfFor returns a deriver for params, reusing the engine's own when they match
func (e *Engine) kdfFor(params KDFParams) (KDF, error) {
	if params == e.kdf.Params() {
		return e.kdf, nil
	}
	kdf, err := e.provider.NewKDF(params)
	if err != nil {
		return nil, err
	}
	return kdf, nil
}

func (e *Engine) newCipher(suite CipherSuite, key []byte) (CipherEngine, error) {
	engine, err := e.provider.NewCipher(suite, key)
	if err != nil {
		return nil, err
	}
	if engine.NonceSize() != NonceSize || engine.Overhead() != TagSize {
		return nil, fmt.Errorf("%w: %s engine uses %d-byte nonces and %d-byte tags",
			ErrUnsupportedCipher, suite, engine.NonceSize(), engine.Overhead())
	}
	return engine, nil
}

// deriveKey runs the KDF off the calling goroutine. If ctx is cancelled
// first, ctx.Err() is returned immediately and the late key is discarded.
func (e *Engine) deriveKey(ctx context.Context, kdf KDF, password, salt []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		key []byte
		err error
	}

	pw := bytes.Clone(password)
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		defer clear(pw)
		key, err := kdf.DeriveKey(pw, salt)
		done <- result{key: key, err: err}
	}()

	select {
	case r := <-done:
		e.metrics.observeKDF(start)
		if r.err != nil {
			return nil, r.err
		}
		if err := ValidateKey(r.key); err != nil {
			return nil, err
		}
		return r.key, nil
	case <-ctx.Done():
		go func() {
			r := <-done
			clear(r.key)
		}()
		return nil, ctx.Err()
	}
}
