package filevault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings(t *testing.T) {
	doc := `
cipher: chacha20-poly1305
kdf:
  algorithm: pbkdf2-sha512
  iterations: 250000
max_plaintext_size: 1048576
parallel:
  max_workers: 3
  min_items: 4
store:
  backend: badger
  path: /var/lib/filevault
`
	s, err := LoadSettings(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "chacha20-poly1305", s.Cipher)
	assert.Equal(t, BackendBadger, s.Store.Backend)
	assert.Equal(t, "/var/lib/filevault", s.Store.Path)

	cfg, err := s.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, CipherChaCha20Poly1305, cfg.Cipher)
	assert.Equal(t, KDFParams{Algorithm: KDFPBKDF2SHA512, Iterations: 250000}, cfg.KDF)
	assert.Equal(t, int64(1<<20), cfg.MaxPlaintextSize)
	assert.Equal(t, ParallelConfig{Enabled: true, MaxWorkers: 3, MinItemsForParallel: 4}, cfg.Parallel)
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings(strings.NewReader(""))
	require.NoError(t, err)

	cfg, err := s.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, CipherAES256GCM, cfg.Cipher)
	assert.Equal(t, DefaultKDFParams(), cfg.KDF)
	assert.Equal(t, DefaultParallelConfig(), cfg.Parallel)

	e, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultKDFParams(), e.KDFParams())
}

func TestLoadSettings_Argon2id(t *testing.T) {
	s, err := LoadSettings(strings.NewReader("kdf:\n  algorithm: argon2id\n  memory_kib: 1024\n"))
	require.NoError(t, err)

	cfg, err := s.EngineConfig()
	require.NoError(t, err)
	want := DefaultArgon2idParams()
	want.Memory = 1024
	assert.Equal(t, want, cfg.KDF)

	s, err = LoadSettings(strings.NewReader("kdf:\n  algorithm: argon2id\n  iterations: 1\n  parallelism: 1\n"))
	require.NoError(t, err)
	cfg, err = s.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cfg.KDF.Iterations)
	assert.Equal(t, uint8(1), cfg.KDF.Parallelism)
	assert.Equal(t, DefaultArgon2idParams().Memory, cfg.KDF.Memory)
}

func TestLoadSettings_Disabled(t *testing.T) {
	s, err := LoadSettings(strings.NewReader("parallel:\n  disabled: true\n"))
	require.NoError(t, err)
	cfg, err := s.EngineConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Parallel.Enabled)
}

func TestLoadSettings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{name: "unknown key", doc: "ciphr: aes\n"},
		{name: "not yaml", doc: "cipher: [\n"},
		{name: "unknown cipher", doc: "cipher: des\n", wantErr: ErrUnsupportedCipher},
		{name: "unknown kdf", doc: "kdf:\n  algorithm: scrypt\n", wantErr: ErrUnsupportedKDF},
		{name: "argon2id memory too low", doc: "kdf:\n  algorithm: argon2id\n  memory_kib: 4\n"},
		{name: "negative size", doc: "max_plaintext_size: -1\n"},
		{name: "unknown backend", doc: "store:\n  backend: s3\n"},
		{name: "bad worker count", doc: "parallel:\n  max_workers: -2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := LoadSettings(strings.NewReader(tt.doc))
			if err == nil {
				_, err = s.EngineConfig()
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cipher: aes\nstore:\n  backend: fs\n"), 0600))

	s, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendFS, s.Store.Backend)

	_, err = LoadSettingsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, IsResourceError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
