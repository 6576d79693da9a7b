package filevault

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the on-disk YAML form of an engine and store configuration
//
//	cipher: aes-256-gcm
//	kdf:
//	  algorithm: pbkdf2-sha256
//	  iterations: 100000
//	max_plaintext_size: 1073741824
//	parallel:
//	  max_workers: 4
//	  min_items: 2
//	store:
//	  backend: fs
//	  path: ~/.filevault
type Settings struct {
	Cipher           string           `yaml:"cipher"`
	KDF              KDFSettings      `yaml:"kdf"`
	MaxPlaintextSize int64            `yaml:"max_plaintext_size"`
	Parallel         ParallelSettings `yaml:"parallel"`
	Store            StoreSettings    `yaml:"store"`
}

// KDFSettings selects the key derivation function for new blobs
type KDFSettings struct {
	Algorithm   string `yaml:"algorithm"`
	Iterations  uint32 `yaml:"iterations"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
}

// ParallelSettings configures the batch worker pool
type ParallelSettings struct {
	Disabled   bool `yaml:"disabled"`
	MaxWorkers int  `yaml:"max_workers"`
	MinItems   int  `yaml:"min_items"`
}

// StoreSettings selects where blobs are kept
type StoreSettings struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Store backends
const (
	BackendFS     = "fs"
	BackendBadger = "badger"
)

// LoadSettings decodes YAML settings. Unknown keys are rejected. An empty
// document yields zero Settings.
func LoadSettings(r io.Reader) (*Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Field: "settings", Message: fmt.Sprintf("malformed settings: %v", err), Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSettingsFile reads settings from a YAML file
func LoadSettingsFile(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewResourceError("open", path, err)
	}
	defer f.Close()
	return LoadSettings(f)
}

// Validate checks the names and ranges in the settings
func (s *Settings) Validate() error {
	if _, err := ParseCipherSuite(s.Cipher); err != nil {
		return &ValidationError{Field: "cipher", Value: s.Cipher, Message: "unknown cipher suite", Err: err}
	}
	if _, err := s.kdfParams(); err != nil {
		return err
	}
	if s.MaxPlaintextSize < 0 {
		return NewValidationError("max_plaintext_size", s.MaxPlaintextSize, "cannot be negative")
	}
	switch s.Store.Backend {
	case "", BackendFS, BackendBadger:
	default:
		return NewValidationError("store.backend", s.Store.Backend, "backend must be fs or badger")
	}
	return nil
}

func (s *Settings) kdfParams() (KDFParams, error) {
	alg, err := ParseKDFAlgorithm(s.KDF.Algorithm)
	if err != nil {
		return KDFParams{}, &ValidationError{Field: "kdf.algorithm", Value: s.KDF.Algorithm, Message: "unknown key derivation function", Err: err}
	}

	var params KDFParams
	if alg == KDFArgon2id {
		params = DefaultArgon2idParams()
		if s.KDF.MemoryKiB != 0 {
			params.Memory = s.KDF.MemoryKiB
		}
		if s.KDF.Parallelism != 0 {
			params.Parallelism = s.KDF.Parallelism
		}
	} else {
		params = DefaultKDFParams()
		params.Algorithm = alg
	}
	if s.KDF.Iterations != 0 {
		params.Iterations = s.KDF.Iterations
	}
	if err := params.Validate(); err != nil {
		return KDFParams{}, err
	}
	return params, nil
}

// EngineConfig converts the settings into an engine Config. Fields the
// settings do not cover (random source, provider, logger, metrics) are left
// for the caller or for the engine defaults.
func (s *Settings) EngineConfig() (*Config, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	suite, _ := ParseCipherSuite(s.Cipher)
	params, _ := s.kdfParams()

	parallel := DefaultParallelConfig()
	parallel.Enabled = !s.Parallel.Disabled
	if s.Parallel.MaxWorkers != 0 {
		parallel.MaxWorkers = s.Parallel.MaxWorkers
	}
	if s.Parallel.MinItems != 0 {
		parallel.MinItemsForParallel = s.Parallel.MinItems
	}

	cfg := &Config{
		Cipher:           suite,
		KDF:              params,
		MaxPlaintextSize: s.MaxPlaintextSize,
		Parallel:         parallel,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
