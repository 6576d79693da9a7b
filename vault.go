package filevault

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Vault encrypts files before handing them to a BlobStore and decrypts them
// after loading. The store never sees plaintext or keys.
type Vault struct {
	engine *Engine
	store  BlobStore
	log    *logrus.Logger
}

// NewVault ties an engine to a store
func NewVault(engine *Engine, store BlobStore) (*Vault, error) {
	if engine == nil {
		return nil, NewValidationError("engine", nil, "engine cannot be nil")
	}
	if store == nil {
		return nil, NewValidationError("store", nil, "store cannot be nil")
	}
	return &Vault{engine: engine, store: store, log: engine.log}, nil
}

// Engine returns the vault's engine
func (v *Vault) Engine() *Engine {
	return v.engine
}

// Upload seals data and stores the resulting blob
func (v *Vault) Upload(ctx context.Context, filename string, data, password []byte) (*SealedBlob, error) {
	blob, err := v.engine.EncryptFile(ctx, data, filename, password)
	if err != nil {
		return nil, err
	}
	if err := v.store.Put(ctx, blob); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}
	v.log.WithFields(logrus.Fields{"blob_id": blob.ID, "size": blob.OriginalSize}).Info("uploaded")
	return blob, nil
}

// UploadReader reads r to the end, then seals and stores the contents
func (v *Vault) UploadReader(ctx context.Context, filename string, r io.Reader, password []byte) (*SealedBlob, error) {
	blob, err := v.engine.EncryptReader(ctx, r, filename, password)
	if err != nil {
		return nil, err
	}
	if err := v.store.Put(ctx, blob); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}
	v.log.WithFields(logrus.Fields{"blob_id": blob.ID, "size": blob.OriginalSize}).Info("uploaded")
	return blob, nil
}

// Download loads a blob and decrypts it
func (v *Vault) Download(ctx context.Context, id string, password []byte) (*DecryptedFile, error) {
	blob, err := v.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return v.engine.DecryptFile(ctx, blob, password)
}

// Get loads a blob without decrypting it
func (v *Vault) Get(ctx context.Context, id string) (*SealedBlob, error) {
	return v.store.Get(ctx, id)
}

// Import stores an existing blob, such as one decoded from an export
func (v *Vault) Import(ctx context.Context, blob *SealedBlob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	return v.store.Put(ctx, blob)
}

// Delete removes a blob from the store
func (v *Vault) Delete(ctx context.Context, id string) error {
	if err := v.store.Delete(ctx, id); err != nil {
		return err
	}
	v.log.WithField("blob_id", id).Info("deleted")
	return nil
}

// List returns the public metadata of every stored blob
func (v *Vault) List(ctx context.Context) ([]BlobInfo, error) {
	return v.store.List(ctx)
}

// Verify loads a blob and checks it decrypts under password
func (v *Vault) Verify(ctx context.Context, id string, password []byte) error {
	blob, err := v.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return v.engine.Verify(ctx, blob, password)
}

// Rotate re-encrypts a stored blob under newPassword. The new blob is stored
// before the old one is deleted, so a failure never leaves the file without
// a readable copy.
func (v *Vault) Rotate(ctx context.Context, id string, oldPassword, newPassword []byte) (*SealedBlob, error) {
	blob, err := v.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rekeyed, err := v.engine.Rekey(ctx, blob, oldPassword, newPassword)
	if err != nil {
		return nil, err
	}
	if err := v.store.Put(ctx, rekeyed); err != nil {
		return nil, fmt.Errorf("failed to store rotated blob: %w", err)
	}
	if err := v.store.Delete(ctx, id); err != nil {
		// Both copies exist; the new one is readable with newPassword
		v.log.WithFields(logrus.Fields{"old_id": id, "new_id": rekeyed.ID}).
			WithError(err).Warn("failed to delete rotated blob")
		return rekeyed, fmt.Errorf("rotated to %s but failed to delete %s: %w", rekeyed.ID, id, err)
	}

	v.log.WithFields(logrus.Fields{"old_id": id, "new_id": rekeyed.ID}).Info("rotated")
	return rekeyed, nil
}

// RotationFailure records one blob RotateAll could not rotate
type RotationFailure struct {
	ID  string
	Err error
}

// RotationReport summarizes a RotateAll run
type RotationReport struct {
	// Rotated maps old blob IDs to their replacements
	Rotated  map[string]string
	Failures []RotationFailure
}

// RotateAll rotates every stored blob from oldPassword to newPassword. It
// keeps going past individual failures and returns an error summarizing
// them together with the full report.
func (v *Vault) RotateAll(ctx context.Context, oldPassword, newPassword []byte) (*RotationReport, error) {
	infos, err := v.store.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &RotationReport{Rotated: make(map[string]string, len(infos))}
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rekeyed, err := v.Rotate(ctx, info.ID, oldPassword, newPassword)
		if err != nil {
			report.Failures = append(report.Failures, RotationFailure{ID: info.ID, Err: err})
			continue
		}
		report.Rotated[info.ID] = rekeyed.ID
	}

	if len(report.Failures) > 0 {
		return report, fmt.Errorf("key rotation completed with %d errors (rotated %d blobs)",
			len(report.Failures), len(report.Rotated))
	}
	return report, nil
}
