package filevault

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Rekey opens blob with oldPassword and seals the plaintext again under
// newPassword, using the engine's current cipher and KDF. The result is a
// new blob with a fresh ID, salt and nonce; the original filename is kept.
// The input blob is not modified.
func (e *Engine) Rekey(ctx context.Context, blob *SealedBlob, oldPassword, newPassword []byte) (*SealedBlob, error) {
	file, err := e.DecryptFile(ctx, blob, oldPassword)
	if err != nil {
		return nil, err
	}
	defer clear(file.Data)

	rekeyed, err := e.EncryptFile(ctx, file.Data, file.Filename, newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encrypt: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"old_id": blob.ID,
		"new_id": rekeyed.ID,
		"from":   blob.KDF.String(),
		"to":     rekeyed.KDF.String(),
	}).Debug("rekeyed blob")

	return rekeyed, nil
}

// OpenWithAny tries each password in order and returns the first successful
// decryption with the index of the password that worked. When none match,
// the same AuthenticationError as DecryptFile is returned. Errors other than
// authentication failures stop the search.
func (e *Engine) OpenWithAny(ctx context.Context, blob *SealedBlob, passwords ...[]byte) (*DecryptedFile, int, error) {
	if len(passwords) == 0 {
		return nil, -1, NewValidationError("passwords", 0, "at least one password required")
	}

	for i, password := range passwords {
		file, err := e.DecryptFile(ctx, blob, password)
		if err == nil {
			return file, i, nil
		}
		if !IsAuthenticationError(err) {
			return nil, -1, err
		}
	}
	return nil, -1, NewAuthenticationError(blob.ID)
}

// Verify checks that blob opens with password and that its content matches
// the stored checksum. The plaintext is discarded.
func (e *Engine) Verify(ctx context.Context, blob *SealedBlob, password []byte) error {
	file, err := e.DecryptFile(ctx, blob, password)
	if err != nil {
		return err
	}
	clear(file.Data)
	return nil
}
