// Package filevault is the encryption core of a client-side file vault:
// files are sealed with a password-derived key before they reach storage
// and opened again after download.
//
// # Overview
//
// An Engine turns (file bytes, filename, password) into a SealedBlob and
// back. Each blob carries its own random salt and nonce, the KDF record
// needed to re-derive its key, the AEAD ciphertext and tag, and a SHA-256
// checksum of the plaintext that is verified after decryption.
//
// # Supported Cipher Suites
//
// - AES-256-GCM (default)
// - ChaCha20-Poly1305
//
// Both use 12-byte nonces and 16-byte tags, and the ciphertext is exactly
// as long as the plaintext.
//
// # Basic Usage
//
//	engine, err := filevault.New(nil) // PBKDF2-SHA256, 100,000 rounds, AES-256-GCM
//	if err != nil {
//	    panic(err)
//	}
//
//	blob, err := engine.EncryptFile(ctx, data, "report.pdf", password)
//	...
//	file, err := engine.DecryptFile(ctx, blob, password)
//	if filevault.IsAuthenticationError(err) {
//	    // wrong password or corrupted blob; the two are indistinguishable
//	}
//
// A Vault adds a BlobStore (FSStore over any absfs.FileSystem, or
// BadgerStore) for upload, download, verification and password rotation.
//
// # Errors
//
// Failures fall into four kinds: ValidationError (malformed input or blob),
// AuthenticationError (tag check failed), IntegrityError (tag passed but the
// plaintext does not match the stored checksum) and ResourceError (the
// random source, a reader or the store failed).
//
// # Security Considerations
//
// Protected Against:
//   - Reading blobs at rest without the password
//   - Tampering with any byte of ciphertext, tag or nonce
//   - Offline brute force, up to the cost of the configured KDF
//
// Not Protected Against:
//   - Metadata leakage: filename, size, creation time and the plaintext
//     checksum are stored unencrypted. The checksum lets anyone holding a
//     candidate file confirm it matches a blob.
//   - Memory dumps while keys or plaintext are in memory
//   - Weak passwords
//
// # Blob Format
//
// MarshalBinary writes a versioned little-endian envelope starting with
// the magic bytes "FVLT" (0x46564C54); MarshalJSON writes the same fields
// with base64 byte strings. Both decoders validate every fixed size.
package filevault
