package filevault

import (
	"crypto/rand"
	"io"
)

// RandomSource supplies cryptographically secure random bytes for salts and
// nonces. Implementations must fill the whole buffer or return an error.
type RandomSource interface {
	Fill(b []byte) error
}

type readerSource struct {
	r io.Reader
}

// SystemRandom returns a RandomSource backed by crypto/rand
func SystemRandom() RandomSource {
	return readerSource{r: rand.Reader}
}

// ReaderRandom adapts an io.Reader, such as a hardware RNG device, into a RandomSource
func ReaderRandom(r io.Reader) RandomSource {
	return readerSource{r: r}
}

func (s readerSource) Fill(b []byte) error {
	_, err := io.ReadFull(s.r, b)
	return err
}

// generateSalt draws a fresh salt
func generateSalt(src RandomSource) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if err := src.Fill(salt); err != nil {
		return nil, NewResourceError("random", "salt", err)
	}
	return salt, nil
}

// generateNonce draws a fresh nonce of the given size
func generateNonce(src RandomSource, size int) ([]byte, error) {
	nonce := make([]byte, size)
	if err := src.Fill(nonce); err != nil {
		return nil, NewResourceError("random", "nonce", err)
	}
	return nonce, nil
}
