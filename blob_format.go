package filevault

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// MagicBytes identifies sealed blob envelopes (ASCII: "FVLT")
	MagicBytes = uint32(0x46564C54)

	// fixedHeaderSize covers magic, version, cipher and the KDF record:
	// 4 + 1 + 1 + (1 + 4 + 4 + 1) = 16 bytes
	fixedHeaderSize = 16
)

// Binary envelope layout, all integers little-endian:
//
//	magic       uint32  "FVLT"
//	version     uint8
//	cipher      uint8
//	kdf         uint8 algorithm, uint32 iterations, uint32 memory, uint8 parallelism
//	id          [16]byte UUID
//	salt        uint16 length + bytes
//	nonce       uint16 length + bytes
//	auth tag    uint16 length + bytes
//	filename    uint16 length + bytes
//	size        int64 original size
//	created at  int64 unix seconds + uint32 nanoseconds, UTC
//	checksum    [32]byte SHA-256
//	ciphertext  uint64 length + bytes

// MarshalBinary encodes the blob into its versioned binary envelope
func (b *SealedBlob) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a binary envelope. Trailing bytes are rejected.
func (b *SealedBlob) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	if _, err := b.ReadFrom(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return &ValidationError{
			Message: fmt.Sprintf("%d trailing bytes after blob", r.Len()),
			Err:     ErrInvalidHeader,
		}
	}
	return nil
}

// WriteTo writes the binary envelope to the given writer. The blob is
// validated first; an invalid blob is never serialized.
func (b *SealedBlob) WriteTo(w io.Writer) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	id, _ := uuid.Parse(b.ID)
	digest, _ := ParseDigest(b.ContentChecksum)

	buf := new(bytes.Buffer)
	buf.Grow(fixedHeaderSize + 16 + 8 + SaltSize + NonceSize + TagSize + len(b.OriginalFilename) + 28 + DigestSize + len(b.Ciphertext))

	// binary.Write into a bytes.Buffer cannot fail for fixed-size values
	binary.Write(buf, binary.LittleEndian, MagicBytes)
	buf.WriteByte(b.Version)
	buf.WriteByte(byte(b.Cipher))
	buf.WriteByte(byte(b.KDF.Algorithm))
	binary.Write(buf, binary.LittleEndian, b.KDF.Iterations)
	binary.Write(buf, binary.LittleEndian, b.KDF.Memory)
	buf.WriteByte(b.KDF.Parallelism)
	buf.Write(id[:])

	for _, field := range [][]byte{b.Salt, b.Nonce, b.AuthTag, []byte(b.OriginalFilename)} {
		binary.Write(buf, binary.LittleEndian, uint16(len(field)))
		buf.Write(field)
	}

	binary.Write(buf, binary.LittleEndian, b.OriginalSize)
	binary.Write(buf, binary.LittleEndian, b.CreatedAt.Unix())
	binary.Write(buf, binary.LittleEndian, uint32(b.CreatedAt.Nanosecond()))
	buf.Write(digest[:])
	binary.Write(buf, binary.LittleEndian, uint64(len(b.Ciphertext)))
	buf.Write(b.Ciphertext)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom reads a binary envelope from the given reader and validates the
// decoded blob
func (b *SealedBlob) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}

	var magic uint32
	if err := binary.Read(cr, binary.LittleEndian, &magic); err != nil {
		return cr.n, headerError("magic bytes", err)
	}
	if magic != MagicBytes {
		return cr.n, &ValidationError{Field: "magic", Value: magic, Message: "not a sealed blob", Err: ErrInvalidHeader}
	}

	var fixed struct {
		Version     uint8
		Cipher      uint8
		KDF         uint8
		Iterations  uint32
		Memory      uint32
		Parallelism uint8
		ID          [16]byte
	}
	if err := binary.Read(cr, binary.LittleEndian, &fixed); err != nil {
		return cr.n, headerError("header", err)
	}
	if fixed.Version == 0 || fixed.Version > CurrentVersion {
		return cr.n, &ValidationError{Field: "version", Value: fixed.Version, Message: "unsupported format version", Err: ErrUnsupportedVersion}
	}

	var sized [4][]byte
	for i, name := range []string{"salt", "nonce", "auth tag", "filename"} {
		var size uint16
		if err := binary.Read(cr, binary.LittleEndian, &size); err != nil {
			return cr.n, headerError(name+" size", err)
		}
		sized[i] = make([]byte, size)
		if _, err := io.ReadFull(cr, sized[i]); err != nil {
			return cr.n, headerError(name, err)
		}
	}

	var tail struct {
		Size      int64
		Seconds   int64
		Nanos     uint32
		Checksum  [DigestSize]byte
		CipherLen uint64
	}
	if err := binary.Read(cr, binary.LittleEndian, &tail); err != nil {
		return cr.n, headerError("trailer", err)
	}
	if tail.Nanos >= uint32(time.Second) {
		return cr.n, NewValidationError("created_at", tail.Nanos, "nanoseconds out of range")
	}
	if tail.CipherLen > math.MaxInt64 {
		return cr.n, NewValidationError("ciphertext", tail.CipherLen, "ciphertext length out of range")
	}

	// Grow with the data actually present instead of trusting the length
	var ct bytes.Buffer
	if _, err := io.CopyN(&ct, cr, int64(tail.CipherLen)); err != nil {
		return cr.n, headerError("ciphertext", err)
	}

	*b = SealedBlob{
		ID:      uuid.UUID(fixed.ID).String(),
		Version: fixed.Version,
		Cipher:  CipherSuite(fixed.Cipher),
		KDF: KDFParams{
			Algorithm:   KDFAlgorithm(fixed.KDF),
			Iterations:  fixed.Iterations,
			Memory:      fixed.Memory,
			Parallelism: fixed.Parallelism,
		},
		Ciphertext:       ct.Bytes(),
		Salt:             sized[0],
		Nonce:            sized[1],
		AuthTag:          sized[2],
		OriginalFilename: string(sized[3]),
		OriginalSize:     tail.Size,
		CreatedAt:        time.Unix(tail.Seconds, int64(tail.Nanos)).UTC(),
		ContentChecksum:  Digest(tail.Checksum).Hex(),
	}
	if b.Ciphertext == nil {
		b.Ciphertext = []byte{}
	}

	return cr.n, b.Validate()
}

// MarshalJSON encodes the blob as JSON with base64 binary fields. An invalid
// blob is never serialized.
func (b *SealedBlob) MarshalJSON() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	type plain SealedBlob
	return json.Marshal((*plain)(b))
}

// UnmarshalJSON decodes and validates a JSON blob
func (b *SealedBlob) UnmarshalJSON(data []byte) error {
	type plain SealedBlob
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return &ValidationError{Message: "malformed blob json", Err: err}
	}
	if p.Ciphertext == nil {
		p.Ciphertext = []byte{}
	}
	*b = SealedBlob(p)
	return b.Validate()
}

func headerError(what string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &ValidationError{
		Field:   what,
		Message: fmt.Sprintf("failed to read %s: %v", what, err),
		Err:     err,
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
