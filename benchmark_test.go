package filevault

import (
	"context"
	"crypto/rand"
	"fmt"
	"testing"
)

// Benchmark AES-256-GCM seal throughput
func BenchmarkAESGCM_Seal(b *testing.B) {
	benchmarkSeal(b, CipherAES256GCM)
}

// Benchmark ChaCha20-Poly1305 seal throughput
func BenchmarkChaCha20_Seal(b *testing.B) {
	benchmarkSeal(b, CipherChaCha20Poly1305)
}

var benchSizes = []int{
	1024,             // 1 KB
	64 * 1024,        // 64 KB
	1024 * 1024,      // 1 MB
	10 * 1024 * 1024, // 10 MB
}

func benchmarkSeal(b *testing.B, suite CipherSuite) {
	key := make([]byte, KeySize)
	rand.Read(key)
	nonce := make([]byte, NonceSize)

	engine, err := NewCipherEngine(suite, key)
	if err != nil {
		b.Fatalf("failed to create cipher engine: %v", err)
	}

	for _, size := range benchSizes {
		b.Run(formatSize(size), func(b *testing.B) {
			data := make([]byte, size)
			rand.Read(data)

			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Seal(nonce, data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark key derivation cost at the default parameters
func BenchmarkKDF(b *testing.B) {
	salt := make([]byte, SaltSize)
	rand.Read(salt)

	for _, params := range []KDFParams{DefaultKDFParams(), DefaultArgon2idParams()} {
		kdf, err := NewKDF(params)
		if err != nil {
			b.Fatalf("failed to create KDF: %v", err)
		}
		b.Run(params.Algorithm.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := kdf.DeriveKey([]byte("benchmark-password"), salt); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark the full EncryptFile/DecryptFile path with a cheap KDF
func BenchmarkEngine_RoundTrip(b *testing.B) {
	e := newTestEngine(b, nil)
	ctx := context.Background()
	password := []byte("benchmark-password")

	for _, size := range benchSizes {
		b.Run(formatSize(size), func(b *testing.B) {
			data := make([]byte, size)
			rand.Read(data)

			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				blob, err := e.EncryptFile(ctx, data, "bench.bin", password)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := e.DecryptFile(ctx, blob, password); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark batch encryption with and without the worker pool
func BenchmarkEncryptBatch(b *testing.B) {
	files := make([]PlainFile, 32)
	for i := range files {
		files[i] = PlainFile{Filename: fmt.Sprintf("f%d", i), Data: make([]byte, 64*1024)}
		rand.Read(files[i].Data)
	}

	for name, parallel := range map[string]ParallelConfig{
		"sequential": {Enabled: false, MinItemsForParallel: 1},
		"parallel":   DefaultParallelConfig(),
	} {
		b.Run(name, func(b *testing.B) {
			e := newTestEngine(b, &Config{Parallel: parallel})
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.EncryptBatch(context.Background(), files, []byte("pw")); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func formatSize(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
