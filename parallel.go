package filevault

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ParallelConfig controls the batch worker pool
type ParallelConfig struct {
	// Enabled enables parallel batch processing
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinItemsForParallel is the minimum batch size to use the worker pool
	// Below this threshold, items are processed sequentially
	// Defaults to 2
	MinItemsForParallel int
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil
	}

	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.MinItemsForParallel < 1 {
		return errors.New("parallel min items threshold must be at least 1")
	}
	if p.MinItemsForParallel > 1000 {
		return errors.New("parallel min items threshold must not exceed 1000")
	}

	return nil
}

// DefaultParallelConfig returns the default parallel processing configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:             true,
		MaxWorkers:          runtime.NumCPU(),
		MinItemsForParallel: 2,
	}
}

// PlainFile is one input to EncryptBatch
type PlainFile struct {
	Filename string
	Data     []byte
}

// EncryptBatch seals every file under the same password. Each file gets its
// own salt, key and nonce. Results are in input order; the first failure
// aborts the batch and no blobs are returned.
func (e *Engine) EncryptBatch(ctx context.Context, files []PlainFile, password []byte) ([]*SealedBlob, error) {
	blobs := make([]*SealedBlob, len(files))
	err := e.runBatch(ctx, len(files), func(ctx context.Context, i int) error {
		blob, err := e.EncryptFile(ctx, files[i].Data, files[i].Filename, password)
		if err != nil {
			return fmt.Errorf("file %d (%s): %w", i, files[i].Filename, err)
		}
		blobs[i] = blob
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

// DecryptBatch opens every blob with the same password. Results are in input
// order; the first failure aborts the batch and no plaintext is returned.
func (e *Engine) DecryptBatch(ctx context.Context, blobs []*SealedBlob, password []byte) ([]*DecryptedFile, error) {
	files := make([]*DecryptedFile, len(blobs))
	err := e.runBatch(ctx, len(blobs), func(ctx context.Context, i int) error {
		file, err := e.DecryptFile(ctx, blobs[i], password)
		if err != nil {
			return fmt.Errorf("blob %d: %w", i, err)
		}
		files[i] = file
		return nil
	})
	if err != nil {
		for _, f := range files {
			if f != nil {
				clear(f.Data)
			}
		}
		return nil, err
	}
	return files, nil
}

// runBatch calls job for every index in [0, n), on the worker pool when the
// batch is large enough. The context handed to job is cancelled as soon as
// any job fails.
func (e *Engine) runBatch(ctx context.Context, n int, job func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	cfg := e.config.Parallel
	if !cfg.Enabled || n < cfg.MinItemsForParallel {
		for i := 0; i < n; i++ {
			if err := job(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	numWorkers := cfg.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > n {
		numWorkers = n
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	jobChan := make(chan int, n)
	errChan := make(chan error, numWorkers)

	fail := func(err error) {
		select {
		case errChan <- err:
		default:
		}
		cancel()
	}

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("panic in batch worker: %v", r))
				}
			}()
			for idx := range jobChan {
				if ctx.Err() != nil {
					return
				}
				if err := job(ctx, idx); err != nil {
					fail(err)
					return
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(errChan)

	if err, ok := <-errChan; ok {
		return err
	}
	// Cancelled by the caller rather than by a failing job
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
