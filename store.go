package filevault

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// BlobStore persists sealed blobs. Implementations only ever see ciphertext
// and the blob's public metadata.
type BlobStore interface {
	// Put stores a new blob. Storing an ID twice fails with ErrBlobExists.
	Put(ctx context.Context, blob *SealedBlob) error

	// Get loads a blob by ID, or fails with ErrBlobNotFound
	Get(ctx context.Context, id string) (*SealedBlob, error)

	// Delete removes a blob by ID, or fails with ErrBlobNotFound
	Delete(ctx context.Context, id string) error

	// List returns the metadata of every stored blob, oldest first
	List(ctx context.Context) ([]BlobInfo, error)
}

// BlobFileExt is the file extension used by FSStore
const BlobFileExt = ".fvlt"

// FSStore keeps one binary envelope file per blob in a directory of any
// absfs.FileSystem
type FSStore struct {
	fs   absfs.FileSystem
	root string
	sep  string
	mu   sync.Mutex
}

// NewFSStore creates the root directory if needed and returns a store over it
func NewFSStore(fs absfs.FileSystem, root string) (*FSStore, error) {
	if fs == nil {
		return nil, NewValidationError("fs", nil, "filesystem cannot be nil")
	}
	if root == "" {
		return nil, NewValidationError("root", root, "root directory cannot be empty")
	}
	if err := fs.MkdirAll(root, 0700); err != nil {
		return nil, NewResourceError("mkdir", root, err)
	}
	return &FSStore{
		fs:   fs,
		root: root,
		sep:  string([]byte{fs.Separator()}),
	}, nil
}

func (s *FSStore) path(name string) string {
	return strings.TrimSuffix(s.root, s.sep) + s.sep + name
}

// checkID rejects anything but a canonical UUID, so an ID can never name a
// path outside the store root
func checkID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return &ValidationError{Field: "id", Value: id, Message: "id must be a lowercase UUID", Err: err}
	}
	return nil
}

// Put writes the blob to a temporary file and renames it into place
func (s *FSStore) Put(ctx context.Context, blob *SealedBlob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.Validate(); err != nil {
		return err
	}
	if err := checkID(blob.ID); err != nil {
		return err
	}

	data, err := blob.MarshalBinary()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.path(blob.ID + BlobFileExt)
	if _, err := s.fs.Stat(final); err == nil {
		return fmt.Errorf("%w: %s", ErrBlobExists, blob.ID)
	} else if !os.IsNotExist(err) {
		return NewResourceError("stat", final, err)
	}

	tmp := final + ".tmp"
	if err := s.writeFile(tmp, data); err != nil {
		s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		s.fs.Remove(tmp)
		return NewResourceError("rename", final, err)
	}
	return nil
}

func (s *FSStore) writeFile(name string, data []byte) error {
	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return NewResourceError("create", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return NewResourceError("write", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return NewResourceError("sync", name, err)
	}
	if err := f.Close(); err != nil {
		return NewResourceError("close", name, err)
	}
	return nil
}

// Get reads and decodes a blob file
func (s *FSStore) Get(ctx context.Context, id string) (*SealedBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	name := s.path(id + BlobFileExt)
	f, err := s.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return nil, NewResourceError("open", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, NewResourceError("read", name, err)
	}

	blob := new(SealedBlob)
	if err := blob.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("blob %s: %w", id, err)
	}
	if blob.ID != id {
		return nil, NewValidationError("id", blob.ID, fmt.Sprintf("file %s holds a different blob", name))
	}
	return blob, nil
}

// Delete removes a blob file
func (s *FSStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.path(id + BlobFileExt)
	if err := s.fs.Remove(name); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return NewResourceError("remove", name, err)
	}
	return nil
}

// List decodes every blob file under the root. Files that are not blob
// envelopes are skipped.
func (s *FSStore) List(ctx context.Context) ([]BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.fs.Open(s.root)
	if err != nil {
		return nil, NewResourceError("open", s.root, err)
	}
	names, err := dir.Readdirnames(-1)
	dir.Close()
	if err != nil {
		return nil, NewResourceError("readdir", s.root, err)
	}

	infos := make([]BlobInfo, 0, len(names))
	for _, name := range names {
		id, ok := strings.CutSuffix(name, BlobFileExt)
		if !ok || checkID(id) != nil {
			continue
		}
		blob, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		infos = append(infos, blob.Info())
	}
	sortInfos(infos)
	return infos, nil
}

func sortInfos(infos []BlobInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
}
