package filevault

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerBlobPrefix = "blob/"

// BadgerStore keeps blob envelopes in a BadgerDB under blob/<id> keys
type BadgerStore struct {
	db    *badger.DB
	owned bool
}

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens (or creates) a database in dir. An empty dir opens
// an in-memory database. Close releases it.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, NewResourceError("open", dir, err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// Close closes the database if the store opened it
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func badgerKey(id string) []byte {
	return []byte(badgerBlobPrefix + id)
}

// Put stores the blob unless its ID is already present
func (s *BadgerStore) Put(ctx context.Context, blob *SealedBlob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.Validate(); err != nil {
		return err
	}
	data, err := blob.MarshalBinary()
	if err != nil {
		return err
	}

	key := badgerKey(blob.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrBlobExists, blob.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if errors.Is(err, ErrBlobExists) {
			return err
		}
		return NewResourceError("put", blob.ID, err)
	}
	return nil
}

// Get loads and decodes a blob
func (s *BadgerStore) Get(ctx context.Context, id string) (*SealedBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	blob := new(SealedBlob)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		return item.Value(blob.UnmarshalBinary)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		if IsValidationError(err) {
			return nil, fmt.Errorf("blob %s: %w", id, err)
		}
		return nil, NewResourceError("get", id, err)
	}
	return blob, nil
}

// Delete removes a blob
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	key := badgerKey(id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return NewResourceError("delete", id, err)
	}
	return nil
}

// List decodes every stored blob and returns its metadata, oldest first
func (s *BadgerStore) List(ctx context.Context) ([]BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var infos []BlobInfo
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerBlobPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var blob SealedBlob
			if err := item.Value(blob.UnmarshalBinary); err != nil {
				return fmt.Errorf("key %s: %w", item.Key(), err)
			}
			infos = append(infos, blob.Info())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortInfos(infos)
	return infos, nil
}
