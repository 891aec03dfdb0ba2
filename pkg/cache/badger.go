package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend implements Backend using BadgerDB, either on disk or fully in memory.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens a Badger store at path. An empty path keeps everything in memory.
func NewBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable default logger to reduce noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &BadgerBackend{
		db: db,
	}, nil
}

// Name implements Backend
func (c *BadgerBackend) Name() string {
	return "badger"
}

// Ping implements Backend
func (c *BadgerBackend) Ping(ctx context.Context) error {
	if c.db.IsClosed() {
		return ErrBackendUnavailable
	}
	return nil
}

// Set stores a value with a TTL
func (c *BadgerBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get retrieves a value
func (c *BadgerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	return val, nil
}

// DeleteByPrefix implements Backend
func (c *BadgerBackend) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.keys(prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := c.db.NewWriteBatch()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return 0, fmt.Errorf("failed to delete key: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush deletes: %w", err)
	}
	return len(keys), nil
}

// Count implements Backend
func (c *BadgerBackend) Count(ctx context.Context, prefix string) (int, error) {
	keys, err := c.keys(prefix)
	return len(keys), err
}

func (c *BadgerBackend) keys(prefix string) ([][]byte, error) {
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// Close closes the cache
func (c *BadgerBackend) Close() error {
	return c.db.Close()
}
