// Package objectcache implements collab.ObjectCache on top of bbolt, the
// default on-disk content-addressed store for persisted request results and
// request-graph snapshots.
package objectcache

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("objects")

// BoltCache is a collab.ObjectCache backed by a single bbolt database file.
type BoltCache struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt database at path.
func Open(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("open object cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init object cache bucket: %w", err)
	}
	return &BoltCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *BoltCache) Close() error { return c.db.Close() }

// Get implements collab.ObjectCache.
func (c *BoltCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("object cache get %s: %w", key, err)
	}
	return value, found, nil
}

// Set implements collab.ObjectCache.
func (c *BoltCache) Set(_ context.Context, key string, value []byte) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("object cache set %s: %w", key, err)
	}
	return nil
}
