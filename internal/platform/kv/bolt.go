package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"vcflow/internal/sentinel"
)

// OpenBolt opens (creating if needed) the bbolt file backing the client-side stores.
func OpenBolt(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}
	return db, nil
}

// Bolt persists JSON records in one bbolt bucket. It plays the part of the
// browser's local storage for vcctl: state survives between invocations.
type Bolt[T any] struct {
	db     *bbolt.DB
	bucket []byte
}

// NewBolt creates the bucket if it does not exist.
func NewBolt[T any](db *bbolt.DB, bucket string) (*Bolt[T], error) {
	name := []byte(bucket)
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return &Bolt[T]{db: db, bucket: name}, nil
}

func (b *Bolt[T]) Get(_ context.Context, id string) (T, error) {
	var out T
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(b.bucket).Get([]byte(id))
		if data == nil {
			return sentinel.ErrNotFound
		}
		return json.Unmarshal(data, &out)
	})
	return out, err
}

func (b *Bolt[T]) Set(_ context.Context, id string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", b.bucket, id, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(id), data)
	})
}

func (b *Bolt[T]) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket.Get([]byte(id)) == nil {
			return sentinel.ErrNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

func (b *Bolt[T]) List(_ context.Context) ([]T, error) {
	var out []T
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("decode %s/%s: %w", b.bucket, k, err)
			}
			out = append(out, item)
			return nil
		})
	})
	return out, err
}

// Clear drops and recreates the bucket.
func (b *Bolt[T]) Clear(_ context.Context) (int, error) {
	var n int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		n = tx.Bucket(b.bucket).Stats().KeyN
		if err := tx.DeleteBucket(b.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(b.bucket)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

var _ Store[string] = (*Bolt[string])(nil)
