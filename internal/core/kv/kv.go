// Package kv defines the persistent key-value contract used for checkpoints
// and a typed, namespaced view over it.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Store persists JSON-encoded values by key. Get on a missing key returns an
// error wrapping sql.ErrNoRows.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	// Keys returns the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Bucket stores values of one type under "name:".
type Bucket[T any] struct {
	store  Store
	prefix string
}

func NewBucket[T any](store Store, name string) *Bucket[T] {
	return &Bucket[T]{store: store, prefix: name + ":"}
}

func (b *Bucket[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	err := b.store.Get(ctx, b.prefix+key, &v)
	return v, err
}

// Lookup is Get with absence reported through ok.
func (b *Bucket[T]) Lookup(ctx context.Context, key string) (T, bool, error) {
	v, err := b.Get(ctx, key)
	switch {
	case IsNotFound(err):
		return v, false, nil
	case err != nil:
		return v, false, err
	}
	return v, true, nil
}

func (b *Bucket[T]) Put(ctx context.Context, key string, v T) error {
	return b.store.Set(ctx, b.prefix+key, v)
}

func (b *Bucket[T]) Delete(ctx context.Context, key string) error {
	return b.store.Delete(ctx, b.prefix+key)
}

// Keys lists the bucket's keys without the prefix.
func (b *Bucket[T]) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.store.Keys(ctx, b.prefix)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i] = strings.TrimPrefix(keys[i], b.prefix)
	}
	return keys, nil
}

// Each calls fn for every value in key order and stops at the first error.
func (b *Bucket[T]) Each(ctx context.Context, fn func(key string, v T) error) error {
	keys, err := b.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		v, err := b.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := fn(key, v); err != nil {
			return err
		}
	}
	return nil
}
