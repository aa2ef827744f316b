// Package kv is the key-value layer that stands in for browser local storage.
// Every session gets a namespaced view over one shared backend.
package kv

import (
	"context"
	"errors"
	"strings"
)

var ErrClosed = errors.New("kv: store closed")

// Store is a flat string-keyed byte store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is idempotent; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

type namespaced struct {
	inner  Store
	prefix string
}

// Namespaced scopes all keys of inner under prefix. Close is a no-op so the
// shared backend outlives the view.
func Namespaced(inner Store, prefix string) Store {
	return &namespaced{inner: inner, prefix: prefix}
}

// UserNamespace is the key prefix that isolates one user's storage.
func UserNamespace(userID string) string {
	return "u:" + userID + ":"
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.inner.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}

func (n *namespaced) Close() error {
	return nil
}
