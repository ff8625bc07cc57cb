// Package storage provides the durable key-value stores that back the cart
// mirror and the local auth records.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// KV is a minimal string-keyed blob store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Prefixed namespaces every key of the wrapped store.
type Prefixed struct {
	KV     KV
	Prefix string
}

func (p Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.KV.Get(ctx, p.Prefix+key)
}

func (p Prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.KV.Set(ctx, p.Prefix+key, value)
}

func (p Prefixed) Delete(ctx context.Context, key string) error {
	return p.KV.Delete(ctx, p.Prefix+key)
}

func (p Prefixed) Ping(ctx context.Context) error {
	return p.KV.Ping(ctx)
}
