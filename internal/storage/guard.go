package storage

import (
	"context"
	"errors"

	"github.com/noah-isme/toko-storefront/internal/resilience"
)

// Guarded routes every call through a circuit breaker. While the breaker is
// open calls fail with resilience.ErrOpenCircuit without reaching the backend.
type Guarded struct {
	KV      KV
	Breaker *resilience.Breaker
}

func (g Guarded) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := g.Breaker.Do(ctx, backendFailure, func(ctx context.Context) error {
		var err error
		value, err = g.KV.Get(ctx, key)
		return err
	})
	return value, err
}

func (g Guarded) Set(ctx context.Context, key string, value []byte) error {
	return g.Breaker.Do(ctx, backendFailure, func(ctx context.Context) error {
		return g.KV.Set(ctx, key, value)
	})
}

func (g Guarded) Delete(ctx context.Context, key string) error {
	return g.Breaker.Do(ctx, backendFailure, func(ctx context.Context) error {
		return g.KV.Delete(ctx, key)
	})
}

// Ping bypasses the breaker so readiness reflects the backend itself.
func (g Guarded) Ping(ctx context.Context) error {
	return g.KV.Ping(ctx)
}

func backendFailure(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
}
