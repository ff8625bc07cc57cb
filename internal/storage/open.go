package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/resilience"
)

// Options selects and configures a backend for Open.
type Options struct {
	Driver    string
	DSN       string
	KeyPrefix string
	Tracing   bool
	Metrics   bool
	Breaker   *resilience.Breaker
	Logger    zerolog.Logger
}

// Open builds the configured store. The returned closer releases the
// backend's connections and is never nil.
func Open(ctx context.Context, opts Options) (KV, io.Closer, error) {
	var (
		kv     KV
		closer io.Closer = nopCloser{}
	)
	switch opts.Driver {
	case "memory", "":
		kv = NewMemory()
	case "sqlite":
		db, err := OpenSQLite(opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = db, db
	case "postgres":
		var tracer pgx.QueryTracer
		if opts.Tracing {
			tracer = obs.PGXTracer{}
		}
		db, err := OpenPostgres(ctx, opts.DSN, tracer)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = db, closerFunc(func() error { db.Close(); return nil })
	case "redis":
		client, err := openRedis(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = NewRedis(client, 0), client
	default:
		return nil, nil, fmt.Errorf("storage: unsupported driver %q", opts.Driver)
	}
	if opts.KeyPrefix != "" {
		kv = Prefixed{KV: kv, Prefix: opts.KeyPrefix}
	}
	if opts.Breaker != nil {
		kv = Guarded{KV: kv, Breaker: opts.Breaker}
	}
	return kv, closer, nil
}

// RedisClient exposes the underlying client when kv is Redis-backed so other
// components (rate limiting) can share the connection pool.
func RedisClient(kv KV) *redis.Client {
	switch v := kv.(type) {
	case *Redis:
		return v.client
	case Prefixed:
		return RedisClient(v.KV)
	case Guarded:
		return RedisClient(v.KV)
	default:
		return nil
	}
}

func openRedis(ctx context.Context, opts Options) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if opts.Tracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			opts.Logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if opts.Metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			opts.Logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
