package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores records in a Redis hash keyed by path, so the latest
// result per file can be looked up by other processes.
type RedisSink struct {
	opts   RedisOptions
	client *redis.Client
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Address == "" {
		o.Address = "localhost:6379"
	}
	if o.Key == "" {
		o.Key = "codepage:report"
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// NewRedisSink connects and pings the server.
func NewRedisSink(opts RedisOptions) (*RedisSink, error) {
	opts = opts.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisSink{opts: opts, client: client}, nil
}

func (r *RedisSink) Name() string { return "redis" }

// hashKey holds path -> record JSON.
func (r *RedisSink) hashKey() string { return r.opts.Key }

// fallbackKey holds the set of paths that resolved to the default.
func (r *RedisSink) fallbackKey() string { return r.opts.Key + ":fallbacks" }

// Write upserts the record and refreshes the TTL.
func (r *RedisSink) Write(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.hashKey(), rec.Path, data)
	if rec.Fallback {
		pipe.SAdd(ctx, r.fallbackKey(), rec.Path)
	} else {
		pipe.SRem(ctx, r.fallbackKey(), rec.Path)
	}
	if r.opts.TTL > 0 {
		pipe.Expire(ctx, r.hashKey(), r.opts.TTL)
		pipe.Expire(ctx, r.fallbackKey(), r.opts.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write record to Redis: %w", err)
	}
	return nil
}

// Lookup returns the stored record for path, or os.ErrNotExist.
func (r *RedisSink) Lookup(ctx context.Context, path string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	data, err := r.client.HGet(ctx, r.hashKey(), path).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, os.ErrNotExist
		}
		return Record{}, fmt.Errorf("failed to load record from Redis: %w", err)
	}
	return decodeRecord(data)
}

func (r *RedisSink) Close(ctx context.Context) error {
	return r.client.Close()
}

func encodeRecord(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}

var _ Sink = (*RedisSink)(nil)
