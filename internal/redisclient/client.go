// Package redisclient wraps the go-redis client with the narrow surface the
// replication engine needs: connect-and-ping, pipelined transactions,
// publish, and stream append.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin, pipeline-aware wrapper around *redis.Client.
type Client struct {
	raw *redis.Client
}

// Connect parses url and opens a connection, pinging it with the given
// timeout before returning. A failed ping is a FatalConfigurationError-class
// condition: the caller must not begin a dump against it.
func Connect(ctx context.Context, url string, dialTimeout time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisclient: parse url: %w", err)
	}

	raw := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := raw.Ping(pingCtx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("redisclient: ping: %w", err)
	}

	return &Client{raw: raw}, nil
}

// IsConnected sends a PING and reports whether it succeeded. Callers use
// this before starting a dump or applying a runtime update, matching the
// source's is_connected() early-return guard.
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.raw.Ping(ctx).Err() == nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.raw.Close()
}

// Raw exposes the underlying client for callers that need go-redis
// functionality this wrapper does not cover.
func (c *Client) Raw() *redis.Client {
	return c.raw
}

// HMSet writes every field in values into the hash at key, inside the
// caller's MULTI/EXEC transaction.
func (c *Client) HMSet(ctx context.Context, pipe redis.Pipeliner, key string, values map[string]string) {
	if len(values) == 0 {
		return
	}
	args := make([]interface{}, 0, len(values)*2)
	for field, val := range values {
		args = append(args, field, val)
	}
	pipe.HSet(ctx, key, args...)
}

// HSet writes a single field into a hash, outside any transaction; used for
// the best-effort-fresh state write in the runtime update path.
func (c *Client) HSet(ctx context.Context, key, field, value string) error {
	return c.raw.HSet(ctx, key, field, value).Err()
}

// HDel removes a single field from a hash.
func (c *Client) HDel(ctx context.Context, key, field string) error {
	return c.raw.HDel(ctx, key, field).Err()
}

// Del removes one or more keys outright.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.raw.Del(ctx, keys...).Err()
}

// Publish broadcasts message on channel.
func (c *Client) Publish(ctx context.Context, channel, message string) error {
	return c.raw.Publish(ctx, channel, message).Err()
}

// XAdd appends fields to stream key with an auto-assigned id.
func (c *Client) XAdd(ctx context.Context, key string, fields map[string]interface{}) error {
	return c.raw.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		ID:     "*",
		Values: fields,
	}).Err()
}

// Tx runs fn against a fresh pipeline, then executes it as a MULTI/EXEC
// transaction. fn may queue any number of commands; if it queues none,
// nothing is sent to Redis.
func (c *Client) Tx(ctx context.Context, fn func(pipe redis.Pipeliner)) error {
	_, err := c.raw.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(pipe)
		return nil
	})
	return err
}

// DelSub deletes every key in keys without a surrounding transaction; used
// ahead of a per-type or shared-table rebuild.
func (c *Client) DelSub(ctx context.Context, keys []string) error {
	return c.Del(ctx, keys...)
}
