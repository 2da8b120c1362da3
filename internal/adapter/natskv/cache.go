// Package natskv implements the cache port over a NATS JetStream KeyValue
// bucket, giving multiple server instances a shared idempotency cache.
package natskv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	hubcache "github.com/nyuta01/agenthub/internal/port/cache"
)

// Cache is a KV-bucket-backed cache. Expiry is governed by the bucket's
// TTL, so the per-call ttl argument is ignored.
type Cache struct {
	kv jetstream.KeyValue
}

var _ hubcache.Cache = (*Cache)(nil)

// New wraps an existing KeyValue bucket.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// CreateBucket creates (or updates) the named bucket on the given
// connection with the given entry TTL and returns it.
func CreateBucket(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
}

// Get retrieves a value; a missing key is not an error.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores a value. The bucket TTL applies, not the argument.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, key, value)
	return err
}

// Delete removes a key; deleting an absent key is a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
