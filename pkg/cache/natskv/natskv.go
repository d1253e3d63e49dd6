// Package natskv stores results in a NATS JetStream key value bucket so
// several clients can share completed sculptures.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/cache"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

const DefaultBucket = "gfs_sculptures"

type (
	Option func(*natsCache)

	natsCache struct {
		bucket string
		ttl    time.Duration
		log    *log.Logger
		kv     jetstream.KeyValue
	}
)

func WithBucket(name string) Option {
	return func(c *natsCache) {
		c.bucket = name
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *natsCache) {
		c.ttl = ttl
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *natsCache) {
		c.log = l
	}
}

func New(ctx context.Context, nc *nats.Conn, opts ...Option) (cache.ResultCache, error) {
	ret := &natsCache{
		bucket: DefaultBucket,
		ttl:    cache.DefaultExpiration,
		log:    log.Default().Named("cache.nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	ret.kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      ret.bucket,
		Description: "completed g-force sculptures",
		TTL:         ret.ttl,
	})
	if err != nil {
		return nil, err
	}
	ret.log.Debug("result bucket ready",
		log.String("bucket", ret.bucket), log.Duration("ttl", ret.ttl))
	return ret, nil
}

func (c *natsCache) Get(ctx context.Context, key string) (*model.JobResult, error) {
	kve, err := c.kv.Get(ctx, kvKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}
	var ret model.JobResult
	if err := json.Unmarshal(kve.Value(), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *natsCache) Put(ctx context.Context, key string, res *model.JobResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = c.kv.Put(ctx, kvKey(key), data)
	return err
}

func (c *natsCache) Invalidate(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, kvKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// kvKey maps a cache key to the token syntax of KV keys
func kvKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}
