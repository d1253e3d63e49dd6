// Package memcache is an in-process result cache with expiry and an optional
// loader for misses.
package memcache

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/cache"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

type (
	Option func(*config)

	// LoaderFunc is called on a miss. Returning cache.ErrCacheMiss keeps the
	// entry absent.
	LoaderFunc func(ctx context.Context, key string) (*model.JobResult, error)

	item struct {
		data    *model.JobResult
		expires time.Time
	}
	config struct {
		expiration time.Duration
		loader     LoaderFunc
		now        func() time.Time
		l          *log.Logger
	}
	memCache struct {
		mutex  sync.Mutex
		items  map[string]item
		config *config
	}
)

func WithExpiration(expiration time.Duration) Option {
	return func(c *config) {
		c.expiration = expiration
	}
}

func WithLoader(lf LoaderFunc) Option {
	return func(c *config) {
		c.loader = lf
	}
}

func WithLogger(arg *log.Logger) Option {
	return func(c *config) {
		c.l = arg
	}
}

// WithClock replaces time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

func New(opts ...Option) cache.ResultCache {
	c := &config{
		expiration: cache.DefaultExpiration,
		now:        time.Now,
		l:          log.Default().Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return &memCache{
		items:  make(map[string]item),
		config: c,
	}
}

func (c *memCache) Get(ctx context.Context, key string) (*model.JobResult, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if cacheItem, ok := c.items[key]; ok {
		if cacheItem.expires.After(c.config.now()) {
			return cacheItem.data, nil
		}
		c.config.l.Debug("entry expired", log.String("key", key))
		delete(c.items, key)
	}
	return c.load(ctx, key)
}

func (c *memCache) Put(ctx context.Context, key string, res *model.JobResult) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items[key] = item{data: res, expires: c.config.now().Add(c.config.expiration)}
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
	c.config.l.Debug("invalidated",
		log.String("key", key), log.Int("remain items", len(c.items)))
	return nil
}

func (c *memCache) load(ctx context.Context, key string) (*model.JobResult, error) {
	if c.config.loader == nil {
		return nil, cache.ErrCacheMiss
	}
	v, err := c.config.loader(ctx, key)
	if err != nil {
		c.config.l.Debug("loader returned no entry",
			log.String("key", key), log.ErrorField(err))
		return nil, err
	}
	c.items[key] = item{data: v, expires: c.config.now().Add(c.config.expiration)}
	return v, nil
}
