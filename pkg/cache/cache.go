// Package cache stores completed sculpture results so repeated requests can be
// answered without running a job.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

var ErrCacheMiss = errors.New("cache miss")

const DefaultExpiration = 24 * time.Hour

type ResultCache interface {
	// Get returns ErrCacheMiss if the key is unknown or expired
	Get(ctx context.Context, key string) (*model.JobResult, error)
	Put(ctx context.Context, key string, res *model.JobResult) error
	Invalidate(ctx context.Context, key string) error
}

// Key returns the cache key of a single driver request
func Key(req model.SculptureRequest) string {
	return req.Normalize().CacheKey()
}
