package cache

import (
	"context"
	"time"
)

// Cache holds JSON-encoded ATS list responses (jobs, per-job stages) under a
// TTL so repeated console loads do not burn the upstream rate budget. Backed
// by Redis when one is configured, by an in-process map otherwise.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
