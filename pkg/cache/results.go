package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// CachedResult is the stored outcome of benchmarking one instance.
type CachedResult struct {
	Instance string `json:"instance"`
	MaxFlow  int64  `json:"max_flow"`
	// Timings maps algorithm name to solve time in milliseconds.
	Timings    map[string]float64 `json:"timings_ms"`
	ComputedAt time.Time          `json:"computed_at"`
}

// ResultCache stores CachedResult values as JSON in a Cache.
type ResultCache struct {
	cache Cache
	ttl   time.Duration
}

// NewResultCache wraps c. A ttl <= 0 defers to the cache default.
func NewResultCache(c Cache, ttl time.Duration) *ResultCache {
	return &ResultCache{cache: c, ttl: ttl}
}

// Get returns the cached result and whether it was found. Undecodable
// entries are dropped and reported as misses.
func (rc *ResultCache) Get(ctx context.Context, instanceHash, optionsHash string) (*CachedResult, bool, error) {
	key := BuildResultKey(instanceHash, optionsHash)

	data, err := rc.cache.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var res CachedResult
	if err := json.Unmarshal(data, &res); err != nil {
		_ = rc.cache.Delete(ctx, key) //nolint:errcheck // corrupt entry, best effort
		return nil, false, nil
	}
	return &res, true, nil
}

// Put stores res, stamping ComputedAt when unset.
func (rc *ResultCache) Put(ctx context.Context, instanceHash, optionsHash string, res *CachedResult) error {
	if res.ComputedAt.IsZero() {
		res.ComputedAt = time.Now().UTC()
	}

	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return rc.cache.Set(ctx, BuildResultKey(instanceHash, optionsHash), data, rc.ttl)
}

// Invalidate drops every cached result of one instance.
func (rc *ResultCache) Invalidate(ctx context.Context, instanceHash string) (int64, error) {
	return rc.cache.DeleteByPattern(ctx, InstancePattern(instanceHash))
}

// InvalidateAll drops every cached result.
func (rc *ResultCache) InvalidateAll(ctx context.Context) (int64, error) {
	return rc.cache.DeleteByPattern(ctx, resultPrefix+":*")
}
