package finance

import (
	"encoding/json"
	"time"

	"finboard/internal/state"
)

// Cache key prefixes. Keys are namespaced by user ID so a shared device
// never leaks one account's data into another's reads.
const (
	overviewCachePrefix = "dashboard_overview_cache_v1_"
	accountsCachePrefix = "dashboard_accounts_cache_v1_"
)

// envelope wraps a cached document with its write time (Unix milliseconds).
// An envelope older than its TTL is treated as absent, never returned, and
// left to be overwritten or pruned by the janitor.
type envelope[T any] struct {
	CachedAt int64 `json:"cachedAt"`
	Data     T     `json:"data"`
}

func readCache[T any](st state.Store, key string, ttl time.Duration, now time.Time) (T, bool) {
	var zero T
	env, ok := state.GetJSON[envelope[T]](st, key)
	if !ok {
		return zero, false
	}
	if env.CachedAt <= 0 {
		return zero, false
	}
	cachedAt := time.UnixMilli(env.CachedAt)
	if now.Sub(cachedAt) > ttl {
		return zero, false
	}
	return env.Data, true
}

func writeCache[T any](st state.Store, key string, data T, now time.Time) error {
	return state.SetJSON(st, key, envelope[T]{
		CachedAt: now.UnixMilli(),
		Data:     data,
	})
}

// CleanExpired prunes expired cache envelopes from the state store and
// returns the number removed. Session keys are never touched.
func (c *Client) CleanExpired() int {
	now := c.now()
	removed := 0
	removed += c.cleanPrefix(overviewCachePrefix, c.overviewTTL, now)
	removed += c.cleanPrefix(accountsCachePrefix, c.accountsTTL, now)
	return removed
}

func (c *Client) cleanPrefix(prefix string, ttl time.Duration, now time.Time) int {
	keys, err := c.state.Keys(prefix)
	if err != nil {
		return 0
	}
	removed := 0
	for _, key := range keys {
		env, ok := state.GetJSON[envelope[json.RawMessage]](c.state, key)
		if !ok {
			// GetJSON already dropped a corrupt entry.
			continue
		}
		if env.CachedAt <= 0 || now.Sub(time.UnixMilli(env.CachedAt)) > ttl {
			if err := c.state.Delete(key); err == nil {
				removed++
			}
		}
	}
	return removed
}
