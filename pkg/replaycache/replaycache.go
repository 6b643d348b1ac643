// Package replaycache implements the replay-cache collaborator interface
// (model.ReplayCache): a set-if-absent store of token jti values, used to
// reject the same authorization code, CIBA auth_req_id, or one-time token
// from being redeemed twice.
package replaycache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/oidcforge/core/pkg/logger"
	"github.com/oidcforge/core/pkg/model"
)

// Cache is an in-memory model.ReplayCache backed by jellydator/ttlcache.
// Entries expire on their own regardless of whether this process ever
// issued them a token, which bounds memory use without needing an explicit
// garbage-collection pass.
type Cache struct {
	mu     sync.Mutex
	items  *ttlcache.Cache[string, struct{}]
	minTTL time.Duration
	log    *logger.Log
}

var _ model.ReplayCache = (*Cache)(nil)

// New builds a Cache. minTTL floors every entry's lifetime: callers pass a
// ttl derived from a token's own exp claim, which may already be in the
// past by the time clock skew is accounted for, so the cache never accepts
// a TTL shorter than minTTL.
func New(minTTL time.Duration, log *logger.Log) *Cache {
	if log == nil {
		log = logger.NewSimple("replaycache")
	}
	c := &Cache{
		items:  ttlcache.New[string, struct{}](),
		minTTL: minTTL,
		log:    log.New("replaycache"),
	}
	go c.items.Start()
	return c
}

// Stop releases the cache's background eviction goroutine.
func (c *Cache) Stop() {
	c.items.Stop()
}

// Remember records jti if it has not been seen before. The ttl parameter is
// in seconds, matching the interface contract shared with the persisted
// implementations a host application might substitute.
func (c *Cache) Remember(ctx context.Context, jti string, ttl int64) (bool, error) {
	effective := time.Duration(ttl) * time.Second
	if effective < c.minTTL {
		effective = c.minTTL
	}

	// ttlcache's own API doesn't document an atomic set-if-absent, so the
	// check-then-set below is guarded with our own lock rather than relying
	// on one.
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.items.Has(jti) {
		c.log.Debug("replay detected", "jti", jti)
		return false, nil
	}

	c.items.Set(jti, struct{}{}, effective)
	return true, nil
}
