package cache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/parleyhq/parley/internal/logging"
)

// InvalidationChannel is the Redis Pub/Sub channel for session revocation.
// The credential service that owns logout publishes the affected cache key
// when it revokes a session; every daemon instance drops that key from its
// local layer, so the revocation takes effect everywhere without waiting
// for the L1 TTL.
const InvalidationChannel = "parley:cache:invalidate"

// CacheInvalidator subscribes to InvalidationChannel and evicts published
// keys from the local cache, typically the L1 of a TieredCache.
type CacheInvalidator struct {
	local  Cache
	client *redis.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewCacheInvalidator builds the subscriber. Call Start to begin listening.
func NewCacheInvalidator(local Cache, client *redis.Client) *CacheInvalidator {
	return &CacheInvalidator{local: local, client: client}
}

// Start subscribes and blocks until ctx is cancelled or Close is called, so
// run it on its own goroutine. The go-redis subscription resubscribes
// itself after connection loss.
func (ci *CacheInvalidator) Start(ctx context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	ci.mu.Lock()
	if ci.closed {
		ci.mu.Unlock()
		cancel()
		return
	}
	ci.cancel = cancel
	ci.mu.Unlock()

	pubsub := ci.client.Subscribe(subCtx, InvalidationChannel)
	defer pubsub.Close()

	logging.Op().Info("cache invalidator subscribed", "channel", InvalidationChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = ci.local.Delete(subCtx, msg.Payload)
			logging.Op().Debug("cache key invalidated", "key", msg.Payload)
		}
	}
}

// Close stops the subscription. Safe to call before or after Start.
func (ci *CacheInvalidator) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.closed {
		return nil
	}
	ci.closed = true
	if ci.cancel != nil {
		ci.cancel()
	}
	return nil
}
