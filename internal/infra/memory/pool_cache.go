package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// PoolCache caches category question pools with TTL to avoid repeated DB hits.
type PoolCache struct {
	loader app.PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[int64]cachedPool
}

var _ app.PoolRepository = (*PoolCache)(nil)

type cachedPool struct {
	pool      domain.QuestionPool
	expiresAt time.Time
}

func NewPoolCache(loader app.PoolLoader, ttl time.Duration) *PoolCache {
	return NewPoolCacheWithClock(loader, ttl, time.Now)
}

// NewPoolCacheWithClock allows tests to move time forward.
func NewPoolCacheWithClock(loader app.PoolLoader, ttl time.Duration, clock func() time.Time) *PoolCache {
	return &PoolCache{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedPool),
	}
}

func (c *PoolCache) GetPool(ctx context.Context, categoryID int64) (domain.QuestionPool, error) {
	if pool, ok := c.lookup(categoryID); ok {
		return pool, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(categoryID, 10), func() (interface{}, error) {
		if pool, ok := c.lookup(categoryID); ok {
			return pool, nil
		}
		pool, err := c.loader.LoadPool(ctx, categoryID)
		if err != nil {
			return domain.QuestionPool{}, err
		}

		c.mu.Lock()
		c.cache[categoryID] = cachedPool{pool: pool, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return domain.QuestionPool{}, err
	}
	return result.(domain.QuestionPool), nil
}

// Invalidate drops a cached pool after its questions changed.
func (c *PoolCache) Invalidate(_ context.Context, categoryID int64) error {
	c.mu.Lock()
	delete(c.cache, categoryID)
	c.mu.Unlock()
	return nil
}

func (c *PoolCache) lookup(categoryID int64) (domain.QuestionPool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[categoryID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.QuestionPool{}, false
	}
	return entry.pool, true
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
