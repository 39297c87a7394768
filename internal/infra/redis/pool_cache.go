package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// PoolCache caches category question pools in Redis and falls back to a
// loader on cache miss. Pools are stored as JSON under quiz:pool:{categoryID}.
type PoolCache struct {
	client *redis.Client
	loader app.PoolLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

var _ app.PoolRepository = (*PoolCache)(nil)

func NewPoolCache(client *redis.Client, loader app.PoolLoader, ttl time.Duration) *PoolCache {
	return &PoolCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PoolCache) GetPool(ctx context.Context, categoryID int64) (domain.QuestionPool, error) {
	key := poolKey(categoryID)
	if pool, ok := c.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := c.cached(ctx, key); ok {
			return pool, nil
		}
		pool, err := c.loader.LoadPool(ctx, categoryID)
		if err != nil {
			return domain.QuestionPool{}, err
		}
		if raw, err := json.Marshal(pool); err == nil {
			// best effort: a failed write only costs a reload
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return domain.QuestionPool{}, err
	}
	return result.(domain.QuestionPool), nil
}

// Invalidate drops a cached pool after its questions changed.
func (c *PoolCache) Invalidate(ctx context.Context, categoryID int64) error {
	return c.client.Del(ctx, poolKey(categoryID)).Err()
}

func (c *PoolCache) cached(ctx context.Context, key string) (domain.QuestionPool, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.QuestionPool{}, false
	}
	var pool domain.QuestionPool
	if err := json.Unmarshal(raw, &pool); err != nil {
		return domain.QuestionPool{}, false
	}
	return pool, true
}

func poolKey(categoryID int64) string {
	return "quiz:pool:" + strconv.FormatInt(categoryID, 10)
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
