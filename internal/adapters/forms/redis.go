package forms

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// KeyPrefix namespaces cached forms in Redis.
const KeyPrefix = "rubric:form:"

const defaultCacheTTL = 5 * time.Minute

// RedisCache keeps forms from a source Provider in Redis. Cache failures fall
// through to the source.
type RedisCache struct {
	client *redis.Client
	source Provider
	ttl    time.Duration
	log    logger.Logger
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithTTL sets the lifetime of a cached form.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewRedisCache wraps source with a Redis read-through cache.
func NewRedisCache(client *redis.Client, source Provider, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client: client,
		source: source,
		ttl:    defaultCacheTTL,
		log:    logger.Get().Named("forms"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActiveForm implements Provider.
func (c *RedisCache) ActiveForm(ctx context.Context, sport string) (rubric.Form, error) {
	key := KeyPrefix + normalizeSport(sport)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var form rubric.Form
		if jerr := json.Unmarshal(raw, &form); jerr == nil && form.Validate() == nil {
			metrics.RecordRubricLookup("redis", true)
			return form, nil
		}
		c.log.Warn(ctx, "discarding unreadable cached form", logger.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		metrics.RecordErrorByComponent("forms", "redis")
		c.log.Warn(ctx, "form cache read failed", logger.String("key", key), logger.Error(err))
	}
	metrics.RecordRubricLookup("redis", false)

	form, err := c.source.ActiveForm(ctx, sport)
	if err != nil {
		return rubric.Form{}, err
	}
	if enc, err := json.Marshal(form); err == nil {
		if err := c.client.Set(ctx, key, enc, c.ttl).Err(); err != nil {
			metrics.RecordErrorByComponent("forms", "redis")
			c.log.Warn(ctx, "form cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return form, nil
}

// Invalidate drops the cached form for sport.
func (c *RedisCache) Invalidate(ctx context.Context, sport string) error {
	return c.client.Del(ctx, KeyPrefix+normalizeSport(sport)).Err()
}
