package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/repository"
	"course-marketplace/internal/infra/metrics"
	red "course-marketplace/internal/infra/redis"
)

var _ repository.CourseRepository = (*courseRepoCacheDecorator)(nil)

// courseRepoCacheDecorator is a read-through cache over the course repo.
// Course records are read on every checkout and change rarely, so a short
// TTL plus write-time invalidation keeps the hot path off Postgres.
type courseRepoCacheDecorator struct {
	inner repository.CourseRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCourseRepoCacheDecorator(inner repository.CourseRepository, cache red.RedisClient) repository.CourseRepository {
	return &courseRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   15 * time.Minute,
	}
}

func (d *courseRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	key := fmt.Sprintf("course:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("course", "hit")
		var c model.Course
		if json.Unmarshal([]byte(val), &c) == nil {
			return &c, nil
		}
	} else if err != redis.Nil {
		// Redis being down must not break reads; fall through to Postgres.
	}

	metrics.IncCacheRequest("course", "miss")
	c, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if c != nil {
		bytes, _ := json.Marshal(c)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return c, nil
}

func (d *courseRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, c *model.Course) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("course:%s", c.ID))
	return d.inner.Save(ctx, tx, c)
}

func (d *courseRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Course, error) {
	// Listing stays uncached: pagination makes keys awkward and the endpoint
	// is not on the payment hot path.
	return d.inner.ListActive(ctx, tx, offset, limit)
}
