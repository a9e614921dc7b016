// Package cache provides a short-TTL read cache for upcoming-installment
// queries. The underlying query scans every active plan for a lead, so dashboards
// polling the same lead benefit from a bounded-staleness cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"amanah/internal/installment"
	id "amanah/pkg/domain"
)

// ErrMiss signals the key was absent; callers fall through to the store.
var ErrMiss = errors.New("upcoming cache miss")

// UpcomingCache stores computed upcoming-installment lists per lead+horizon.
type UpcomingCache interface {
	Get(ctx context.Context, leadID id.LeadID, daysAhead int) ([]installment.UpcomingInstallment, error)
	Set(ctx context.Context, leadID id.LeadID, daysAhead int, upcoming []installment.UpcomingInstallment) error
	// Invalidate drops every horizon cached for the lead. Called after any
	// plan mutation for that lead.
	Invalidate(ctx context.Context, leadID id.LeadID) error
}

// RedisCache backs UpcomingCache with Redis and a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed upcoming cache.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(leadID id.LeadID, daysAhead int) string {
	return fmt.Sprintf("amanah:upcoming:%s:%d", leadID, daysAhead)
}

func leadPattern(leadID id.LeadID) string {
	return fmt.Sprintf("amanah:upcoming:%s:*", leadID)
}

func (c *RedisCache) Get(ctx context.Context, leadID id.LeadID, daysAhead int) ([]installment.UpcomingInstallment, error) {
	payload, err := c.client.Get(ctx, cacheKey(leadID, daysAhead)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get upcoming cache: %w", err)
	}
	var upcoming []installment.UpcomingInstallment
	if err := json.Unmarshal(payload, &upcoming); err != nil {
		return nil, fmt.Errorf("decode upcoming cache: %w", err)
	}
	return upcoming, nil
}

func (c *RedisCache) Set(ctx context.Context, leadID id.LeadID, daysAhead int, upcoming []installment.UpcomingInstallment) error {
	payload, err := json.Marshal(upcoming)
	if err != nil {
		return fmt.Errorf("encode upcoming cache: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(leadID, daysAhead), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set upcoming cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, leadID id.LeadID) error {
	iter := c.client.Scan(ctx, 0, leadPattern(leadID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan upcoming cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate upcoming cache: %w", err)
	}
	return nil
}
