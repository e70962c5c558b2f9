// Package dupecache caches computed duplicate groups in Redis. Entries are
// keyed by tenant and the full detection query, expire after a TTL and are
// dropped for the whole tenant whenever a merge commits.
package dupecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/matching"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/redis"
)

const keyPrefix = "dupes"

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger ectologger.Logger
}

func New(client *redis.Client, ttl time.Duration, logger ectologger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(tenantID string, q matching.DetectionQuery) string {
	// The score must round-trip exactly so near-identical thresholds never
	// share an entry.
	score := strconv.FormatFloat(q.MinScore, 'g', -1, 64)
	return fmt.Sprintf("%s:%s:%s:%s:%t", keyPrefix, tenantID, q.Strategy, score, q.ExcludeMerged)
}

// Get returns the cached groups for the query, with hit=false on a miss.
func (c *Cache) Get(ctx context.Context, tenantID string, q matching.DetectionQuery) ([]models.DuplicateGroup, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(tenantID, q))
	if err != nil {
		if redis.IsNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var groups []models.DuplicateGroup
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten.
		c.logger.WithContext(ctx).WithError(err).Warn("Dropping undecodable detection cache entry")
		return nil, false, nil
	}
	return groups, true, nil
}

// Set stores the groups under the query key with the configured TTL.
func (c *Cache) Set(ctx context.Context, tenantID string, q matching.DetectionQuery, groups []models.DuplicateGroup) error {
	raw, err := json.Marshal(groups)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(tenantID, q), raw, c.ttl)
}

// Invalidate removes every cached detection result for the tenant.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) error {
	return c.client.DelPattern(ctx, fmt.Sprintf("%s:%s:*", keyPrefix, tenantID))
}
