package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds recently computed summaries in Redis. Reports tolerate
// slightly stale numbers; dashboards poll them far more often than the
// underlying data changes. A nil *Cache is valid and caches nothing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a report cache on an established Redis client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetSummary returns a cached summary for the scope, if present.
func (c *Cache) GetSummary(ctx context.Context, scope Scope) (*Summary, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, summaryKey(scope)).Bytes()
	if err != nil {
		return nil, false
	}

	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, false
	}
	return &sum, true
}

// PutSummary stores a summary for the scope. Failures are ignored; the
// cache is advisory.
func (c *Cache) PutSummary(ctx context.Context, scope Scope, sum *Summary) {
	if c == nil {
		return
	}

	data, err := json.Marshal(sum)
	if err != nil {
		return
	}
	c.client.Set(ctx, summaryKey(scope), data, c.ttl)
}

func summaryKey(scope Scope) string {
	start, end := "", ""
	if scope.Start != nil {
		start = scope.Start.Format(time.RFC3339)
	}
	if scope.End != nil {
		end = scope.End.Format(time.RFC3339)
	}
	return fmt.Sprintf("report:summary:%s:%s:%s:%s:%s:%s",
		scope.CitizenID, scope.OfficeID, scope.Category, scope.Status, start, end)
}
