package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// VersionKey holds the report generation counter. Bumping it orphans
// every cached report at once.
const VersionKey = "ledger:report:version"

// ErrMiss is returned when no cached report exists for the filters
var ErrMiss = errors.New("report cache miss")

// ReportCache caches computed reports in Redis keyed by filter set
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a new report cache
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
	}
}

// FiltersHash creates a deterministic short hash of a filter set
func FiltersHash(filters models.BetFilters) string {
	// BetFilters marshals with a fixed field order
	data, _ := json.Marshal(filters)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:8]) // Use first 8 bytes of hash
}

// ReportKey builds the cache key for a generation and filter set
func ReportKey(version int64, filters models.BetFilters) string {
	return fmt.Sprintf("ledger:report:v%d:%s", version, FiltersHash(filters))
}

// Version returns the current cache generation. Callers read it before
// loading bets and pass it back to Get and Set, so a report computed
// before an invalidation can only land in the orphaned generation.
func (c *ReportCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, VersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return v, nil
}

// Get decodes the report cached for filters in generation version into dest
func (c *ReportCache) Get(ctx context.Context, version int64, filters models.BetFilters, dest interface{}) error {
	data, err := c.client.Get(ctx, ReportKey(version, filters)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return ErrMiss
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to read cached report: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to decode cached report: %w", err)
	}

	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return nil
}

// Set stores value for filters in generation version
func (c *ReportCache) Set(ctx context.Context, version int64, filters models.BetFilters, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := c.client.Set(ctx, ReportKey(version, filters), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// Invalidate starts a new cache generation and returns it. Stale entries
// expire on their own TTL.
func (c *ReportCache) Invalidate(ctx context.Context) (int64, error) {
	v, err := c.client.Incr(ctx, VersionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump cache version: %w", err)
	}
	return v, nil
}
