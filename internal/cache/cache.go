// Package cache implements the three-tier response cache the
// orchestrator reads through: a bounded in-process hot tier, a
// file-snapshot tier that survives restarts, and an append-only
// time-indexed history tier the backtester replays from.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/metrics"
)

// Tier names the cache layer an entry was served from
type Tier string

const (
	TierHot     Tier = "hot"
	TierFile    Tier = "file"
	TierHistory Tier = "history"
)

// Entry is one cached collector response. Payload is the canonical JSON
// form of the collector's domain object.
type Entry struct {
	CollectorKey string        `json:"collector_key"`
	RequestHash  string        `json:"request_hash"`
	Payload      []byte        `json:"payload"`
	ObservedAt   time.Time     `json:"observed_at"`
	TTL          time.Duration `json:"ttl"`
}

// Fresh reports whether the entry is still inside its TTL at now.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ObservedAt.Add(e.TTL))
}

// TieredCache composes the three tiers behind one read-through surface.
type TieredCache struct {
	hot     *HotTier
	file    *FileTier
	history *HistoryTier
	logger  *logrus.Entry
}

// New opens all three tiers.
func New(cfg *config.CacheConfig, logger *logrus.Logger) (*TieredCache, error) {
	file, err := NewFileTier(cfg.FileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open file tier: %w", err)
	}

	history, err := NewHistoryTier(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history tier: %w", err)
	}

	return &TieredCache{
		hot:     NewHotTier(cfg.HotMaxEntries),
		file:    file,
		history: history,
		logger:  logger.WithField("component", "cache"),
	}, nil
}

// Lookup returns the freshest entry within TTL, checking tiers in order.
// A hit at a lower tier is promoted into the hot tier.
func (c *TieredCache) Lookup(ctx context.Context, collectorKey, requestHash string, now time.Time) (*Entry, Tier, bool) {
	if entry, ok := c.hot.Get(collectorKey, requestHash); ok && entry.Fresh(now) {
		metrics.RecordCacheHit(string(TierHot))
		return entry, TierHot, true
	}

	if entry, ok := c.file.Get(collectorKey, requestHash); ok && entry.Fresh(now) {
		metrics.RecordCacheHit(string(TierFile))
		c.hot.Set(entry)
		return entry, TierFile, true
	}

	entry, err := c.history.Latest(ctx, collectorKey, requestHash)
	if err == nil && entry != nil && entry.Fresh(now) {
		metrics.RecordCacheHit(string(TierHistory))
		c.hot.Set(entry)
		return entry, TierHistory, true
	}

	return nil, "", false
}

// Stale returns the most recent entry regardless of TTL, for fallback
// after a fetch failure. The second return is false when nothing was
// ever cached for the request.
func (c *TieredCache) Stale(ctx context.Context, collectorKey, requestHash string) (*Entry, bool) {
	if entry, ok := c.hot.Get(collectorKey, requestHash); ok {
		return entry, true
	}
	if entry, ok := c.file.Get(collectorKey, requestHash); ok {
		return entry, true
	}
	entry, err := c.history.Latest(ctx, collectorKey, requestHash)
	if err != nil || entry == nil {
		return nil, false
	}
	return entry, true
}

// Store writes a fetched response to all three tiers. The history append
// must succeed; hot and file failures are logged but not fatal since the
// history tier can always rebuild them.
func (c *TieredCache) Store(ctx context.Context, entry *Entry) error {
	if err := c.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append to history tier: %w", err)
	}

	c.hot.Set(entry)

	if err := c.file.Set(entry); err != nil {
		c.logger.WithError(err).WithField("collector_key", entry.CollectorKey).
			Warn("File tier write failed")
	}

	return nil
}

// AsOf returns the newest entry observed strictly before t, straight
// from the history tier. The backtester's odds and forecast replays use
// this.
func (c *TieredCache) AsOf(ctx context.Context, collectorKey, requestHash string, t time.Time) (*Entry, error) {
	return c.history.AsOf(ctx, collectorKey, requestHash, t)
}

// History exposes the history tier for range scans (closing-line lookups).
func (c *TieredCache) History() *HistoryTier {
	return c.history
}

// Close releases the history tier's database handle.
func (c *TieredCache) Close() error {
	return c.history.Close()
}
