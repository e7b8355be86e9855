package model

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// CachedClassifier memoizes predictions by feature snapshot hash.
// Identical vectors score identically, so a hash hit is exact, not
// approximate.
type CachedClassifier struct {
	inner   Classifier
	cache   *gocache.Cache
	maxSize int
}

// NewCachedClassifier wraps inner with a bounded prediction cache.
func NewCachedClassifier(inner Classifier, cfg *config.ModelConfig) *CachedClassifier {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	return &CachedClassifier{
		inner:   inner,
		cache:   gocache.New(ttl, 2*ttl),
		maxSize: cfg.CacheMaxSize,
	}
}

// Predict returns the cached score when the snapshot was seen before.
func (c *CachedClassifier) Predict(ctx context.Context, fv *models.FeatureVector) (float64, error) {
	key := fv.SnapshotHash()
	if cached, ok := c.cache.Get(key); ok {
		return cached.(float64), nil
	}

	p, err := c.inner.Predict(ctx, fv)
	if err != nil {
		return 0, err
	}

	if c.cache.ItemCount() >= c.maxSize {
		c.cache.DeleteExpired()
	}
	if c.cache.ItemCount() < c.maxSize {
		c.cache.SetDefault(key, p)
	}
	return p, nil
}
