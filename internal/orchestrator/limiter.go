package orchestrator

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourusername/gridiron-edge/internal/metrics"
)

// secondsPerDay converts a daily quota into a refill rate.
const secondsPerDay = 24 * 60 * 60

// RateLimiter holds one token bucket per collector key. Capacity and
// refill rate come from the source config at registration; a collector
// that was never registered gets a conservative default bucket.
type RateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*rate.Limiter
	defaultDaily  float64
}

// NewRateLimiter creates the limiter with the fallback daily quota for
// unregistered collectors.
func NewRateLimiter(defaultDailyTokens float64) *RateLimiter {
	return &RateLimiter{
		buckets:      make(map[string]*rate.Limiter),
		defaultDaily: defaultDailyTokens,
	}
}

// Register declares a collector's daily quota and burst capacity.
func (l *RateLimiter) Register(collectorKey string, dailyTokens float64, burst int) {
	if dailyTokens <= 0 {
		dailyTokens = l.defaultDaily
	}
	if burst <= 0 {
		burst = defaultBurst(dailyTokens)
	}

	l.mu.Lock()
	l.buckets[collectorKey] = rate.NewLimiter(rate.Limit(dailyTokens/secondsPerDay), burst)
	l.mu.Unlock()
}

// Check peeks at the bucket without consuming.
func (l *RateLimiter) Check(collectorKey string) bool {
	return l.bucket(collectorKey).Tokens() >= 1
}

// TryConsume atomically takes one token, reporting whether it was
// available.
func (l *RateLimiter) TryConsume(collectorKey string) bool {
	b := l.bucket(collectorKey)
	allowed := b.Allow()
	metrics.TokensAvailable.WithLabelValues(collectorKey).Set(b.Tokens())
	return allowed
}

// Tokens reports the current token count for the status surface.
func (l *RateLimiter) Tokens(collectorKey string) float64 {
	return l.bucket(collectorKey).Tokens()
}

// Capacity reports the bucket's burst capacity.
func (l *RateLimiter) Capacity(collectorKey string) float64 {
	return float64(l.bucket(collectorKey).Burst())
}

// RefillPerSecond reports the bucket's refill rate.
func (l *RateLimiter) RefillPerSecond(collectorKey string) float64 {
	return float64(l.bucket(collectorKey).Limit())
}

func (l *RateLimiter) bucket(collectorKey string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[collectorKey]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.defaultDaily/secondsPerDay), defaultBurst(l.defaultDaily))
		l.buckets[collectorKey] = b
	}
	return b
}

// defaultBurst sizes the burst to roughly an hour of quota, with a
// floor so tiny quotas still admit single requests.
func defaultBurst(dailyTokens float64) int {
	burst := int(dailyTokens / 24)
	if burst < 1 {
		burst = 1
	}
	return burst
}

// retryDelay computes the backoff before attempt n (0-based), scaled by
// the request's priority.
func retryDelay(base time.Duration, attempt int, p Priority) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return time.Duration(float64(delay) * p.retryFactor())
}
