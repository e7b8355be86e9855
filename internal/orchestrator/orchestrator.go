package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/yourusername/gridiron-edge/internal/cache"
	"github.com/yourusername/gridiron-edge/internal/collectors"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// Response is what a caller gets back from Fetch: the canonical JSON
// payload of the requested domain object, its observation instant, and
// whether it was served past its TTL after a fetch failure.
type Response struct {
	Payload    []byte
	ObservedAt time.Time
	Stale      bool
	Tier       cache.Tier
}

// Orchestrator fans caller requests out to collectors through the
// cache, dedup, rate-limit, breaker and retry layers. One instance is
// shared by the engine, the discoverer and the scheduler.
type Orchestrator struct {
	cfg    *config.OrchestratorConfig
	cache  *cache.TieredCache
	logger *logrus.Entry
	audit  *logger.AuditLogger

	limiter  *RateLimiter
	breakers *BreakerSet
	dedup    *deduplicator

	mu         sync.RWMutex
	collectors map[string]collectors.Collector
	queues     map[string]*priorityQueue
	stats      map[string]*keyStats

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

// keyStats mirrors one collector's budget state for the status surface.
type keyStats struct {
	mu                  sync.Mutex
	served              int64
	denied              int64
	consecutiveFailures int
}

// New creates the orchestrator. Collectors are registered separately so
// tests can wire fakes.
func New(cfg *config.OrchestratorConfig, tc *cache.TieredCache, log *logrus.Logger, audit *logger.AuditLogger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		cache:      tc,
		logger:     log.WithField("component", "orchestrator"),
		audit:      audit,
		limiter:    NewRateLimiter(cfg.DefaultDailyTokens),
		breakers:   NewBreakerSet(cfg, log, audit),
		dedup:      newDeduplicator(),
		collectors: make(map[string]collectors.Collector),
		queues:     make(map[string]*priorityQueue),
		stats:      make(map[string]*keyStats),
	}
}

// Register wires a collector and its budget into the orchestrator.
func (o *Orchestrator) Register(c collectors.Collector, src *config.SourceConfig) {
	key := c.Key()

	daily := o.cfg.DefaultDailyTokens
	burst := 0
	if src != nil {
		if src.DailyTokens > 0 {
			daily = src.DailyTokens
		}
		burst = src.BurstCapacity
	}
	o.limiter.Register(key, daily, burst)

	thresholds := escalationThresholds(
		o.cfg.EscalateLowSeconds, o.cfg.EscalateNormalSeconds, o.cfg.EscalateHighSeconds)

	o.mu.Lock()
	o.collectors[key] = c
	o.queues[key] = newPriorityQueue(o.cfg.QueueCapacity, thresholds)
	o.stats[key] = &keyStats{}
	o.mu.Unlock()
}

// Start launches the per-source worker pools and escalation tickers.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.runCtx, o.runCancel = context.WithCancel(ctx)
	queues := make(map[string]*priorityQueue, len(o.queues))
	for key, q := range o.queues {
		queues[key] = q
	}
	o.mu.Unlock()

	for key, q := range queues {
		for i := 0; i < o.cfg.WorkersPerSource; i++ {
			o.wg.Add(1)
			go o.worker(key, q)
		}
		o.wg.Add(1)
		go o.escalationLoop(q)
	}

	o.logger.WithField("sources", len(queues)).Info("Orchestrator started")
}

// Stop drains the workers. Safe to call once after Start.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	cancel := o.runCancel
	queues := make([]*priorityQueue, 0, len(o.queues))
	for _, q := range o.queues {
		queues = append(queues, q)
	}
	o.mu.Unlock()

	cancel()
	for _, q := range queues {
		q.Close()
	}
	o.wg.Wait()
	o.logger.Info("Orchestrator stopped")
}

// Fetch returns the freshest available data for the request, consulting
// the cache before scheduling an outbound call. Identical concurrent
// requests share one fetch.
func (o *Orchestrator) Fetch(ctx context.Context, collectorKey string, req collectors.Request, p Priority) (*Response, error) {
	o.mu.RLock()
	c, ok := o.collectors[collectorKey]
	q := o.queues[collectorKey]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no collector registered for key %q", collectorKey)
	}

	hash := collectors.Hash(collectorKey, req)

	if entry, tier, hit := o.cache.Lookup(ctx, collectorKey, hash, time.Now()); hit {
		return &Response{Payload: entry.Payload, ObservedAt: entry.ObservedAt, Tier: tier}, nil
	}

	fl, leader := o.dedup.join(collectorKey, hash)
	if leader {
		t := &task{
			collectorKey: collectorKey,
			requestHash:  hash,
			priority:     p,
			run: func() {
				resp, err := o.execute(c, req, hash, p)
				o.dedup.resolve(hash, fl, resp, err)
			},
		}
		if !q.Enqueue(t) {
			resp, err := o.fallback(context.Background(), collectorKey, hash,
				models.NewTransientError(collectorKey, models.ErrCodeRateLimited, "scheduler queue full", nil))
			o.dedup.resolve(hash, fl, resp, err)
		}
	}

	select {
	case <-fl.done:
		return fl.response, fl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker pulls tasks for one source until shutdown.
func (o *Orchestrator) worker(collectorKey string, q *priorityQueue) {
	defer o.wg.Done()
	for {
		t, err := q.Dequeue(o.runCtx)
		if err != nil {
			return
		}
		t.run()
	}
}

// escalationLoop periodically promotes long-waiting requests.
func (o *Orchestrator) escalationLoop(q *priorityQueue) {
	defer o.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-o.runCtx.Done():
			return
		case now := <-ticker.C:
			q.Escalate(now)
		}
	}
}

// execute performs the rate-limited, breaker-guarded, retried fetch and
// stores the result in all cache tiers.
func (o *Orchestrator) execute(c collectors.Collector, req collectors.Request, hash string, p Priority) (*Response, error) {
	key := c.Key()
	stats := o.keyStats(key)

	if !o.limiter.TryConsume(key) {
		metrics.RecordRateLimitDenial(key)
		if o.audit != nil {
			o.audit.LogRateLimitDenial(key, p.String(), o.limiter.Tokens(key))
		}
		stats.mu.Lock()
		stats.denied++
		stats.mu.Unlock()
		return o.fallback(o.runCtx, key, hash, models.ErrRateLimitExceeded)
	}

	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(o.cfg.RetryBase(), attempt-1, p)
			select {
			case <-o.runCtx.Done():
				return nil, o.runCtx.Err()
			case <-time.After(delay):
			}
		}

		result, err := o.attempt(c, req)
		if err == nil {
			entry := &cache.Entry{
				CollectorKey: key,
				RequestHash:  hash,
				Payload:      result.Payload,
				ObservedAt:   result.ObservedAt,
				TTL:          c.TTL(req),
			}
			if storeErr := o.cache.Store(o.runCtx, entry); storeErr != nil {
				o.logger.WithError(storeErr).WithField("collector_key", key).
					Error("Failed to cache fetched response")
			}
			stats.mu.Lock()
			stats.served++
			stats.consecutiveFailures = 0
			stats.mu.Unlock()
			return &Response{Payload: result.Payload, ObservedAt: result.ObservedAt}, nil
		}

		lastErr = err
		stats.mu.Lock()
		stats.consecutiveFailures++
		stats.mu.Unlock()
		metrics.RecordFetchError(key, errorKind(err))

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			lastErr = fmt.Errorf("%w: %s", models.ErrCircuitOpen, key)
			break
		}
		if !models.IsTransient(err) {
			break
		}
	}

	return o.fallback(o.runCtx, key, hash, lastErr)
}

// attempt runs one fetch through the breaker with the per-fetch timeout.
func (o *Orchestrator) attempt(c collectors.Collector, req collectors.Request) (*collectors.Result, error) {
	key := c.Key()
	start := time.Now()
	out, err := o.breakers.Execute(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(o.runCtx, o.cfg.FetchTimeout())
		defer cancel()
		return c.Fetch(ctx, req)
	})
	metrics.RecordFetch(key, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return out.(*collectors.Result), nil
}

// fallback serves the most recent expired entry when one exists,
// flagged stale; otherwise the original failure propagates.
func (o *Orchestrator) fallback(ctx context.Context, collectorKey, hash string, cause error) (*Response, error) {
	if entry, ok := o.cache.Stale(ctx, collectorKey, hash); ok {
		metrics.RecordStaleServe(collectorKey)
		o.logger.WithError(cause).WithFields(logrus.Fields{
			"collector_key": collectorKey,
			"observed_at":   entry.ObservedAt,
		}).Warn("Serving stale cache entry after fetch failure")
		return &Response{Payload: entry.Payload, ObservedAt: entry.ObservedAt, Stale: true}, nil
	}
	return nil, cause
}

func (o *Orchestrator) keyStats(key string) *keyStats {
	o.mu.RLock()
	s, ok := o.stats[key]
	o.mu.RUnlock()
	if ok {
		return s
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok = o.stats[key]; !ok {
		s = &keyStats{}
		o.stats[key] = s
	}
	return s
}

// UsageSnapshot mirrors every collector's budget state for persistence
// by the status surface. The in-process limiter remains authoritative.
func (o *Orchestrator) UsageSnapshot() []models.APIUsage {
	o.mu.RLock()
	keys := make([]string, 0, len(o.collectors))
	for key := range o.collectors {
		keys = append(keys, key)
	}
	o.mu.RUnlock()

	now := time.Now().UTC()
	usage := make([]models.APIUsage, 0, len(keys))
	for _, key := range keys {
		stats := o.keyStats(key)
		stats.mu.Lock()
		served, denied, failures := stats.served, stats.denied, stats.consecutiveFailures
		stats.mu.Unlock()

		usage = append(usage, models.APIUsage{
			CollectorKey:        key,
			TokensAvailable:     o.limiter.Tokens(key),
			Capacity:            o.limiter.Capacity(key),
			RefillPerSecond:     o.limiter.RefillPerSecond(key),
			LastRefill:          now,
			ConsecutiveFailures: failures,
			CircuitState:        o.breakers.State(key),
			RequestsServed:      served,
			RequestsDenied:      denied,
			UpdatedAt:           now,
		})
	}
	return usage
}

// errorKind maps an error to its metric label.
func errorKind(err error) string {
	var se *models.SourceError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, gobreaker.ErrOpenState) {
		return "CIRCUIT_OPEN"
	}
	return "UNKNOWN"
}
