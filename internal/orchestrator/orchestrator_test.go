package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/cache"
	"github.com/yourusername/gridiron-edge/internal/collectors"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// fakeCollector counts outbound calls and serves a scripted response.
type fakeCollector struct {
	key     string
	ttl     time.Duration
	delay   time.Duration
	calls   int64
	respond func(call int64) (*collectors.Result, error)
}

func (f *fakeCollector) Key() string { return f.key }

func (f *fakeCollector) Fetch(ctx context.Context, req collectors.Request) (*collectors.Result, error) {
	call := atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.respond != nil {
		return f.respond(call)
	}
	return &collectors.Result{Payload: []byte(`{"ok":true}`), ObservedAt: time.Now().UTC()}, nil
}

func (f *fakeCollector) TTL(req collectors.Request) time.Duration {
	if f.ttl > 0 {
		return f.ttl
	}
	return time.Minute
}

func testOrchestratorConfig() *config.OrchestratorConfig {
	return &config.OrchestratorConfig{
		WorkersPerSource:         4,
		FetchTimeoutSeconds:      5,
		MaxRetries:               3,
		RetryBaseSeconds:         0.01,
		BreakerFailureThreshold:  5,
		BreakerCooloffSeconds:    60,
		BreakerHalfOpenSuccesses: 2,
		EscalateLowSeconds:       120,
		EscalateNormalSeconds:    60,
		EscalateHighSeconds:      30,
		DefaultDailyTokens:       100,
		QueueCapacity:            256,
	}
}

func testCache(t *testing.T) *cache.TieredCache {
	t.Helper()
	dir := t.TempDir()
	tc, err := cache.New(&config.CacheConfig{
		HotMaxEntries: 128,
		FileDir:       filepath.Join(dir, "file"),
		HistoryPath:   filepath.Join(dir, "history.db"),
	}, logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { tc.Close() })
	return tc
}

func startOrchestrator(t *testing.T, cfg *config.OrchestratorConfig, fakes ...*fakeCollector) (*Orchestrator, *cache.TieredCache) {
	t.Helper()
	tc := testCache(t)
	o := New(cfg, tc, logrus.New(), nil)
	for _, f := range fakes {
		o.Register(f, &config.SourceConfig{Name: f.key, DailyTokens: 86400 * 10, BurstCapacity: 1000})
	}
	o.Start(context.Background())
	t.Cleanup(o.Stop)
	return o, tc
}

func TestFetchServesFromCacheSecondTime(t *testing.T) {
	fake := &fakeCollector{key: "odds"}
	o, _ := startOrchestrator(t, testOrchestratorConfig(), fake)

	req := collectors.Request{Op: "game", Params: map[string]string{"game_id": "g1"}}

	first, err := o.Fetch(context.Background(), "odds", req, PriorityNormal)
	require.NoError(t, err)
	assert.False(t, first.Stale)

	second, err := o.Fetch(context.Background(), "odds", req, PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, first.Payload, second.Payload)
	assert.NotEmpty(t, second.Tier)

	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.calls))
}

func TestConcurrentIdenticalRequestsShareOneFetch(t *testing.T) {
	fake := &fakeCollector{key: "odds", delay: 50 * time.Millisecond}
	o, _ := startOrchestrator(t, testOrchestratorConfig(), fake)

	req := collectors.Request{Op: "game", Params: map[string]string{"game_id": "g1"}}

	const n = 20
	var wg sync.WaitGroup
	payloads := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := o.Fetch(context.Background(), "odds", req, PriorityNormal)
			errs[i] = err
			if resp != nil {
				payloads[i] = resp.Payload
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, payloads[0], payloads[i])
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.calls))
}

func TestRateLimitDenialWithoutCacheFails(t *testing.T) {
	fake := &fakeCollector{key: "injury"}
	tc := testCache(t)
	o := New(testOrchestratorConfig(), tc, logrus.New(), nil)
	// A bucket with zero refill and burst 1: the first request consumes
	// the only token.
	o.Register(fake, &config.SourceConfig{Name: "injury", DailyTokens: 0.000001, BurstCapacity: 1})
	o.Start(context.Background())
	t.Cleanup(o.Stop)

	reqA := collectors.Request{Op: "team", Params: map[string]string{"team": "PHI"}}
	reqB := collectors.Request{Op: "team", Params: map[string]string{"team": "DAL"}}

	_, err := o.Fetch(context.Background(), "injury", reqA, PriorityNormal)
	require.NoError(t, err)

	_, err = o.Fetch(context.Background(), "injury", reqB, PriorityNormal)
	require.ErrorIs(t, err, models.ErrRateLimitExceeded)
}

func TestRateLimitDenialServesStaleWhenCached(t *testing.T) {
	fake := &fakeCollector{key: "injury", ttl: time.Nanosecond}
	tc := testCache(t)
	o := New(testOrchestratorConfig(), tc, logrus.New(), nil)
	o.Register(fake, &config.SourceConfig{Name: "injury", DailyTokens: 0.000001, BurstCapacity: 1})
	o.Start(context.Background())
	t.Cleanup(o.Stop)

	req := collectors.Request{Op: "team", Params: map[string]string{"team": "PHI"}}

	first, err := o.Fetch(context.Background(), "injury", req, PriorityNormal)
	require.NoError(t, err)
	require.False(t, first.Stale)

	// TTL has passed and the bucket is empty, so the second fetch is
	// denied but the expired entry is still served, flagged stale.
	time.Sleep(time.Millisecond)
	second, err := o.Fetch(context.Background(), "injury", req, PriorityNormal)
	require.NoError(t, err)
	assert.True(t, second.Stale)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.calls))
}

func TestTransientFailuresAreRetried(t *testing.T) {
	fake := &fakeCollector{
		key: "weather",
		respond: func(call int64) (*collectors.Result, error) {
			if call < 3 {
				return nil, models.NewTransientError("weather", models.ErrCodeServerError, "boom", nil)
			}
			return &collectors.Result{Payload: []byte(`{"ok":true}`), ObservedAt: time.Now().UTC()}, nil
		},
	}
	o, _ := startOrchestrator(t, testOrchestratorConfig(), fake)

	resp, err := o.Fetch(context.Background(), "weather",
		collectors.Request{Op: "forecast", Params: map[string]string{"lat": "1"}}, PriorityNormal)
	require.NoError(t, err)
	assert.False(t, resp.Stale)
	assert.Equal(t, int64(3), atomic.LoadInt64(&fake.calls))
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	fake := &fakeCollector{
		key: "weather",
		respond: func(call int64) (*collectors.Result, error) {
			return nil, models.NewPermanentError("weather", models.ErrCodeBadRequest, "nope", nil)
		},
	}
	o, _ := startOrchestrator(t, testOrchestratorConfig(), fake)

	_, err := o.Fetch(context.Background(), "weather",
		collectors.Request{Op: "forecast", Params: map[string]string{"lat": "1"}}, PriorityNormal)
	require.Error(t, err)
	assert.True(t, models.IsPermanent(err))
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.calls))
}

func TestBreakerOpensAtThresholdNotBefore(t *testing.T) {
	cfg := testOrchestratorConfig()
	cfg.MaxRetries = 0

	fail := func(call int64) (*collectors.Result, error) {
		return nil, models.NewTransientError("referee", models.ErrCodeServerError, "down", nil)
	}
	fake := &fakeCollector{key: "referee", respond: fail}
	o, _ := startOrchestrator(t, cfg, fake)

	// N-1 failures leave the breaker closed.
	for i := 0; i < cfg.BreakerFailureThreshold-1; i++ {
		req := collectors.Request{Op: "assignment", Params: map[string]string{"game_id": string(rune('a' + i))}}
		_, err := o.Fetch(context.Background(), "referee", req, PriorityNormal)
		require.Error(t, err)
	}
	assert.Equal(t, "closed", o.breakers.State("referee"))

	// The Nth consecutive failure trips it open.
	_, err := o.Fetch(context.Background(), "referee",
		collectors.Request{Op: "assignment", Params: map[string]string{"game_id": "z"}}, PriorityNormal)
	require.Error(t, err)
	assert.Equal(t, "open", o.breakers.State("referee"))

	// While open, calls fail fast without reaching the collector.
	before := atomic.LoadInt64(&fake.calls)
	_, err = o.Fetch(context.Background(), "referee",
		collectors.Request{Op: "assignment", Params: map[string]string{"game_id": "y"}}, PriorityNormal)
	require.ErrorIs(t, err, models.ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt64(&fake.calls))
}

func TestQueueEscalationPromotesWaitingTasks(t *testing.T) {
	q := newPriorityQueue(16, map[Priority]time.Duration{
		PriorityLow:    120 * time.Second,
		PriorityNormal: 60 * time.Second,
		PriorityHigh:   30 * time.Second,
	})

	low := &task{collectorKey: "odds", priority: PriorityLow, run: func() {}}
	require.True(t, q.Enqueue(low))

	// Under the threshold nothing moves.
	assert.Equal(t, 0, q.Escalate(low.enqueuedAt.Add(60*time.Second)))
	assert.Equal(t, PriorityLow, low.priority)

	// Past it the task climbs one level per sweep.
	assert.Equal(t, 1, q.Escalate(low.enqueuedAt.Add(121*time.Second)))
	assert.Equal(t, PriorityNormal, low.priority)
}

func TestQueueOrdersByPriorityThenFIFO(t *testing.T) {
	q := newPriorityQueue(16, nil)

	var order []string
	mk := func(name string, p Priority) *task {
		return &task{collectorKey: name, priority: p, run: func() { order = append(order, name) }}
	}
	require.True(t, q.Enqueue(mk("low", PriorityLow)))
	require.True(t, q.Enqueue(mk("critical", PriorityCritical)))
	require.True(t, q.Enqueue(mk("normal-1", PriorityNormal)))
	require.True(t, q.Enqueue(mk("normal-2", PriorityNormal)))

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		tk, err := q.Dequeue(ctx)
		require.NoError(t, err)
		tk.run()
	}
	assert.Equal(t, []string{"critical", "normal-1", "normal-2", "low"}, order)
}

func TestQueueCloseDuringConcurrentEnqueues(t *testing.T) {
	// Shutdown lands while fetches are still being queued; enqueues
	// racing the close must be rejected cleanly, never panic.
	for trial := 0; trial < 100; trial++ {
		q := newPriorityQueue(1024, nil)

		var wg sync.WaitGroup
		stop := make(chan struct{})
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						q.Enqueue(&task{collectorKey: "odds", priority: PriorityNormal, run: func() {}})
					}
				}
			}()
		}

		time.Sleep(200 * time.Microsecond)
		q.Close()
		close(stop)
		wg.Wait()

		assert.False(t, q.Enqueue(&task{collectorKey: "odds"}))
	}
}

func TestQueueCloseUnblocksDequeue(t *testing.T) {
	q := newPriorityQueue(16, nil)

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close() // second close is a no-op

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}
}

func TestRetryDelayScalesWithPriority(t *testing.T) {
	base := time.Second
	assert.Equal(t, time.Second, retryDelay(base, 0, PriorityNormal))
	assert.Equal(t, 2*time.Second, retryDelay(base, 1, PriorityNormal))
	assert.Equal(t, 4*time.Second, retryDelay(base, 2, PriorityNormal))
	assert.Equal(t, 500*time.Millisecond, retryDelay(base, 0, PriorityCritical))
	assert.Equal(t, 750*time.Millisecond, retryDelay(base, 0, PriorityHigh))
}

func TestUsageSnapshotReflectsActivity(t *testing.T) {
	fake := &fakeCollector{key: "odds"}
	o, _ := startOrchestrator(t, testOrchestratorConfig(), fake)

	_, err := o.Fetch(context.Background(), "odds",
		collectors.Request{Op: "game", Params: map[string]string{"game_id": "g1"}}, PriorityNormal)
	require.NoError(t, err)

	usage := o.UsageSnapshot()
	require.Len(t, usage, 1)
	assert.Equal(t, "odds", usage[0].CollectorKey)
	assert.Equal(t, int64(1), usage[0].RequestsServed)
	assert.Equal(t, "closed", usage[0].CircuitState)
}
