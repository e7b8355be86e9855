// Package collectors defines the collector contract and the conforming
// fetchers for each free-tier data source. Collectors are pure
// transport-and-parse: retries, rate limits, caching and breakers all
// live in the orchestrator.
package collectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Collector keys. These name rate-limit buckets, cache partitions and
// breaker instances, so they must stay stable.
const (
	KeySchedule   = "schedule"
	KeyOdds       = "odds"
	KeyWeather    = "weather"
	KeyInjury     = "injury"
	KeyReferee    = "referee"
	KeyEfficiency = "efficiency"
)

// Request identifies one logical fetch: an operation plus its
// parameters. Params are canonicalized by sorted key, so two requests
// with the same pairs are the same request.
type Request struct {
	Op     string            `json:"op"`
	Params map[string]string `json:"params"`
}

// CanonicalKey returns the stable string form of the request.
func (r Request) CanonicalKey() string {
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.Op)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.Params[k])
	}
	return b.String()
}

// Hash returns the dedup/cache key for a request against one collector.
func Hash(collectorKey string, r Request) string {
	sum := sha256.Sum256([]byte(collectorKey + "#" + r.CanonicalKey()))
	return hex.EncodeToString(sum[:])
}

// Result carries the canonical JSON payload of the fetched domain
// object plus its observation instant.
type Result struct {
	Payload    []byte    `json:"payload"`
	ObservedAt time.Time `json:"observed_at"`
}

// Collector is a self-contained fetcher for one logical data type.
type Collector interface {
	// Key returns the stable name used for rate-limit accounting and
	// cache partitioning.
	Key() string

	// Fetch performs the outbound call and parses the response. It must
	// honor ctx cancellation and have no side effects beyond logging.
	Fetch(ctx context.Context, req Request) (*Result, error)

	// TTL returns the time-to-live hint for a request's response.
	TTL(req Request) time.Duration
}

// kickoffParam is the shared request parameter carrying the target
// game's kickoff, used by TTL schedules that tighten near game time.
const kickoffParam = "kickoff"

func kickoffFromRequest(req Request) (time.Time, bool) {
	raw, ok := req.Params[kickoffParam]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
