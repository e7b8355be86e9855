package orchestrator

import (
	"sync"

	"github.com/yourusername/gridiron-edge/internal/metrics"
)

// inflight is one outbound fetch and everyone waiting on it.
type inflight struct {
	done     chan struct{}
	response *Response
	err      error
}

// deduplicator guarantees at most one outbound call per canonical
// request hash at any time. Later callers attach to the in-flight fetch
// and receive the same result or error.
type deduplicator struct {
	mu       sync.Mutex
	inFlight map[string]*inflight
}

func newDeduplicator() *deduplicator {
	return &deduplicator{inFlight: make(map[string]*inflight)}
}

// join returns the in-flight fetch for hash, creating one when absent.
// leader is true for the caller that must perform the fetch.
func (d *deduplicator) join(collectorKey, hash string) (fl *inflight, leader bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.inFlight[hash]; ok {
		metrics.RecordDedup(collectorKey)
		return existing, false
	}

	fl = &inflight{done: make(chan struct{})}
	d.inFlight[hash] = fl
	return fl, true
}

// resolve publishes the result to every subscriber and clears the slot
// so the next identical request fetches fresh.
func (d *deduplicator) resolve(hash string, fl *inflight, resp *Response, err error) {
	d.mu.Lock()
	delete(d.inFlight, hash)
	d.mu.Unlock()

	fl.response = resp
	fl.err = err
	close(fl.done)
}
