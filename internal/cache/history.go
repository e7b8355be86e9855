package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryTier is the permanent append-only record of every external
// response, indexed by observation time. The backtester replays odds
// and forecasts from here; rows are never updated or deleted except by
// explicit retention pruning.
type HistoryTier struct {
	db *sql.DB
}

// NewHistoryTier opens (or creates) the sqlite history store in WAL
// mode with a single write connection.
func NewHistoryTier(path string) (*HistoryTier, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS response_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collector_key TEXT NOT NULL,
			request_hash TEXT NOT NULL,
			observed_at INTEGER NOT NULL,
			ttl_seconds REAL NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_lookup
			ON response_history (collector_key, request_hash, observed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &HistoryTier{db: db}, nil
}

// Append records one response. Timestamps are stored as unix
// nanoseconds so ordering survives sub-second observation bursts.
func (h *HistoryTier) Append(ctx context.Context, entry *Entry) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO response_history (collector_key, request_hash, observed_at, ttl_seconds, payload)
		VALUES (?, ?, ?, ?, ?)`,
		entry.CollectorKey, entry.RequestHash, entry.ObservedAt.UTC().UnixNano(),
		entry.TTL.Seconds(), entry.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append history row: %w", err)
	}
	return nil
}

func (h *HistoryTier) scanOne(row *sql.Row, collectorKey, requestHash string) (*Entry, error) {
	var observedNanos int64
	var ttlSeconds float64
	var payload []byte

	err := row.Scan(&observedNanos, &ttlSeconds, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history row: %w", err)
	}

	return &Entry{
		CollectorKey: collectorKey,
		RequestHash:  requestHash,
		Payload:      payload,
		ObservedAt:   time.Unix(0, observedNanos).UTC(),
		TTL:          time.Duration(ttlSeconds * float64(time.Second)),
	}, nil
}

// Latest returns the most recent entry for a request, or nil.
func (h *HistoryTier) Latest(ctx context.Context, collectorKey, requestHash string) (*Entry, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT observed_at, ttl_seconds, payload
		FROM response_history
		WHERE collector_key = ? AND request_hash = ?
		ORDER BY observed_at DESC
		LIMIT 1`,
		collectorKey, requestHash,
	)
	return h.scanOne(row, collectorKey, requestHash)
}

// AsOf returns the newest entry observed strictly before t, or nil when
// nothing predates t. This is the backtester's no-look-ahead read path.
func (h *HistoryTier) AsOf(ctx context.Context, collectorKey, requestHash string, t time.Time) (*Entry, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT observed_at, ttl_seconds, payload
		FROM response_history
		WHERE collector_key = ? AND request_hash = ? AND observed_at < ?
		ORDER BY observed_at DESC
		LIMIT 1`,
		collectorKey, requestHash, t.UTC().UnixNano(),
	)
	return h.scanOne(row, collectorKey, requestHash)
}

// LastBefore returns the newest entry for a collector/request observed
// inside (start, end]. Settlement uses this to find the closing line.
func (h *HistoryTier) LastBefore(ctx context.Context, collectorKey, requestHash string, start, end time.Time) (*Entry, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT observed_at, ttl_seconds, payload
		FROM response_history
		WHERE collector_key = ? AND request_hash = ? AND observed_at > ? AND observed_at <= ?
		ORDER BY observed_at DESC
		LIMIT 1`,
		collectorKey, requestHash, start.UTC().UnixNano(), end.UTC().UnixNano(),
	)
	return h.scanOne(row, collectorKey, requestHash)
}

// Prune deletes rows older than the cutoff. Retention zero means keep
// everything.
func (h *HistoryTier) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`DELETE FROM response_history WHERE observed_at < ?`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

// Close releases the database handle.
func (h *HistoryTier) Close() error {
	return h.db.Close()
}
