package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/gridiron-edge/internal/cache"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// OddsStreamListener maintains a WebSocket subscription to the odds
// provider's push feed and folds each tick into the cache under the
// same key the polling collector uses, so readers see the freshest line
// without extra API calls. The listener is optional; everything works
// on polling alone.
type OddsStreamListener struct {
	cfg    *config.StreamConfig
	cache  *cache.TieredCache
	ttl    func(Request) time.Duration
	logger *logrus.Entry

	mu            sync.RWMutex
	conn          *websocket.Conn
	isConnected   bool
	subscriptions map[string]Request
	lastMessage   time.Time
}

// streamTick is one pushed quote update
type streamTick struct {
	GameID       string  `json:"game_id"`
	Book         string  `json:"book"`
	Market       string  `json:"market"`
	Side         string  `json:"side"`
	AmericanOdds int     `json:"american_odds"`
	ObservedAt   string  `json:"observed_at"`
	Heartbeat    bool    `json:"heartbeat"`
	DecimalOdds  float64 `json:"decimal_odds"`
}

// NewOddsStreamListener creates the listener. ttl supplies the same TTL
// schedule the polling collector uses so streamed entries expire on the
// same clock.
func NewOddsStreamListener(cfg *config.StreamConfig, tc *cache.TieredCache, ttl func(Request) time.Duration, logger *logrus.Logger) *OddsStreamListener {
	return &OddsStreamListener{
		cfg:           cfg,
		cache:         tc,
		ttl:           ttl,
		logger:        logger.WithField("component", "odds_stream"),
		subscriptions: make(map[string]Request),
	}
}

// Subscribe registers a game for stream updates. The kickoff rides along
// so cache keys match the polling collector's.
func (s *OddsStreamListener) Subscribe(gameID string, kickoff time.Time) {
	s.mu.Lock()
	s.subscriptions[gameID] = OddsRequest(gameID, kickoff)
	s.mu.Unlock()
}

// Unsubscribe drops a game from stream updates.
func (s *OddsStreamListener) Unsubscribe(gameID string) {
	s.mu.Lock()
	delete(s.subscriptions, gameID)
	s.mu.Unlock()
}

// Run connects and consumes ticks until ctx is cancelled, reconnecting
// with doubling backoff. It returns only on cancellation or after the
// reconnect budget is exhausted.
func (s *OddsStreamListener) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	attempts := 0

	for {
		if err := s.connect(ctx); err != nil {
			attempts++
			if s.cfg.ReconnectMax > 0 && attempts >= s.cfg.ReconnectMax {
				return fmt.Errorf("stream reconnect budget exhausted: %w", err)
			}
			s.logger.WithError(err).WithField("backoff", backoff.String()).
				Warn("Stream connect failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		attempts = 0
		backoff = time.Second

		if err := s.readLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).Warn("Stream disconnected, reconnecting")
		}
	}
}

func (s *OddsStreamListener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial odds stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.isConnected = true
	s.lastMessage = time.Now()
	gameIDs := make([]string, 0, len(s.subscriptions))
	for id := range s.subscriptions {
		gameIDs = append(gameIDs, id)
	}
	s.mu.Unlock()

	sub := map[string]interface{}{
		"op":       "subscribe",
		"book":     s.cfg.Book,
		"game_ids": gameIDs,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	s.logger.WithField("games", len(gameIDs)).Info("Connected to odds stream")
	return nil
}

func (s *OddsStreamListener) readLoop(ctx context.Context) error {
	defer s.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var tick streamTick
		if err := s.conn.ReadJSON(&tick); err != nil {
			return err
		}

		s.mu.Lock()
		s.lastMessage = time.Now()
		s.mu.Unlock()

		if tick.Heartbeat {
			continue
		}
		if err := s.applyTick(ctx, &tick); err != nil {
			s.logger.WithError(err).WithField("game_id", tick.GameID).
				Warn("Failed to apply stream tick")
		}
	}
}

// applyTick merges one quote into the game's cached snapshot and stores
// the result back under the polling collector's key.
func (s *OddsStreamListener) applyTick(ctx context.Context, tick *streamTick) error {
	s.mu.RLock()
	req, ok := s.subscriptions[tick.GameID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	observedAt := time.Now().UTC()
	if tick.ObservedAt != "" {
		if t, err := time.Parse(time.RFC3339, tick.ObservedAt); err == nil {
			observedAt = t.UTC()
		}
	}

	quote := models.BookQuote{
		Book:         tick.Book,
		Market:       models.Market(tick.Market),
		Side:         models.Side(tick.Side),
		AmericanOdds: tick.AmericanOdds,
		DecimalOdds:  models.DecimalFromAmerican(tick.AmericanOdds),
		ObservedAt:   observedAt,
	}

	hash := Hash(KeyOdds, req)
	snapshot := models.OddsSnapshot{GameID: tick.GameID}
	if entry, found := s.cache.Stale(ctx, KeyOdds, hash); found {
		if err := json.Unmarshal(entry.Payload, &snapshot); err != nil {
			snapshot = models.OddsSnapshot{GameID: tick.GameID}
		}
	}

	replaced := false
	for i, q := range snapshot.Quotes {
		if q.Book == quote.Book && q.Market == quote.Market && q.Side == quote.Side {
			snapshot.Quotes[i] = quote
			replaced = true
			break
		}
	}
	if !replaced {
		snapshot.Quotes = append(snapshot.Quotes, quote)
	}
	snapshot.ObservedAt = observedAt

	payload, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return s.cache.Store(ctx, &cache.Entry{
		CollectorKey: KeyOdds,
		RequestHash:  hash,
		Payload:      payload,
		ObservedAt:   observedAt,
		TTL:          s.ttl(req),
	})
}

// IsConnected reports whether the stream is currently up.
func (s *OddsStreamListener) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

// LastMessageTime returns when the last frame arrived.
func (s *OddsStreamListener) LastMessageTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessage
}

// Close tears down the connection.
func (s *OddsStreamListener) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	s.isConnected = false
	err := s.conn.Close()
	s.conn = nil
	return err
}
