package models

import "time"

// APIUsage mirrors one collector's in-process budget state into storage
// for the status command and dashboards. The in-process limiter remains
// authoritative.
type APIUsage struct {
	CollectorKey        string    `db:"collector_key" json:"collector_key"`
	TokensAvailable     float64   `db:"tokens_available" json:"tokens_available"`
	Capacity            float64   `db:"capacity" json:"capacity"`
	RefillPerSecond     float64   `db:"refill_per_second" json:"refill_per_second"`
	LastRefill          time.Time `db:"last_refill" json:"last_refill"`
	ConsecutiveFailures int       `db:"consecutive_failures" json:"consecutive_failures"`
	CircuitState        string    `db:"circuit_state" json:"circuit_state"`
	RequestsServed      int64     `db:"requests_served" json:"requests_served"`
	RequestsDenied      int64     `db:"requests_denied" json:"requests_denied"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
