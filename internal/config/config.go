// Package config provides configuration management for the gridiron-edge daemon.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration. Every tunable
// lives here; nothing is read from code.
type Config struct {
	App          AppConfig          `mapstructure:"app" validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database" validate:"required"`
	Cache        CacheConfig        `mapstructure:"cache" validate:"required"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" validate:"required"`
	Collectors   CollectorsConfig   `mapstructure:"collectors" validate:"required"`
	Catalog      CatalogConfig      `mapstructure:"catalog" validate:"required"`
	Discovery    DiscoveryConfig    `mapstructure:"discovery" validate:"required"`
	Engine       EngineConfig       `mapstructure:"engine" validate:"required"`
	Ingestion    IngestionConfig    `mapstructure:"ingestion" validate:"required"`
	Model        ModelConfig        `mapstructure:"model" validate:"required"`
	Reasoning    ReasoningConfig    `mapstructure:"reasoning"`
	Backtest     BacktestConfig     `mapstructure:"backtest" validate:"required"`
	Stream       StreamConfig       `mapstructure:"stream"`
	Metrics      MetricsConfig      `mapstructure:"metrics" validate:"required"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents the catalog-store connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// CacheConfig configures the three cache tiers
type CacheConfig struct {
	HotMaxEntries      int    `mapstructure:"hot_max_entries" validate:"required,gt=0"`
	FileDir            string `mapstructure:"file_dir" validate:"required"`
	HistoryPath        string `mapstructure:"history_path" validate:"required"`
	HistoryRetainDays  int    `mapstructure:"history_retain_days" validate:"gte=0"`
}

// OrchestratorConfig tunes the shared fetch machinery
type OrchestratorConfig struct {
	WorkersPerSource        int     `mapstructure:"workers_per_source" validate:"required,gt=0"`
	FetchTimeoutSeconds     int     `mapstructure:"fetch_timeout_seconds" validate:"required,gt=0"`
	MaxRetries              int     `mapstructure:"max_retries" validate:"gte=0"`
	RetryBaseSeconds        float64 `mapstructure:"retry_base_seconds" validate:"gt=0"`
	BreakerFailureThreshold int     `mapstructure:"breaker_failure_threshold" validate:"required,gt=0"`
	BreakerCooloffSeconds   int     `mapstructure:"breaker_cooloff_seconds" validate:"required,gt=0"`
	BreakerHalfOpenSuccesses int    `mapstructure:"breaker_half_open_successes" validate:"required,gt=0"`
	EscalateLowSeconds      int     `mapstructure:"escalate_low_seconds" validate:"required,gt=0"`
	EscalateNormalSeconds   int     `mapstructure:"escalate_normal_seconds" validate:"required,gt=0"`
	EscalateHighSeconds     int     `mapstructure:"escalate_high_seconds" validate:"required,gt=0"`
	DefaultDailyTokens      float64 `mapstructure:"default_daily_tokens" validate:"required,gt=0"`
	QueueCapacity           int     `mapstructure:"queue_capacity" validate:"required,gt=0"`
}

// SourceConfig describes one external collector endpoint and its budget
type SourceConfig struct {
	Name            string  `mapstructure:"name" validate:"required"`
	Enabled         bool    `mapstructure:"enabled"`
	BaseURL         string  `mapstructure:"base_url"`
	APIKey          string  `mapstructure:"api_key"`
	DailyTokens     float64 `mapstructure:"daily_tokens" validate:"gte=0"`
	BurstCapacity   int     `mapstructure:"burst_capacity" validate:"gte=0"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// CollectorsConfig groups the per-source settings plus the TTL schedule
type CollectorsConfig struct {
	Sources []SourceConfig `mapstructure:"sources" validate:"required,min=1,dive"`

	OddsTTLFarMinutes    int `mapstructure:"odds_ttl_far_minutes" validate:"required,gt=0"`
	OddsTTLNearMinutes   int `mapstructure:"odds_ttl_near_minutes" validate:"required,gt=0"`
	OddsTTLFinalMinutes  int `mapstructure:"odds_ttl_final_minutes" validate:"required,gt=0"`
	WeatherTTLMinutes    int `mapstructure:"weather_ttl_minutes" validate:"required,gt=0"`
	ScheduleTTLHours     int `mapstructure:"schedule_ttl_hours" validate:"required,gt=0"`
	InjuryTTLMinutes     int `mapstructure:"injury_ttl_minutes" validate:"required,gt=0"`
	RefereeTTLHours      int `mapstructure:"referee_ttl_hours" validate:"required,gt=0"`
	EfficiencyTTLHours   int `mapstructure:"efficiency_ttl_hours" validate:"required,gt=0"`
}

// CatalogConfig gates the edge lifecycle
type CatalogConfig struct {
	MinSampleSize        int     `mapstructure:"min_sample_size" validate:"required,gt=0"`
	MaxPValue            float64 `mapstructure:"max_p_value" validate:"required,gt=0,lt=1"`
	SimilarityThreshold  float64 `mapstructure:"similarity_threshold" validate:"required,gt=0,lte=1"`
	VersionBumpMinGainPP float64 `mapstructure:"version_bump_min_gain_pp" validate:"required,gt=0"`
	VersionBumpSampleX   float64 `mapstructure:"version_bump_sample_x" validate:"required,gte=1"`
	DecayMargin          float64 `mapstructure:"decay_margin" validate:"required,gt=0"`
	MonitorWindowGames   int     `mapstructure:"monitor_window_games" validate:"required,gt=0"`
	TrailingSeasons      int     `mapstructure:"trailing_seasons" validate:"required,gt=0"`
}

// DiscoveryConfig tunes the hypothesis sweep
type DiscoveryConfig struct {
	Cron               string  `mapstructure:"cron" validate:"required"`
	StartSeasonsBack   int     `mapstructure:"start_seasons_back" validate:"required,gt=0"`
	MinSupport         int     `mapstructure:"min_support" validate:"required,gt=0"`
	HoldoutSeasons     int     `mapstructure:"holdout_seasons" validate:"required,gt=0"`
	MaxInteractionSize int     `mapstructure:"max_interaction_size" validate:"required,gte=2,lte=3"`
	MaxPValue          float64 `mapstructure:"max_p_value" validate:"required,gt=0,lt=1"`
	AIProposalsPerRun  int     `mapstructure:"ai_proposals_per_run" validate:"gte=0"`
}

// EngineConfig tunes the decision pipeline and staking
type EngineConfig struct {
	Cron                string  `mapstructure:"cron" validate:"required"`
	MinEdge             float64 `mapstructure:"min_edge" validate:"required,gt=0"`
	MinEdgeWithMatch    float64 `mapstructure:"min_edge_with_match" validate:"required,gt=0"`
	MinConfidence       float64 `mapstructure:"min_confidence" validate:"required,gt=0,lt=1"`
	KellyFraction       float64 `mapstructure:"kelly_fraction" validate:"required,gt=0,lte=1"`
	StakeCap            float64 `mapstructure:"stake_cap" validate:"required,gt=0,lte=1"`
	StakeFloor          float64 `mapstructure:"stake_floor" validate:"required,gt=0"`
	KickoffLeadMinutes  int     `mapstructure:"kickoff_lead_minutes" validate:"required,gt=0"`
	InputTimeoutSeconds int     `mapstructure:"input_timeout_seconds" validate:"required,gt=0"`
	LookaheadWindowHours int    `mapstructure:"lookahead_window_hours" validate:"required,gt=0"`
}

// IngestionConfig schedules the housekeeping jobs: schedule sync,
// settlement, closing-line capture and usage mirroring
type IngestionConfig struct {
	ScheduleCron      string `mapstructure:"schedule_cron" validate:"required"`
	SettleCron        string `mapstructure:"settle_cron" validate:"required"`
	ClosingLinesCron  string `mapstructure:"closing_lines_cron" validate:"required"`
	UsageFlushCron    string `mapstructure:"usage_flush_cron" validate:"required"`
	JobTimeoutMinutes int    `mapstructure:"job_timeout_minutes" validate:"required,gt=0"`
}

// ModelConfig configures the classifier clients
type ModelConfig struct {
	InferenceURL       string `mapstructure:"inference_url"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	CacheTTLSeconds    int    `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize       int    `mapstructure:"cache_max_size" validate:"required,gt=0"`
	LocalSeed          int64  `mapstructure:"local_seed"`
	LocalEpochs        int    `mapstructure:"local_epochs" validate:"required,gt=0"`
	LocalLearningRate  float64 `mapstructure:"local_learning_rate" validate:"required,gt=0"`
}

// ReasoningConfig configures the optional AI predicate proposer
type ReasoningConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens" validate:"omitempty,gt=0"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
	RequestsPerMin int    `mapstructure:"requests_per_min" validate:"omitempty,gt=0"`
}

// BacktestConfig tunes the walk-forward loop
type BacktestConfig struct {
	StartDate          string  `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string  `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	TrainYears         int     `mapstructure:"train_years" validate:"required,gt=0"`
	ValidateYears      int     `mapstructure:"validate_years" validate:"required,gt=0"`
	InitialBankroll    float64 `mapstructure:"initial_bankroll" validate:"required,gt=0"`
	RollingWindowBets  int     `mapstructure:"rolling_window_bets" validate:"required,gt=0"`
	PatternMinSample   int     `mapstructure:"pattern_min_sample" validate:"required,gt=0"`
	PatternMinLiftPP   float64 `mapstructure:"pattern_min_lift_pp" validate:"required,gt=0"`
	PatternMaxPValue   float64 `mapstructure:"pattern_max_p_value" validate:"required,gt=0,lt=1"`
}

// StreamConfig configures the optional odds stream listener
type StreamConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URL            string `mapstructure:"url"`
	Book           string `mapstructure:"book"`
	ReconnectMax   int    `mapstructure:"reconnect_max" validate:"omitempty,gt=0"`
}

// MetricsConfig represents metrics and health endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// SecretsConfig points at the optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Source returns the settings block for one collector, or nil when the
// collector is not configured.
func (c *CollectorsConfig) Source(name string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}

// FetchTimeout returns the per-request timeout as a duration.
func (c *OrchestratorConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// RetryBase returns the backoff base as a duration.
func (c *OrchestratorConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseSeconds * float64(time.Second))
}

// BreakerCooloff returns the open-state cool-off as a duration.
func (c *OrchestratorConfig) BreakerCooloff() time.Duration {
	return time.Duration(c.BreakerCooloffSeconds) * time.Second
}

// KickoffLead returns how far before kickoff the engine must finish.
func (c *EngineConfig) KickoffLead() time.Duration {
	return time.Duration(c.KickoffLeadMinutes) * time.Minute
}

// InputTimeout returns the per-input barrier timeout.
func (c *EngineConfig) InputTimeout() time.Duration {
	return time.Duration(c.InputTimeoutSeconds) * time.Second
}
