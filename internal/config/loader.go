// Package config provides configuration management for the gridiron-edge daemon.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "GRIDIRON_EDGE"

// Load reads and parses the configuration from file and environment
// variables. Placeholders in the YAML file (${VAR_NAME}) are expanded
// before parsing.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration, filling spec defaults for every
// tunable so a minimal file still produces a runnable daemon.
func LoadWithDefaults(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gridiron-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("cache.hot_max_entries", 4096)
	v.SetDefault("cache.file_dir", "data/cache")
	v.SetDefault("cache.history_path", "data/history.db")
	v.SetDefault("cache.history_retain_days", 0)

	v.SetDefault("orchestrator.workers_per_source", 4)
	v.SetDefault("orchestrator.fetch_timeout_seconds", 10)
	v.SetDefault("orchestrator.max_retries", 3)
	v.SetDefault("orchestrator.retry_base_seconds", 1.0)
	v.SetDefault("orchestrator.breaker_failure_threshold", 5)
	v.SetDefault("orchestrator.breaker_cooloff_seconds", 60)
	v.SetDefault("orchestrator.breaker_half_open_successes", 2)
	v.SetDefault("orchestrator.escalate_low_seconds", 120)
	v.SetDefault("orchestrator.escalate_normal_seconds", 60)
	v.SetDefault("orchestrator.escalate_high_seconds", 30)
	v.SetDefault("orchestrator.default_daily_tokens", 100)
	v.SetDefault("orchestrator.queue_capacity", 1024)

	v.SetDefault("collectors.odds_ttl_far_minutes", 60)
	v.SetDefault("collectors.odds_ttl_near_minutes", 15)
	v.SetDefault("collectors.odds_ttl_final_minutes", 2)
	v.SetDefault("collectors.weather_ttl_minutes", 60)
	v.SetDefault("collectors.schedule_ttl_hours", 24)
	v.SetDefault("collectors.injury_ttl_minutes", 120)
	v.SetDefault("collectors.referee_ttl_hours", 168)
	v.SetDefault("collectors.efficiency_ttl_hours", 24)

	v.SetDefault("catalog.min_sample_size", 100)
	v.SetDefault("catalog.max_p_value", 0.01)
	v.SetDefault("catalog.similarity_threshold", 0.85)
	v.SetDefault("catalog.version_bump_min_gain_pp", 0.05)
	v.SetDefault("catalog.version_bump_sample_x", 1.5)
	v.SetDefault("catalog.decay_margin", 0.02)
	v.SetDefault("catalog.monitor_window_games", 50)
	v.SetDefault("catalog.trailing_seasons", 2)

	v.SetDefault("discovery.cron", "0 6 * * 2")
	v.SetDefault("discovery.start_seasons_back", 8)
	v.SetDefault("discovery.min_support", 100)
	v.SetDefault("discovery.holdout_seasons", 2)
	v.SetDefault("discovery.max_interaction_size", 3)
	v.SetDefault("discovery.max_p_value", 0.01)
	v.SetDefault("discovery.ai_proposals_per_run", 5)

	v.SetDefault("engine.cron", "@hourly")
	v.SetDefault("engine.min_edge", 0.03)
	v.SetDefault("engine.min_edge_with_match", 0.02)
	v.SetDefault("engine.min_confidence", 0.55)
	v.SetDefault("engine.kelly_fraction", 0.25)
	v.SetDefault("engine.stake_cap", 0.10)
	v.SetDefault("engine.stake_floor", 0.001)
	v.SetDefault("engine.kickoff_lead_minutes", 10)
	v.SetDefault("engine.input_timeout_seconds", 10)
	v.SetDefault("engine.lookahead_window_hours", 168)

	v.SetDefault("ingestion.schedule_cron", "0 */6 * * *")
	v.SetDefault("ingestion.settle_cron", "30 * * * *")
	v.SetDefault("ingestion.closing_lines_cron", "@every 5m")
	v.SetDefault("ingestion.usage_flush_cron", "@every 15m")
	v.SetDefault("ingestion.job_timeout_minutes", 30)

	v.SetDefault("model.timeout_seconds", 10)
	v.SetDefault("model.cache_ttl_seconds", 300)
	v.SetDefault("model.cache_max_size", 2048)
	v.SetDefault("model.local_seed", 1)
	v.SetDefault("model.local_epochs", 200)
	v.SetDefault("model.local_learning_rate", 0.05)

	v.SetDefault("reasoning.enabled", false)
	v.SetDefault("reasoning.max_tokens", 1024)
	v.SetDefault("reasoning.timeout_seconds", 30)
	v.SetDefault("reasoning.requests_per_min", 10)

	v.SetDefault("backtest.train_years", 4)
	v.SetDefault("backtest.validate_years", 1)
	v.SetDefault("backtest.initial_bankroll", 10000)
	v.SetDefault("backtest.rolling_window_bets", 50)
	v.SetDefault("backtest.pattern_min_sample", 20)
	v.SetDefault("backtest.pattern_min_lift_pp", 3)
	v.SetDefault("backtest.pattern_max_p_value", 0.01)

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.reconnect_max", 10)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 8080)
	v.SetDefault("metrics.path", "/metrics")
}
