package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
app:
  name: gridiron-edge
  environment: development
  log_level: info
database:
  host: localhost
  port: 5432
  name: gridiron
  user: edge
  password: ${TEST_DB_PASSWORD}
  ssl_mode: disable
  max_connections: 10
  max_idle_connections: 5
collectors:
  sources:
    - name: odds
      enabled: true
      base_url: http://localhost:9001
      daily_tokens: 500
      burst_capacity: 25
backtest:
  start_date: "2018-09-01"
  end_date: "2024-02-15"
`

func TestLoadWithDefaultsFillsSpecValues(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	path := writeTempConfig(t, minimalYAML)

	cfg, err := LoadWithDefaults(path)
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.Database.Password, "env placeholder should expand")

	assert.Equal(t, 100, cfg.Catalog.MinSampleSize)
	assert.Equal(t, 0.01, cfg.Catalog.MaxPValue)
	assert.Equal(t, 0.85, cfg.Catalog.SimilarityThreshold)
	assert.Equal(t, 0.02, cfg.Catalog.DecayMargin)

	assert.Equal(t, 4, cfg.Orchestrator.WorkersPerSource)
	assert.Equal(t, 3, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, 5, cfg.Orchestrator.BreakerFailureThreshold)
	assert.Equal(t, 60, cfg.Orchestrator.BreakerCooloffSeconds)
	assert.Equal(t, 2, cfg.Orchestrator.BreakerHalfOpenSuccesses)
	assert.Equal(t, 120, cfg.Orchestrator.EscalateLowSeconds)

	assert.Equal(t, 0.03, cfg.Engine.MinEdge)
	assert.Equal(t, 0.02, cfg.Engine.MinEdgeWithMatch)
	assert.Equal(t, 0.55, cfg.Engine.MinConfidence)
	assert.Equal(t, 0.25, cfg.Engine.KellyFraction)
	assert.Equal(t, 0.10, cfg.Engine.StakeCap)
	assert.Equal(t, 10, cfg.Engine.KickoffLeadMinutes)

	assert.Equal(t, 60, cfg.Collectors.OddsTTLFarMinutes)
	assert.Equal(t, 15, cfg.Collectors.OddsTTLNearMinutes)
	assert.Equal(t, 2, cfg.Collectors.OddsTTLFinalMinutes)

	require.NotNil(t, cfg.Collectors.Source("odds"))
	assert.Nil(t, cfg.Collectors.Source("unknown"))
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	path := writeTempConfig(t, minimalYAML)

	cfg, err := LoadWithDefaults(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	path := writeTempConfig(t, minimalYAML)

	base, err := LoadWithDefaults(path)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad environment", func(c *Config) { c.App.Environment = "chaos" }},
		{"bad log level", func(c *Config) { c.App.LogLevel = "verbose" }},
		{"dates reversed", func(c *Config) { c.Backtest.StartDate, c.Backtest.EndDate = c.Backtest.EndDate, c.Backtest.StartDate }},
		{"floor above cap", func(c *Config) { c.Engine.StakeFloor = 0.2 }},
		{"matched gate looser than base", func(c *Config) { c.Engine.MinEdgeWithMatch = 0.05 }},
		{"idle above max conns", func(c *Config) { c.Database.MaxIdleConnections = 99 }},
		{"reasoning enabled without key", func(c *Config) { c.Reasoning.Enabled = true }},
		{"production without ssl", func(c *Config) { c.App.Environment = "production" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, Validate(&cfg))
		})
	}
}

func TestSecretsOverlay(t *testing.T) {
	secretJSON := `{
		"database_password": "vaulted",
		"reasoning_api_key": "sk-test",
		"source_api_keys": {"odds": "odds-key-1", "weather": "ignored-no-source"}
	}`
	out := &secretsmanager.GetSecretValueOutput{SecretString: aws.String(secretJSON)}

	secrets, err := parseSecretData(out)
	require.NoError(t, err)

	cfg := &Config{
		Collectors: CollectorsConfig{
			Sources: []SourceConfig{{Name: "odds"}},
		},
	}
	overlaySecretsOnConfig(cfg, secrets)

	assert.Equal(t, "vaulted", cfg.Database.Password)
	assert.Equal(t, "sk-test", cfg.Reasoning.APIKey)
	assert.Equal(t, "odds-key-1", cfg.Collectors.Sources[0].APIKey)
}

func TestParseSecretDataRejectsEmpty(t *testing.T) {
	_, err := parseSecretData(&secretsmanager.GetSecretValueOutput{})
	assert.Error(t, err)
}
