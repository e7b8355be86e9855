// Package app wires the daemon together: configuration, logging,
// stores, the orchestrator and every component above it. Commands build
// an App and drive whichever slice they need.
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/backtest"
	"github.com/yourusername/gridiron-edge/internal/cache"
	"github.com/yourusername/gridiron-edge/internal/catalog"
	"github.com/yourusername/gridiron-edge/internal/collectors"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/discovery"
	"github.com/yourusername/gridiron-edge/internal/engine"
	"github.com/yourusername/gridiron-edge/internal/health"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/model"
	"github.com/yourusername/gridiron-edge/internal/orchestrator"
	"github.com/yourusername/gridiron-edge/internal/reasoning"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/scheduler"
	"github.com/yourusername/gridiron-edge/internal/service"
)

// Version is stamped at build time.
var Version = "dev"

// App holds every wired component. Fields are exported so commands can
// drive exactly the slice they need.
type App struct {
	Config *config.Config
	Logger *logrus.Logger

	DB    *database.DB
	Repos *repository.Repositories
	Cache *cache.TieredCache

	Orchestrator *orchestrator.Orchestrator
	Catalog      *catalog.Catalog
	Engine       *engine.Engine
	Discoverer   *discovery.Discoverer
	Backtester   *backtest.Backtester
	Ingestion    *service.IngestionService
	History      *service.HistoryService
	Scheduler    *scheduler.Scheduler
	Health       *health.Server
	Stream       *collectors.OddsStreamListener
}

// New loads configuration, connects the stores and wires every
// component. Nothing is started; callers drive lifecycles explicitly.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Secrets.SecretName != "" {
		if err := config.LoadSecretsFromAWS(ctx, cfg, cfg.Secrets.Region, cfg.Secrets.SecretName); err != nil {
			return nil, fmt.Errorf("failed to load secrets overlay: %w", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg.App.LogLevel)
	metrics.InitRegistry()

	db, err := database.Initialize(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	tc, err := cache.New(&cfg.Cache, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache tiers: %w", err)
	}

	audit := logger.NewAuditLogger(log)
	orch := orchestrator.New(&cfg.Orchestrator, tc, log, audit)
	registerCollectors(orch, cfg)

	cat := catalog.New(&cfg.Catalog, repos.Edge, log, audit)

	provider := engine.NewLiveInputProvider(orch, repos, &cfg.Engine)
	classifier := model.NewCachedClassifier(model.NewInferenceClient(&cfg.Model, log), &cfg.Model)
	eng := engine.New(&cfg.Engine, provider, classifier, cat, repos, log)

	history := service.NewHistoryService(repos, tc, &cfg.Engine, log)

	var proposer discovery.Proposer
	if cfg.Reasoning.Enabled {
		proposer = reasoning.NewClient(&cfg.Reasoning, log)
	}
	disc := discovery.New(&cfg.Discovery, &cfg.Catalog, history, cat, proposer, repos.Discovery, log)

	bt := backtest.New(&cfg.Backtest, &cfg.Engine, &cfg.Model, history, cat, log)
	ingest := service.NewIngestionService(orch, tc.History(), cat, repos, &cfg.Engine, log)

	healthCfg := health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        strconv.Itoa(cfg.Metrics.Port),
		Logger:      log,
		MetricsPath: cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		healthCfg.Metrics = metrics.Handler()
	}
	healthSrv := health.NewServer(healthCfg)
	healthSrv.AddCheck("database", db.Ping)

	app := &App{
		Config:       cfg,
		Logger:       log,
		DB:           db,
		Repos:        repos,
		Cache:        tc,
		Orchestrator: orch,
		Catalog:      cat,
		Engine:       eng,
		Discoverer:   disc,
		Backtester:   bt,
		Ingestion:    ingest,
		History:      history,
		Scheduler:    scheduler.New(log),
		Health:       healthSrv,
	}

	if cfg.Stream.Enabled {
		app.Stream = collectors.NewOddsStreamListener(&cfg.Stream, tc, oddsTTL(cfg), log)
	}

	return app, nil
}

// registerCollectors wires one collector per enabled source block.
func registerCollectors(orch *orchestrator.Orchestrator, cfg *config.Config) {
	for i := range cfg.Collectors.Sources {
		src := &cfg.Collectors.Sources[i]
		if !src.Enabled {
			continue
		}
		var c collectors.Collector
		switch src.Name {
		case collectors.KeySchedule:
			c = collectors.NewScheduleCollector(src, &cfg.Collectors)
		case collectors.KeyOdds:
			c = collectors.NewOddsCollector(src, &cfg.Collectors)
		case collectors.KeyWeather:
			c = collectors.NewWeatherCollector(src, &cfg.Collectors)
		case collectors.KeyInjury:
			c = collectors.NewInjuryCollector(src, &cfg.Collectors)
		case collectors.KeyReferee:
			c = collectors.NewRefereeCollector(src, &cfg.Collectors)
		case collectors.KeyEfficiency:
			c = collectors.NewEfficiencyCollector(src, &cfg.Collectors)
		default:
			continue
		}
		orch.Register(c, src)
	}
}

// oddsTTL mirrors the odds collector's TTL schedule for stream writes.
func oddsTTL(cfg *config.Config) func(collectors.Request) time.Duration {
	if src := cfg.Collectors.Source(collectors.KeyOdds); src != nil {
		return collectors.NewOddsCollector(src, &cfg.Collectors).TTL
	}
	return func(collectors.Request) time.Duration {
		return time.Duration(cfg.Collectors.OddsTTLNearMinutes) * time.Minute
	}
}

// RunDaemon starts every long-lived component and blocks until the
// context is cancelled.
func (a *App) RunDaemon(ctx context.Context) error {
	a.Orchestrator.Start(ctx)
	defer a.Orchestrator.Stop()

	if err := a.Health.Start(ctx); err != nil {
		return err
	}
	defer a.Health.Shutdown()

	if a.Stream != nil {
		go func() {
			if err := a.Stream.Run(ctx); err != nil && ctx.Err() == nil {
				a.Logger.WithError(err).Error("Odds stream listener exited")
			}
		}()
		defer a.Stream.Close()
	}

	if err := a.scheduleJobs(); err != nil {
		return err
	}
	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	a.Health.SetReady(true)
	a.Logger.WithField("version", Version).Info("Daemon running")

	<-ctx.Done()
	a.Health.SetReady(false)
	a.Logger.Info("Daemon shutting down")
	return nil
}

// scheduleJobs registers every recurring cadence from config.
func (a *App) scheduleJobs() error {
	timeout := time.Duration(a.Config.Ingestion.JobTimeoutMinutes) * time.Minute

	jobs := []struct {
		name     string
		schedule string
		run      scheduler.Job
	}{
		{"decide", a.Config.Engine.Cron, func(ctx context.Context) error {
			_, err := a.Engine.Run(ctx)
			return err
		}},
		{"discover", a.Config.Discovery.Cron, func(ctx context.Context) error {
			_, err := a.Discoverer.Run(ctx)
			return err
		}},
		{"sync_schedule", a.Config.Ingestion.ScheduleCron, func(ctx context.Context) error {
			season, week := CurrentSeasonWeek(time.Now().UTC())
			_, err := a.Ingestion.SyncWeek(ctx, season, week)
			return err
		}},
		{"settle", a.Config.Ingestion.SettleCron, func(ctx context.Context) error {
			_, err := a.Ingestion.SettleDue(ctx)
			return err
		}},
		{"closing_lines", a.Config.Ingestion.ClosingLinesCron, func(ctx context.Context) error {
			a.subscribeStream(ctx)
			return a.Ingestion.CaptureClosingLines(ctx)
		}},
		{"usage_flush", a.Config.Ingestion.UsageFlushCron, a.Ingestion.FlushUsage},
	}

	for _, j := range jobs {
		if err := a.Scheduler.Schedule(j.name, j.schedule, timeout, j.run); err != nil {
			return err
		}
	}
	return nil
}

// subscribeStream points the stream listener at the games inside the
// lookahead window.
func (a *App) subscribeStream(ctx context.Context) {
	if a.Stream == nil {
		return
	}
	window := time.Duration(a.Config.Engine.LookaheadWindowHours) * time.Hour
	upcoming, err := a.Repos.Game.GetUpcoming(ctx, window)
	if err != nil {
		a.Logger.WithError(err).Warn("Failed to list games for stream subscription")
		return
	}
	for _, g := range upcoming {
		a.Stream.Subscribe(g.GameID, g.Kickoff)
	}
}

// Close releases the stores. Long-lived components are stopped by
// RunDaemon's defers.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close cache tiers")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// CurrentSeasonWeek maps an instant to the NFL season and a best-effort
// week number. Seasons are labeled by their starting year; January and
// February still belong to the prior label.
func CurrentSeasonWeek(now time.Time) (season, week int) {
	season = now.Year()
	if now.Month() < time.March {
		season--
	} else if now.Month() < time.August {
		// Offseason: point at the upcoming season's opening week.
		return season, 1
	}

	opener := time.Date(season, 9, 1, 0, 0, 0, 0, time.UTC)
	week = int(now.Sub(opener).Hours()/(24*7)) + 1
	if week < 1 {
		week = 1
	}
	if week > 22 {
		week = 22
	}
	return season, week
}
