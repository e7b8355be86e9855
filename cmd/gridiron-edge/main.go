// Package main provides the entry point for the gridiron-edge daemon
// and its one-shot maintenance commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/gridiron-edge/internal/app"
	"github.com/yourusername/gridiron-edge/internal/backtest"
	"github.com/yourusername/gridiron-edge/internal/models"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "gridiron-edge",
		Short:         "NFL edge discovery and pregame decision daemon",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "Path to config file")

	root.AddCommand(
		daemonCmd(),
		discoverCmd(),
		recommendCmd(),
		backtestCmd(),
		scoreCmd(),
		statusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// build wires the full application and hands back a cleanup func.
func build(ctx context.Context) (*app.App, func(), error) {
	a, err := app.New(ctx, configPath)
	if err != nil {
		return nil, nil, err
	}
	return a, a.Close, nil
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the long-lived daemon with every scheduled workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			a.Logger.WithFields(logrus.Fields{
				"environment": a.Config.App.Environment,
				"log_level":   a.Config.App.LogLevel,
			}).Info("Gridiron Edge daemon starting")

			return a.RunDaemon(ctx)
		},
	}
}

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery sweep over the historical archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := a.Discoverer.Run(ctx)
			if err != nil {
				return err
			}
			a.Logger.WithFields(logrus.Fields{
				"run_id":           run.RunID,
				"templates_done":   run.TemplatesDone,
				"candidates_found": run.CandidatesFound,
				"edges_registered": run.EdgesRegistered,
			}).Info("Discovery run complete")
			return printJSON(cmd, run)
		},
	}
}

func recommendCmd() *cobra.Command {
	var sync bool
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Evaluate upcoming games once and print the recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			a.Orchestrator.Start(ctx)
			defer a.Orchestrator.Stop()

			if sync {
				season, week := app.CurrentSeasonWeek(time.Now().UTC())
				if _, err := a.Ingestion.SyncWeek(ctx, season, week); err != nil {
					a.Logger.WithError(err).Warn("Schedule sync failed; evaluating stored games")
				}
			}

			result, err := a.Engine.Run(ctx)
			if err != nil {
				return err
			}
			a.Logger.WithFields(logrus.Fields{
				"run_id":    result.RunID,
				"evaluated": result.Evaluated,
				"skipped":   result.Skipped,
				"emitted":   len(result.Recommendations),
			}).Info("Decision run complete")
			return printJSON(cmd, result.Recommendations)
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", true, "Sync the current week's schedule before evaluating")
	return cmd
}

func backtestCmd() *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Walk the configured historical window and report performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := a.Backtester.Run(ctx)
			if err != nil {
				return err
			}

			mc := backtest.MonteCarlo{
				Iterations:      iterations,
				Seed:            a.Config.Model.LocalSeed,
				InitialBankroll: a.Config.Backtest.InitialBankroll,
			}
			simulated := mc.Run(result.Settled)

			report := struct {
				Recommendations int                       `json:"recommendations"`
				Settled         int                       `json:"settled"`
				WinRate         float64                   `json:"win_rate"`
				ROI             float64                   `json:"roi"`
				Sharpe          float64                   `json:"sharpe"`
				MaxDrawdown     float64                   `json:"max_drawdown"`
				AvgCLV          float64                   `json:"avg_clv"`
				FinalBankroll   string                    `json:"final_bankroll"`
				Candidates      int                       `json:"candidates_submitted"`
				MonteCarlo      backtest.MonteCarloResult `json:"monte_carlo"`
			}{
				Recommendations: len(result.Recommendations),
				Settled:         len(result.Settled),
				WinRate:         result.WinRate,
				ROI:             result.ROI,
				Sharpe:          result.Sharpe,
				MaxDrawdown:     result.MaxDrawdown,
				AvgCLV:          result.AvgCLV,
				FinalBankroll:   result.FinalState.Balance.StringFixed(2),
				Candidates:      result.CandidatesSubmitted,
				MonteCarlo:      simulated,
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().IntVar(&iterations, "mc-iterations", 1000, "Monte Carlo resampling iterations")
	return cmd
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Settle every due recommendation and update the bankroll",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			settled, err := a.Ingestion.SettleDue(ctx)
			if err != nil {
				return err
			}
			a.Logger.WithField("settled", settled).Info("Settlement pass complete")

			state, err := a.Repos.Bankroll.GetState(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print catalog, bankroll and API usage state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			edges, err := a.Repos.Edge.ListLatestVersions(ctx)
			if err != nil {
				return err
			}
			byStatus := map[models.EdgeStatus]int{}
			for _, e := range edges {
				byStatus[e.Status]++
			}

			state, err := a.Repos.Bankroll.GetState(ctx)
			if err != nil {
				return err
			}
			usage, err := a.Repos.APIUsage.List(ctx)
			if err != nil {
				return err
			}

			report := struct {
				Edges    map[models.EdgeStatus]int `json:"edges_by_status"`
				Bankroll *models.BankrollState     `json:"bankroll"`
				Usage    []*models.APIUsage        `json:"api_usage"`
			}{byStatus, state, usage}
			return printJSON(cmd, report)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
