package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"AutoNews/internal/app"
	"AutoNews/internal/config"
	"AutoNews/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "autonews",
	Short:         "Scrape car news, drop duplicates and publish the rest to Telegram",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start periodic ingestion and the delivery worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		if runOnce {
			report, err := application.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("fetched %d, enqueued %d, known links %d, duplicates %d\n",
				report.Fetched, report.Enqueued, report.KnownLinks, report.Duplicates)
			return nil
		}
		return application.Run(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $AUTONEWS_CONFIG)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single ingestion sweep and exit without delivering")

	rootCmd.AddCommand(runCmd)
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
