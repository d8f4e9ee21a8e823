package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/retention/internal/config"
	"github.com/conorfennell/retention/internal/review"
	"github.com/conorfennell/retention/internal/storage"
	"github.com/conorfennell/retention/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:          "retention",
	Short:        "Spaced-repetition review scheduler",
	Long:         "retention schedules reviews of markdown Q/A topics per learner using SM-2.",
	SilenceUsage: true,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(dueCmd)
}

// app bundles what every command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *storage.DB
	reviews *review.Service
	syncer  *sync.Syncer
}

// openApp loads configuration from cmd's flags and opens the database.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Debug("Database opened successfully", "path", cfg.DB)

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		reviews: review.NewService(db,
			review.WithLogger(logger),
			review.WithMaxAttempts(cfg.Review.MaxAttempts),
		),
		syncer: sync.New(db, logger, cfg.ReposDir).WithProgress(os.Stderr),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close database", "error", err)
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
