package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aretelabs/arete/internal/config"
	"github.com/aretelabs/arete/internal/service"
	"github.com/aretelabs/arete/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepThreshold float64

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a one-off archive sweep and exit",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().Float64Var(&sweepThreshold, "threshold", 0, "effective-confidence floor (0 uses the configured default)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	docs := store.NewDocumentStore(pool)
	if err := docs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	facts := service.NewFactService(docs, config.Namespace(), logger)
	facts.SetHalfLife(config.HalfLifeDays())

	sweeper := service.NewSweeperService(facts, logger)
	sweeper.SetThreshold(config.ArchiveThreshold())

	result, err := sweeper.Sweep(ctx, sweepThreshold)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	logger.Info("sweep finished",
		zap.Int("archived", result.ArchivedCount),
		zap.Int("remaining", result.RemainingCount))
	fmt.Printf("archived %d fact(s), %d remain active\n", result.ArchivedCount, result.RemainingCount)
	return nil
}
