package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/slosh/config"
	"github.com/pthm-cable/slosh/runner"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	resume := flag.String("resume", "", "Snapshot file to resume from")
	seed := flag.Int64("seed", 0, "RNG seed for particle placement (0 = use config)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg().Override(*seed, *workers)

	r, err := runner.New(cfg, runner.Options{
		LogStats:    *logStats,
		SnapshotDir: *snapshotDir,
		OutputDir:   *outputDir,
		Resume:      *resume,
		MaxTicks:    *maxTicks,
	})
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := r.Run(ctx)
	stop()

	if err := r.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		slog.Error("simulation failed", "error", runErr)
		os.Exit(1)
	}
}
