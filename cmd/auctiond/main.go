package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openrealms/auctionhouse/internal/api"
	"github.com/openrealms/auctionhouse/internal/auction"
	"github.com/openrealms/auctionhouse/internal/clock"
	"github.com/openrealms/auctionhouse/internal/config"
	"github.com/openrealms/auctionhouse/internal/economy"
	"github.com/openrealms/auctionhouse/internal/escrow"
	"github.com/openrealms/auctionhouse/internal/health"
	"github.com/openrealms/auctionhouse/internal/leader"
	"github.com/openrealms/auctionhouse/internal/store"
	"github.com/openrealms/auctionhouse/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/openrealms/auctionhouse/internal/store/entstore"
	_ "github.com/openrealms/auctionhouse/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open the durable store using the configured driver (sqlx or ent).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	// Economy collaborators. The in-memory implementations serve
	// single-process deployments; game-server integrations swap them for
	// RPC-backed ones.
	bank := economy.NewBank()
	stock := economy.NewStockroom()
	notifier := economy.LogNotifier{Logger: logger}
	ledger := escrow.NewLedger(bank, stock)

	engine := auction.New(cfg.Auction, ledger, repos.Events, repos.Settlements, notifier,
		logger, tp.TracerProvider, clk)

	// Rebuild open listings from the journal before serving traffic.
	if n, recoverErr := engine.Recover(ctx); recoverErr != nil {
		return fmt.Errorf("recovering listings: %w", recoverErr)
	} else if n > 0 {
		logger.InfoContext(ctx, "recovered open listings", slog.Int("count", n))
	}

	// Setup health checks. The sweeper staleness check tolerates three
	// missed intervals before reporting unhealthy.
	sweepInterval := cfg.Auction.SweepInterval.Std()
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
		health.Staleness("sweeper", clk, 3*sweepInterval, engine.LastSweep),
	)

	// HTTP server: public API plus health endpoints, on all replicas.
	apiHandler := api.NewHandler(engine, repos.Settlements, logger)
	router := apiHandler.Routes()
	router.HandleFunc("/healthz", healthHandler.LivenessHandler())
	router.HandleFunc("/readyz", healthHandler.ReadinessHandler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	// runSweeper is the periodic expiry sweep that only the leader runs.
	runSweeper := func(ctx context.Context) {
		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auctiond sweeping (leader)", slog.String("version", version))

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				healthHandler.SetReady(false)
				return
			case <-ticker.C:
				if _, sweepErr := engine.Sweep(ctx); sweepErr != nil {
					logger.ErrorContext(ctx, "sweep error", slog.Any("error", sweepErr))
				}
			}
		}
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, runSweeper, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		runSweeper(ctx)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
