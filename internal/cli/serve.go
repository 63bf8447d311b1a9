package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cocoa-dashboard/internal/middleware"
	"cocoa-dashboard/internal/observability"
	"cocoa-dashboard/internal/server"
	"cocoa-dashboard/pkg/version"

	"github.com/spf13/cobra"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdleTTL       = 5 * time.Minute
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	displayWelcomeBanner(cmd.OutOrStdout(), cfg.Address())
	logger.Info("starting application",
		"version", version.Version,
		"csv_file", cfg.Data.CSVFile,
		"cache_enabled", cfg.Data.CacheEnabled,
	)

	ctx := cmd.Context()
	analytics, err := loadAnalytics(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load CSV data", "error", err)
		return err
	}

	srv := server.NewServer(analytics, cfg.Dashboard, logger)
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      srv.Handler(cfg.Security, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	go rateLimiter.Cleanup(cleanupCtx, limiterSweepInterval, limiterIdleTTL)

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping rate limiter cleanup")
		stopCleanup()
		return nil
	})

	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}
