package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cocoa-dashboard/internal/config"
)

const hookTimeout = 10 * time.Second

type GracefulServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	shutdownFn []func(ctx context.Context) error
	mu         sync.RWMutex
}

func NewGracefulServer(server *http.Server, logger *slog.Logger, config *config.Config) *GracefulServer {
	return &GracefulServer{
		server:     server,
		logger:     logger,
		config:     config,
		shutdownFn: make([]func(ctx context.Context) error, 0),
	}
}

func (gs *GracefulServer) RegisterShutdownHook(fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.shutdownFn = append(gs.shutdownFn, fn)
}

// ListenAndServe blocks until the listener fails, SIGINT/SIGTERM arrives or
// ctx is cancelled, then runs the shutdown hooks alongside http.Server.Shutdown.
func (gs *GracefulServer) ListenAndServe(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		gs.logger.Info("starting server",
			"addr", gs.server.Addr,
			"read_timeout", gs.config.Server.ReadTimeout,
			"write_timeout", gs.config.Server.WriteTimeout,
		)
		serverErrors <- gs.server.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil

	case sig := <-signals:
		gs.logger.Info("shutdown signal received", "signal", sig)

	case <-ctx.Done():
		gs.logger.Info("shutdown requested", "reason", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gs.config.Server.ShutdownTimeout)
	defer cancel()

	return gs.shutdown(shutdownCtx)
}

func (gs *GracefulServer) shutdown(ctx context.Context) error {
	gs.logger.Info("starting graceful shutdown",
		"timeout", gs.config.Server.ShutdownTimeout,
	)

	gs.mu.RLock()
	hooks := make([]func(ctx context.Context) error, len(gs.shutdownFn))
	copy(hooks, gs.shutdownFn)
	gs.mu.RUnlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(hooks)+1)

	for i, hook := range hooks {
		wg.Add(1)
		go func(idx int, fn func(ctx context.Context) error) {
			defer wg.Done()

			hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
			defer cancel()

			gs.logger.Debug("executing shutdown hook", "hook_index", idx)
			if err := fn(hookCtx); err != nil {
				gs.logger.Error("shutdown hook failed",
					"hook_index", idx,
					"error", err,
				)
				errChan <- fmt.Errorf("shutdown hook %d failed: %w", idx, err)
			} else {
				gs.logger.Debug("shutdown hook completed", "hook_index", idx)
			}
		}(i, hook)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		gs.logger.Info("stopping HTTP server")
		if err := gs.server.Shutdown(ctx); err != nil {
			gs.logger.Error("HTTP server shutdown failed", "error", err)
			errChan <- fmt.Errorf("HTTP server shutdown failed: %w", err)
		} else {
			gs.logger.Info("HTTP server stopped gracefully")
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		gs.logger.Info("graceful shutdown completed")
		close(errChan)

		var errs []error
		for err := range errChan {
			errs = append(errs, err)
		}
		return errors.Join(errs...)

	case <-ctx.Done():
		gs.logger.Warn("shutdown timeout exceeded, forcing exit")
		return ctx.Err()
	}
}
