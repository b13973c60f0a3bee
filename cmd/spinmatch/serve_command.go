package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/spinmatch/internal/api"
	"github.com/sydlexius/spinmatch/internal/api/middleware"
	"github.com/sydlexius/spinmatch/internal/config"
	"github.com/sydlexius/spinmatch/internal/version"
)

// Per-client pacing for the lookup endpoints.
const (
	clientRequestInterval = 500 * time.Millisecond
	clientRequestBurst    = 10
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg, ctx.configPath())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, configPath string) error {
	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck
	logger := a.logger
	slog.SetDefault(logger)

	// Only the logging section is applied on reload; everything else is
	// wired once at startup.
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(c *config.Config) {
				a.logManager.Reconfigure(c.Logging)
			})
			if err != nil {
				logger.Warn("config watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if a.cache != nil {
		go func() {
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					a.purgeCache(ctx)
				}
			}
		}()
	}

	router := api.NewRouter(api.RouterDeps{
		Reconciler:       a.pipeline,
		Pricer:           a.pricer,
		ProviderRegistry: a.registry,
		LogManager:       a.logManager,
		Logger:           logger,
		BasePath:         cfg.Server.BasePath,
		ClientLimiter:    middleware.NewClientRateLimiter(ctx, clientRequestInterval, clientRequestBurst),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Reconcile.Timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("base_path", cfg.Server.BasePath),
			slog.String("version", version.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
