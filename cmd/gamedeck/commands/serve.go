package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/gamedeck/api"
	"github.com/use-agent/gamedeck/api/handler"
	"github.com/use-agent/gamedeck/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves an HTTP API that triggers runs and returns their reports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.Info("gamedeck starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"browser", cfg.Browser.Enabled,
		)

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		a.runner.SetNotifier(&webhook.Notifier{URL: cfg.Webhook.URL, Secret: cfg.Webhook.Secret, Async: true})

		ctx := cmd.Context()
		store := handler.NewRunStore(ctx, a.runner)
		router := api.NewRouter(ctx, store, cfg, time.Now())

		if cfg.Server.Schedule != "" {
			sched, err := api.StartSchedule(cfg.Server.Schedule, store, cfg.Catalog.Views)
			if err != nil {
				return fmt.Errorf("GAMEDECK_SCHEDULE: %w", err)
			}
			defer sched.Stop()
		}

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		}

		// Give in-flight requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}

		// The active run sees the cancelled context and winds down; its
		// snapshots are removed before the browser goes away.
		store.Wait()
		slog.Info("gamedeck stopped")
		return nil
	},
}
