package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // For pprof profiling
	"os"
	"time"

	"stock_go/internal/app"
	"stock_go/internal/domain"
	"stock_go/internal/engine"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics endpoint, the trade stream and the auto-trade loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := app.NewBootstrap()
			if err := b.Initialize(configPath, os.Stdout); err != nil {
				b.Close()
				return err
			}
			defer b.Close()
			return serve(cmd.Context(), b)
		},
	}
}

func serve(ctx context.Context, b *app.Bootstrap) error {
	cfg := b.Config
	logger := b.Logger

	sched := engine.NewScheduler(256, b.Coordinator, cfg.Trading.BatchPace, func(batch domain.BatchResult) {
		logger.Info("Auto-trade batch",
			slog.String("user", batch.UserID),
			slog.Int("bought", batch.Bought),
			slog.Int("sold", batch.Sold),
			slog.Int("held", batch.Held),
			slog.Int("failed", batch.Failed),
			slog.String("cash", batch.Cash.StringFixed(2)),
		)
	}, logger)

	// 1. Pprof Server (localhost only, DefaultServeMux)
	pprofSrv := &http.Server{Addr: cfg.Metrics.PprofAddr, Handler: http.DefaultServeMux}

	// 2. Metrics + status
	mux := http.NewServeMux()
	mux.Handle("/metrics", b.Metrics.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sched.Status())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	// 3. Trade stream
	if err := b.StartStream(ctx); err != nil {
		logger.Error("Failed to start trade stream", slog.Any("error", err))
	}

	var wg conc.WaitGroup
	for _, srv := range []*http.Server{pprofSrv, metricsSrv} {
		wg.Go(func() {
			logger.Info("🕵️ HTTP server started", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", slog.String("addr", srv.Addr), slog.Any("error", err))
			}
		})
	}

	// 4. Scheduler + auto-trade loop
	wg.Go(func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("Scheduler stopped", slog.Any("error", err))
		}
	})
	if len(cfg.Trading.AutoUsers) > 0 {
		wg.Go(func() { sched.Every(ctx, cfg.Trading.AutoInterval, cfg.Trading.AutoUsers, cfg.Market.Symbols) })
		logger.Info("✅ Auto-trade loop started",
			slog.Any("users", cfg.Trading.AutoUsers),
			slog.Duration("interval", cfg.Trading.AutoInterval),
		)
	}

	logger.InfoContext(ctx, "✨ Stock Go fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{pprofSrv, metricsSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown", slog.String("addr", srv.Addr), slog.Any("error", err))
		}
	}
	wg.Wait()
	return nil
}
