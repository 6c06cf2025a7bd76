package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitledger/splitledger/internal/config"
	"github.com/splitledger/splitledger/internal/httpapi"
	"github.com/splitledger/splitledger/internal/service"
	"github.com/splitledger/splitledger/internal/storage/sqlite"
	"github.com/splitledger/splitledger/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("splitledger")
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.App.Name)

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DB.Path)

	events := service.LogSink{}
	groups := service.NewGroupService(store)
	expenses := service.NewExpenseService(store, events)
	settlements := service.NewSettlementService(store, events, cfg.Settlement.Expiry)
	finalizations := service.NewFinalizationService(store,
		service.RoleAuthorizer{Store: store},
		service.StoreApprovals{Store: store},
		events,
		cfg.Finalization.DeadlineDays,
	)

	api := httpapi.NewHandler(groups, expenses, settlements, finalizations)

	root := chi.NewRouter()
	root.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Participant-ID"},
	}))
	root.Handle("/metrics", promhttp.Handler())
	root.Mount("/", api.Router())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweeper(ctx, cfg.Sweep.Interval, settlements, finalizations)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	server := &http.Server{Addr: addr, Handler: root}

	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

// runSweeper periodically expires stale pending settlements and resolves
// past-deadline finalizations. Both sweeps are idempotent, so overlap with a
// restart is harmless.
func runSweeper(ctx context.Context, interval time.Duration,
	settlements *service.SettlementService, finalizations *service.FinalizationService) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := settlements.ExpireSettlements(ctx); err != nil {
				slog.Error("Settlement sweep failed", "error", err)
			}
			if err := finalizations.ProcessExpiredFinalizations(ctx); err != nil {
				slog.Error("Finalization sweep failed", "error", err)
			}
		}
	}
}
