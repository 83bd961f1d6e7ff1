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

	"github.com/avaldezmx/promopulse/internal/config"
	"github.com/avaldezmx/promopulse/internal/notifier"
	"github.com/avaldezmx/promopulse/internal/predictor"
	"github.com/avaldezmx/promopulse/internal/processor"
	"github.com/avaldezmx/promopulse/internal/scheduler"
	"github.com/avaldezmx/promopulse/internal/scoring"
	"github.com/avaldezmx/promopulse/internal/scraper"
	"github.com/avaldezmx/promopulse/internal/storage"
	"github.com/avaldezmx/promopulse/internal/tuner"
)

// predictorCheckpointHours is where the shadow model reads each deal's early
// trajectory. Matches the tuner's golden-ratio checkpoint.
const predictorCheckpointHours = 0.5

func main() {
	slog.Info("Starting PromoPulse viral deal monitor...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		slog.Error("Critical error opening database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer store.Close()

	// Stored config overlays the built-in defaults; an unreadable store just
	// means starting from defaults.
	stored, err := store.SystemConfig(ctx)
	if err != nil {
		slog.Warn("Could not load stored config, using defaults", "error", err)
		stored = nil
	}

	shadow := predictor.NewBaseline(store, predictorCheckpointHours)
	if err := shadow.Train(ctx); err != nil {
		slog.Info("Shadow predictor starting untrained", "reason", err)
	}

	engine := scoring.NewEngine(scoring.FromMap(stored), shadow)

	broadcaster, err := notifier.NewTelegram(cfg.TelegramBotToken, cfg.FanOutLimit)
	if err != nil {
		slog.Error("Critical error creating Telegram notifier", "error", err)
		os.Exit(1)
	}

	proc := processor.New(store, scraper.New(cfg), engine, broadcaster, cfg.AdminChatIDs, cfg.TrackerBatchSize)
	sched := scheduler.New(cfg, proc, tuner.New(store, engine, shadow))

	httpServer := startHealthServer(cfg.Port)

	err = sched.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("HTTP server shutdown error", "error", shutdownErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Scheduler stopped with fatal error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

// startHealthServer serves the liveness endpoint the external supervisor
// probes. Nothing else is exposed.
func startHealthServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("Health endpoint listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server failed", "error", err)
		}
	}()
	return srv
}
