package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/document-intake/internal/adapters/http"
	"github.com/kirillkom/document-intake/internal/bootstrap"
	"github.com/kirillkom/document-intake/internal/config"
	"github.com/kirillkom/document-intake/internal/observability/logging"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("config.dotenv.failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	if err := cfg.ValidateAPI(); err != nil {
		slog.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewAPI(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap.failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router, err := httpadapter.NewRouter(ctx, app.Analyzer, httpadapter.Options{
		Service:               "api",
		Policy:                string(app.Analyzer.Policy()),
		UnsupportedTypeStatus: cfg.UnsupportedTypeStatus,
		MaxUploadBytes:        int64(cfg.MaxUploadMB) << 20,
		RateLimitRPS:          cfg.APIRateLimitRPS,
		RateLimitBurst:        cfg.APIRateLimitBurst,
		MaxInFlight:           cfg.APIMaxInFlight,
		QueueWait:             time.Duration(cfg.APIQueueWaitMS) * time.Millisecond,
		Metrics:               app.Metrics,
	})
	if err != nil {
		slog.Error("router.init.failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api.listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api.server.failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api.shutdown.failed", "error", err)
	}
}
