package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go"
	"github.com/joho/godotenv"

	"spendview/internal/api"
	"spendview/internal/config"
	apphttp "spendview/internal/http"
	"spendview/internal/log"
	"spendview/internal/session"
	"spendview/internal/storage"
)

const (
	sessionSweepInterval = time.Hour
	sessionMaxIdle       = 30 * 24 * time.Hour
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := log.New(log.Config{
		Level:     logLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		Handler: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel(cfg.LogLevel),
		}),
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSessionRepository(cfg.SessionDBPath)
	if err != nil {
		logger.Error("Failed to open session storage",
			log.FieldError, err,
			"db_path", cfg.SessionDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTokenFunc(session.TokenFromContext))

	// A few startup probes so a backend that is still coming up does
	// not kill us; after that, per-request errors are the user's
	// feedback.
	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Ping(ctx)
		},
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Backend not reachable yet",
				log.FieldAttempt, n+1,
				log.FieldEndpoint, cfg.APIBaseURL,
				log.FieldError, err)
		}),
	)
	if err != nil {
		logger.Warn("Backend still unreachable, starting anyway",
			log.FieldEndpoint, cfg.APIBaseURL,
			log.FieldError, err)
	}

	sessions := session.NewStore(repo, client, cfg.ProfileTTL(), logger)
	defer sessions.Close()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:          cfg.Addr(),
		Backend:       client,
		Sessions:      sessions,
		Logger:        logger,
		SecureCookies: cfg.SecureCookiesEnabled(),
		RateLimit:     cfg.RateLimit(),
	})
	if err != nil {
		logger.Error("Failed to build server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sessions idle past the cutoff are dead weight; sweep them out
	// periodically so the table does not grow across logins forever.
	repo.StartSweeper(ctx, sessionSweepInterval, sessionMaxIdle, logger)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			log.FieldOperation, log.OpShutdown,
			"signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting spendview",
		log.FieldOperation, log.OpStartup,
		"addr", cfg.Addr(),
		log.FieldEndpoint, cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
