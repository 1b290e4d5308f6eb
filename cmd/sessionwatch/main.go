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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	openaiadapter "github.com/ericfisherdev/sessionwatch/internal/adapter/driven/openai"
	sqliteadapter "github.com/ericfisherdev/sessionwatch/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/sessionwatch/internal/adapter/driving/http"
	"github.com/ericfisherdev/sessionwatch/internal/application"
	"github.com/ericfisherdev/sessionwatch/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"probe_timeout", cfg.ProbeTimeout,
		"verify_concurrency", cfg.VerifyConcurrency,
		"verify_interval", cfg.VerifyInterval,
		"encryption_key_set", cfg.HasEncryptionKey(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)

	probe, err := buildProbe(cfg)
	if err != nil {
		return err
	}

	// 6. Create verify service and optional background re-verification.
	verifySvc := application.NewVerifyService(
		credentialStore,
		probe,
		nil,
		cfg.VerifyConcurrency,
		slog.Default(),
	)

	if cfg.VerifyInterval > 0 {
		scheduler := application.NewVerifyScheduler(verifySvc, credentialStore, cfg.VerifyInterval, slog.Default())
		go scheduler.Start(ctx)
		slog.Info("re-verification scheduler started", "interval", cfg.VerifyInterval)
	} else {
		slog.Info("re-verification scheduler disabled")
	}

	// 7. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(credentialStore, verifySvc, probe, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("sessionwatch started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// buildProbe creates the session probe, honoring an endpoint override used
// for local testing against a stub server.
func buildProbe(cfg *config.Config) (*openaiadapter.Probe, error) {
	if cfg.SessionEndpoint == "" {
		return openaiadapter.NewProbe(cfg.ProbeTimeout), nil
	}
	client := &http.Client{Timeout: cfg.ProbeTimeout}
	return openaiadapter.NewProbeWithBaseURL(client, cfg.SessionEndpoint)
}
