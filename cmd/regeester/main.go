package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sa1dev/regeester/internal/config"
	"github.com/sa1dev/regeester/internal/forms"
	"github.com/sa1dev/regeester/internal/rest"
	"github.com/sa1dev/regeester/internal/store/postgres"
	"github.com/sa1dev/regeester/pkg/metrics"
	"github.com/sa1dev/regeester/pkg/passkey"
	"github.com/sa1dev/regeester/pkg/ratelimit"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("regeester server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	if envConfig := os.Getenv("REGEESTER_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := cfg.Logging.Logger()
	slog.SetDefault(logger)

	logger.Info("Starting server",
		"version", version,
		"rp_id", cfg.Auth.RPID,
		"port", cfg.Server.Port)

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		logger.Error("Failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	passkeyCfg := &passkey.Config{
		RPID:          cfg.Auth.RPID,
		RPDisplayName: cfg.Auth.RPDisplayName,
		RPOrigins:     cfg.Auth.RPOrigins,
	}
	passkeyCfg.SetDefaults()

	verifier, err := passkey.NewVerifier(passkeyCfg)
	if err != nil {
		logger.Error("Failed to create ceremony verifier", slog.Any("error", err))
		os.Exit(1)
	}

	tokens, err := passkey.NewTokenAuthority([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)
	if err != nil {
		logger.Error("Failed to create token authority", slog.Any("error", err))
		os.Exit(1)
	}

	passkeySvc, err := passkey.NewService(passkey.ServiceParams{
		Store:    postgres.NewPasskeyStore(db),
		Verifier: verifier,
		Tokens:   tokens,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to create passkey service", slog.Any("error", err))
		os.Exit(1)
	}

	formsSvc, err := forms.NewService(postgres.NewFormStore(db), logger)
	if err != nil {
		logger.Error("Failed to create forms service", slog.Any("error", err))
		os.Exit(1)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	defer limiter.Stop()

	srv, err := rest.New(rest.Config{
		Passkeys:       passkeySvc,
		Forms:          formsSvc,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		SecureCookies:  cfg.Auth.SecureCookies,
		MetricsEnabled: cfg.Metrics.Enabled,
		Limiter:        limiter,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("Failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx := setupSignalHandler(logger)

	if cfg.Metrics.Enabled {
		metrics.StartResourceCollector(shutdownCtx, 30*time.Second)
	} else {
		metrics.Disable()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		logger.Error("Server error", slog.Any("error", err))
	}

	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownTimeout); err != nil {
		logger.Error("Error during server shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Server stopped")
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
