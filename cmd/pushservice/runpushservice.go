// --- File: cmd/pushservice/runpushservice.go ---
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/rockfish84/kakaotalk-server-backend/internal/platform/apns"
	"github.com/rockfish84/kakaotalk-server-backend/internal/platform/fcm"
	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
	"github.com/rockfish84/kakaotalk-server-backend/pushservice"
	"github.com/rockfish84/kakaotalk-server-backend/pushservice/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "push-fanout-service")
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", "err", err)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Delivery Provider ---
	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize delivery provider", "provider", cfg.Provider, "err", err)
		os.Exit(1)
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Service ---
	service, err := pushservice.New(cfg, provider, reg, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...")
		errCh <- service.Start(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Service failed", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("Received signal, shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Service shutdown with error", "err", err)
		}
	}
}

func newProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dispatch.Provider, error) {
	switch cfg.Provider {
	case config.ProviderAPNS:
		apnsDispatcher, err := apns.NewDispatcher(apns.Config{
			KeyID:        cfg.APNS.KeyID,
			TeamID:       cfg.APNS.TeamID,
			BundleID:     cfg.APNS.BundleID,
			P8KeyContent: cfg.APNS.P8Key,
			Production:   cfg.APNS.Production,
		}, logger)
		if err != nil {
			return nil, err
		}
		return apnsDispatcher, nil
	case config.ProviderFCM:
		fbApp, err := firebase.NewApp(ctx,
			&firebase.Config{ProjectID: cfg.ProjectID},
			option.WithCredentialsJSON([]byte(cfg.ServiceAccountKey)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase App: %w", err)
		}
		fcmMessaging, err := fbApp.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create FCM messaging client: %w", err)
		}
		return fcm.NewDispatcher(fcmMessaging, logger), nil
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", cfg.Provider)
	}
}
