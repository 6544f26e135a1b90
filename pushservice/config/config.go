// --- File: pushservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/rockfish84/kakaotalk-server-backend/internal/pipeline"
)

const (
	ProviderFCM  = "fcm"
	ProviderAPNS = "apns"

	defaultListenAddr = ":3000"
)

type CorsConfig struct {
	AllowedOrigins []string
}

type APNSConfig struct {
	KeyID      string
	TeamID     string
	BundleID   string
	P8Key      string
	Production bool
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID  string
	ListenAddr string
	// ServiceAccountKey is the raw JSON of the Firebase service account.
	ServiceAccountKey string

	Provider    string
	Strategy    string
	MaxInFlight int

	CorsConfig CorsConfig
	APNS       APNSConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("PORT must be a valid port number, got %q", val)
		}
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + strconv.Itoa(port)
	}
	if val := os.Getenv("SERVICE_ACCOUNT_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "SERVICE_ACCOUNT_KEY", "source", "env")
		cfg.ServiceAccountKey = val
	}
	if val := os.Getenv("DELIVERY_PROVIDER"); val != "" {
		logger.Debug("Overriding config value", "key", "DELIVERY_PROVIDER", "source", "env")
		cfg.Provider = strings.ToLower(val)
	}
	if val := os.Getenv("DELIVERY_STRATEGY"); val != "" {
		logger.Debug("Overriding config value", "key", "DELIVERY_STRATEGY", "source", "env")
		cfg.Strategy = strings.ToLower(val)
	}
	if val := os.Getenv("MAX_IN_FLIGHT"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_IN_FLIGHT must be a positive integer, got %q", val)
		}
		logger.Debug("Overriding config value", "key", "MAX_IN_FLIGHT", "source", "env")
		cfg.MaxInFlight = n
	}

	// APNs Overrides
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		cfg.APNS.KeyID = val
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		cfg.APNS.TeamID = val
	}
	if val := os.Getenv("APNS_BUNDLE_ID"); val != "" {
		cfg.APNS.BundleID = val
	}
	if val := os.Getenv("APNS_P8_KEY"); val != "" {
		cfg.APNS.P8Key = val
	}
	if val := os.Getenv("APNS_PRODUCTION"); val != "" {
		production, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("APNS_PRODUCTION must be a boolean, got %q", val)
		}
		cfg.APNS.Production = production
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderFCM
	}
	if cfg.Strategy == "" {
		cfg.Strategy = string(pipeline.StrategyIndependent)
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = pipeline.DefaultMaxInFlight
	}
	if len(cfg.CorsConfig.AllowedOrigins) == 0 {
		cfg.CorsConfig.AllowedOrigins = []string{"*"}
	}

	// 3. Final Validation
	strategy, err := pipeline.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderFCM:
		if cfg.ServiceAccountKey == "" {
			return nil, fmt.Errorf("service account key is required for fcm (set SERVICE_ACCOUNT_KEY env var)")
		}
	case ProviderAPNS:
		if strategy == pipeline.StrategyBatched {
			return nil, fmt.Errorf("apns does not support the batched strategy")
		}
		if cfg.APNS.KeyID == "" || cfg.APNS.TeamID == "" || cfg.APNS.BundleID == "" || cfg.APNS.P8Key == "" {
			return nil, fmt.Errorf("apns requires key_id, team_id, bundle_id and APNS_P8_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown delivery provider %q (expected %q or %q)", cfg.Provider, ProviderFCM, ProviderAPNS)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
