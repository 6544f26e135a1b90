// --- File: pushservice/config/yaml_config.go ---
package config

import (
	"log/slog"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type YamlAPNSConfig struct {
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	BundleID   string `yaml:"bundle_id"`
	Production bool   `yaml:"production"`
}

type YamlDeliveryConfig struct {
	Provider    string `yaml:"provider"`
	Strategy    string `yaml:"strategy"`
	MaxInFlight int    `yaml:"max_in_flight"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
// Secrets (service account key, APNs P8 key) are only read from the environment.
type YamlConfig struct {
	ProjectID      string             `yaml:"project_id"`
	ListenAddr     string             `yaml:"listen_addr"`
	DeliveryConfig YamlDeliveryConfig `yaml:"delivery"`
	CorsConfig     YamlCorsConfig     `yaml:"cors"`
	APNSConfig     YamlAPNSConfig     `yaml:"apns"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:   baseCfg.ProjectID,
		ListenAddr:  baseCfg.ListenAddr,
		Provider:    baseCfg.DeliveryConfig.Provider,
		Strategy:    baseCfg.DeliveryConfig.Strategy,
		MaxInFlight: baseCfg.DeliveryConfig.MaxInFlight,
		CorsConfig: CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
		},
		APNS: APNSConfig{
			KeyID:      baseCfg.APNSConfig.KeyID,
			TeamID:     baseCfg.APNSConfig.TeamID,
			BundleID:   baseCfg.APNSConfig.BundleID,
			Production: baseCfg.APNSConfig.Production,
		},
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"provider", cfg.Provider,
		"strategy", cfg.Strategy,
	)

	return cfg, nil
}
