package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rockfish84/kakaotalk-server-backend/pushservice/config"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		raw := []byte(`
project_id: yaml-project
listen_addr: ":9000"
delivery:
  provider: apns
  strategy: independent
  max_in_flight: 16
cors:
  allowed_origins:
    - "http://yaml.com"
apns:
  key_id: KEY
  team_id: TEAM
  bundle_id: com.yaml.app
  production: true
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "apns", cfg.Provider)
		assert.Equal(t, "independent", cfg.Strategy)
		assert.Equal(t, 16, cfg.MaxInFlight)
		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, config.APNSConfig{KeyID: "KEY", TeamID: "TEAM", BundleID: "com.yaml.app", Production: true}, cfg.APNS)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{ProjectID: "minimal-project"}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.MaxInFlight)
		assert.Empty(t, cfg.ListenAddr)
		assert.Empty(t, cfg.ServiceAccountKey)
	})
}
