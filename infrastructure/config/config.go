package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"mindcanvas-backend/domain/layout"
)

// Config holds all application configuration
type Config struct {
	Environment string

	// Storage
	DataDir string

	// Logging
	LogLevel string

	// Layout tunables; overridable per deployment
	Layout layout.Config
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	layoutCfg := layout.DefaultConfig()
	layoutCfg.NodeWidth = getEnvFloat("LAYOUT_NODE_WIDTH", layoutCfg.NodeWidth)
	layoutCfg.NodeHeight = getEnvFloat("LAYOUT_NODE_HEIGHT", layoutCfg.NodeHeight)
	layoutCfg.RankSeparation = getEnvFloat("LAYOUT_RANK_SEPARATION", layoutCfg.RankSeparation)
	layoutCfg.NodeSeparation = getEnvFloat("LAYOUT_NODE_SEPARATION", layoutCfg.NodeSeparation)
	layoutCfg.Direction = layout.Direction(getEnv("LAYOUT_DIRECTION", string(layoutCfg.Direction)))

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Layout:      layoutCfg,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout configuration: %w", err)
	}
	return nil
}

// ApplyLayoutFile overlays layout tunables from a YAML file, keeping any
// value the file does not set
func (c *Config) ApplyLayoutFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read layout config: %w", err)
	}

	overlay := c.Layout
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse layout config: %w", err)
	}
	if err := overlay.Validate(); err != nil {
		return fmt.Errorf("invalid layout configuration in %s: %w", path, err)
	}

	c.Layout = overlay
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
