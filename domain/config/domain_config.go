package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Graph constraints
	MaxNodesPerGraph int
	MaxEdgesPerGraph int

	// Node constraints
	MaxPromptLength   int
	MaxResponseLength int
	MaxMetadataKeys   int

	// Viewport behaviour
	CullDebounce time.Duration

	// Validation settings
	AllowEmptyPrompt bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerGraph: 10000,
		MaxEdgesPerGraph: 10000,

		MaxPromptLength:   50000,
		MaxResponseLength: 200000,
		MaxMetadataKeys:   32,

		CullDebounce: 100 * time.Millisecond,

		AllowEmptyPrompt: false,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()

	// More restrictive limits for production
	cfg.MaxNodesPerGraph = 5000
	cfg.MaxEdgesPerGraph = 5000
	cfg.MaxPromptLength = 20000

	return cfg
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()

	// More permissive for development
	cfg.MaxNodesPerGraph = 100000
	cfg.MaxEdgesPerGraph = 100000
	cfg.AllowEmptyPrompt = true

	return cfg
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxNodesPerGraph <= 0 {
		return fmt.Errorf("MaxNodesPerGraph must be positive, got %d", c.MaxNodesPerGraph)
	}
	if c.MaxEdgesPerGraph <= 0 {
		return fmt.Errorf("MaxEdgesPerGraph must be positive, got %d", c.MaxEdgesPerGraph)
	}
	if c.CullDebounce < 0 {
		return fmt.Errorf("CullDebounce cannot be negative")
	}
	return nil
}
