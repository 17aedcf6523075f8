// Package config defines the application configuration and loads it from
// files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/pantrysnap/pantrysnap/internal/engine"
	"github.com/pantrysnap/pantrysnap/internal/pipeline"
)

// Config represents the complete configuration for the pantrysnap
// application. It covers the scan pipeline and the HTTP server, and supports
// loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Pipeline configuration
	Pipeline pipeline.Config `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Rate limiting
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Pipeline: pipeline.DefaultConfig(),
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,

			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 10000,
			MaxDataPerDay:     1 << 30,
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log_level %q (must be debug, info, warn, or error)", c.LogLevel)
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validatePipeline() error {
	p := &c.Pipeline
	if p.DefaultLang == "" {
		return fmt.Errorf("pipeline.default_lang is required")
	}
	if err := engine.Key(p.DefaultLang).Validate(); err != nil {
		return fmt.Errorf("pipeline.default_lang: %w", err)
	}
	if p.Invoker.CallTimeout <= 0 {
		return fmt.Errorf("pipeline.invoker.call_timeout must be positive, got %v", p.Invoker.CallTimeout)
	}
	if p.Invoker.Retry.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.invoker.retry.max_attempts must be at least 1, got %d", p.Invoker.Retry.MaxAttempts)
	}
	if p.Invoker.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("pipeline.invoker.breaker.failure_threshold must be at least 1, got %d",
			p.Invoker.Breaker.FailureThreshold)
	}
	if p.Invoker.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("pipeline.invoker.breaker.reset_timeout must be positive, got %v",
			p.Invoker.Breaker.ResetTimeout)
	}
	return nil
}

func (c *Config) validateServer() error {
	s := &c.Server
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port)
	}
	if s.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1, got %d", s.MaxUploadMB)
	}
	if s.TimeoutSec < 1 {
		return fmt.Errorf("server.timeout_sec must be at least 1, got %d", s.TimeoutSec)
	}
	if s.ShutdownTimeout < 1 {
		return fmt.Errorf("server.shutdown_timeout must be at least 1, got %d", s.ShutdownTimeout)
	}
	return nil
}
