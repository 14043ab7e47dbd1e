// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (provider client, auth core) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Canvasa gateway.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// ExternalURL is the public origin of this gateway, used to build the
	// OAuth redirect target the provider sends the browser back to.
	ExternalURL string `env:"EXTERNAL_URL" envDefault:"http://localhost:8080"`

	// Auth provider (GoTrue-compatible REST endpoint)
	ProviderURL     string `env:"AUTH_PROVIDER_URL,required"`
	ProviderAnonKey string `env:"AUTH_PROVIDER_ANON_KEY,required"`

	// ProviderJWTSecret verifies provider access tokens (HS256). When empty,
	// the guard falls back to unverified claim inspection with expiry checks.
	ProviderJWTSecret string `env:"AUTH_PROVIDER_JWT_SECRET"`

	// Key-Value Cache (Redis). Optional: when empty the session survives only
	// for the lifetime of the process.
	RedisURL string `env:"REDIS_URL"`

	// Identity bootstrap tuning
	UserCacheMaxAge time.Duration `env:"USER_CACHE_MAX_AGE" envDefault:"30s"`
	DedupWindow     time.Duration `env:"AUTH_DEDUP_WINDOW"  envDefault:"1s"`

	// Readiness gate tuning
	GateInitialInterval time.Duration `env:"GATE_INITIAL_INTERVAL" envDefault:"150ms"`
	GateMaxInterval     time.Duration `env:"GATE_MAX_INTERVAL"     envDefault:"800ms"`
	GateMaxAttempts     int           `env:"GATE_MAX_ATTEMPTS"     envDefault:"20"`
	GateTimeout         time.Duration `env:"GATE_TIMEOUT"          envDefault:"3s"`

	// Sign-in flow tuning
	SettleDelay time.Duration `env:"AUTH_SETTLE_DELAY" envDefault:"500ms"`
	OTPCooldown time.Duration `env:"OTP_COOLDOWN"      envDefault:"60s"`

	// Session auto-refresh
	AutoRefresh   bool          `env:"AUTH_AUTO_REFRESH"   envDefault:"true"`
	RefreshMargin time.Duration `env:"AUTH_REFRESH_MARGIN" envDefault:"60s"`

	// Routing
	LandingPath string `env:"LANDING_PATH"  envDefault:"/"`
	AppHomePath string `env:"APP_HOME_PATH" envDefault:"/onboarding"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
