// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads orchestrator settings from the environment.
//
// # Description
//
// All tunables come from environment variables with sensible defaults, so
// a bare `go run` works locally and production overrides via the container
// environment. Provider API keys are NOT loaded here; the llm package
// reads them (with /run/secrets fallback) when constructing clients.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the rate limiter and stream consumer.
const (
	defaultPort             = "8090"
	defaultMaxChunkFailures = 5
	defaultRateLimitWindow  = 60 * time.Second
	defaultRateLimitMax     = 3
	defaultBadgerPath       = "./data/posts"
	defaultKeepAlive        = 15 * time.Second
)

// Config holds all orchestrator settings.
//
// # Fields
//
//   - Port: HTTP listen port (PORT).
//   - AdminEmail: The one identity allowed to generate posts (GEN_ADMIN_EMAIL).
//   - MaxChunkFailures: Consecutive unparseable stream fragments tolerated
//     before the run aborts (GEN_MAX_CHUNK_FAILURES).
//   - RateLimitWindow: Fixed rate limit window length (GEN_RATE_LIMIT_WINDOW_SECONDS).
//   - RateLimitMax: Requests admitted per identity per window (GEN_RATE_LIMIT_MAX).
//   - KeepAliveInterval: SSE keepalive ping cadence (GEN_KEEPALIVE_SECONDS).
//   - BadgerPath: On-disk path for the draft store (BADGER_PATH).
//   - GCSProjectID, GCSBucket, GCSKeyPath: Image rehosting target; rehosting
//     is disabled when the bucket is empty (GCS_PROJECT_ID, GCS_BUCKET,
//     GCS_SA_KEY_PATH).
//   - OTLPEndpoint: Trace collector address; tracing export is disabled
//     when empty (OTEL_EXPORTER_OTLP_ENDPOINT).
type Config struct {
	Port              string
	AdminEmail        string
	MaxChunkFailures  int
	RateLimitWindow   time.Duration
	RateLimitMax      int
	KeepAliveInterval time.Duration
	BadgerPath        string
	GCSProjectID      string
	GCSBucket         string
	GCSKeyPath        string
	OTLPEndpoint      string
}

// Load reads the configuration from the environment.
//
// # Outputs
//
//   - *Config: Populated configuration.
//   - error: Non-nil when a variable is set but unparseable. Unset
//     variables never error; they take defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              envOr("PORT", defaultPort),
		AdminEmail:        os.Getenv("GEN_ADMIN_EMAIL"),
		MaxChunkFailures:  defaultMaxChunkFailures,
		RateLimitWindow:   defaultRateLimitWindow,
		RateLimitMax:      defaultRateLimitMax,
		KeepAliveInterval: defaultKeepAlive,
		BadgerPath:        envOr("BADGER_PATH", defaultBadgerPath),
		GCSProjectID:      os.Getenv("GCS_PROJECT_ID"),
		GCSBucket:         os.Getenv("GCS_BUCKET"),
		GCSKeyPath:        os.Getenv("GCS_SA_KEY_PATH"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.MaxChunkFailures, err = envInt("GEN_MAX_CHUNK_FAILURES", cfg.MaxChunkFailures); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("GEN_RATE_LIMIT_MAX", cfg.RateLimitMax); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envSeconds("GEN_RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.KeepAliveInterval, err = envSeconds("GEN_KEEPALIVE_SECONDS", cfg.KeepAliveInterval); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RehostEnabled reports whether generated images should be copied into
// GCS before the draft is persisted.
func (c *Config) RehostEnabled() bool {
	return c.GCSBucket != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer of seconds, got %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}
