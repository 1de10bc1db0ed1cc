// Package config loads agent configuration from the environment.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Config holds the agent runtime configuration.
type Config struct {
	PortalURL      string        // base URL of the LINGAP portal
	DataDir        string        // directory for the local queue database
	ListenAddr     string        // localhost address for the UI API
	LogLevel       string        // debug, info, warn, error
	ProbeInterval  time.Duration // connectivity probe cadence
	RequestTimeout time.Duration // per-record upload timeout during a sync pass
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	probeStr := getEnv("PROBE_INTERVAL", "30s")
	probe, err := time.ParseDuration(probeStr)
	if err != nil {
		return nil, errors.New("invalid PROBE_INTERVAL format")
	}

	timeoutStr := getEnv("REQUEST_TIMEOUT", "15s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, errors.New("invalid REQUEST_TIMEOUT format")
	}

	cfg := &Config{
		PortalURL:      strings.TrimRight(os.Getenv("PORTAL_URL"), "/"),
		DataDir:        getEnv("DATA_DIR", "./data"),
		ListenAddr:     getEnv("LISTEN_ADDR", "127.0.0.1:8090"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ProbeInterval:  probe,
		RequestTimeout: timeout,
	}

	if cfg.PortalURL == "" {
		return nil, errors.New("PORTAL_URL is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
