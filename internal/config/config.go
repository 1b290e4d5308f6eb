// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// SecretKey is the decoded 32-byte AES-256 key for encrypting stored
	// session secrets, nil when SESSIONWATCH_SECRET_KEY is unset. Without
	// it the app starts but credential storage is disabled.
	SecretKey []byte

	// SessionEndpoint overrides the remote identity endpoint's base URL.
	// Empty means the production endpoint; set it to point verification at
	// a stub during development.
	SessionEndpoint string

	ProbeTimeout      time.Duration
	VerifyConcurrency int

	// VerifyInterval is how often the scheduler re-verifies all stored
	// credentials. Zero disables scheduled verification; manual verify
	// endpoints still work.
	VerifyInterval time.Duration
}

// HasEncryptionKey returns true when a secret key was configured, meaning
// credential storage is usable.
func (c *Config) HasEncryptionKey() bool {
	return len(c.SecretKey) > 0
}

// Load reads configuration from environment variables and returns a
// validated Config. SESSIONWATCH_SECRET_KEY (64 hex chars) is optional; if
// absent, credential operations fail until it is provided. Optional
// variables with defaults: SESSIONWATCH_LISTEN_ADDR (127.0.0.1:8080),
// SESSIONWATCH_DB_PATH (sessionwatch.db), SESSIONWATCH_PROBE_TIMEOUT (8s),
// SESSIONWATCH_VERIFY_CONCURRENCY (4), SESSIONWATCH_VERIFY_INTERVAL (0,
// disabled).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("SESSIONWATCH_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "sessionwatch.db"
	if v, ok := os.LookupEnv("SESSIONWATCH_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("SESSIONWATCH_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("SESSIONWATCH_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("SESSIONWATCH_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	sessionEndpoint := os.Getenv("SESSIONWATCH_SESSION_ENDPOINT")

	probeTimeout := 8 * time.Second
	if v, ok := os.LookupEnv("SESSIONWATCH_PROBE_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SESSIONWATCH_PROBE_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("SESSIONWATCH_PROBE_TIMEOUT must be positive, got %q", v)
		}
		probeTimeout = parsed
	}

	verifyConcurrency := 4
	if v, ok := os.LookupEnv("SESSIONWATCH_VERIFY_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("SESSIONWATCH_VERIFY_CONCURRENCY must be a positive integer, got %q", v)
		}
		verifyConcurrency = parsed
	}

	var verifyInterval time.Duration
	if v, ok := os.LookupEnv("SESSIONWATCH_VERIFY_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SESSIONWATCH_VERIFY_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("SESSIONWATCH_VERIFY_INTERVAL must not be negative, got %q", v)
		}
		verifyInterval = parsed
	}

	return &Config{
		ListenAddr:        listenAddr,
		DBPath:            dbPath,
		SecretKey:         secretKey,
		SessionEndpoint:   sessionEndpoint,
		ProbeTimeout:      probeTimeout,
		VerifyConcurrency: verifyConcurrency,
		VerifyInterval:    verifyInterval,
	}, nil
}
