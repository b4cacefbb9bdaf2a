// Package config loads server settings from environment variables. The
// database pool keeps its own DB_* family in pkg/database; everything
// else the process needs is gathered here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Auth modes. Firebase is what deployed instances run; the JWT mode
// verifies HS256 tokens against a shared secret for development.
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds process-level settings.
type Config struct {
	// ListenAddr is the TCP address the game protocol listens on.
	ListenAddr string
	// OpsAddr is the HTTP address for the ops surface. Empty disables it.
	OpsAddr string

	// JoinTokenSecret signs chat invite tokens and push topic names.
	JoinTokenSecret string

	// AuthMode selects the ID token verifier.
	AuthMode string
	// FirebaseCredentialsFile points at a service account JSON file.
	// Empty selects application default credentials.
	FirebaseCredentialsFile string
	// JWTSecret is the HS256 secret for AuthModeJWT.
	JWTSecret string

	StoreDriver string

	// PushEnabled turns on FCM topic notifications for chat messages.
	PushEnabled bool

	EventQueueSize     int
	EventDeliveryPause time.Duration

	// SweepInterval is the background settlement cadence. Zero disables
	// the sweeper; assertions then settle only lazily, on reads.
	SweepInterval time.Duration
	SweepJitter   time.Duration
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	queueSize, err := strconv.Atoi(getEnvOrDefault("EVENT_QUEUE_SIZE", "256"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid EVENT_QUEUE_SIZE: %w", err)
	}

	deliveryPause, err := time.ParseDuration(getEnvOrDefault("EVENT_DELIVERY_PAUSE", "10ms"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid EVENT_DELIVERY_PAUSE: %w", err)
	}

	sweepInterval, err := time.ParseDuration(getEnvOrDefault("SWEEP_INTERVAL", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	sweepJitter, err := time.ParseDuration(getEnvOrDefault("SWEEP_JITTER", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SWEEP_JITTER: %w", err)
	}

	pushEnabled, err := strconv.ParseBool(getEnvOrDefault("PUSH_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PUSH_ENABLED: %w", err)
	}

	// OPS_ADDR set to the empty string disables the ops server, which is
	// why this one cannot go through getEnvOrDefault.
	opsAddr := ":8080"
	if v, ok := os.LookupEnv("OPS_ADDR"); ok {
		opsAddr = v
	}

	cfg := Config{
		ListenAddr:              getEnvOrDefault("LISTEN_ADDR", ":32782"),
		OpsAddr:                 opsAddr,
		JoinTokenSecret:         os.Getenv("CJTK_SECRET"),
		AuthMode:                getEnvOrDefault("AUTH_MODE", AuthModeFirebase),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		StoreDriver:             getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres),
		PushEnabled:             pushEnabled,
		EventQueueSize:          queueSize,
		EventDeliveryPause:      deliveryPause,
		SweepInterval:           sweepInterval,
		SweepJitter:             sweepJitter,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that would misconfigure
// the server.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}
	if c.JoinTokenSecret == "" {
		return fmt.Errorf("CJTK_SECRET is required")
	}

	switch c.AuthMode {
	case AuthModeFirebase:
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=%s", AuthModeJWT)
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE %q, expected %s or %s", c.AuthMode, AuthModeFirebase, AuthModeJWT)
	}

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q, expected %s or %s", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}

	if c.EventQueueSize <= 0 {
		return fmt.Errorf("event queue size must be positive, got %d", c.EventQueueSize)
	}
	if c.EventDeliveryPause < 0 {
		return fmt.Errorf("event delivery pause must not be negative, got %v", c.EventDeliveryPause)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep interval must not be negative, got %v", c.SweepInterval)
	}
	if c.SweepJitter < 0 {
		return fmt.Errorf("sweep jitter must not be negative, got %v", c.SweepJitter)
	}

	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
