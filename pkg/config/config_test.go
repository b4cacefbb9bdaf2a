package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so ambient shell state
// cannot leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "OPS_ADDR", "CJTK_SECRET",
		"AUTH_MODE", "FIREBASE_CREDENTIALS_FILE", "JWT_SECRET",
		"STORE_DRIVER", "PUSH_ENABLED",
		"EVENT_QUEUE_SIZE", "EVENT_DELIVERY_PAUSE",
		"SWEEP_INTERVAL", "SWEEP_JITTER",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CJTK_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":32782", cfg.ListenAddr)
	assert.Equal(t, "", cfg.OpsAddr, "OPS_ADDR set to empty disables the ops server")
	assert.Equal(t, "test-secret", cfg.JoinTokenSecret)
	assert.Equal(t, AuthModeFirebase, cfg.AuthMode)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.False(t, cfg.PushEnabled)
	assert.Equal(t, 256, cfg.EventQueueSize)
	assert.Equal(t, 10*time.Millisecond, cfg.EventDeliveryPause)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.SweepJitter)
}

func TestLoadOpsAddrDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("CJTK_SECRET", "test-secret")
	// t.Setenv cannot unset, and only a genuinely absent OPS_ADDR selects
	// the default. The cleanup registered by clearEnv still restores it.
	require.NoError(t, os.Unsetenv("OPS_ADDR"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.OpsAddr)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CJTK_SECRET", "test-secret")
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("OPS_ADDR", "127.0.0.1:9090")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PUSH_ENABLED", "true")
	t.Setenv("EVENT_QUEUE_SIZE", "32")
	t.Setenv("EVENT_DELIVERY_PAUSE", "0s")
	t.Setenv("SWEEP_INTERVAL", "0s")
	t.Setenv("SWEEP_JITTER", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:9090", cfg.OpsAddr)
	assert.Equal(t, AuthModeJWT, cfg.AuthMode)
	assert.Equal(t, "dev-secret", cfg.JWTSecret)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.True(t, cfg.PushEnabled)
	assert.Equal(t, 32, cfg.EventQueueSize)
	assert.Equal(t, time.Duration(0), cfg.EventDeliveryPause)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval, "SWEEP_INTERVAL=0 disables the sweeper")
	assert.Equal(t, time.Second, cfg.SweepJitter)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing join token secret", "CJTK_SECRET", "", "CJTK_SECRET is required"},
		{"unknown auth mode", "AUTH_MODE", "ldap", "invalid AUTH_MODE"},
		{"unknown store driver", "STORE_DRIVER", "sqlite", "invalid STORE_DRIVER"},
		{"non-numeric queue size", "EVENT_QUEUE_SIZE", "many", "invalid EVENT_QUEUE_SIZE"},
		{"negative queue size", "EVENT_QUEUE_SIZE", "-1", "must be positive"},
		{"malformed delivery pause", "EVENT_DELIVERY_PAUSE", "soon", "invalid EVENT_DELIVERY_PAUSE"},
		{"malformed sweep interval", "SWEEP_INTERVAL", "hourly", "invalid SWEEP_INTERVAL"},
		{"negative sweep jitter", "SWEEP_JITTER", "-5s", "must not be negative"},
		{"malformed push flag", "PUSH_ENABLED", "maybe", "invalid PUSH_ENABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.key != "CJTK_SECRET" {
				t.Setenv("CJTK_SECRET", "test-secret")
			}
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadJWTModeRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("CJTK_SECRET", "test-secret")
	t.Setenv("AUTH_MODE", "jwt")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}
