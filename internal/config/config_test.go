package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOCK_TTL", "")
	t.Setenv("LOCK_SWEEP_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverCouchDB, cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Lock.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, "5432", cfg.Postgres.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("LOCK_SWEEP_INTERVAL", "1m")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 90*time.Second, cfg.Lock.TTL)
	assert.Equal(t, time.Minute, cfg.Lock.SweepInterval)
	assert.Equal(t, "6543", cfg.Postgres.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{key: "LOCK_TTL", value: "soon"},
		{key: "LOCK_TTL", value: "-1m"},
		{key: "LOCK_SWEEP_INTERVAL", value: "0s"},
		{key: "JWT_EXPIRATION", value: "forever"},
		{key: "DB_DRIVER", value: "mongo"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
