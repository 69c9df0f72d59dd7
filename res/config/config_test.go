package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "@hourly", cfg.AutoConfirmSchedule)
	assert.Equal(t, 3*time.Hour, cfg.AutoConfirmCutoff())
	assert.Equal(t, 24*time.Hour, cfg.CancellationWindow())
	assert.Equal(t, 30*time.Minute, cfg.SlotTick())
	assert.Equal(t, 10*time.Minute, cfg.DragSnap())
	assert.Equal(t, 5*time.Second, cfg.SlackTimeout())
	assert.False(t, cfg.IsProduction())
}

func TestFromViper_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_POSTGRES_URL", "postgres://localhost/dispatch")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("AUTO_CONFIRM_CUTOFF_HOURS", "6")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 6*time.Hour, cfg.AutoConfirmCutoff())
	assert.True(t, cfg.IsProduction())
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres", "AUTH_JWT_SECRET": "s"}},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "sqlite", "AUTH_JWT_SECRET": "s"}},
		{name: "missing secret", env: map[string]string{"STORE_DRIVER": "memory"}},
		{name: "zero cutoff", env: map[string]string{"STORE_DRIVER": "memory", "AUTH_JWT_SECRET": "s", "AUTO_CONFIRM_CUTOFF_HOURS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := fromViper(viper.New())
			assert.Error(t, err)
		})
	}
}
