package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Zero(t, cfg.Gateway.TypingTTL, "server typing expiry is opt-in")
	assert.Equal(t, 64, cfg.Gateway.SendBuffer)
	assert.Equal(t, 25*time.Second, cfg.Poll.Wait)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Postgres.Enabled())
}

func TestNewRejectsNonPositiveBuffer(t *testing.T) {
	t.Setenv("WS_SEND_BUFFER", "0")

	_, err := New()
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  PostgresConfig
		want string
	}{
		{
			name: "url wins",
			cfg:  PostgresConfig{URL: "postgres://x", Host: "db"},
			want: "postgres://x",
		},
		{
			name: "assembled from parts",
			cfg: PostgresConfig{
				Host: "db", Port: 5433, User: "u", Password: "p", Name: "hm", SSL: "require",
			},
			want: "postgresql://u:p@db:5433/hm?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
			assert.True(t, tt.cfg.Enabled())
		})
	}
}
