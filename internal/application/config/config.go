package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`

	Gateway  GatewayConfig
	Poll     PollConfig
	Redis    RedisConfig
	Postgres PostgresConfig
}

type GatewayConfig struct {
	// TypingTTL - after this long a typing indicator is retracted by the server. Zero disables it.
	// Clients announce typing once per burst and do not refresh it, so a non-zero value
	// has to exceed the longest burst or it retracts users who are still typing.
	TypingTTL  time.Duration `env:"TYPING_TTL" envDefault:"0s"`
	SendBuffer int           `env:"WS_SEND_BUFFER" envDefault:"64"`
	SinkBuffer int           `env:"SINK_BUFFER" envDefault:"256"`
}

type PollConfig struct {
	Wait        time.Duration `env:"POLL_WAIT" envDefault:"25s"`
	IdleTimeout time.Duration `env:"POLL_IDLE_TIMEOUT" envDefault:"60s"`
}

type RedisConfig struct {
	URL           string `env:"REDIS_URL"`
	ChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" envDefault:"hackmate:room:"`
}

func (r *RedisConfig) Enabled() bool {
	return r.URL != ""
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"hackmate"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

// Enabled reports whether the Data Service sink should be started.
func (p *PostgresConfig) Enabled() bool {
	return p.URL != "" || p.Host != ""
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

func (c *Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}

	return slog.LevelInfo
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if c.Gateway.SendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.Gateway.SendBuffer)
	}

	if c.Gateway.SinkBuffer <= 0 {
		return nil, fmt.Errorf("SINK_BUFFER must be positive, got %d", c.Gateway.SinkBuffer)
	}

	return &c, nil
}
