package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config carries the injected endpoints for the two collaborator surfaces:
// the request/response API and the realtime event channel.
type Config struct {
	APIURL         string        `env:"PEREPISKA_API_URL,default=http://localhost:5000"`
	WSURL          string        `env:"PEREPISKA_WS_URL,default=ws://localhost:5000/ws"`
	RequestTimeout time.Duration `env:"PEREPISKA_REQUEST_TIMEOUT,default=10s"`
	ReconnectDelay time.Duration `env:"PEREPISKA_RECONNECT_DELAY,default=2s"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("PEREPISKA_API_URL is required")
	}
	if c.WSURL == "" {
		return fmt.Errorf("PEREPISKA_WS_URL is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("PEREPISKA_REQUEST_TIMEOUT must be greater than 0")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("PEREPISKA_RECONNECT_DELAY must be greater than 0")
	}
	return nil
}
