package solana

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config contains the plugin's parameters.
type Config struct {
	RPCURL       string        `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	PollInterval time.Duration `envconfig:"SOLANA_POLL_INTERVAL" default:"30s"`
	// HistoryLimit caps the signatures fetched per address on each sync.
	HistoryLimit int `envconfig:"SOLANA_HISTORY_LIMIT" default:"100"`
}

// LoadConfig reads Config from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("SOLANA_POLL_INTERVAL must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return nil, errors.New("SOLANA_HISTORY_LIMIT must be positive")
	}
	return cfg, nil
}
