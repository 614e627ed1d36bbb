// Package config reads the bridge's environment configuration. Secrets
// live in the parameter store, not here.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Storage
	StateTable  string `env:"STATE_TABLE,required,notEmpty"`
	ParamPrefix string `env:"PARAM_PREFIX,required,notEmpty"`

	// Upstream
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	// Pipeline tuning
	DedupTTLSeconds int `env:"DEDUP_TTL_SECONDS" envDefault:"60"`
	HistoryLimit    int `env:"HISTORY_LIMIT" envDefault:"10"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}
