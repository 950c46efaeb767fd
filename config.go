package rpc

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of clients and servers.
//
// All duration fields accept Go duration strings like "5s" in YAML.
type Config struct {
	// ThreadPoolSize is the number of procedures a server runs at once.
	ThreadPoolSize int `yaml:"threadPoolSize"`

	// MaxQueue is how many admitted requests may wait for a free worker.
	// Requests beyond ThreadPoolSize+MaxQueue are dropped.
	MaxQueue int `yaml:"maxQueue"`

	// AckTimeout bounds the wait for a server to acknowledge a request. Missing
	// it does not fail the call.
	AckTimeout time.Duration `yaml:"ackTimeout"`

	// ResultTimeout bounds the wait for the result once the ACK phase is over.
	ResultTimeout time.Duration `yaml:"resultTimeout"`

	// RetryBudget is the total number of attempts per call.
	RetryBudget int `yaml:"retryBudget"`

	// ShutdownTimeout bounds how long Run waits for running procedures once
	// the server is stopping. Zero waits until all of them finished.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// SubjectPrefix is the first token of every procedure subject.
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		ThreadPoolSize:  5,
		MaxQueue:        0,
		AckTimeout:      5 * time.Second,
		ResultTimeout:   60 * time.Second,
		RetryBudget:     3,
		ShutdownTimeout: 0,
		SubjectPrefix:   "rpc",
	}
}

// SetDefaults fills in zero values with defaults. MaxQueue and ShutdownTimeout
// keep their zero value.
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.ThreadPoolSize == 0 {
		cfg.ThreadPoolSize = defaults.ThreadPoolSize
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = defaults.AckTimeout
	}
	if cfg.ResultTimeout == 0 {
		cfg.ResultTimeout = defaults.ResultTimeout
	}
	if cfg.RetryBudget == 0 {
		cfg.RetryBudget = defaults.RetryBudget
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaults.SubjectPrefix
	}
}

// Validate checks configuration constraints.
func (cfg *Config) Validate() error {
	switch {
	case cfg.ThreadPoolSize < 1:
		return fmt.Errorf("%w: threadPoolSize must be >= 1, got %d", ErrInvalidConfig, cfg.ThreadPoolSize)
	case cfg.MaxQueue < 0:
		return fmt.Errorf("%w: maxQueue must be >= 0, got %d", ErrInvalidConfig, cfg.MaxQueue)
	case cfg.AckTimeout <= 0:
		return fmt.Errorf("%w: ackTimeout must be > 0, got %v", ErrInvalidConfig, cfg.AckTimeout)
	case cfg.ResultTimeout <= 0:
		return fmt.Errorf("%w: resultTimeout must be > 0, got %v", ErrInvalidConfig, cfg.ResultTimeout)
	case cfg.RetryBudget < 1:
		return fmt.Errorf("%w: retryBudget must be >= 1, got %d", ErrInvalidConfig, cfg.RetryBudget)
	case cfg.ShutdownTimeout < 0:
		return fmt.Errorf("%w: shutdownTimeout must be >= 0, got %v", ErrInvalidConfig, cfg.ShutdownTimeout)
	}

	return nil
}

// LoadConfig reads a YAML file, applies defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
