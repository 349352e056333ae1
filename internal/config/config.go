package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/delayguard/internal/domain"
)

type ctxKey string

const configContextKey ctxKey = "delayguard.config"

const (
	DefaultPort            = 8080
	DefaultDatabasePath    = "delayguard.db"
	DefaultShutdownTimeout = "30s"
	DefaultRiverWorkers    = 2
	DefaultRiverAttempts   = 5

	// The bundled token and the escrow account it pays from.
	DefaultTokenAddress  = "0x000000000000000000000000000000000000d1a7"
	DefaultEscrowAddress = "0x000000000000000000000000000000000000e5c0"
)

// envPrefix selects DELAYGUARD_* variables.
const envPrefix = "delayguard"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Port            uint   `yaml:"port"            split_words:"true"`
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	EscrowAddress   string `yaml:"escrowAddress"   split_words:"true"`
	TokenAddress    string `yaml:"tokenAddress"    split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	RiverWorkers    int    `yaml:"riverWorkers"    split_words:"true"`
	RiverAttempts   int    `yaml:"riverAttempts"   split_words:"true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		DatabasePath:    DefaultDatabasePath,
		EscrowAddress:   DefaultEscrowAddress,
		TokenAddress:    DefaultTokenAddress,
		ShutdownTimeout: DefaultShutdownTimeout,
		RiverWorkers:    DefaultRiverWorkers,
		RiverAttempts:   DefaultRiverAttempts,
	}
}

// Load reads configFile as YAML over the defaults, then applies DELAYGUARD_*
// environment variables on top. An empty configFile skips the file.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RiverWorkers < 1 || c.RiverAttempts < 1 {
		return fmt.Errorf("river workers and attempts must be positive")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if _, err := c.Escrow(); err != nil {
		return err
	}
	if _, err := c.Token(); err != nil {
		return err
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// Escrow returns the escrow account address.
func (c *Config) Escrow() (domain.Address, error) {
	addr, err := domain.ParseAddress(c.EscrowAddress)
	if err != nil {
		return domain.Address{}, fmt.Errorf("invalid escrow address: %w", err)
	}
	if addr.IsZero() {
		return domain.Address{}, fmt.Errorf("escrow address must not be zero")
	}
	return addr, nil
}

// Token returns the address of the bundled token.
func (c *Config) Token() (domain.Address, error) {
	addr, err := domain.ParseAddress(c.TokenAddress)
	if err != nil {
		return domain.Address{}, fmt.Errorf("invalid token address: %w", err)
	}
	if addr.IsZero() {
		return domain.Address{}, fmt.Errorf("token address must not be zero")
	}
	return addr, nil
}

// ShutdownTimeoutDuration parses ShutdownTimeout.
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return d, nil
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
