// Package config loads trust-fabric server settings from a YAML file,
// TRUSTFABRIC_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// TRUSTFABRIC_LEDGER_DIFFICULTY.
const EnvPrefix = "TRUSTFABRIC"

// Config is the fully resolved server configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Audit  AuditConfig  `mapstructure:"audit"`
	Admin  AdminConfig  `mapstructure:"admin"`
	Log    LogConfig    `mapstructure:"log"`

	Webhooks []WebhookConfig `mapstructure:"webhooks"`
}

// ServerConfig covers the HTTP and gRPC listeners.
type ServerConfig struct {
	HTTPPort     int      `mapstructure:"http_port"`
	GRPCPort     int      `mapstructure:"grpc_port"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	RateLimitRPS int      `mapstructure:"rate_limit_rps"`
}

// LedgerConfig covers proof-of-work and the miner.
type LedgerConfig struct {
	Difficulty       int           `mapstructure:"difficulty"`
	MaxSealAttempts  uint64        `mapstructure:"max_seal_attempts"`
	AutoSealInterval time.Duration `mapstructure:"auto_seal_interval"`
	SealTimeout      time.Duration `mapstructure:"seal_timeout"`
	MinerQueueSize   int           `mapstructure:"miner_queue_size"`
}

// AuditConfig covers the background chain auditor.
type AuditConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// AdminConfig covers admin token exchange. An empty SecretHash leaves
// sealing open.
type AdminConfig struct {
	SecretHash      string        `mapstructure:"secret_hash"`
	TokenSigningKey string        `mapstructure:"token_signing_key"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	Issuer          string        `mapstructure:"issuer"`
}

// WebhookConfig is one event receiver. Empty Events means all events.
type WebhookConfig struct {
	URL    string   `mapstructure:"url"`
	Secret string   `mapstructure:"secret"`
	Events []string `mapstructure:"events"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// AdminEnabled reports whether POST /blocks requires an admin token.
func (c *Config) AdminEnabled() bool {
	return c.Admin.SecretHash != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20)

	v.SetDefault("ledger.difficulty", 2)
	v.SetDefault("ledger.max_seal_attempts", 0)
	v.SetDefault("ledger.auto_seal_interval", "0s")
	v.SetDefault("ledger.seal_timeout", "30s")
	v.SetDefault("ledger.miner_queue_size", 16)

	v.SetDefault("audit.interval", "1m")

	v.SetDefault("admin.secret_hash", "")
	v.SetDefault("admin.token_signing_key", "")
	v.SetDefault("admin.token_ttl", "1h")
	v.SetDefault("admin.issuer", "trustfabric")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration. When path is empty it looks for
// trustfabric.yaml in ./configs and the working directory; a missing file
// is not an error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trustfabric")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative")
	}
	if c.Ledger.Difficulty < 0 || c.Ledger.Difficulty > 64 {
		return fmt.Errorf("ledger.difficulty %d out of range [0, 64]", c.Ledger.Difficulty)
	}
	if c.Ledger.AutoSealInterval < 0 || c.Ledger.SealTimeout < 0 {
		return fmt.Errorf("ledger intervals must not be negative")
	}
	if c.Audit.Interval < 0 {
		return fmt.Errorf("audit.interval must not be negative")
	}
	for i, w := range c.Webhooks {
		if w.URL == "" || w.Secret == "" {
			return fmt.Errorf("webhooks[%d]: url and secret are required", i)
		}
	}
	if c.AdminEnabled() && len(c.Admin.TokenSigningKey) < 32 {
		return fmt.Errorf("admin.token_signing_key must be at least 32 bytes when admin.secret_hash is set")
	}
	return nil
}
