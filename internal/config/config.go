// Package config provides configuration management for the avatars client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/pharos-avatars/internal/fileutil"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// addressRegex validates hex account and contract addresses.
var addressRegex = regexp.MustCompile("^0x[0-9a-fA-F]{40}$") //nolint:gochecknoglobals // compiled once

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Contract ContractConfig `yaml:"contract"`
	Network  NetworkConfig  `yaml:"network"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Probe    ProbeConfig    `yaml:"probe"`
	Owned    OwnedConfig    `yaml:"owned"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Server   ServerConfig   `yaml:"server"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ContractConfig defines the NFT contract being minted against.
type ContractConfig struct {
	Address       string `yaml:"address"`
	MintPrice     string `yaml:"mint_price"`
	BaseURI       string `yaml:"base_uri"`
	EligibleCount int    `yaml:"eligible_count"`
}

// NetworkConfig holds the parameters used to switch to, or add, the target chain.
type NetworkConfig struct {
	ChainID     int64          `yaml:"chain_id"`
	ChainName   string         `yaml:"chain_name"`
	RPCURLs     []string       `yaml:"rpc_urls"`
	Currency    CurrencyConfig `yaml:"currency"`
	ExplorerURL string         `yaml:"explorer_url"`
}

// CurrencyConfig describes the chain's native currency.
type CurrencyConfig struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
}

// CatalogConfig points at the static metadata list.
type CatalogConfig struct {
	Source         string `yaml:"source"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ProbeConfig bounds the per-token status probes.
type ProbeConfig struct {
	Concurrency    int     `yaml:"concurrency"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// OwnedConfig selects how owned tokens are discovered.
type OwnedConfig struct {
	Strategy  string `yaml:"strategy"`
	FromBlock uint64 `yaml:"from_block"`
}

// WalletConfig defines the local wallet provider settings.
type WalletConfig struct {
	Keystore                string `yaml:"keystore"`
	AuthorizationTTLMinutes int    `yaml:"authorization_ttl_minutes"`
}

// ServerConfig defines the read-only gallery server.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RatePerMinute  int      `yaml:"rate_per_minute"`
	RefreshSeconds int      `yaml:"refresh_seconds"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, avatarerr.WithCause(avatarerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks the settings every chain operation depends on.
func (c *Config) Validate() error {
	invalid := func(field, reason string) error {
		return avatarerr.WithDetails(avatarerr.ErrConfigInvalid, map[string]string{
			"field":  field,
			"reason": reason,
		})
	}

	if !addressRegex.MatchString(c.Contract.Address) {
		return avatarerr.WithSuggestion(
			invalid("contract.address", "must be a 0x-prefixed 20-byte hex address"),
			"set it with 'avatars config set contract.address 0x...' or AVATARS_CONTRACT",
		)
	}
	price, err := decimal.NewFromString(c.Contract.MintPrice)
	if err != nil || price.IsNegative() {
		return invalid("contract.mint_price", "must be a non-negative decimal")
	}
	if strings.TrimSpace(c.Contract.BaseURI) == "" {
		return invalid("contract.base_uri", "must not be empty")
	}
	if c.Contract.EligibleCount <= 0 {
		return invalid("contract.eligible_count", "must be positive")
	}
	if c.Network.ChainID <= 0 {
		return invalid("network.chain_id", "must be positive")
	}
	if len(c.Network.RPCURLs) == 0 {
		return invalid("network.rpc_urls", "at least one RPC URL is required")
	}
	if c.Network.Currency.Decimals != 18 {
		return invalid("network.currency.decimals", "native currency must use 18 decimals")
	}
	switch c.Owned.Strategy {
	case OwnedStrategyProbe, OwnedStrategyLogs:
	default:
		return invalid("owned.strategy", fmt.Sprintf("unknown strategy %q", c.Owned.Strategy))
	}
	return nil
}

// GetHome returns the avatars home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetKeystoreDir returns the wallet keystore directory, expanded.
func (c *Config) GetKeystoreDir() string {
	if c.Wallet.Keystore != "" {
		return ExpandHome(c.Wallet.Keystore)
	}
	return filepath.Join(ExpandHome(c.Home), "keystore")
}

// GetAuthorizationTTL returns how long a connect approval stays valid.
func (c *Config) GetAuthorizationTTL() time.Duration {
	if c.Wallet.AuthorizationTTLMinutes <= 0 {
		return DefaultAuthorizationTTL
	}
	return time.Duration(c.Wallet.AuthorizationTTLMinutes) * time.Minute
}

// GetProbeTimeout returns the per-token probe timeout.
func (c *Config) GetProbeTimeout() time.Duration {
	if c.Probe.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// GetCatalogTimeout returns the remote catalog fetch timeout.
func (c *Config) GetCatalogTimeout() time.Duration {
	if c.Catalog.TimeoutSeconds <= 0 {
		return DefaultCatalogTimeout
	}
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default avatars home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".avatars"
	}
	return filepath.Join(home, ".avatars")
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
