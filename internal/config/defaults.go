package config

import "time"

// Target network defaults (Pharos testnet).
const (
	DefaultChainID     int64 = 688688
	DefaultChainName         = "Pharos Testnet"
	DefaultExplorerURL       = "https://testnet.pharosscan.xyz"
	DefaultMintPrice         = "0.01"

	// DefaultEligibleCount is how many catalog entries are open for minting.
	DefaultEligibleCount = 133

	// DefaultAuthorizationTTL is how long a connect approval is remembered.
	DefaultAuthorizationTTL = 24 * time.Hour

	// DefaultCatalogTimeout bounds a remote catalog fetch.
	DefaultCatalogTimeout = 30 * time.Second
)

// Owned-token discovery strategies.
const (
	OwnedStrategyProbe = "probe"
	OwnedStrategyLogs  = "logs"
)

// DefaultRPCURLs are the candidate endpoints offered when adding the network.
//
//nolint:gochecknoglobals // Configuration default, same pattern as the constants above
var DefaultRPCURLs = []string{
	"https://testnet.dplabs-internal.com",
	"https://api.zan.top/node/v1/pharos/testnet",
}

// Defaults returns the default configuration.
// The contract address and base metadata URI have no default and must be configured.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.avatars",
		Contract: ContractConfig{
			MintPrice:     DefaultMintPrice,
			EligibleCount: DefaultEligibleCount,
		},
		Network: NetworkConfig{
			ChainID:   DefaultChainID,
			ChainName: DefaultChainName,
			RPCURLs:   append([]string(nil), DefaultRPCURLs...),
			Currency: CurrencyConfig{
				Name:     "Pharos",
				Symbol:   "PHRS",
				Decimals: 18,
			},
			ExplorerURL: DefaultExplorerURL,
		},
		Catalog: CatalogConfig{
			Source:         "~/.avatars/metadata.json",
			TimeoutSeconds: int(DefaultCatalogTimeout / time.Second),
		},
		Probe: ProbeConfig{
			Concurrency:    16,
			RatePerSecond:  20,
			Burst:          20,
			TimeoutSeconds: 15,
		},
		Owned: OwnedConfig{
			Strategy: OwnedStrategyProbe,
		},
		Wallet: WalletConfig{
			AuthorizationTTLMinutes: int(DefaultAuthorizationTTL / time.Minute),
		},
		Server: ServerConfig{
			Address:        "localhost:8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
			RatePerMinute:  120,
			RefreshSeconds: 60,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.avatars/avatars.log",
		},
	}
}
