package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/pharos-avatars/internal/config"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Contract.Address = testContract
	cfg.Contract.BaseURI = "ipfs://bafybeigdyrzt/"
	return cfg
}

func TestLoadSave_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := validConfig()
	cfg.Network.RPCURLs = []string{"https://rpc.example.org"}
	cfg.Owned.Strategy = config.OwnedStrategyLogs
	cfg.Owned.FromBlock = 1200
	cfg.Output.Verbose = true

	require.NoError(t, config.Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Contract, loaded.Contract)
	assert.Equal(t, cfg.Network, loaded.Network)
	assert.Equal(t, cfg.Owned, loaded.Owned)
	assert.True(t, loaded.Output.Verbose)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contract:\n  address: "+testContract+"\n"), 0o600))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, testContract, loaded.Contract.Address)
	assert.Equal(t, config.DefaultMintPrice, loaded.Contract.MintPrice)
	assert.Equal(t, config.DefaultEligibleCount, loaded.Contract.EligibleCount)
	assert.Equal(t, config.DefaultChainID, loaded.Network.ChainID)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contract: [unclosed"), 0o600))
	_, err = config.Load(path)
	require.ErrorIs(t, err, avatarerr.ErrConfigInvalid)
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "~/.avatars", cfg.Home)
	assert.Equal(t, "0.01", cfg.Contract.MintPrice)
	assert.Equal(t, 133, cfg.Contract.EligibleCount)
	assert.Empty(t, cfg.Contract.Address)
	assert.Equal(t, int64(688688), cfg.Network.ChainID)
	assert.Equal(t, "PHRS", cfg.Network.Currency.Symbol)
	assert.Equal(t, 18, cfg.Network.Currency.Decimals)
	assert.NotEmpty(t, cfg.Network.RPCURLs)
	assert.Equal(t, config.OwnedStrategyProbe, cfg.Owned.Strategy)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestDefaults_RPCListIsCopied(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	cfg.Network.RPCURLs[0] = "mutated"
	assert.NotEqual(t, "mutated", config.DefaultRPCURLs[0])
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"missing contract", func(c *config.Config) { c.Contract.Address = "" }, "contract.address"},
		{"short contract", func(c *config.Config) { c.Contract.Address = "0x1234" }, "contract.address"},
		{"bad price", func(c *config.Config) { c.Contract.MintPrice = "cheap" }, "contract.mint_price"},
		{"negative price", func(c *config.Config) { c.Contract.MintPrice = "-1" }, "contract.mint_price"},
		{"empty base uri", func(c *config.Config) { c.Contract.BaseURI = "  " }, "contract.base_uri"},
		{"zero eligible", func(c *config.Config) { c.Contract.EligibleCount = 0 }, "contract.eligible_count"},
		{"zero chain", func(c *config.Config) { c.Network.ChainID = 0 }, "network.chain_id"},
		{"no rpc", func(c *config.Config) { c.Network.RPCURLs = nil }, "network.rpc_urls"},
		{"decimals", func(c *config.Config) { c.Network.Currency.Decimals = 6 }, "network.currency.decimals"},
		{"strategy", func(c *config.Config) { c.Owned.Strategy = "multicall" }, "owned.strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, avatarerr.ErrConfigInvalid)

			var ae *avatarerr.AvatarError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.field, ae.Details["field"])
		})
	}
}

func TestGetters(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Home = "/data/avatars"

	assert.Equal(t, filepath.Join("/data/avatars", "keystore"), cfg.GetKeystoreDir())
	cfg.Wallet.Keystore = "/keys"
	assert.Equal(t, "/keys", cfg.GetKeystoreDir())

	assert.Equal(t, config.DefaultAuthorizationTTL, cfg.GetAuthorizationTTL())
	cfg.Wallet.AuthorizationTTLMinutes = 0
	assert.Equal(t, config.DefaultAuthorizationTTL, cfg.GetAuthorizationTTL())

	cfg.Probe.TimeoutSeconds = 0
	assert.Zero(t, cfg.GetProbeTimeout())

	assert.Equal(t, config.DefaultCatalogTimeout, cfg.GetCatalogTimeout())
	cfg.Catalog.TimeoutSeconds = 5
	assert.Equal(t, 5*time.Second, cfg.GetCatalogTimeout())
	cfg.Catalog.TimeoutSeconds = -1
	assert.Equal(t, config.DefaultCatalogTimeout, cfg.GetCatalogTimeout())
}

func TestPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/home/u/.avatars", "config.yaml"), config.Path("/home/u/.avatars"))
}

func TestExpandHome(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/abs/path", config.ExpandHome("/abs/path"))
	assert.Equal(t, "relative", config.ExpandHome("relative"))

	home, err := os.UserHomeDir()
	if err == nil {
		assert.Equal(t, filepath.Join(home, "x", "y"), config.ExpandHome("~/x/y"))
	}
}
