package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/config"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify avatars configuration settings.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.avatars/config.yaml.

An existing file is kept unless --force is given. The contract address,
base metadata URI and catalog source must be set before chain commands work.

Example:
  avatars config init
  avatars config init --contract 0x... --base-uri ipfs://CID/`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration, including environment overrides.

Example:
  avatars config show
  avatars config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by its dot-separated path.

Examples:
  avatars config get contract.address
  avatars config get network.rpc_urls
  avatars config get probe.concurrency`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by its dot-separated path and save the file.

List values take a comma-separated string.

Examples:
  avatars config set contract.address 0x...
  avatars config set network.rpc_urls https://rpc-a.example,https://rpc-b.example
  avatars config set owned.strategy logs`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	configForce    bool
	configContract string
	configBaseURI  string
	configCatalog  string
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd, configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
	configInitCmd.Flags().StringVar(&configContract, "contract", "", "NFT contract address")
	configInitCmd.Flags().StringVar(&configBaseURI, "base-uri", "", "base metadata URI for new tokens")
	configInitCmd.Flags().StringVar(&configCatalog, "catalog", "", "metadata catalog file or URL")
}

// configField reads and writes one setting as a string.
type configField struct {
	get func(c *config.Config) string
	set func(c *config.Config, value string) error
}

//nolint:gochecknoglobals // static lookup table
var configFields = map[string]configField{
	"home": stringField(func(c *config.Config) *string { return &c.Home }),

	"contract.address":        stringField(func(c *config.Config) *string { return &c.Contract.Address }),
	"contract.mint_price":     decimalField(func(c *config.Config) *string { return &c.Contract.MintPrice }),
	"contract.base_uri":       stringField(func(c *config.Config) *string { return &c.Contract.BaseURI }),
	"contract.eligible_count": intField(func(c *config.Config) *int { return &c.Contract.EligibleCount }),

	"network.chain_id":          int64Field(func(c *config.Config) *int64 { return &c.Network.ChainID }),
	"network.chain_name":        stringField(func(c *config.Config) *string { return &c.Network.ChainName }),
	"network.rpc_urls":          listField(func(c *config.Config) *[]string { return &c.Network.RPCURLs }, config.SanitizeURL),
	"network.explorer_url":      stringField(func(c *config.Config) *string { return &c.Network.ExplorerURL }),
	"network.currency.name":     stringField(func(c *config.Config) *string { return &c.Network.Currency.Name }),
	"network.currency.symbol":   stringField(func(c *config.Config) *string { return &c.Network.Currency.Symbol }),
	"network.currency.decimals": intField(func(c *config.Config) *int { return &c.Network.Currency.Decimals }),

	"catalog.source":          stringField(func(c *config.Config) *string { return &c.Catalog.Source }),
	"catalog.timeout_seconds": intField(func(c *config.Config) *int { return &c.Catalog.TimeoutSeconds }),

	"probe.concurrency":     intField(func(c *config.Config) *int { return &c.Probe.Concurrency }),
	"probe.rate_per_second": floatField(func(c *config.Config) *float64 { return &c.Probe.RatePerSecond }),
	"probe.burst":           intField(func(c *config.Config) *int { return &c.Probe.Burst }),
	"probe.timeout_seconds": intField(func(c *config.Config) *int { return &c.Probe.TimeoutSeconds }),

	"owned.strategy":   enumField(func(c *config.Config) *string { return &c.Owned.Strategy }, config.OwnedStrategyProbe, config.OwnedStrategyLogs),
	"owned.from_block": uint64Field(func(c *config.Config) *uint64 { return &c.Owned.FromBlock }),

	"wallet.keystore":                  stringField(func(c *config.Config) *string { return &c.Wallet.Keystore }),
	"wallet.authorization_ttl_minutes": intField(func(c *config.Config) *int { return &c.Wallet.AuthorizationTTLMinutes }),

	"server.address":         stringField(func(c *config.Config) *string { return &c.Server.Address }),
	"server.allowed_origins": listField(func(c *config.Config) *[]string { return &c.Server.AllowedOrigins }, strings.TrimSpace),
	"server.rate_per_minute": intField(func(c *config.Config) *int { return &c.Server.RatePerMinute }),
	"server.refresh_seconds": intField(func(c *config.Config) *int { return &c.Server.RefreshSeconds }),

	"output.default_format": enumField(func(c *config.Config) *string { return &c.Output.DefaultFormat }, "text", "json", "auto"),
	"output.color":          enumField(func(c *config.Config) *string { return &c.Output.Color }, "auto", "always", "never"),
	"output.verbose":        boolField(func(c *config.Config) *bool { return &c.Output.Verbose }),

	"logging.level": enumField(func(c *config.Config) *string { return &c.Logging.Level }, "off", "error", "info", "debug"),
	"logging.file":  stringField(func(c *config.Config) *string { return &c.Logging.File }),
}

func stringField(ref func(*config.Config) *string) configField {
	return configField{
		get: func(c *config.Config) string { return *ref(c) },
		set: func(c *config.Config, v string) error {
			*ref(c) = strings.TrimSpace(v)
			return nil
		},
	}
}

func enumField(ref func(*config.Config) *string, valid ...string) configField {
	return configField{
		get: func(c *config.Config) string { return *ref(c) },
		set: func(c *config.Config, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			for _, ok := range valid {
				if v == ok {
					*ref(c) = v
					return nil
				}
			}
			return invalidValue(v, strings.Join(valid, ", "))
		},
	}
}

func decimalField(ref func(*config.Config) *string) configField {
	return configField{
		get: func(c *config.Config) string { return *ref(c) },
		set: func(c *config.Config, v string) error {
			v = strings.TrimSpace(v)
			if _, err := chain.ParseAmount(v, chain.NativeDecimals); err != nil {
				return invalidValue(v, "a decimal amount")
			}
			*ref(c) = v
			return nil
		},
	}
}

func intField(ref func(*config.Config) *int) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.Itoa(*ref(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return invalidValue(v, "an integer")
			}
			*ref(c) = n
			return nil
		},
	}
}

func int64Field(ref func(*config.Config) *int64) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatInt(*ref(c), 10) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return invalidValue(v, "an integer")
			}
			*ref(c) = n
			return nil
		},
	}
}

func uint64Field(ref func(*config.Config) *uint64) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatUint(*ref(c), 10) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return invalidValue(v, "a non-negative integer")
			}
			*ref(c) = n
			return nil
		},
	}
}

func floatField(ref func(*config.Config) *float64) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatFloat(*ref(c), 'f', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return invalidValue(v, "a number")
			}
			*ref(c) = f
			return nil
		},
	}
}

func boolField(ref func(*config.Config) *bool) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatBool(*ref(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return invalidValue(v, "true or false")
			}
			*ref(c) = b
			return nil
		},
	}
}

func listField(ref func(*config.Config) *[]string, clean func(string) string) configField {
	return configField{
		get: func(c *config.Config) string { return strings.Join(*ref(c), ",") },
		set: func(c *config.Config, v string) error {
			var items []string
			for _, part := range strings.Split(v, ",") {
				if part = clean(part); part != "" {
					items = append(items, part)
				}
			}
			*ref(c) = items
			return nil
		},
	}
}

func invalidValue(value, valid string) error {
	return avatarerr.WithDetails(avatarerr.ErrInvalidFormat, map[string]string{"value": value, "valid": valid})
}

func unknownKey(path string) error {
	return avatarerr.WithSuggestion(
		avatarerr.WithDetails(avatarerr.ErrUnknownConfigKey, map[string]string{"path": path}),
		"run 'avatars config show' to list the available paths",
	)
}

// getConfigValue retrieves a value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	field, ok := configFields[strings.ToLower(path)]
	if !ok {
		return "", unknownKey(path)
	}
	return field.get(c), nil
}

// setConfigValue sets a value in the config using dot notation.
func setConfigValue(c *config.Config, path, value string) error {
	field, ok := configFields[strings.ToLower(path)]
	if !ok {
		return unknownKey(path)
	}
	return field.set(c, value)
}

// configValues flattens c into path/value pairs.
func configValues(c *config.Config) map[string]string {
	values := make(map[string]string, len(configFields))
	for path, field := range configFields {
		values[path] = field.get(c)
	}
	return values
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return avatarerr.WithSuggestion(
			avatarerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	defaultCfg.Contract.Address = strings.TrimSpace(configContract)
	defaultCfg.Contract.BaseURI = strings.TrimSpace(configBaseURI)
	if configCatalog != "" {
		defaultCfg.Catalog.Source = strings.TrimSpace(configCatalog)
	}

	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	if err := defaultCfg.Validate(); err != nil {
		outln(w)
		outln(w, "Before connecting, set:")
		outln(w, "  - contract.address: the Pharos Avatars contract")
		outln(w, "  - contract.base_uri: base metadata URI for minted tokens")
		outln(w, "  - catalog.source: metadata JSON file or URL")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	values := configValues(cfg)

	if formatter.IsJSON() {
		return writeJSON(w, values)
	}

	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		v := values[p]
		if v == "" {
			v = "(not set)"
		}
		out(w, "%s: %s\n", p, v)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]

	configPath := config.Path(cfg.Home)
	current, err := config.Load(configPath)
	if err != nil {
		if avatarerr.Is(err, avatarerr.ErrConfigInvalid) {
			return err
		}
		current = config.Defaults()
		current.Home = cfg.Home
	}

	if err := setConfigValue(current, path, value); err != nil {
		return err
	}
	if err := config.Save(current, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	saved, _ := getConfigValue(current, path)
	out(cmd.OutOrStdout(), "Set %s = %s\n", path, saved)
	return nil
}
