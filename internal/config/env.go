package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome         = "AVATARS_HOME"
	EnvContract     = "AVATARS_CONTRACT"
	EnvBaseURI      = "AVATARS_BASE_URI"
	EnvRPC          = "AVATARS_RPC"
	EnvCatalog      = "AVATARS_CATALOG"
	EnvKeystore     = "AVATARS_KEYSTORE"
	EnvOutputFormat = "AVATARS_OUTPUT_FORMAT"
	EnvVerbose      = "AVATARS_VERBOSE"
	EnvLogLevel     = "AVATARS_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvContract); v != "" {
		cfg.Contract.Address = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvBaseURI); v != "" {
		cfg.Contract.BaseURI = strings.TrimSpace(v)
	}

	// AVATARS_RPC takes a comma-separated candidate list and replaces the configured one
	if v := os.Getenv(EnvRPC); v != "" {
		var urls []string
		for _, part := range strings.Split(v, ",") {
			if u := SanitizeURL(part); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) > 0 {
			cfg.Network.RPCURLs = urls
		}
	}

	if v := os.Getenv(EnvCatalog); v != "" {
		cfg.Catalog.Source = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvKeystore); v != "" {
		cfg.Wallet.Keystore = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace, surrounding quotes and control characters
// left over from copy-pasting an RPC URL.
func SanitizeURL(url string) string {
	url = strings.TrimSpace(url)
	url = strings.Trim(url, `"'`)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == ' ' {
			return -1
		}
		return r
	}, url)
}
