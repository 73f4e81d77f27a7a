package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/config"
	"github.com/mrz1836/pharos-avatars/internal/metrics"
	"github.com/mrz1836/pharos-avatars/internal/output"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
)

const (
	testMnemonic   = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testAddress    = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testPassphrase = "correct horse battery staple"
	testContract   = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

// withTestGlobals installs a fresh configuration rooted in a temp directory
// and restores the previous globals on cleanup.
func withTestGlobals(t *testing.T, format output.Format) *config.Config {
	t.Helper()

	origCfg, origLogger, origFormatter, origCollector := cfg, logger, formatter, collector
	origWalletOpts, origYes := walletOptionsFn, assumeYes
	t.Cleanup(func() {
		cfg, logger, formatter, collector = origCfg, origLogger, origFormatter, origCollector
		walletOptionsFn, assumeYes = origWalletOpts, origYes
	})

	cfg = config.Defaults()
	cfg.Home = t.TempDir()
	logger = config.NullLogger()
	formatter = output.NewFormatter(format, io.Discard)
	collector = metrics.New()
	assumeYes = false
	walletOptionsFn = func(c *config.Config) wallet.Options {
		opts := defaultWalletOptions(c)
		opts.ScryptN = keystore.LightScryptN
		opts.ScryptP = keystore.LightScryptP
		return opts
	}
	return cfg
}

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, password string, confirm bool, line string) {
	t.Helper()
	origPW, origConfirm, origLine := promptPasswordFn, promptConfirmFn, promptLineFn
	t.Cleanup(func() {
		promptPasswordFn, promptConfirmFn, promptLineFn = origPW, origConfirm, origLine
	})
	promptPasswordFn = func(string) (string, error) { return password, nil }
	promptConfirmFn = func(string) (bool, error) { return confirm, nil }
	promptLineFn = func(string) (string, error) { return line, nil }
}

// newTestCmd returns a bare command writing to the returned buffer.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	return cmd, buf
}
