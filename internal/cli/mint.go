package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/dapp"
	"github.com/mrz1836/pharos-avatars/internal/mint"
	"github.com/mrz1836/pharos-avatars/internal/output"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var mintCmd = &cobra.Command{
	Use:   "mint <token-id>",
	Short: "Mint an available avatar",
	Long: `Mint one avatar to the connected account at the fixed price.

The wallet is first moved to the Pharos network, adding it when needed.
That switch stays in place even when the mint is then refused, for
example for an insufficient balance. The gallery and balance are refreshed next, so an avatar that was
minted in the meantime, or a balance below the price, is rejected before
the wallet is asked to sign. After the transaction is mined the gallery
and balance are refreshed again, and the token id the contract assigned is
checked against the one requested.

Example:
  avatars mint 7`,
	Args: cobra.ExactArgs(1),
	RunE: runMint,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(mintCmd)
}

func runMint(cmd *cobra.Command, args []string) error {
	tokenID, err := strconv.Atoi(args[0])
	if err != nil {
		return avatarerr.WithDetails(avatarerr.ErrInvalidInput, map[string]string{"token_id": args[0]})
	}

	ctx, cancel := contextWithTimeout(cmd, mintTimeout)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.requireConnected(); err != nil {
		return err
	}
	if err := a.session.EnsureNetwork(ctx); err != nil {
		return err
	}
	if _, err := a.session.RefreshBalance(ctx); err != nil {
		return err
	}
	if _, err := a.refresh(ctx); err != nil {
		return err
	}

	out(os.Stderr, "Minting avatar #%d for %s...\n", tokenID, formatPrice())
	result, err := a.workflow.Mint(ctx, tokenID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, result)
	}
	return writeMintText(cmd, result, a.store.Status())
}

func writeMintText(cmd *cobra.Command, result *mint.Result, status dapp.Status) error {
	w := cmd.OutOrStdout()
	if err := commandFormatter(cmd).Banner(bannerKind(status.Kind), status.Message); err != nil {
		return err
	}
	if result.IDMismatch() {
		output.Warnf(w, "requested avatar #%d but the contract minted token #%d; its metadata is %s",
			result.TokenID, *result.MintedTokenID, result.TokenURI)
	}
	out(w, "  Token URI: %s\n", result.TokenURI)
	if result.Block != nil {
		out(w, "  Block:     %s\n", result.Block.String())
	}
	if link := explorerTxURL(result.TxHash.Hex()); link != "" {
		out(w, "  Explorer:  %s\n", link)
	}
	if result.Balance != "" {
		out(w, "  Balance:   %s %s\n", result.Balance, cfg.Network.Currency.Symbol)
	}
	if !result.Refreshed {
		output.Warnf(w, "gallery could not be refreshed; run 'avatars gallery' to see the new state")
	}
	return nil
}
