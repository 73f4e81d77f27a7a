package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/nft"
	"github.com/mrz1836/pharos-avatars/internal/output"
	"github.com/mrz1836/pharos-avatars/internal/session"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	connectCmd = &cobra.Command{
		Use:   "connect",
		Short: "Connect a wallet account",
		Long: `Ask the wallet to authorize an account, move it to the Pharos network
(adding the network first when the wallet does not know it) and load the
account balance. The avatars the account already owns are listed once
connected.

An authorization lasts wallet.authorization_ttl_minutes; later commands
reuse it without prompting.`,
		Args: cobra.NoArgs,
		RunE: runConnect,
	}

	disconnectCmd = &cobra.Command{
		Use:   "disconnect",
		Short: "Revoke the account authorization",
		Args:  cobra.NoArgs,
		RunE:  runDisconnect,
	}

	balanceCmd = &cobra.Command{
		Use:   "balance",
		Short: "Show the connected account's balance",
		Args:  cobra.NoArgs,
		RunE:  runBalance,
	}

	networkCmd = &cobra.Command{
		Use:   "network",
		Short: "Inspect or switch the wallet network",
		Long:  `Show the networks the wallet knows, or move it to the Pharos network.`,
	}

	networkShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the active and known networks",
		Args:  cobra.NoArgs,
		RunE:  runNetworkShow,
	}

	networkEnsureCmd = &cobra.Command{
		Use:   "ensure",
		Short: "Switch the wallet to the Pharos network, adding it if needed",
		Args:  cobra.NoArgs,
		RunE:  runNetworkEnsure,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd, disconnectCmd, balanceCmd, networkCmd)
	networkCmd.AddCommand(networkShowCmd, networkEnsureCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, walletTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.session.Connect(ctx)
	if err != nil {
		return err
	}

	resp := ConnectResponse{Session: state, Owned: []nft.Record{}}
	if owned, err := a.connectedOwned(ctx, state.Address); err != nil {
		logger.Error("owned avatars lookup failed: %v", err)
		resp.OwnedError = err.Error()
	} else {
		resp.Owned = owned
	}

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, resp)
	}
	return writeConnectText(w, resp)
}

// ConnectResponse is the JSON output of connect.
type ConnectResponse struct {
	Session    session.State `json:"session"`
	Owned      []nft.Record  `json:"owned"`
	OwnedError string        `json:"ownedError,omitempty"`
}

// connectedOwned loads the catalog and lists the avatars the newly connected
// account holds. A failure here leaves the connection itself intact.
func (a *app) connectedOwned(ctx context.Context, owner common.Address) ([]nft.Record, error) {
	if a.resolver == nil {
		if err := a.loadGallery(ctx); err != nil {
			return nil, err
		}
	}
	return lookupOwned(ctx, a.gateway, a.resolver, owner)
}

func writeConnectText(w io.Writer, resp ConnectResponse) error {
	writeSessionText(w, resp.Session, cfg.Network.Currency.Symbol)
	outln(w)
	if resp.OwnedError != "" {
		output.Warnf(w, "owned avatars could not be loaded: %s", resp.OwnedError)
		return nil
	}
	return writeOwnedText(w, resp.Session.Address, resp.Owned)
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, walletTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	state := a.session.State()
	if err := a.session.Disconnect(ctx); err != nil {
		return err
	}

	f := commandFormatter(cmd)
	if !state.Connected {
		return f.Banner(output.BannerInfo, "No account was connected")
	}
	return f.Banner(output.BannerSuccess, "Disconnected "+state.Address.Hex())
}

func runBalance(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, walletTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.requireConnected(); err != nil {
		return err
	}
	if err := a.requireTargetChain(ctx); err != nil {
		return err
	}
	state, err := a.session.RefreshBalance(ctx)
	if err != nil {
		return err
	}
	return printSession(cmd, state)
}

// printSession shows the connection status line: address, chain and balance.
func printSession(cmd *cobra.Command, state session.State) error {
	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, state)
	}
	writeSessionText(w, state, cfg.Network.Currency.Symbol)
	return nil
}

func writeSessionText(w io.Writer, state session.State, symbol string) {
	if !state.Connected {
		outln(w, "Not connected")
		return
	}
	balance := state.Balance
	if balance == "" {
		balance = "unknown"
	}
	out(w, "Account: %s\n", state.Address.Hex())
	out(w, "Network: %s\n", chainLabel(state.ChainID))
	out(w, "Balance: %s %s\n", balance, symbol)
}

func chainLabel(id int64) string {
	if id == cfg.Network.ChainID {
		return cfg.Network.ChainName + " (" + strconv.FormatInt(id, 10) + ")"
	}
	return "chain " + strconv.FormatInt(id, 10)
}

// NetworkShowResponse is the JSON output of network show.
type NetworkShowResponse struct {
	Active   int64                `json:"active"`
	Target   int64                `json:"target"`
	OnTarget bool                 `json:"on_target"`
	Known    []wallet.ChainParams `json:"known"`
}

func runNetworkShow(cmd *cobra.Command, _ []string) error {
	provider, err := openWallet(false)
	if err != nil {
		return err
	}
	defer provider.Close()

	registry := provider.Networks()
	resp := NetworkShowResponse{
		Active: registry.Active(),
		Target: cfg.Network.ChainID,
		Known:  registry.Known(),
	}
	resp.OnTarget = resp.Active == resp.Target

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, resp)
	}

	table := output.NewTable("", "CHAIN", "NAME", "SYMBOL", "RPC")
	for _, n := range resp.Known {
		marker := ""
		if n.ChainID == resp.Active {
			marker = "*"
		}
		rpc := "-"
		if len(n.RPCURLs) > 0 {
			rpc = n.RPCURLs[0]
		}
		table.AddRow(marker, strconv.FormatInt(n.ChainID, 10), n.ChainName, n.Currency.Symbol, rpc)
	}
	table.SetMaxWidth(48)
	if err := table.Render(w); err != nil {
		return err
	}
	outln(w)
	if !resp.OnTarget {
		out(w, "Wallet is not on %s. Run 'avatars network ensure'.\n", chainLabel(resp.Target))
	}
	return nil
}

func runNetworkEnsure(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, walletTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.session.EnsureNetwork(ctx); err != nil {
		return err
	}
	return commandFormatter(cmd).Banner(output.BannerSuccess, "Wallet is on "+chainLabel(cfg.Network.ChainID))
}

// formatPrice renders the configured mint price with the currency symbol.
func formatPrice() string {
	price, err := chain.ParseAmount(cfg.Contract.MintPrice, chain.NativeDecimals)
	if err != nil {
		return cfg.Contract.MintPrice + " " + cfg.Network.Currency.Symbol
	}
	return chain.FormatAmount(price, chain.NativeDecimals) + " " + cfg.Network.Currency.Symbol
}
