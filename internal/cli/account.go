package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/output"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	createWords int
	createQR    bool
	importIndex uint32
)

// accountCmd is the parent command for keystore accounts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage keystore accounts",
	Long:  `Create, import and list the accounts held in the local encrypted keystore.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account from a fresh mnemonic",
	Long: `Generate a BIP39 mnemonic, derive its first Ethereum account
(m/44'/60'/0'/0/0) and store the key encrypted with a passphrase.

Write the mnemonic down. It is shown once and is the only backup.

Example:
  avatars account create
  avatars account create --words 24 --qr`,
	Args: cobra.NoArgs,
	RunE: runAccountCreate,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var accountImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an account from an existing mnemonic",
	Long: `Import an account derived from a BIP39 mnemonic you already have.

Example:
  avatars account import
  avatars account import --index 2`,
	Args: cobra.NoArgs,
	RunE: runAccountImport,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keystore accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountList,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd, accountImportCmd, accountListCmd)

	accountCreateCmd.Flags().IntVar(&createWords, "words", 12, "mnemonic length: 12 or 24 words")
	accountCreateCmd.Flags().BoolVar(&createQR, "qr", false, "show a QR code for funding the new address")
	accountImportCmd.Flags().Uint32Var(&importIndex, "index", 0, "address index in m/44'/60'/0'/0/<index>")
}

// AccountCreateResponse is the JSON output of account create.
type AccountCreateResponse struct {
	Address  string `json:"address"`
	Mnemonic string `json:"mnemonic"`
	Keystore string `json:"keystore"`
}

func runAccountCreate(cmd *cobra.Command, _ []string) error {
	if createWords != 12 && createWords != 24 {
		return avatarerr.WithDetails(avatarerr.ErrInvalidInput, map[string]string{
			"words": fmt.Sprint(createWords),
			"valid": "12 or 24",
		})
	}

	provider, err := openWallet(true)
	if err != nil {
		return err
	}
	defer provider.Close()

	pass, err := promptNewPassphrase()
	if err != nil {
		return err
	}

	addr, mnemonic, err := provider.CreateAccount(createWords, pass)
	if err != nil {
		return err
	}
	logger.Info("created account %s", addr.Hex())

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, AccountCreateResponse{Address: addr.Hex(), Mnemonic: mnemonic, Keystore: provider.Dir()})
	}

	outln(w, "Account created")
	outln(w)
	out(w, "  Address:  %s\n", addr.Hex())
	out(w, "  Keystore: %s\n", provider.Dir())
	outln(w)
	outln(w, "Recovery mnemonic (write it down, it will not be shown again):")
	outln(w)
	displayMnemonic(w, mnemonic)
	outln(w)

	if createQR {
		out(w, "Fund this address on chain %d:\n", cfg.Network.ChainID)
		_ = output.RenderQR(w, output.FundingURI(addr.Hex(), cfg.Network.ChainID), output.DefaultQRConfig())
	}
	return nil
}

// displayMnemonic prints the words numbered, four per line.
func displayMnemonic(w io.Writer, mnemonic string) {
	words := strings.Fields(mnemonic)
	for i, word := range words {
		out(w, "  %2d. %-10s", i+1, word)
		if (i+1)%4 == 0 || i == len(words)-1 {
			outln(w)
		}
	}
}

func runAccountImport(cmd *cobra.Command, _ []string) error {
	input, err := promptLineFn("Enter mnemonic (all words on one line): ")
	if err != nil {
		return fmt.Errorf("reading mnemonic: %w", err)
	}
	mnemonic := wallet.NormalizeMnemonicInput(input)

	if err := wallet.ValidateMnemonic(mnemonic); err != nil {
		if typos := wallet.DetectTypos(mnemonic); len(typos) > 0 {
			return avatarerr.WithSuggestion(err, wallet.FormatTypoSuggestions(typos))
		}
		return err
	}

	provider, err := openWallet(true)
	if err != nil {
		return err
	}
	defer provider.Close()

	pass, err := promptNewPassphrase()
	if err != nil {
		return err
	}

	addr, err := provider.ImportMnemonic(mnemonic, pass, importIndex)
	if err != nil {
		return err
	}
	logger.Info("imported account %s", addr.Hex())

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, map[string]string{"address": addr.Hex(), "keystore": provider.Dir()})
	}
	out(w, "Imported %s\n", addr.Hex())
	return nil
}

// AccountListItem is one row of account list output.
type AccountListItem struct {
	Address        string     `json:"address"`
	Connected      bool       `json:"connected"`
	ConnectedUntil *time.Time `json:"connected_until,omitempty"`
	KeystoreFile   string     `json:"keystore_file"`
}

func runAccountList(cmd *cobra.Command, _ []string) error {
	provider, err := openWallet(false)
	if err != nil {
		return err
	}
	defer provider.Close()

	infos := provider.ListAccounts()
	items := make([]AccountListItem, 0, len(infos))
	for _, info := range infos {
		items = append(items, AccountListItem{
			Address:        info.Address.Hex(),
			Connected:      info.Authorized,
			ConnectedUntil: info.ExpiresAt,
			KeystoreFile:   info.File,
		})
	}

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, items)
	}
	if len(items) == 0 {
		outln(w, "No accounts. Create one with 'avatars account create'.")
		return nil
	}

	table := output.NewTable("ADDRESS", "CONNECTED", "UNTIL")
	for _, item := range items {
		connected, until := "no", "-"
		if item.Connected {
			connected = "yes"
			if item.ConnectedUntil != nil {
				until = item.ConnectedUntil.Local().Format(time.DateTime)
			}
		}
		table.AddRow(item.Address, connected, until)
	}
	return table.Render(w)
}
