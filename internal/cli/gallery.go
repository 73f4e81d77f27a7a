package cli

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/dapp"
	"github.com/mrz1836/pharos-avatars/internal/nft"
	"github.com/mrz1836/pharos-avatars/internal/output"
	"github.com/mrz1836/pharos-avatars/internal/session"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var galleryAvailable bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	galleryCmd = &cobra.Command{
		Use:   "gallery",
		Short: "Show which avatars are minted and which can be minted",
		Long: `Probe every eligible avatar on-chain and show its state.

An avatar whose lookup failed is shown as unknown and cannot be minted
until a later refresh succeeds.

Example:
  avatars gallery
  avatars gallery --available
  avatars gallery -o json`,
		Args: cobra.NoArgs,
		RunE: runGallery,
	}

	ownedCmd = &cobra.Command{
		Use:   "owned [address]",
		Short: "List the avatars an account owns",
		Long: `List avatars currently owned by an address, or by the connected
account when no address is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runOwned,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(galleryCmd, ownedCmd)
	galleryCmd.Flags().BoolVar(&galleryAvailable, "available", false, "only show avatars that can be minted")
}

// GalleryItem is one avatar in gallery output.
type GalleryItem struct {
	nft.Record

	Status  nft.State `json:"state"`
	CanMint bool      `json:"canMint"`
}

// GalleryResponse is the JSON output of gallery.
type GalleryResponse struct {
	Items       []GalleryItem `json:"items"`
	MintCounter int           `json:"mintCounter"`
	Minted      int           `json:"minted"`
	Mintable    int           `json:"mintable"`
	Unknown     int           `json:"unknown"`
	Price       string        `json:"price"`
	Session     session.State `json:"session"`
	RefreshedAt time.Time     `json:"refreshedAt"`
}

// buildGallery joins a snapshot with the mint action state of each record.
func buildGallery(snap *nft.Snapshot, state session.State, canMint func(nft.Record) bool, onlyAvailable bool) GalleryResponse {
	resp := GalleryResponse{
		Items:       make([]GalleryItem, 0, len(snap.Records)),
		MintCounter: snap.Counter,
		Price:       formatPrice(),
		Session:     state,
		RefreshedAt: snap.RefreshedAt,
	}
	resp.Minted, resp.Mintable, resp.Unknown = snap.Counts()

	for _, rec := range snap.Records {
		if onlyAvailable && !rec.IsMintable {
			continue
		}
		resp.Items = append(resp.Items, GalleryItem{Record: rec, Status: rec.State(), CanMint: canMint(rec)})
	}
	return resp
}

func runGallery(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, galleryTimeout)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireTargetChain(ctx); err != nil {
		return err
	}
	if a.session.State().Connected {
		if _, err := a.session.RefreshBalance(ctx); err != nil {
			logger.Error("balance refresh failed: %v", err)
		}
	}

	snap, err := a.refresh(ctx)
	if err != nil {
		return err
	}

	state := a.session.State()
	resp := buildGallery(snap, state, func(r nft.Record) bool { return a.workflow.CanMint(r, state) }, galleryAvailable)

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, resp)
	}
	return writeGalleryText(w, resp)
}

func writeGalleryText(w io.Writer, resp GalleryResponse) error {
	writeSessionText(w, resp.Session, cfg.Network.Currency.Symbol)
	out(w, "Price:   %s\n", resp.Price)
	out(w, "Minted:  %d (counter %d), mintable %d, unknown %d\n\n",
		resp.Minted, resp.MintCounter, resp.Mintable, resp.Unknown)

	table := output.NewTable("ID", "NAME", "STATE", "MINT")
	table.SetMaxWidth(40)
	for _, item := range resp.Items {
		action := "-"
		switch {
		case item.CanMint:
			action = "available"
		case item.IsMintable:
			action = "disabled"
		}
		table.AddRow(strconv.Itoa(item.TokenID), item.Name, string(item.Status), action)
	}
	if err := table.Render(w); err != nil {
		return err
	}

	if resp.Unknown > 0 {
		outln(w)
		output.Warnf(w, "%d avatar(s) could not be checked and are hidden from minting", resp.Unknown)
	}
	return nil
}

// OwnedResponse is the JSON output of owned.
type OwnedResponse struct {
	Owner   string       `json:"owner"`
	Records []nft.Record `json:"records"`
}

func runOwned(cmd *cobra.Command, args []string) error {
	ctx, cancel := contextWithTimeout(cmd, galleryTimeout)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	var owner common.Address
	if len(args) == 1 {
		if owner, err = chain.ParseAddress(args[0]); err != nil {
			return err
		}
	} else {
		state, err := a.requireConnected()
		if err != nil {
			return err
		}
		owner = state.Address
	}

	if err := a.requireTargetChain(ctx); err != nil {
		return err
	}
	records, err := lookupOwned(ctx, a.gateway, a.resolver, owner)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, OwnedResponse{Owner: owner.Hex(), Records: records})
	}
	return writeOwnedText(w, owner, records)
}

// lookupOwned resolves the avatars owner holds among the tokens minted so far.
func lookupOwned(ctx context.Context, gw nft.Gateway, resolver *nft.Resolver, owner common.Address) ([]nft.Record, error) {
	counter, err := gw.MintCounter(ctx)
	if err != nil {
		return nil, err
	}
	return resolver.Owned(ctx, owner, counter)
}

func writeOwnedText(w io.Writer, owner common.Address, records []nft.Record) error {
	if len(records) == 0 {
		out(w, "%s owns no avatars\n", owner.Hex())
		return nil
	}

	table := output.NewTable("ID", "NAME", "IMAGE")
	table.SetMaxWidth(60)
	for _, rec := range records {
		table.AddRow(strconv.Itoa(rec.TokenID), rec.Name, rec.Image)
	}
	return table.Render(w)
}

// bannerKind maps the store status onto the output banner.
func bannerKind(kind dapp.StatusKind) output.BannerKind {
	switch kind {
	case dapp.StatusSuccess:
		return output.BannerSuccess
	case dapp.StatusError:
		return output.BannerError
	default:
		return output.BannerInfo
	}
}
