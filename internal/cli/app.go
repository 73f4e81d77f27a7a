package cli

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mrz1836/pharos-avatars/internal/cache"
	"github.com/mrz1836/pharos-avatars/internal/catalog"
	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/config"
	"github.com/mrz1836/pharos-avatars/internal/dapp"
	"github.com/mrz1836/pharos-avatars/internal/gateway"
	"github.com/mrz1836/pharos-avatars/internal/mint"
	"github.com/mrz1836/pharos-avatars/internal/nft"
	"github.com/mrz1836/pharos-avatars/internal/session"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// Command timeouts.
const (
	walletTimeout  = 2 * time.Minute
	galleryTimeout = 3 * time.Minute
	mintTimeout    = 10 * time.Minute
)

// walletOptionsFn builds the keystore options; tests swap in light scrypt
// parameters.
//
//nolint:gochecknoglobals // swapped by tests
var walletOptionsFn = defaultWalletOptions

func defaultWalletOptions(c *config.Config) wallet.Options {
	return wallet.Options{
		StateDir: config.ExpandHome(c.Home),
		GrantTTL: c.GetAuthorizationTTL(),
		Metrics:  collector,
		Logger:   logger,
	}
}

// openWallet opens the keystore. With create, a missing keystore is made.
func openWallet(create bool) (*wallet.KeystoreProvider, error) {
	dir := cfg.GetKeystoreDir()
	opts := walletOptionsFn(cfg)
	if create {
		return wallet.Create(dir, newPrompter(), opts)
	}
	p, err := wallet.Open(dir, newPrompter(), opts)
	if err != nil {
		return nil, avatarerr.WithSuggestion(err, "create or import an account with 'avatars account create'")
	}
	return p, nil
}

// targetParams are the network parameters the wallet is switched to.
func targetParams(c *config.Config) wallet.ChainParams {
	urls := make([]string, 0, len(c.Network.RPCURLs))
	for _, u := range c.Network.RPCURLs {
		if u = config.SanitizeURL(u); u != "" {
			urls = append(urls, u)
		}
	}
	return wallet.ChainParams{
		ChainID:   c.Network.ChainID,
		ChainName: c.Network.ChainName,
		RPCURLs:   urls,
		Currency: wallet.Currency{
			Name:     c.Network.Currency.Name,
			Symbol:   c.Network.Currency.Symbol,
			Decimals: c.Network.Currency.Decimals,
		},
		ExplorerURL: c.Network.ExplorerURL,
	}
}

// app holds the components a chain command works with.
type app struct {
	provider *wallet.KeystoreProvider
	gateway  *gateway.Gateway
	session  *session.Session

	catalog    *catalog.Catalog
	store      *dapp.Store
	aggregator *nft.Aggregator
	resolver   *nft.Resolver
	workflow   *mint.Workflow
}

// newApp validates the configuration, opens the wallet and restores any
// existing connection. withGallery also loads the catalog and wires the
// status aggregator and mint workflow.
func newApp(ctx context.Context, withGallery bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	contract, err := chain.ParseAddress(cfg.Contract.Address)
	if err != nil {
		return nil, err
	}

	provider, err := openWallet(false)
	if err != nil {
		return nil, err
	}

	gw := gateway.New(contract, provider, gateway.WithMetrics(collector), gateway.WithLogger(logger))
	a := &app{
		provider: provider,
		gateway:  gw,
		session:  session.New(provider, gw, targetParams(cfg), logger),
	}

	if _, err := a.session.Restore(ctx); err != nil {
		a.close()
		return nil, err
	}

	if withGallery {
		if err := a.loadGallery(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) loadGallery(ctx context.Context) error {
	source := cfg.Catalog.Source
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		source = config.ExpandHome(source)
	}

	storage := cache.NewFileStorage(filepath.Join(config.ExpandHome(cfg.Home), "cache", "catalog.json"))
	cat, err := catalog.Load(ctx, source,
		catalog.WithCache(storage, cache.DefaultStaleness),
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.GetCatalogTimeout()}),
		catalog.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if cat.Stale() {
		logger.Error("using cached catalog for %s", cat.Source())
	}

	price, err := chain.ParseAmount(cfg.Contract.MintPrice, chain.NativeDecimals)
	if err != nil {
		return err
	}

	opts := nft.Options{
		Eligible:     cfg.Contract.EligibleCount,
		Concurrency:  cfg.Probe.Concurrency,
		Limiter:      chain.NewRateLimiter(cfg.Probe.RatePerSecond, cfg.Probe.Burst),
		Endpoint:     probeEndpoint(cfg),
		ProbeTimeout: cfg.GetProbeTimeout(),
		Logger:       logger,
	}

	a.catalog = cat
	a.store = dapp.NewStore(collector)
	a.aggregator = nft.NewAggregator(a.gateway, cat, opts)
	a.resolver = nft.NewResolver(a.gateway, cat, cfg.Owned.Strategy, cfg.Owned.FromBlock, opts)
	a.workflow = mint.NewWorkflow(a.gateway, a.session, a.aggregator, a.store, mint.Config{
		Price:    price,
		BaseURI:  cfg.Contract.BaseURI,
		Eligible: a.aggregator.Eligible(),
	}, collector, logger)
	return nil
}

// probeEndpoint keys the probe rate limiter. All probes share the wallet's
// node connection, so the first candidate URL names it.
func probeEndpoint(c *config.Config) string {
	if len(c.Network.RPCURLs) == 0 {
		return "default"
	}
	return config.SanitizeURL(c.Network.RPCURLs[0])
}

// requireTargetChain fails when the wallet is on another network, so reads
// never describe a different chain's contract.
func (a *app) requireTargetChain(ctx context.Context) error {
	active, err := a.provider.ChainID(ctx)
	if err != nil {
		return wallet.MapError(err)
	}
	if active != cfg.Network.ChainID {
		return avatarerr.WithSuggestion(
			avatarerr.WithDetails(avatarerr.ErrNetworkMismatch, map[string]string{
				"active": strconv.FormatInt(active, 10),
				"target": strconv.FormatInt(cfg.Network.ChainID, 10),
			}),
			"switch with 'avatars network ensure'",
		)
	}
	return nil
}

// refresh rebuilds the gallery snapshot through the generation guard.
func (a *app) refresh(ctx context.Context) (*nft.Snapshot, error) {
	gen := a.store.Begin()
	snap, err := a.aggregator.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	a.store.Commit(gen, snap)
	return a.store.Snapshot(), nil
}

// requireConnected returns the connected address or ErrNotConnected.
func (a *app) requireConnected() (session.State, error) {
	state := a.session.State()
	if !state.Connected {
		return state, avatarerr.WithSuggestion(avatarerr.ErrNotConnected, "connect first with 'avatars connect'")
	}
	return state, nil
}

func (a *app) close() {
	if a.provider != nil {
		a.provider.Close()
	}
}

// explorerTxURL links a transaction on the configured block explorer.
func explorerTxURL(hash string) string {
	base := strings.TrimRight(cfg.Network.ExplorerURL, "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", base, hash)
}
