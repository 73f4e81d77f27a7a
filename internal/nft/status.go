package nft

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/pharos-avatars/internal/catalog"
	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/gateway"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// DefaultConcurrency is the default number of in-flight probes.
const DefaultConcurrency = 16

// Gateway is the contract surface the aggregator and resolver read.
type Gateway interface {
	ProbeToken(ctx context.Context, id int) gateway.TokenProbe
	ProbeOwner(ctx context.Context, id int) gateway.OwnerProbe
	MintCounter(ctx context.Context) (int, error)
	TransferredTo(ctx context.Context, addr common.Address, fromBlock uint64) ([]int, error)
}

// LogWriter is the logging surface the package needs.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options bounds probe fan-out.
type Options struct {
	// Eligible is how many leading catalog entries are open for minting.
	Eligible    int
	Concurrency int
	// Limiter paces probes against Endpoint. Nil means unpaced.
	Limiter      *chain.RateLimiter
	Endpoint     string
	ProbeTimeout time.Duration
	Logger       LogWriter
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Aggregator builds gallery snapshots.
type Aggregator struct {
	gw   Gateway
	cat  *catalog.Catalog
	opts Options
}

// NewAggregator creates an aggregator over the eligible head of cat.
func NewAggregator(gw Gateway, cat *catalog.Catalog, opts Options) *Aggregator {
	return &Aggregator{gw: gw, cat: cat, opts: opts.withDefaults()}
}

// Eligible returns the number of records a refresh produces.
func (a *Aggregator) Eligible() int {
	return len(a.cat.Head(a.opts.Eligible))
}

// Refresh probes every eligible token, waits for all of them, then reads the
// mint counter. Per-token failures become unknown records; a counter failure
// aborts the refresh.
func (a *Aggregator) Refresh(ctx context.Context) (*Snapshot, error) {
	entries := a.cat.Head(a.opts.Eligible)
	records := make([]Record, len(entries))

	fanOut(ctx, len(entries), a.opts, func(ctx context.Context, i int) {
		records[i] = recordFromProbe(entries[i], a.gw.ProbeToken(ctx, entries[i].TokenID))
	}, func(i int, err error) {
		records[i] = recordFromProbe(entries[i], gateway.TokenProbe{Status: gateway.QueryFailed, Err: err})
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counter, err := a.gw.MintCounter(ctx)
	if err != nil {
		a.opts.Logger.Error("gallery refresh aborted: %v", err)
		return nil, avatarerr.Wrap(err, "reading mint counter")
	}

	return &Snapshot{
		Records:     records,
		Counter:     counter,
		RefreshedAt: a.opts.Now(),
	}, nil
}

// fanOut runs probe for each index with bounded concurrency and pacing,
// returning once all have finished. Indexes that could not start get skip.
func fanOut(ctx context.Context, n int, opts Options, probe func(context.Context, int), skip func(int, error)) {
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for i := range n {
		g.Go(func() error {
			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(ctx, opts.Endpoint); err != nil {
					skip(i, err)
					return nil
				}
			} else if err := ctx.Err(); err != nil {
				skip(i, err)
				return nil
			}

			pctx := ctx
			if opts.ProbeTimeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, opts.ProbeTimeout)
				defer cancel()
			}
			probe(pctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
