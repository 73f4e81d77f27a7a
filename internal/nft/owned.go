package nft

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/pharos-avatars/internal/catalog"
	"github.com/mrz1836/pharos-avatars/internal/gateway"
)

// Owned-token discovery strategies.
const (
	StrategyProbe = "probe"
	StrategyLogs  = "logs"
)

// Resolver finds the tokens an account currently owns.
type Resolver struct {
	gw        Gateway
	cat       *catalog.Catalog
	strategy  string
	fromBlock uint64
	opts      Options
}

// NewResolver creates a resolver. strategy is StrategyProbe or StrategyLogs;
// fromBlock bounds the log scan.
func NewResolver(gw Gateway, cat *catalog.Catalog, strategy string, fromBlock uint64, opts Options) *Resolver {
	if strategy == "" {
		strategy = StrategyProbe
	}
	return &Resolver{gw: gw, cat: cat, strategy: strategy, fromBlock: fromBlock, opts: opts.withDefaults()}
}

// Owned returns records for tokens in [0, counter) owned by owner, ascending.
// Ids without a catalog entry and ids whose lookup fails are skipped.
func (r *Resolver) Owned(ctx context.Context, owner common.Address, counter int) ([]Record, error) {
	limit := min(counter, r.cat.Len())
	if limit <= 0 {
		return []Record{}, nil
	}

	var candidates []int
	switch r.strategy {
	case StrategyProbe:
		candidates = make([]int, limit)
		for i := range candidates {
			candidates[i] = i
		}
	case StrategyLogs:
		ids, err := r.gw.TransferredTo(ctx, owner, r.fromBlock)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if id >= 0 && id < limit {
				candidates = append(candidates, id)
			}
		}
	default:
		return nil, fmt.Errorf("unknown owned strategy %q", r.strategy) //nolint:err113 // config is validated upstream
	}

	probes := make([]gateway.OwnerProbe, len(candidates))
	fanOut(ctx, len(candidates), r.opts, func(ctx context.Context, i int) {
		probes[i] = r.gw.ProbeOwner(ctx, candidates[i])
	}, func(i int, err error) {
		probes[i] = gateway.OwnerProbe{TokenID: candidates[i], Status: gateway.QueryFailed, Err: err}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(probes))
	for _, p := range probes {
		if p.Status != gateway.Minted {
			if p.Status == gateway.QueryFailed {
				r.opts.Logger.Debug("owner lookup for token %d failed: %v", p.TokenID, p.Err)
			}
			continue
		}
		if p.Owner != owner {
			continue
		}
		d, _ := r.cat.Entry(p.TokenID)
		out = append(out, MintedRecord(d, ""))
	}
	return out, nil
}
