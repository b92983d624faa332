/*
Package pair resolves the active (chain, asset) selection into a snapshot of
on-chain pool state. Snapshots are immutable; a refresh produces a new one and
atomically replaces the old, and results that arrive after the selection has
moved on are discarded instead of clobbering the newer state.
*/

package pair

import (
	"context"
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/refdata"
	"github.com/nexbridge/swapd/internal/registry"
	"github.com/nexbridge/swapd/internal/sdk"
	"github.com/nexbridge/swapd/internal/types"
	"github.com/nexbridge/swapd/internal/utils"
)

// DefaultMaxAge is how long a snapshot stays fresh before a resolve attempt
// refetches instead of reusing it.
const DefaultMaxAge = 30 * time.Second

// Error definitions for zero-tolerance error handling
var (
	ErrNoTarget = errors.New("no pair target selected")
)

// Resolver owns the current pair snapshot for one session's selection.
type Resolver struct {
	reader   sdk.Reader
	refdata  *refdata.Store
	registry *registry.Registry
	maxAge   time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu            sync.Mutex
	targetChainID uint64
	targetAssetID string
	seq           uint64
	current       *types.ResolvedPair
}

// NewResolver wires a resolver against the given reader and reference data.
// registry may be nil when nothing consumes published snapshots.
func NewResolver(reader sdk.Reader, store *refdata.Store, reg *registry.Registry) *Resolver {
	return &Resolver{
		reader:   reader,
		refdata:  store,
		registry: reg,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
		logger:   logger.GetForComponent("pair_resolver"),
	}
}

// SetMaxAge overrides the freshness window.
func (r *Resolver) SetMaxAge(maxAge time.Duration) {
	r.mu.Lock()
	r.maxAge = maxAge
	r.mu.Unlock()
}

// SetNowFunc overrides the clock, for tests.
func (r *Resolver) SetNowFunc(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// SetTarget points the resolver at a new (chain, asset) selection. Changing
// identity invalidates the held snapshot and supersedes any in-flight resolve.
func (r *Resolver) SetTarget(chainID uint64, assetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.targetChainID == chainID && r.targetAssetID == assetID {
		return
	}
	r.targetChainID = chainID
	r.targetAssetID = assetID
	r.seq++
	r.current = nil
}

// Current returns the held snapshot, which may be nil, stale or errored.
// Callers decide usability with the snapshot's own methods.
func (r *Resolver) Current() *types.ResolvedPair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Resolve returns a usable snapshot for the current target, fetching only
// when the held one is missing, stale or errored.
func (r *Resolver) Resolve(ctx context.Context) (*types.ResolvedPair, error) {
	return r.resolve(ctx, false)
}

// ForceResolve refetches regardless of freshness. Used after a settled trade
// moved the pool balances.
func (r *Resolver) ForceResolve(ctx context.Context) (*types.ResolvedPair, error) {
	return r.resolve(ctx, true)
}

func (r *Resolver) resolve(ctx context.Context, force bool) (*types.ResolvedPair, error) {
	r.mu.Lock()
	chainID, assetID, seq := r.targetChainID, r.targetAssetID, r.seq
	now, maxAge := r.now, r.maxAge
	held := r.current
	r.mu.Unlock()

	if chainID == 0 || assetID == "" {
		return nil, ErrNoTarget
	}

	if !force && held.Matches(chainID, assetID) && held.Err == nil && !held.StaleAt(now(), maxAge) {
		return held, nil
	}

	// Unknown identity is a quiet no-op: the selection may reference a chain
	// or asset this deployment does not serve.
	asset, deployment, err := r.lookup(chainID, assetID)
	if err != nil {
		r.logger.Warn().
			Uint64("chain_id", chainID).
			Str("asset_id", assetID).
			Err(err).
			Msg("Pair target not in reference data, keeping previous state")
		return held, nil
	}

	snapshot := r.fetch(ctx, chainID, assetID, asset, deployment)

	r.mu.Lock()
	if r.seq != seq {
		// The selection moved on while we were fetching. The result describes
		// an identity nobody is looking at anymore.
		current := r.current
		r.mu.Unlock()
		r.logger.Debug().
			Str("pair_id", snapshot.ID).
			Msg("Discarding superseded pair resolution")
		return current, nil
	}
	r.current = snapshot
	r.mu.Unlock()

	if snapshot.Err != nil {
		r.logger.Error().
			Str("pair_id", snapshot.ID).
			Err(snapshot.Err).
			Msg("Pair resolution failed")
		return snapshot, snapshot.Err
	}

	if r.registry != nil {
		r.registry.Upsert(*snapshot)
	}
	return snapshot, nil
}

func (r *Resolver) lookup(chainID uint64, assetID string) (refdata.AssetInfo, refdata.AssetDeployment, error) {
	if _, err := r.refdata.GetChain(chainID); err != nil {
		return refdata.AssetInfo{}, refdata.AssetDeployment{}, err
	}
	return r.refdata.GetAsset(assetID, chainID)
}

// fetch performs the on-chain reads. Pool reserves are required; LP supply
// and virtual price are independently optional and leave their fields nil on
// failure.
func (r *Resolver) fetch(ctx context.Context, chainID uint64, assetID string, asset refdata.AssetInfo, dep refdata.AssetDeployment) *types.ResolvedPair {
	chain, _ := r.refdata.GetChain(chainID)

	snapshot := &types.ResolvedPair{
		ID:          types.PairID(chainID, assetID),
		ChainID:     chainID,
		AssetID:     assetID,
		DomainID:    chain.DomainID,
		PoolAddress: dep.PoolAddress,
		LPToken:     dep.LPToken,
		TokenX: types.PairToken{
			Address:  dep.Adopted.Address,
			Symbol:   dep.Adopted.Symbol,
			Decimals: dep.Adopted.Decimals,
		},
		TokenY: types.PairToken{
			Address:  dep.Local.Address,
			Symbol:   dep.Local.Symbol,
			Decimals: dep.Local.Decimals,
		},
		ResolvedAt: r.now(),
	}

	balanceX, err := r.reader.TokenBalance(ctx, chainID, dep.Adopted.Address, dep.PoolAddress)
	if err != nil {
		snapshot.Err = err
		return snapshot
	}
	balanceY, err := r.reader.TokenBalance(ctx, chainID, dep.Local.Address, dep.PoolAddress)
	if err != nil {
		snapshot.Err = err
		return snapshot
	}
	snapshot.TokenX.Balance = balanceX
	snapshot.TokenY.Balance = balanceY

	if supply, err := r.reader.TokenSupply(ctx, chainID, dep.LPToken); err != nil {
		r.logger.Warn().Str("pair_id", snapshot.ID).Err(err).Msg("LP supply read failed, leaving supply unset")
	} else if formatted, err := utils.FormatUnits(supply, 18); err == nil {
		snapshot.Supply = &formatted
	}

	if price, err := r.reader.VirtualPrice(ctx, chainID, dep.PoolAddress); err != nil {
		r.logger.Warn().Str("pair_id", snapshot.ID).Err(err).Msg("Virtual price read failed, leaving rate unset")
	} else {
		rate, convErr := price.ToLegacyDec().QuoInt64(1e18).Float64()
		if convErr == nil {
			snapshot.Rate = &rate
		}
	}

	snapshot.TVLUSD = tvlUSD(snapshot, asset.PriceUSD)
	return snapshot
}

// tvlUSD values the pool. LP supply is the primary source; when it is
// missing the reserves are summed instead. Returns nil when neither basis is
// available.
func tvlUSD(pair *types.ResolvedPair, priceUSD float64) *float64 {
	if priceUSD <= 0 {
		return nil
	}

	if pair.Supply != nil {
		if supply, err := sdkLegacyFloat(*pair.Supply); err == nil {
			tvl := supply * priceUSD
			return &tvl
		}
	}

	reserves := 0.0
	for _, token := range []types.PairToken{pair.TokenX, pair.TokenY} {
		formatted, err := utils.FormatUnits(token.Balance, token.Decimals)
		if err != nil {
			return nil
		}
		value, err := sdkLegacyFloat(formatted)
		if err != nil {
			return nil
		}
		reserves += value
	}
	tvl := reserves * priceUSD
	return &tvl
}

func sdkLegacyFloat(amount string) (float64, error) {
	dec, err := sdkmath.LegacyNewDecFromStr(amount)
	if err != nil {
		return 0, err
	}
	return dec.Float64()
}
