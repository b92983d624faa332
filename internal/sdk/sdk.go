/*
Package sdk is the access layer for the stableswap pools and ERC20 tokens the
service trades against. Reader is the seam the resolver, quote engine and
balance cache depend on; EVMClient is the live JSON-RPC implementation.
*/

package sdk

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Error definitions for zero-tolerance error handling
var (
	ErrTokenNotInPool = errors.New("token is not part of the pool")
	ErrNoClient       = errors.New("no RPC client configured for chain")
)

// Reader exposes the on-chain reads the service needs. All methods are
// point-in-time views; callers own staleness policy.
type Reader interface {
	// TokenBalance returns holder's balance of an ERC20 token in raw units.
	TokenBalance(ctx context.Context, chainID uint64, token, holder common.Address) (sdkmath.Int, error)
	// TokenSupply returns the total supply of an ERC20 token in raw units.
	TokenSupply(ctx context.Context, chainID uint64, token common.Address) (sdkmath.Int, error)
	// VirtualPrice returns the pool's LP token virtual price scaled by 1e18.
	VirtualPrice(ctx context.Context, chainID uint64, pool common.Address) (sdkmath.Int, error)
	// PoolTokenIndex resolves a token address to its index inside the pool.
	PoolTokenIndex(ctx context.Context, chainID uint64, pool, token common.Address) (uint8, error)
	// CalculateSwap quotes the raw output for swapping dx between two indexes.
	CalculateSwap(ctx context.Context, chainID uint64, pool common.Address, from, to uint8, dx sdkmath.Int) (sdkmath.Int, error)
	// CalculateSwapPriceImpact measures how far the executed rate for dx falls
	// below the pool's spot rate, in percent.
	CalculateSwapPriceImpact(ctx context.Context, chainID uint64, pool common.Address, from, to uint8, dx sdkmath.Int, fromDecimals, toDecimals int) (float64, error)
	// Allowance returns what spender may move of owner's token balance.
	Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (sdkmath.Int, error)
}

// PriceImpactVsSpot compares the executed rate dy/dx against the pool's spot
// rate, where spotOut is the quoted output for exactly one input token.
// Measuring against the spot quote keeps the pool's proportional fee out of
// the number; what remains is the depth cost of the trade size. Inputs are
// raw token units, normalized by their decimals before comparing. Degenerate
// inputs yield zero.
func PriceImpactVsSpot(dx, dy, spotOut sdkmath.Int, fromDecimals, toDecimals int) float64 {
	if dx.IsNil() || dy.IsNil() || spotOut.IsNil() {
		return 0
	}
	if !dx.IsPositive() || !spotOut.IsPositive() {
		return 0
	}

	execRate := sdkmath.LegacyNewDecFromIntWithPrec(dy, int64(toDecimals)).
		Quo(sdkmath.LegacyNewDecFromIntWithPrec(dx, int64(fromDecimals)))
	spotRate := sdkmath.LegacyNewDecFromIntWithPrec(spotOut, int64(toDecimals))

	impact := sdkmath.LegacyOneDec().Sub(execRate.Quo(spotRate)).MulInt64(100)

	out, err := impact.Float64()
	if err != nil {
		return 0
	}
	return out
}
