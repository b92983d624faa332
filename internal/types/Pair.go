/*

Custom types for resolved pool pairs. A ResolvedPair is an immutable snapshot
of on-chain pool state for one (chain, asset) identity; it is superseded on
refresh, never mutated in place.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// PairToken is one side of a pool's token pair.
type PairToken struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
	Balance  sdkmath.Int    `json:"balance"` // live pool reserve, fixed-point integer units
}

// PairID derives the canonical pair identity for a (chain, asset) combination.
func PairID(chainID uint64, assetID string) string {
	return fmt.Sprintf("%d_%s", chainID, assetID)
}

// ResolvedPair is a snapshot of pool state produced by the pair resolver.
// Supply, Rate and TVLUSD are independently optional: a failed auxiliary read
// leaves the field nil without failing the whole resolution.
type ResolvedPair struct {
	ID          string         `json:"id"` // PairID(ChainID, AssetID)
	ChainID     uint64         `json:"chain_id"`
	AssetID     string         `json:"asset_id"`
	DomainID    uint32         `json:"domain_id"`
	PoolAddress common.Address `json:"pool_address"`
	LPToken     common.Address `json:"lp_token"`
	TokenX      PairToken      `json:"token_x"` // adopted token
	TokenY      PairToken      `json:"token_y"` // local token
	Supply      *string        `json:"supply,omitempty"` // LP token supply, decimal string
	Rate        *float64       `json:"rate,omitempty"`   // virtual price
	TVLUSD      *float64       `json:"tvl_usd,omitempty"`
	ResolvedAt  time.Time      `json:"resolved_at"`
	Err         error          `json:"-"`
}

// Matches reports whether the snapshot's identity equals the given (chain, asset).
func (p *ResolvedPair) Matches(chainID uint64, assetID string) bool {
	return p != nil && p.ChainID == chainID && p.AssetID == assetID
}

// StaleAt reports whether the snapshot is too old to be trusted at the given time.
func (p *ResolvedPair) StaleAt(now time.Time, maxAge time.Duration) bool {
	return p == nil || now.Sub(p.ResolvedAt) > maxAge
}

// Usable reports whether the snapshot may serve as a basis for quoting or
// execution: present, error-free and identity-matched.
func (p *ResolvedPair) Usable(chainID uint64, assetID string) bool {
	return p.Matches(chainID, assetID) && p.Err == nil
}

// Tokens returns the (source, destination) tokens for a trade direction.
func (p *ResolvedPair) Tokens(dir Direction) (src, dst PairToken) {
	if dir == DirectionYToX {
		return p.TokenY, p.TokenX
	}
	return p.TokenX, p.TokenY
}

// SymbolPair renders the "SRC/DST" symbol string for a trade direction.
func (p *ResolvedPair) SymbolPair(dir Direction) string {
	src, dst := p.Tokens(dir)
	return src.Symbol + "/" + dst.Symbol
}
