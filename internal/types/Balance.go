package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceEntry is one observed wallet balance, keyed by (chain, token),
// last-write-wins.
type BalanceEntry struct {
	ChainID      uint64         `json:"chain_id"`
	TokenAddress common.Address `json:"token_address"`
	Amount       sdkmath.Int    `json:"amount"` // fixed-point integer units
	Decimals     int            `json:"decimals"`
	ObservedAt   time.Time      `json:"observed_at"`
}
