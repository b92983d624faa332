package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferStatus mirrors the lifecycle reported by the cross-chain transfer indexer.
type TransferStatus string

const (
	TransferPending       TransferStatus = "pending"
	TransferExecuted      TransferStatus = "executed"
	TransferCompletedFast TransferStatus = "completed_fast"
	TransferCompletedSlow TransferStatus = "completed_slow"
	TransferFailed        TransferStatus = "failed"
)

// Terminal reports whether the transfer has reached a resting status.
func (s TransferStatus) Terminal() bool {
	switch s {
	case TransferExecuted, TransferCompletedFast, TransferCompletedSlow, TransferFailed:
		return true
	}
	return false
}

// Transfer is one entry of the user's cross-chain transfer history, deduped by
// origin transaction hash.
type Transfer struct {
	TransferID         string         `json:"transfer_id"`
	OriginTxHash       common.Hash    `json:"origin_tx_hash"`
	OriginChainID      uint64         `json:"origin_chain_id"`
	DestinationChainID uint64         `json:"destination_chain_id"`
	UserAddress        common.Address `json:"user_address"`
	AssetSymbol        string         `json:"asset_symbol"`
	Amount             string         `json:"amount"` // decimal string
	Status             TransferStatus `json:"status"`
	Timestamp          time.Time      `json:"timestamp"`
}
