/*

Custom types for the swap core: the user's in-progress trade draft and the
lifecycle record of a single approve-then-swap attempt.

*/

package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Direction indicates which side of the pool pair the user is paying with.
type Direction string

const (
	DirectionXToY Direction = "x_to_y" // pay with the adopted token, receive the local token
	DirectionYToX Direction = "y_to_x" // pay with the local token, receive the adopted token
)

// TradeOptions are the user-tunable execution parameters of a trade.
type TradeOptions struct {
	InfiniteApprove bool    `json:"infinite_approve"`
	SlippagePercent float64 `json:"slippage_percent"`
	// DeadlineMinutes of zero means no deadline is attached to the swap call.
	DeadlineMinutes int `json:"deadline_minutes,omitempty"`
}

// TradeDraft is the mutable record of the user's in-progress trade. It is
// mutated only by the session's input handlers and reset on disconnect or
// chain switch.
type TradeDraft struct {
	ChainID   uint64       `json:"chain_id"`
	AssetID   string       `json:"asset_id"`
	Amount    string       `json:"amount"` // decimal string, empty when no amount entered
	Direction Direction    `json:"direction"`
	Options   TradeOptions `json:"options"`
}

// Phase is the lifecycle phase of a trade attempt.
type Phase string

const (
	PhaseIdle                    Phase = "idle"
	PhaseCheckingApproval        Phase = "checking_approval"
	PhaseApproving               Phase = "approving"
	PhaseAwaitingApprovalReceipt Phase = "awaiting_approval_receipt"
	PhaseSwapping                Phase = "swapping"
	PhaseAwaitingSwapReceipt     Phase = "awaiting_swap_receipt"
	PhaseSucceeded               Phase = "succeeded"
	PhaseFailed                  Phase = "failed"
)

// Terminal reports whether the phase is a resting state. Only one attempt may
// be in a non-terminal phase at a time.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseIdle, PhaseSucceeded, PhaseFailed:
		return true
	}
	return false
}

// TradeAttempt is created at commit time and discarded on reset. Hash and
// completion fields are nil until the corresponding step has happened; there
// are no zero-value sentinels.
type TradeAttempt struct {
	ID             uuid.UUID    `json:"id"`
	Phase          Phase        `json:"phase"`
	ApprovalTxHash *common.Hash `json:"approval_tx_hash,omitempty"`
	SwapTxHash     *common.Hash `json:"swap_tx_hash,omitempty"`
	ResultMessage  string       `json:"result_message,omitempty"`
	ErrorCode      string       `json:"error_code,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// AlertStatus classifies the single user-visible banner derived from the most
// recent relevant outcome.
type AlertStatus string

const (
	AlertPending AlertStatus = "pending"
	AlertSuccess AlertStatus = "success"
	AlertFailed  AlertStatus = "failed"
)

// Alert is the normalized {status, message, txHash} surfaced to the UI layer.
type Alert struct {
	Status  AlertStatus  `json:"status"`
	Message string       `json:"message"`
	TxHash  *common.Hash `json:"tx_hash,omitempty"`
}
