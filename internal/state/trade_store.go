// ./internal/state/trade_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nexbridge/swapd/internal/types"
)

// TradeRecord is the persisted form of a trade attempt together with the
// draft values it was committed against.
type TradeRecord struct {
	Attempt         types.TradeAttempt
	PairID          string
	Direction       types.Direction
	AmountIn        string
	MinAmountOut    string
	SlippagePercent float64
}

// RecordTradeAttempt inserts the attempt, or refreshes its mutable columns
// when the attempt ID is already present. The orchestrator calls this on
// every phase transition, so the row always reflects the latest state.
func RecordTradeAttempt(rec TradeRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	var approvalHash, swapHash, resultMessage, errorCode sql.NullString
	if rec.Attempt.ApprovalTxHash != nil {
		approvalHash = sql.NullString{String: rec.Attempt.ApprovalTxHash.Hex(), Valid: true}
	}
	if rec.Attempt.SwapTxHash != nil {
		swapHash = sql.NullString{String: rec.Attempt.SwapTxHash.Hex(), Valid: true}
	}
	if rec.Attempt.ResultMessage != "" {
		resultMessage = sql.NullString{String: rec.Attempt.ResultMessage, Valid: true}
	}
	if rec.Attempt.ErrorCode != "" {
		errorCode = sql.NullString{String: rec.Attempt.ErrorCode, Valid: true}
	}
	var completedAt sql.NullTime
	if rec.Attempt.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *rec.Attempt.CompletedAt, Valid: true}
	}
	var minOut sql.NullString
	if rec.MinAmountOut != "" {
		minOut = sql.NullString{String: rec.MinAmountOut, Valid: true}
	}

	query := `
		INSERT INTO trade_attempts (
			attempt_id, pair_id, direction, amount_in, min_amount_out,
			slippage_percent, phase, approval_tx_hash, swap_tx_hash,
			result_message, error_code, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (attempt_id) DO UPDATE SET
			min_amount_out = EXCLUDED.min_amount_out,
			phase = EXCLUDED.phase,
			approval_tx_hash = EXCLUDED.approval_tx_hash,
			swap_tx_hash = EXCLUDED.swap_tx_hash,
			result_message = EXCLUDED.result_message,
			error_code = EXCLUDED.error_code,
			completed_at = EXCLUDED.completed_at
	`
	_, err := DB.Exec(query,
		rec.Attempt.ID, rec.PairID, string(rec.Direction), rec.AmountIn, minOut,
		rec.SlippagePercent, string(rec.Attempt.Phase), approvalHash, swapHash,
		resultMessage, errorCode, rec.Attempt.StartedAt, completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trade attempt: %w", err)
	}
	return nil
}

// TradeRow is one persisted trade attempt as read back for the dashboard.
type TradeRow struct {
	AttemptID       string
	PairID          string
	Direction       string
	AmountIn        string
	MinAmountOut    *string
	SlippagePercent float64
	Phase           string
	ApprovalTxHash  *string
	SwapTxHash      *string
	ResultMessage   *string
	ErrorCode       *string
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// RecentTradeAttempts returns the latest attempts, newest first.
func RecentTradeAttempts(limit int) ([]TradeRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT attempt_id, pair_id, direction, amount_in, min_amount_out,
			slippage_percent, phase, approval_tx_hash, swap_tx_hash,
			result_message, error_code, started_at, completed_at
		FROM trade_attempts
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade attempts: %w", err)
	}
	defer rows.Close()

	var trades []TradeRow
	for rows.Next() {
		var row TradeRow
		var minOut, approvalHash, swapHash, resultMessage, errorCode sql.NullString
		var completedAt sql.NullTime

		err := rows.Scan(
			&row.AttemptID, &row.PairID, &row.Direction, &row.AmountIn, &minOut,
			&row.SlippagePercent, &row.Phase, &approvalHash, &swapHash,
			&resultMessage, &errorCode, &row.StartedAt, &completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade attempt row: %w", err)
		}

		if minOut.Valid {
			row.MinAmountOut = &minOut.String
		}
		if approvalHash.Valid {
			row.ApprovalTxHash = &approvalHash.String
		}
		if swapHash.Valid {
			row.SwapTxHash = &swapHash.String
		}
		if resultMessage.Valid {
			row.ResultMessage = &resultMessage.String
		}
		if errorCode.Valid {
			row.ErrorCode = &errorCode.String
		}
		if completedAt.Valid {
			row.CompletedAt = &completedAt.Time
		}
		trades = append(trades, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trade attempt rows: %w", err)
	}
	return trades, nil
}
