// ./internal/state/transfer_store.go
package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nexbridge/swapd/internal/types"
)

// UpsertTransfer records a transfer observation, replacing any earlier status
// for the same transfer.
func UpsertTransfer(transfer types.Transfer) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO transfers (
			transfer_id, origin_tx_hash, origin_chain_id, destination_chain_id,
			user_address, asset_symbol, amount, status, transfer_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transfer_id) DO UPDATE SET
			status = EXCLUDED.status,
			transfer_timestamp = EXCLUDED.transfer_timestamp
	`
	_, err := DB.Exec(query,
		transfer.TransferID, transfer.OriginTxHash.Hex(), transfer.OriginChainID,
		transfer.DestinationChainID, transfer.UserAddress.Hex(), transfer.AssetSymbol,
		transfer.Amount, string(transfer.Status), transfer.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transfer: %w", err)
	}
	return nil
}

// TransfersForUser returns a user's transfers, newest first.
func TransfersForUser(userAddress string, limit int) ([]types.Transfer, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT transfer_id, origin_tx_hash, origin_chain_id, destination_chain_id,
			user_address, asset_symbol, amount, status, transfer_timestamp
		FROM transfers
		WHERE user_address = $1
		ORDER BY transfer_timestamp DESC
		LIMIT $2
	`
	rows, err := DB.Query(query, userAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []types.Transfer
	for rows.Next() {
		var transfer types.Transfer
		var originTxHash, user, status string

		err := rows.Scan(
			&transfer.TransferID, &originTxHash, &transfer.OriginChainID,
			&transfer.DestinationChainID, &user, &transfer.AssetSymbol,
			&transfer.Amount, &status, &transfer.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}

		transfer.OriginTxHash = common.HexToHash(originTxHash)
		transfer.UserAddress = common.HexToAddress(user)
		transfer.Status = types.TransferStatus(status)
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer rows: %w", err)
	}
	return transfers, nil
}
