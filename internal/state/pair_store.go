// ./internal/state/pair_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/nexbridge/swapd/internal/types"
)

// SavePairSnapshot appends one resolved pair snapshot to the history table.
func SavePairSnapshot(pair types.ResolvedPair) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	var lpSupply sql.NullString
	if pair.Supply != nil {
		lpSupply = sql.NullString{String: *pair.Supply, Valid: true}
	}
	var virtualPrice sql.NullFloat64
	if pair.Rate != nil {
		virtualPrice = sql.NullFloat64{Float64: *pair.Rate, Valid: true}
	}
	var tvl sql.NullFloat64
	if pair.TVLUSD != nil {
		tvl = sql.NullFloat64{Float64: *pair.TVLUSD, Valid: true}
	}

	query := `
		INSERT INTO pair_snapshots (
			pair_id, chain_id, asset_id, pool_address,
			token_x_symbol, token_y_symbol, token_x_balance, token_y_balance,
			lp_supply, virtual_price, tvl_usd, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := DB.Exec(query,
		pair.ID, pair.ChainID, pair.AssetID, pair.PoolAddress.Hex(),
		pair.TokenX.Symbol, pair.TokenY.Symbol,
		pair.TokenX.Balance.String(), pair.TokenY.Balance.String(),
		lpSupply, virtualPrice, tvl, pair.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pair snapshot: %w", err)
	}
	return nil
}

// PairSnapshotRow is one persisted snapshot as read back from the database.
type PairSnapshotRow struct {
	PairID        string
	ChainID       uint64
	AssetID       string
	PoolAddress   string
	TokenXSymbol  string
	TokenYSymbol  string
	TokenXBalance string
	TokenYBalance string
	LPSupply      *string
	VirtualPrice  *float64
	TVLUSD        *float64
	ResolvedAt    sql.NullTime
}

// LatestPairSnapshots returns the most recent snapshot per pair, newest first.
func LatestPairSnapshots(limit int) ([]PairSnapshotRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT DISTINCT ON (pair_id)
			pair_id, chain_id, asset_id, pool_address,
			token_x_symbol, token_y_symbol, token_x_balance, token_y_balance,
			lp_supply, virtual_price, tvl_usd, resolved_at
		FROM pair_snapshots
		ORDER BY pair_id, resolved_at DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []PairSnapshotRow
	for rows.Next() {
		var row PairSnapshotRow
		var lpSupply sql.NullString
		var virtualPrice, tvl sql.NullFloat64

		err := rows.Scan(
			&row.PairID, &row.ChainID, &row.AssetID, &row.PoolAddress,
			&row.TokenXSymbol, &row.TokenYSymbol, &row.TokenXBalance, &row.TokenYBalance,
			&lpSupply, &virtualPrice, &tvl, &row.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pair snapshot row: %w", err)
		}

		if lpSupply.Valid {
			row.LPSupply = &lpSupply.String
		}
		if virtualPrice.Valid {
			row.VirtualPrice = &virtualPrice.Float64
		}
		if tvl.Valid {
			row.TVLUSD = &tvl.Float64
		}
		snapshots = append(snapshots, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pair snapshot rows: %w", err)
	}
	return snapshots, nil
}
