/*
Package faucet provides the test-network token operations: minting test
tokens, and wrapping or unwrapping the native asset. These are simple fixed
gas transactions with none of the trade machinery.
*/

package faucet

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/sdk"
	"github.com/nexbridge/swapd/internal/types"
	"github.com/nexbridge/swapd/internal/wallet"
)

// DefaultGasLimit covers mint, deposit and withdraw without estimation.
const DefaultGasLimit = 500_000

const msgInsufficientForWrap = "Insufficient balance when trying to wrap."

// Faucet executes test-token operations for the signing wallet.
type Faucet struct {
	signer   wallet.Signer
	gasLimit uint64
	// onSuccess fires after a confirmed operation so balances refresh.
	onSuccess func(chainID uint64)
	logger    zerolog.Logger
}

// NewFaucet creates a faucet. gasLimit of zero uses DefaultGasLimit;
// onSuccess may be nil.
func NewFaucet(signer wallet.Signer, gasLimit uint64, onSuccess func(chainID uint64)) *Faucet {
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	return &Faucet{
		signer:    signer,
		gasLimit:  gasLimit,
		onSuccess: onSuccess,
		logger:    logger.GetForComponent("faucet"),
	}
}

// Mint requests amount of a mintable test token for the signing wallet.
// A nil alert means the user declined and nothing should be shown.
func (f *Faucet) Mint(ctx context.Context, chainID uint64, token common.Address, amount sdkmath.Int) (*types.Alert, error) {
	data, err := sdk.MintCalldata(f.signer.Address(), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to build mint calldata: %w", err)
	}
	return f.submit(ctx, "mint", wallet.TxRequest{
		ChainID:  chainID,
		To:       &token,
		Data:     data,
		GasLimit: f.gasLimit,
	})
}

// Wrap deposits amount of the native asset into its wrapped token.
func (f *Faucet) Wrap(ctx context.Context, chainID uint64, wrapped common.Address, amount sdkmath.Int) (*types.Alert, error) {
	data, err := sdk.WrapCalldata()
	if err != nil {
		return nil, fmt.Errorf("failed to build wrap calldata: %w", err)
	}
	return f.submit(ctx, "wrap", wallet.TxRequest{
		ChainID:  chainID,
		To:       &wrapped,
		Value:    amount.BigInt(),
		Data:     data,
		GasLimit: f.gasLimit,
	})
}

// Unwrap withdraws amount from the wrapped token back to the native asset.
func (f *Faucet) Unwrap(ctx context.Context, chainID uint64, wrapped common.Address, amount sdkmath.Int) (*types.Alert, error) {
	data, err := sdk.UnwrapCalldata(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to build unwrap calldata: %w", err)
	}
	return f.submit(ctx, "unwrap", wallet.TxRequest{
		ChainID:  chainID,
		To:       &wrapped,
		Data:     data,
		GasLimit: f.gasLimit,
	})
}

func (f *Faucet) submit(ctx context.Context, op string, req wallet.TxRequest) (*types.Alert, error) {
	txHash, err := f.signer.SendTransaction(ctx, req)
	if err != nil {
		if wallet.IsUserRejection(err) {
			f.logger.Info().Str("op", op).Msg("Faucet operation declined by user")
			return nil, nil
		}
		return f.failureAlert(op, err), err
	}

	receipt, err := f.signer.WaitForTransaction(ctx, req.ChainID, txHash)
	if err != nil {
		return f.failureAlert(op, err), err
	}
	if !receipt.Succeeded() {
		err := wallet.ErrTransactionReverted
		return f.failureAlert(op, err), err
	}

	f.logger.Info().
		Str("op", op).
		Uint64("chain_id", req.ChainID).
		Str("tx_hash", txHash.Hex()).
		Msg("Faucet operation confirmed")

	if f.onSuccess != nil {
		f.onSuccess(req.ChainID)
	}

	message := fmt.Sprintf("%s successful", titleCase(op))
	return &types.Alert{Status: types.AlertSuccess, Message: message, TxHash: &txHash}, nil
}

func (f *Faucet) failureAlert(op string, err error) *types.Alert {
	pe := wallet.ParseProviderError(err)

	message := fmt.Sprintf("Failed to %s.", op)
	if op == "wrap" && pe.Code == wallet.CodeInsufficientFunds {
		message = msgInsufficientForWrap
	}

	f.logger.Error().Str("op", op).Err(err).Msg(message)
	return &types.Alert{Status: types.AlertFailed, Message: message}
}

func titleCase(op string) string {
	if op == "" {
		return op
	}
	return string(op[0]-'a'+'A') + op[1:]
}
