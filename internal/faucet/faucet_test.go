package faucet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexbridge/swapd/internal/types"
	"github.com/nexbridge/swapd/internal/wallet"
)

var (
	signerAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	tokenAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type fakeSigner struct {
	mu            sync.Mutex
	sendErr       error
	waitErr       error
	receiptStatus uint64
	sent          []wallet.TxRequest
}

func (f *fakeSigner) Address() common.Address { return signerAddr }

func (f *fakeSigner) EstimateGas(context.Context, wallet.TxRequest) (uint64, error) {
	return 0, errors.New("faucet never estimates")
}

func (f *fakeSigner) SendTransaction(_ context.Context, req wallet.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	return common.Hash{1}, nil
}

func (f *fakeSigner) WaitForTransaction(context.Context, uint64, common.Hash) (wallet.Receipt, error) {
	if f.waitErr != nil {
		return wallet.Receipt{}, f.waitErr
	}
	return wallet.Receipt{TxHash: common.Hash{1}, Status: f.receiptStatus}, nil
}

func TestMintSuccess(t *testing.T) {
	signer := &fakeSigner{receiptStatus: 1}

	var refreshed []uint64
	f := NewFaucet(signer, 0, func(chainID uint64) { refreshed = append(refreshed, chainID) })

	alert, err := f.Mint(context.Background(), 5, tokenAddr, sdkmath.NewInt(1_000_000))
	require.NoError(t, err)

	require.NotNil(t, alert)
	assert.Equal(t, types.AlertSuccess, alert.Status)
	assert.Equal(t, "Mint successful", alert.Message)
	require.NotNil(t, alert.TxHash)

	require.Len(t, signer.sent, 1)
	assert.Equal(t, tokenAddr, *signer.sent[0].To)
	assert.Equal(t, uint64(DefaultGasLimit), signer.sent[0].GasLimit)
	assert.Equal(t, []uint64{5}, refreshed)
}

func TestWrapCarriesValue(t *testing.T) {
	signer := &fakeSigner{receiptStatus: 1}
	f := NewFaucet(signer, 300_000, nil)

	_, err := f.Wrap(context.Background(), 5, tokenAddr, sdkmath.NewInt(7))
	require.NoError(t, err)

	require.Len(t, signer.sent, 1)
	assert.Zero(t, signer.sent[0].Value.Cmp(big.NewInt(7)))
	assert.Equal(t, uint64(300_000), signer.sent[0].GasLimit)
}

func TestWrapInsufficientBalanceMessage(t *testing.T) {
	signer := &fakeSigner{sendErr: errors.New("gas required exceeds allowance (0)")}
	f := NewFaucet(signer, 0, nil)

	alert, err := f.Wrap(context.Background(), 5, tokenAddr, sdkmath.NewInt(7))
	require.Error(t, err)

	require.NotNil(t, alert)
	assert.Equal(t, types.AlertFailed, alert.Status)
	assert.Equal(t, "Insufficient balance when trying to wrap.", alert.Message)
}

func TestUserRejectionIsQuiet(t *testing.T) {
	signer := &fakeSigner{sendErr: errors.New("User denied transaction signature")}

	refreshCalled := false
	f := NewFaucet(signer, 0, func(uint64) { refreshCalled = true })

	alert, err := f.Mint(context.Background(), 5, tokenAddr, sdkmath.NewInt(1))
	assert.NoError(t, err)
	assert.Nil(t, alert)
	assert.False(t, refreshCalled)
}

func TestUnwrapRevertedReceipt(t *testing.T) {
	signer := &fakeSigner{receiptStatus: 0}

	refreshCalled := false
	f := NewFaucet(signer, 0, func(uint64) { refreshCalled = true })

	alert, err := f.Unwrap(context.Background(), 5, tokenAddr, sdkmath.NewInt(1))
	require.Error(t, err)

	require.NotNil(t, alert)
	assert.Equal(t, types.AlertFailed, alert.Status)
	assert.Equal(t, "Failed to unwrap.", alert.Message)
	assert.False(t, refreshCalled)
}
