package sdk

import (
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceImpactVsSpot(t *testing.T) {
	// Spot quotes 0.995 USDT for one USDC, so the 0.5% pool fee is the
	// baseline. 100 USDC producing 99.0025 USDT executes half a percent
	// below that spot rate.
	impact := PriceImpactVsSpot(sdkmath.NewInt(100_000_000), sdkmath.NewInt(99_002_500), sdkmath.NewInt(995_000), 6, 6)
	assert.InDelta(t, 0.5, impact, 1e-9)

	// Executing exactly at the spot rate is zero impact even with a fee.
	impact = PriceImpactVsSpot(sdkmath.NewInt(100_000_000), sdkmath.NewInt(99_500_000), sdkmath.NewInt(995_000), 6, 6)
	assert.InDelta(t, 0.0, impact, 1e-9)

	// Mixed decimals normalize before comparing. One token out at 18
	// decimals spot, 99 out for 100 in is one percent impact.
	oneOut := sdkmath.NewIntFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	dy := sdkmath.NewInt(99).Mul(oneOut)
	impact = PriceImpactVsSpot(sdkmath.NewInt(100_000_000), dy, oneOut, 6, 18)
	assert.InDelta(t, 1.0, impact, 1e-9)

	// Degenerate inputs never divide by zero.
	assert.Zero(t, PriceImpactVsSpot(sdkmath.ZeroInt(), sdkmath.NewInt(1), sdkmath.NewInt(1), 6, 6))
	assert.Zero(t, PriceImpactVsSpot(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt(), 6, 6))
	assert.Zero(t, PriceImpactVsSpot(sdkmath.Int{}, sdkmath.NewInt(1), sdkmath.NewInt(1), 6, 6))
}

func TestSwapCalldataDeadline(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("pool"))

	withDeadline, err := SwapCalldata(key, 0, 1, sdkmath.NewInt(100), sdkmath.NewInt(99), big.NewInt(1700000000))
	require.NoError(t, err)

	noDeadline, err := SwapCalldata(key, 0, 1, sdkmath.NewInt(100), sdkmath.NewInt(99), nil)
	require.NoError(t, err)

	assert.NotEqual(t, withDeadline, noDeadline)

	// The open-ended form carries the max uint256 deadline.
	assert.Equal(t, MaxUint256().Bytes(), noDeadline[len(noDeadline)-32:])
}

func TestApproveCalldata(t *testing.T) {
	spender := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	data, err := ApproveCalldata(spender, sdkmath.NewInt(1))
	require.NoError(t, err)

	method, err := erc20ABI.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "approve", method.Name)
}

func TestMaxUint256(t *testing.T) {
	expected, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)
	assert.Zero(t, MaxUint256().Cmp(expected))
}

func TestDefaultPoolKey(t *testing.T) {
	client := NewEVMClient(nil, nil)
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")

	key := client.PoolKey(1, pool)
	assert.Equal(t, pool.Bytes(), key[12:])
}
