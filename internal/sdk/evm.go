package sdk

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
)

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"mint","type":"function","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"deposit","type":"function","stateMutability":"payable","inputs":[],"outputs":[]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const stableSwapABIJSON = `[
	{"name":"getTokenIndex","type":"function","stateMutability":"view","inputs":[{"name":"key","type":"bytes32"},{"name":"tokenAddress","type":"address"}],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"calculateSwap","type":"function","stateMutability":"view","inputs":[{"name":"key","type":"bytes32"},{"name":"tokenIndexFrom","type":"uint8"},{"name":"tokenIndexTo","type":"uint8"},{"name":"dx","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getVirtualPrice","type":"function","stateMutability":"view","inputs":[{"name":"key","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"swap","type":"function","stateMutability":"nonpayable","inputs":[{"name":"key","type":"bytes32"},{"name":"tokenIndexFrom","type":"uint8"},{"name":"tokenIndexTo","type":"uint8"},{"name":"dx","type":"uint256"},{"name":"minDy","type":"uint256"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	erc20ABI      abi.ABI
	stableSwapABI abi.ABI
)

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
	}
	stableSwapABI, err = abi.JSON(strings.NewReader(stableSwapABIJSON))
	if err != nil {
		panic(fmt.Sprintf("failed to parse stableswap ABI: %v", err))
	}
}

// EVMClient implements Reader over one ethclient per chain. Pools are keyed
// by the canonical token key the router derives from the asset's domain
// representation.
type EVMClient struct {
	clients map[uint64]*ethclient.Client
	poolKey func(chainID uint64, pool common.Address) [32]byte
	logger  zerolog.Logger
}

// NewEVMClient binds the reader to the given per-chain clients. keyFn maps a
// pool to its bytes32 lookup key; a nil keyFn derives the key from the pool
// address, which is correct for single-pool routers.
func NewEVMClient(clients map[uint64]*ethclient.Client, keyFn func(chainID uint64, pool common.Address) [32]byte) *EVMClient {
	if keyFn == nil {
		keyFn = func(_ uint64, pool common.Address) [32]byte {
			var key [32]byte
			copy(key[12:], pool.Bytes())
			return key
		}
	}
	return &EVMClient{
		clients: clients,
		poolKey: keyFn,
		logger:  logger.GetForComponent("sdk"),
	}
}

func (c *EVMClient) client(chainID uint64) (*ethclient.Client, error) {
	client, ok := c.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoClient, chainID)
	}
	return client, nil
}

func (c *EVMClient) call(ctx context.Context, chainID uint64, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	client, err := c.client(chainID)
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call to %s failed: %w", method, contract.Hex(), err)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}

func (c *EVMClient) callUint256(ctx context.Context, chainID uint64, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (sdkmath.Int, error) {
	out, err := c.call(ctx, chainID, contract, parsed, method, args...)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	value, ok := out[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%s returned unexpected type %T", method, out[0])
	}
	return sdkmath.NewIntFromBigInt(value), nil
}

func (c *EVMClient) TokenBalance(ctx context.Context, chainID uint64, token, holder common.Address) (sdkmath.Int, error) {
	return c.callUint256(ctx, chainID, token, erc20ABI, "balanceOf", holder)
}

func (c *EVMClient) TokenSupply(ctx context.Context, chainID uint64, token common.Address) (sdkmath.Int, error) {
	return c.callUint256(ctx, chainID, token, erc20ABI, "totalSupply")
}

func (c *EVMClient) Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (sdkmath.Int, error) {
	return c.callUint256(ctx, chainID, token, erc20ABI, "allowance", owner, spender)
}

func (c *EVMClient) VirtualPrice(ctx context.Context, chainID uint64, pool common.Address) (sdkmath.Int, error) {
	return c.callUint256(ctx, chainID, pool, stableSwapABI, "getVirtualPrice", c.poolKey(chainID, pool))
}

func (c *EVMClient) PoolTokenIndex(ctx context.Context, chainID uint64, pool, token common.Address) (uint8, error) {
	out, err := c.call(ctx, chainID, pool, stableSwapABI, "getTokenIndex", c.poolKey(chainID, pool), token)
	if err != nil {
		return 0, err
	}

	index, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("getTokenIndex returned unexpected type %T", out[0])
	}
	return index, nil
}

func (c *EVMClient) CalculateSwap(ctx context.Context, chainID uint64, pool common.Address, from, to uint8, dx sdkmath.Int) (sdkmath.Int, error) {
	return c.callUint256(ctx, chainID, pool, stableSwapABI, "calculateSwap", c.poolKey(chainID, pool), from, to, dx.BigInt())
}

// CalculateSwapPriceImpact quotes dx and a single-token reference amount
// through the pool and reports how far the executed rate falls below the
// spot rate.
func (c *EVMClient) CalculateSwapPriceImpact(ctx context.Context, chainID uint64, pool common.Address, from, to uint8, dx sdkmath.Int, fromDecimals, toDecimals int) (float64, error) {
	if dx.IsNil() || !dx.IsPositive() {
		return 0, nil
	}

	dy, err := c.CalculateSwap(ctx, chainID, pool, from, to, dx)
	if err != nil {
		return 0, err
	}

	unit := sdkmath.NewIntWithDecimal(1, fromDecimals)
	spotOut, err := c.CalculateSwap(ctx, chainID, pool, from, to, unit)
	if err != nil {
		return 0, err
	}

	return PriceImpactVsSpot(dx, dy, spotOut, fromDecimals, toDecimals), nil
}

// ApproveCalldata builds an ERC20 approve payload.
func ApproveCalldata(spender common.Address, amount sdkmath.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount.BigInt())
}

// SwapCalldata builds the pool swap payload. A nil deadline encodes the
// maximum uint256, meaning the swap never expires on its own.
func SwapCalldata(key [32]byte, from, to uint8, dx, minDy sdkmath.Int, deadline *big.Int) ([]byte, error) {
	if deadline == nil {
		deadline = MaxUint256()
	}
	return stableSwapABI.Pack("swap", key, from, to, dx.BigInt(), minDy.BigInt(), deadline)
}

// MintCalldata builds a test-token mint payload.
func MintCalldata(account common.Address, amount sdkmath.Int) ([]byte, error) {
	return erc20ABI.Pack("mint", account, amount.BigInt())
}

// WrapCalldata builds the wrapped-native deposit payload. The amount travels
// as the transaction value, not as calldata.
func WrapCalldata() ([]byte, error) {
	return erc20ABI.Pack("deposit")
}

// UnwrapCalldata builds the wrapped-native withdraw payload.
func UnwrapCalldata(amount sdkmath.Int) ([]byte, error) {
	return erc20ABI.Pack("withdraw", amount.BigInt())
}

// PoolKey exposes the client's key derivation for callers building swap
// calldata against the same router.
func (c *EVMClient) PoolKey(chainID uint64, pool common.Address) [32]byte {
	return c.poolKey(chainID, pool)
}

// MaxUint256 returns 2^256 - 1, the conventional infinite approval amount.
func MaxUint256() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}
