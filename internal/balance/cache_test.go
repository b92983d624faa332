package balance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type fakeReader struct {
	mu       sync.Mutex
	balances map[common.Address]sdkmath.Int
	err      error
	calls    int
}

func (f *fakeReader) TokenBalance(_ context.Context, _ uint64, token, _ common.Address) (sdkmath.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return sdkmath.ZeroInt(), f.err
	}
	if bal, ok := f.balances[token]; ok {
		return bal, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) TokenSupply(context.Context, uint64, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) VirtualPrice(context.Context, uint64, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) PoolTokenIndex(context.Context, uint64, common.Address, common.Address) (uint8, error) {
	return 0, nil
}

func (f *fakeReader) CalculateSwap(context.Context, uint64, common.Address, uint8, uint8, sdkmath.Int) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) CalculateSwapPriceImpact(context.Context, uint64, common.Address, uint8, uint8, sdkmath.Int, int, int) (float64, error) {
	return 0, nil
}

func (f *fakeReader) Allowance(context.Context, uint64, common.Address, common.Address, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) setBalance(token common.Address, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[token] = sdkmath.NewInt(amount)
}

func (f *fakeReader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRefreshAllFillsTrackedEntries(t *testing.T) {
	reader := &fakeReader{balances: map[common.Address]sdkmath.Int{
		tokenA: sdkmath.NewInt(1_000_000),
		tokenB: sdkmath.NewInt(2_000_000),
	}}
	cache := NewCache(reader, owner, nil)
	cache.Track(5, tokenA, 6)
	cache.Track(5, tokenB, 6)

	cache.RefreshAll(context.Background())

	entry, ok := cache.Get(5, tokenA)
	require.True(t, ok)
	assert.Equal(t, "1000000", entry.Amount.String())
	assert.Equal(t, 6, entry.Decimals)

	entry, ok = cache.Get(5, tokenB)
	require.True(t, ok)
	assert.Equal(t, "2000000", entry.Amount.String())
}

func TestGetBeforeFirstRefresh(t *testing.T) {
	cache := NewCache(&fakeReader{balances: map[common.Address]sdkmath.Int{}}, owner, nil)
	cache.Track(5, tokenA, 6)

	_, ok := cache.Get(5, tokenA)
	assert.False(t, ok)
}

func TestReadFailureKeepsCachedValue(t *testing.T) {
	reader := &fakeReader{balances: map[common.Address]sdkmath.Int{tokenA: sdkmath.NewInt(1_000_000)}}
	cache := NewCache(reader, owner, nil)
	cache.Track(5, tokenA, 6)

	cache.RefreshAll(context.Background())

	reader.mu.Lock()
	reader.err = errors.New("rpc unavailable")
	reader.mu.Unlock()

	cache.RefreshAll(context.Background())

	entry, ok := cache.Get(5, tokenA)
	require.True(t, ok)
	assert.Equal(t, "1000000", entry.Amount.String())
}

func TestInvalidateRefreshesOnlyChain(t *testing.T) {
	reader := &fakeReader{balances: map[common.Address]sdkmath.Int{
		tokenA: sdkmath.NewInt(1),
		tokenB: sdkmath.NewInt(2),
	}}
	cache := NewCache(reader, owner, nil)
	cache.Track(5, tokenA, 6)
	cache.Track(420, tokenB, 6)

	cache.Invalidate(context.Background(), 5)

	_, okA := cache.Get(5, tokenA)
	_, okB := cache.Get(420, tokenB)
	assert.True(t, okA)
	assert.False(t, okB)
}

func TestLastWriteWins(t *testing.T) {
	reader := &fakeReader{balances: map[common.Address]sdkmath.Int{tokenA: sdkmath.NewInt(100)}}
	cache := NewCache(reader, owner, nil)
	cache.Track(5, tokenA, 6)

	now := time.Unix(1000, 0)
	cache.SetNowFunc(func() time.Time { return now })
	cache.RefreshAll(context.Background())

	// A refresh that observed earlier must not replace a newer entry.
	reader.setBalance(tokenA, 50)
	now = time.Unix(500, 0)
	cache.RefreshAll(context.Background())

	entry, ok := cache.Get(5, tokenA)
	require.True(t, ok)
	assert.Equal(t, "100", entry.Amount.String())
}

func TestRunSuppressedWhileTradeInFlight(t *testing.T) {
	reader := &fakeReader{balances: map[common.Address]sdkmath.Int{tokenA: sdkmath.NewInt(1)}}

	var mu sync.Mutex
	suppressed := true
	cache := NewCache(reader, owner, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return suppressed
	})
	cache.Track(5, tokenA, 6)
	cache.SetInterval(2 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.Run(ctx)

	// While suppressed no reads happen.
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, reader.callCount())

	mu.Lock()
	suppressed = false
	mu.Unlock()

	require.Eventually(t, func() bool {
		_, ok := cache.Get(5, tokenA)
		return ok
	}, time.Second, time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	reader := &fakeReader{balances: map[common.Address]sdkmath.Int{}}
	cache := NewCache(reader, owner, nil)
	cache.SetInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop on cancel")
	}
}

func TestUntrackDropsEntry(t *testing.T) {
	reader := &fakeReader{balances: map[common.Address]sdkmath.Int{tokenA: sdkmath.NewInt(1)}}
	cache := NewCache(reader, owner, nil)
	cache.Track(5, tokenA, 6)
	cache.RefreshAll(context.Background())

	cache.Untrack(5, tokenA)

	_, ok := cache.Get(5, tokenA)
	assert.False(t, ok)
}
