package quote

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

	"github.com/nexbridge/swapd/internal/types"
)

type fakeReader struct {
	mu        sync.Mutex
	indexes   map[common.Address]uint8
	swapOut   sdkmath.Int
	impact    float64
	indexErr  error
	swapErr   error
	impactErr error
	swapCalls int
	gate      chan struct{}
}

func (f *fakeReader) TokenBalance(context.Context, uint64, common.Address, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) TokenSupply(context.Context, uint64, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) VirtualPrice(context.Context, uint64, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (f *fakeReader) PoolTokenIndex(_ context.Context, _ uint64, _, token common.Address) (uint8, error) {
	if f.indexErr != nil {
		return 0, f.indexErr
	}
	return f.indexes[token], nil
}

func (f *fakeReader) CalculateSwap(context.Context, uint64, common.Address, uint8, uint8, sdkmath.Int) (sdkmath.Int, error) {
	f.mu.Lock()
	f.swapCalls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if f.swapErr != nil {
		return sdkmath.ZeroInt(), f.swapErr
	}
	return f.swapOut, nil
}

func (f *fakeReader) CalculateSwapPriceImpact(context.Context, uint64, common.Address, uint8, uint8, sdkmath.Int, int, int) (float64, error) {
	if f.impactErr != nil {
		return 0, f.impactErr
	}
	return f.impact, nil
}

func (f *fakeReader) Allowance(context.Context, uint64, common.Address, common.Address, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

var (
	adoptedAddr = common.HexToAddress("0x0000000000000000000000000000000000000004")
	localAddr   = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func testPair() *types.ResolvedPair {
	return &types.ResolvedPair{
		ID:          "5_TEST",
		ChainID:     5,
		AssetID:     "TEST",
		PoolAddress: common.HexToAddress("0x0000000000000000000000000000000000000001"),
		TokenX:      types.PairToken{Address: adoptedAddr, Symbol: "TEST", Decimals: 6},
		TokenY:      types.PairToken{Address: localAddr, Symbol: "nextTEST", Decimals: 6},
		ResolvedAt:  time.Now(),
	}
}

func testDraft(amount string) types.TradeDraft {
	return types.TradeDraft{
		ChainID:   5,
		AssetID:   "TEST",
		Amount:    amount,
		Direction: types.DirectionXToY,
	}
}

func TestRequestReadyQuote(t *testing.T) {
	reader := &fakeReader{
		indexes: map[common.Address]uint8{adoptedAddr: 0, localAddr: 1},
		swapOut: sdkmath.NewInt(99_500_000),
		impact:  0.5,
	}
	engine := NewEngine(reader)

	got := engine.Request(context.Background(), testDraft("100"), testPair())

	assert.Equal(t, types.QuoteReady, got.State)
	assert.Equal(t, "99.5", got.OutputAmount)
	require.NotNil(t, got.PriceImpactPercent)
	assert.InDelta(t, 0.5, *got.PriceImpactPercent, 1e-9)
	assert.Equal(t, got, engine.Current())
}

func TestRequestReadyQuoteWithoutImpact(t *testing.T) {
	reader := &fakeReader{
		indexes:   map[common.Address]uint8{adoptedAddr: 0, localAddr: 1},
		swapOut:   sdkmath.NewInt(99_500_000),
		impactErr: errors.New("execution reverted"),
	}
	engine := NewEngine(reader)

	got := engine.Request(context.Background(), testDraft("100"), testPair())

	// The impact read is advisory; its failure must not sink the quote.
	assert.Equal(t, types.QuoteReady, got.State)
	assert.Equal(t, "99.5", got.OutputAmount)
	assert.Nil(t, got.PriceImpactPercent)
}

func TestRequestEmptyPreconditions(t *testing.T) {
	reader := &fakeReader{swapOut: sdkmath.NewInt(1)}
	engine := NewEngine(reader)

	tests := []struct {
		name  string
		draft types.TradeDraft
		pair  *types.ResolvedPair
	}{
		{name: "nil pair", draft: testDraft("100"), pair: nil},
		{name: "no amount", draft: testDraft(""), pair: testPair()},
		{name: "zero amount", draft: testDraft("0"), pair: testPair()},
		{name: "dust truncates to zero", draft: testDraft("0.0000001"), pair: testPair()},
		{name: "malformed amount", draft: testDraft("1.2.3"), pair: testPair()},
		{name: "errored pair", draft: testDraft("100"), pair: func() *types.ResolvedPair {
			p := testPair()
			p.Err = errors.New("resolution failed")
			return p
		}()},
		{name: "identity mismatch", draft: func() types.TradeDraft {
			d := testDraft("100")
			d.AssetID = "OTHER"
			return d
		}(), pair: testPair()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.Request(context.Background(), tc.draft, tc.pair)
			assert.Equal(t, types.QuoteEmpty, got.State)
			assert.Zero(t, reader.swapCalls)
		})
	}
}

func TestRequestFailedQuote(t *testing.T) {
	reader := &fakeReader{
		indexes: map[common.Address]uint8{adoptedAddr: 0, localAddr: 1},
		swapErr: errors.New("execution reverted"),
	}
	engine := NewEngine(reader)

	got := engine.Request(context.Background(), testDraft("100"), testPair())

	assert.Equal(t, types.QuoteFailed, got.State)
	assert.Error(t, got.Err)
	assert.Empty(t, got.OutputAmount)
}

func TestRequestSupersededByNewerRequest(t *testing.T) {
	reader := &fakeReader{
		indexes: map[common.Address]uint8{adoptedAddr: 0, localAddr: 1},
		swapOut: sdkmath.NewInt(99_500_000),
		gate:    make(chan struct{}),
	}
	engine := NewEngine(reader)

	done := make(chan types.Quote, 1)
	go func() {
		done <- engine.Request(context.Background(), testDraft("100"), testPair())
	}()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return reader.swapCalls > 0
	}, time.Second, time.Millisecond)

	// While the first request is in flight the display shows pending.
	assert.Equal(t, types.QuotePending, engine.Current().State)

	// A newer event clears the quote; the stale result must not resurface.
	engine.Clear()
	close(reader.gate)
	<-done

	assert.Equal(t, types.QuoteEmpty, engine.Current().State)
}

func TestRequestSupersededByClearDuringFlight(t *testing.T) {
	reader := &fakeReader{
		indexes: map[common.Address]uint8{adoptedAddr: 0, localAddr: 1},
		swapOut: sdkmath.NewInt(1_000_000),
		gate:    make(chan struct{}),
	}
	engine := NewEngine(reader)

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Request(context.Background(), testDraft("1"), testPair())
	}()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return reader.swapCalls > 0
	}, time.Second, time.Millisecond)

	// A second request for a different amount supersedes the first.
	reader.mu.Lock()
	gate := reader.gate
	reader.gate = nil
	reader.mu.Unlock()

	second := engine.Request(context.Background(), testDraft("2"), testPair())
	require.Equal(t, types.QuoteReady, second.State)

	close(gate)
	<-done

	// The first request's result was discarded.
	assert.Equal(t, second, engine.Current())
}
