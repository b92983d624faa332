/*
Package quote derives the displayed output estimate for the current draft
against the current pair snapshot. A quote is never persisted and never
survives its inputs: any draft or pair change starts a new request and
invalidates the old one.
*/

package quote

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/sdk"
	"github.com/nexbridge/swapd/internal/types"
	"github.com/nexbridge/swapd/internal/utils"
)

// Engine computes quotes and holds the latest result. Concurrent requests
// are sequenced: only the newest request may publish its outcome.
type Engine struct {
	reader sdk.Reader
	logger zerolog.Logger

	mu      sync.Mutex
	seq     uint64
	current types.Quote
}

// NewEngine creates an engine with an empty quote.
func NewEngine(reader sdk.Reader) *Engine {
	return &Engine{
		reader:  reader,
		logger:  logger.GetForComponent("quote_engine"),
		current: types.Quote{State: types.QuoteEmpty},
	}
}

// Current returns the latest published quote.
func (e *Engine) Current() types.Quote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Clear resets the quote to empty and invalidates in-flight requests.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.seq++
	e.current = types.Quote{State: types.QuoteEmpty}
	e.mu.Unlock()
}

// Request computes a quote for the draft against the pair snapshot and
// returns the published result. When the preconditions do not hold the quote
// is empty, never an error: an unquotable draft is a normal resting state.
func (e *Engine) Request(ctx context.Context, draft types.TradeDraft, pair *types.ResolvedPair) types.Quote {
	if !quotable(draft, pair) {
		empty := types.Quote{State: types.QuoteEmpty}
		e.mu.Lock()
		e.seq++
		e.current = empty
		e.mu.Unlock()
		return empty
	}

	e.mu.Lock()
	e.seq++
	seq := e.seq
	e.current = types.Quote{State: types.QuotePending}
	e.mu.Unlock()

	result := e.compute(ctx, draft, pair)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq {
		// A newer request owns the display now.
		return e.current
	}
	e.current = result
	return result
}

func quotable(draft types.TradeDraft, pair *types.ResolvedPair) bool {
	if !pair.Usable(draft.ChainID, draft.AssetID) {
		return false
	}
	src, _ := pair.Tokens(draft.Direction)
	_, err := utils.ParsePositive(draft.Amount, src.Decimals)
	return err == nil
}

func (e *Engine) compute(ctx context.Context, draft types.TradeDraft, pair *types.ResolvedPair) types.Quote {
	src, dst := pair.Tokens(draft.Direction)

	dx, err := utils.ParsePositive(draft.Amount, src.Decimals)
	if err != nil {
		return types.Quote{State: types.QuoteEmpty}
	}

	fromIdx, err := e.reader.PoolTokenIndex(ctx, pair.ChainID, pair.PoolAddress, src.Address)
	if err != nil {
		return e.failed(pair, err)
	}
	toIdx, err := e.reader.PoolTokenIndex(ctx, pair.ChainID, pair.PoolAddress, dst.Address)
	if err != nil {
		return e.failed(pair, err)
	}

	dy, err := e.reader.CalculateSwap(ctx, pair.ChainID, pair.PoolAddress, fromIdx, toIdx, dx)
	if err != nil {
		return e.failed(pair, err)
	}

	output, err := utils.FormatUnits(dy, dst.Decimals)
	if err != nil {
		return e.failed(pair, err)
	}

	quote := types.Quote{
		State:        types.QuoteReady,
		OutputAmount: output,
	}

	// Price impact is advisory. A failed read degrades the quote, it does
	// not fail it.
	impact, err := e.reader.CalculateSwapPriceImpact(ctx, pair.ChainID, pair.PoolAddress, fromIdx, toIdx, dx, src.Decimals, dst.Decimals)
	if err != nil {
		e.logger.Warn().Str("pair_id", pair.ID).Err(err).Msg("Price impact read failed")
	} else {
		quote.PriceImpactPercent = &impact
	}

	e.logger.Debug().
		Str("pair_id", pair.ID).
		Str("amount_in", draft.Amount).
		Str("amount_out", output).
		Msg("Quote computed")

	return quote
}

func (e *Engine) failed(pair *types.ResolvedPair, err error) types.Quote {
	e.logger.Warn().Str("pair_id", pair.ID).Err(err).Msg("Quote computation failed")
	return types.Quote{State: types.QuoteFailed, Err: err}
}
