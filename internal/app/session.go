/*
Package app coordinates the swap session: the user's draft, the pair
snapshot, the displayed quote and the trade lifecycle. Every draft mutation
flows through here so the derived state can never drift from its inputs.
*/

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/balance"
	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/pair"
	"github.com/nexbridge/swapd/internal/quote"
	"github.com/nexbridge/swapd/internal/refdata"
	"github.com/nexbridge/swapd/internal/trade"
	"github.com/nexbridge/swapd/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrTradeInFlight = errors.New("draft is locked while a trade is in flight")
	ErrNoPairChosen  = errors.New("no pair selected")
)

// Config wires the session's collaborators.
type Config struct {
	Resolver *pair.Resolver
	Quotes   *quote.Engine
	Trades   *trade.Orchestrator
	Balances *balance.Cache
	RefData  *refdata.Store
	// DefaultSlippagePercent seeds the draft options.
	DefaultSlippagePercent float64
}

func (c Config) validate() error {
	if c.Resolver == nil {
		return fmt.Errorf("session config: Resolver is required")
	}
	if c.Quotes == nil {
		return fmt.Errorf("session config: Quotes is required")
	}
	if c.Trades == nil {
		return fmt.Errorf("session config: Trades is required")
	}
	if c.RefData == nil {
		return fmt.Errorf("session config: RefData is required")
	}
	return nil
}

// View is the session's full observable state, serialized to the UI.
type View struct {
	Draft   types.TradeDraft    `json:"draft"`
	Pair    *types.ResolvedPair `json:"pair,omitempty"`
	Quote   types.Quote         `json:"quote"`
	Attempt *types.TradeAttempt `json:"attempt,omitempty"`
	Alert   *types.Alert        `json:"alert,omitempty"`
}

// Session owns one user's draft and drives the derived state.
type Session struct {
	cfg    Config
	logger zerolog.Logger

	mu    sync.Mutex
	draft types.TradeDraft
}

// NewSession validates the config and returns an idle session.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:    cfg,
		logger: logger.GetForComponent("session"),
		draft: types.TradeDraft{
			Direction: types.DirectionXToY,
			Options:   types.TradeOptions{SlippagePercent: cfg.DefaultSlippagePercent},
		},
	}, nil
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()

	return View{
		Draft:   draft,
		Pair:    s.cfg.Resolver.Current(),
		Quote:   s.cfg.Quotes.Current(),
		Attempt: s.cfg.Trades.Attempt(),
		Alert:   s.cfg.Trades.Alert(),
	}
}

// SelectPair points the draft at a (chain, asset) and resolves it. Changing
// identity clears the amount: an amount entered for one pair must not carry
// into another with different decimals.
func (s *Session) SelectPair(ctx context.Context, chainID uint64, assetID string) error {
	if s.cfg.Trades.Busy() {
		return ErrTradeInFlight
	}

	s.mu.Lock()
	identityChanged := s.draft.ChainID != chainID || s.draft.AssetID != assetID
	s.draft.ChainID = chainID
	s.draft.AssetID = assetID
	if identityChanged {
		s.draft.Amount = ""
	}
	s.mu.Unlock()

	if identityChanged {
		s.cfg.Quotes.Clear()
		s.cfg.Trades.Reset()
	}

	s.cfg.Resolver.SetTarget(chainID, assetID)
	resolved, err := s.cfg.Resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	if resolved != nil && s.cfg.Balances != nil {
		s.cfg.Balances.Track(chainID, resolved.TokenX.Address, resolved.TokenX.Decimals)
		s.cfg.Balances.Track(chainID, resolved.TokenY.Address, resolved.TokenY.Decimals)
	}

	s.requote(ctx)
	return nil
}

// SetAmount updates the draft amount and requotes.
func (s *Session) SetAmount(ctx context.Context, amount string) error {
	return s.mutate(ctx, func(draft *types.TradeDraft) {
		draft.Amount = amount
	})
}

// SetDirection flips the trade direction and requotes.
func (s *Session) SetDirection(ctx context.Context, direction types.Direction) error {
	return s.mutate(ctx, func(draft *types.TradeDraft) {
		draft.Direction = direction
	})
}

// SetOptions replaces the execution options and requotes.
func (s *Session) SetOptions(ctx context.Context, opts types.TradeOptions) error {
	return s.mutate(ctx, func(draft *types.TradeDraft) {
		draft.Options = opts
	})
}

func (s *Session) mutate(ctx context.Context, apply func(*types.TradeDraft)) error {
	if s.cfg.Trades.Busy() {
		return ErrTradeInFlight
	}

	s.mu.Lock()
	apply(&s.draft)
	s.mu.Unlock()

	s.requote(ctx)
	return nil
}

// requote refreshes the pair if needed and recomputes the quote for the
// current draft. Quote preconditions decide whether anything is displayed.
func (s *Session) requote(ctx context.Context) {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()

	if draft.ChainID == 0 || draft.AssetID == "" {
		s.cfg.Quotes.Clear()
		return
	}

	resolved, err := s.cfg.Resolver.Resolve(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Pair refresh failed during requote")
	}
	if resolved == nil {
		resolved = s.cfg.Resolver.Current()
	}
	s.cfg.Quotes.Request(ctx, draft, resolved)
}

// Commit executes the current draft, blocking until the attempt reaches a
// terminal phase.
func (s *Session) Commit(ctx context.Context) (types.TradeAttempt, error) {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()

	if draft.ChainID == 0 || draft.AssetID == "" {
		return types.TradeAttempt{}, ErrNoPairChosen
	}

	resolved, err := s.cfg.Resolver.Resolve(ctx)
	if err != nil {
		return types.TradeAttempt{}, err
	}

	return s.cfg.Trades.Commit(ctx, draft, resolved)
}

// Reset clears the attempt, alert, quote and amount. Identity and options
// survive so the user lands back on the same pair.
func (s *Session) Reset() {
	s.cfg.Trades.Reset()
	s.cfg.Quotes.Clear()

	s.mu.Lock()
	s.draft.Amount = ""
	s.mu.Unlock()
}

// HandleSettled runs after a successful trade settles: the pool moved, so
// the pair, quote and balances are all refreshed from the chain.
func (s *Session) HandleSettled(ctx context.Context, chainID uint64) {
	if _, err := s.cfg.Resolver.ForceResolve(ctx); err != nil {
		s.logger.Warn().Uint64("chain_id", chainID).Err(err).Msg("Pair refresh after settlement failed")
	}
	if s.cfg.Balances != nil {
		s.cfg.Balances.Invalidate(ctx, chainID)
	}
	s.requote(ctx)
}
