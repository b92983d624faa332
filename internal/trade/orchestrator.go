/*
Package trade drives a committed trade through its approve-then-swap
lifecycle. One attempt runs at a time; the phase field is the single source
of truth for where the attempt is, and every transition is persisted.
*/

package trade

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/sdk"
	"github.com/nexbridge/swapd/internal/state"
	"github.com/nexbridge/swapd/internal/types"
	"github.com/nexbridge/swapd/internal/utils"
	"github.com/nexbridge/swapd/internal/wallet"
)

// DefaultSettleDelay is how long after a confirmed swap the settled hook
// fires, giving the chain a moment to reflect the new balances.
const DefaultSettleDelay = 1 * time.Second

// Error definitions for zero-tolerance error handling
var (
	ErrAttemptInProgress = errors.New("a trade attempt is already in progress")
	ErrPairUnusable      = errors.New("pair snapshot is not usable for trading")
	ErrInvalidDraft      = errors.New("trade draft is not executable")
)

// User-facing failure messages. The raw provider text is kept in logs and the
// persisted record; these are what the alert shows.
const (
	msgEstimateFailed    = "Slippage exceeded. Please try increasing slippage tolerance and resubmitting your transfer."
	msgSlippageExceeded  = "Exceeded slippage tolerance. Please increase tolerance and try again."
	msgSwapFailedFmt     = "Failed to swap %s"
	msgSwapSucceededFmt  = "Swap %s successful"
	msgApproveFailedFmt  = "Failed to approve %s"
	msgSwapInProgressFmt = "Swapping %s"
)

// Config wires the orchestrator's collaborators and tunables.
type Config struct {
	Reader sdk.Reader
	Signer wallet.Signer
	// PoolKey maps a pool to the bytes32 key its router expects.
	PoolKey func(chainID uint64, pool common.Address) [32]byte
	// GasAdjustment scales the node's gas estimate before sending.
	GasAdjustment float64
	// DefaultSlippagePercent applies when the draft does not set one.
	DefaultSlippagePercent float64
	// SettleDelay is the pause between a confirmed swap and OnSettled.
	SettleDelay time.Duration
	// OnSettled fires once per successful swap, after SettleDelay. Optional.
	OnSettled func(chainID uint64)
	// Persist receives every phase transition. Optional.
	Persist func(state.TradeRecord) error
}

func (c Config) validate() error {
	if c.Reader == nil {
		return fmt.Errorf("orchestrator config: Reader is required")
	}
	if c.Signer == nil {
		return fmt.Errorf("orchestrator config: Signer is required")
	}
	if c.PoolKey == nil {
		return fmt.Errorf("orchestrator config: PoolKey is required")
	}
	if c.GasAdjustment < 1 {
		return fmt.Errorf("orchestrator config: GasAdjustment must be >= 1, got %f", c.GasAdjustment)
	}
	if c.DefaultSlippagePercent <= 0 || c.DefaultSlippagePercent >= 100 {
		return fmt.Errorf("orchestrator config: DefaultSlippagePercent must be in (0, 100), got %f", c.DefaultSlippagePercent)
	}
	return nil
}

// Orchestrator executes committed trades.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	attempt *types.TradeAttempt
	alert   *types.Alert
}

// NewOrchestrator validates the config and returns an idle orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.GetForComponent("trade_orchestrator"),
	}, nil
}

// Attempt returns a copy of the current attempt, if any.
func (o *Orchestrator) Attempt() *types.TradeAttempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt == nil {
		return nil
	}
	copied := *o.attempt
	return &copied
}

// Alert returns the current user-facing alert, if any.
func (o *Orchestrator) Alert() *types.Alert {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.alert == nil {
		return nil
	}
	copied := *o.alert
	return &copied
}

// Busy reports whether an attempt is in a non-terminal phase.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt != nil && !o.attempt.Phase.Terminal()
}

// Reset discards the current attempt and alert and supersedes any in-flight
// work. Safe to call at any time, any number of times.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.gen++
	o.attempt = nil
	o.alert = nil
	o.mu.Unlock()
}

// Commit executes the draft against the pair snapshot and blocks until the
// attempt reaches a terminal phase. Only one commit may run at a time; a
// second commit while the first is live fails fast instead of queueing.
func (o *Orchestrator) Commit(ctx context.Context, draft types.TradeDraft, pair *types.ResolvedPair) (types.TradeAttempt, error) {
	if !pair.Usable(draft.ChainID, draft.AssetID) {
		return types.TradeAttempt{}, ErrPairUnusable
	}

	src, dst := pair.Tokens(draft.Direction)
	dx, err := utils.ParsePositive(draft.Amount, src.Decimals)
	if err != nil {
		return types.TradeAttempt{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	slippage := draft.Options.SlippagePercent
	if slippage == 0 {
		slippage = o.cfg.DefaultSlippagePercent
	}
	if slippage <= 0 || slippage >= 100 {
		return types.TradeAttempt{}, fmt.Errorf("%w: slippage percent %f out of range", ErrInvalidDraft, slippage)
	}

	symbols := pair.SymbolPair(draft.Direction)

	o.mu.Lock()
	if o.attempt != nil && !o.attempt.Phase.Terminal() {
		o.mu.Unlock()
		return types.TradeAttempt{}, ErrAttemptInProgress
	}
	o.gen++
	gen := o.gen
	o.attempt = &types.TradeAttempt{
		ID:        uuid.New(),
		Phase:     types.PhaseCheckingApproval,
		StartedAt: time.Now(),
	}
	o.alert = &types.Alert{Status: types.AlertPending, Message: fmt.Sprintf(msgSwapInProgressFmt, symbols)}
	attempt := *o.attempt
	o.mu.Unlock()

	run := commitRun{
		o:        o,
		gen:      gen,
		draft:    draft,
		pair:     pair,
		src:      src,
		dst:      dst,
		dx:       dx,
		slippage: slippage,
		symbols:  symbols,
	}
	run.persist(attempt)

	return run.execute(ctx)
}

// commitRun carries one commit's inputs through the phase sequence.
type commitRun struct {
	o        *Orchestrator
	gen      uint64
	draft    types.TradeDraft
	pair     *types.ResolvedPair
	src, dst types.PairToken
	dx       sdkmath.Int
	slippage float64
	symbols  string
	minOut   string
}

func (r *commitRun) execute(ctx context.Context) (types.TradeAttempt, error) {
	if done, attempt := r.approveIfNeeded(ctx); done {
		return attempt, nil
	}
	return r.swap(ctx)
}

func (r *commitRun) approveIfNeeded(ctx context.Context) (bool, types.TradeAttempt) {
	o := r.o

	allowance, err := o.cfg.Reader.Allowance(ctx, r.pair.ChainID, r.src.Address, o.cfg.Signer.Address(), r.pair.PoolAddress)
	if err != nil {
		return true, r.fail(err, fmt.Sprintf(msgApproveFailedFmt, r.src.Symbol))
	}
	if allowance.GTE(r.dx) {
		return false, types.TradeAttempt{}
	}

	approveAmount := r.dx
	if r.draft.Options.InfiniteApprove {
		approveAmount = sdkmath.NewIntFromBigInt(sdk.MaxUint256())
	}

	data, err := sdk.ApproveCalldata(r.pair.PoolAddress, approveAmount)
	if err != nil {
		return true, r.fail(err, fmt.Sprintf(msgApproveFailedFmt, r.src.Symbol))
	}

	if _, ok := r.transition(types.PhaseApproving, nil); !ok {
		return true, r.snapshot()
	}

	tokenAddr := r.src.Address
	txHash, err := o.cfg.Signer.SendTransaction(ctx, wallet.TxRequest{
		ChainID: r.pair.ChainID,
		To:      &tokenAddr,
		Data:    data,
	})
	if err != nil {
		if wallet.IsUserRejection(err) {
			return true, r.abandon()
		}
		return true, r.fail(err, fmt.Sprintf(msgApproveFailedFmt, r.src.Symbol))
	}

	attempt, ok := r.transition(types.PhaseAwaitingApprovalReceipt, func(a *types.TradeAttempt) {
		a.ApprovalTxHash = &txHash
	})
	if !ok {
		return true, attempt
	}

	receipt, err := o.cfg.Signer.WaitForTransaction(ctx, r.pair.ChainID, txHash)
	if err != nil {
		return true, r.fail(err, fmt.Sprintf(msgApproveFailedFmt, r.src.Symbol))
	}
	if !receipt.Succeeded() {
		return true, r.fail(wallet.ErrTransactionReverted, fmt.Sprintf(msgApproveFailedFmt, r.src.Symbol))
	}

	o.logger.Info().
		Str("pair_id", r.pair.ID).
		Str("tx_hash", txHash.Hex()).
		Msg("Approval confirmed")
	return false, types.TradeAttempt{}
}

func (r *commitRun) swap(ctx context.Context) (types.TradeAttempt, error) {
	o := r.o

	// The slippage floor is derived from a fresh pool estimate at commit
	// time, not from whatever quote was last displayed.
	fromIdx, err := o.cfg.Reader.PoolTokenIndex(ctx, r.pair.ChainID, r.pair.PoolAddress, r.src.Address)
	if err != nil {
		return r.fail(err, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}
	toIdx, err := o.cfg.Reader.PoolTokenIndex(ctx, r.pair.ChainID, r.pair.PoolAddress, r.dst.Address)
	if err != nil {
		return r.fail(err, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}
	dy, err := o.cfg.Reader.CalculateSwap(ctx, r.pair.ChainID, r.pair.PoolAddress, fromIdx, toIdx, r.dx)
	if err != nil {
		return r.fail(err, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}

	expected, err := utils.FormatUnits(dy, r.dst.Decimals)
	if err != nil {
		return r.fail(err, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}
	r.minOut, err = utils.MinOutput(expected, r.slippage, r.dst.Decimals)
	if err != nil {
		return r.fail(err, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}
	minDy, err := utils.ParseUnits(r.minOut, r.dst.Decimals)
	if err != nil {
		return r.fail(err, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}

	var deadline *big.Int
	if minutes := r.draft.Options.DeadlineMinutes; minutes > 0 {
		deadline = big.NewInt(time.Now().Add(time.Duration(minutes) * time.Minute).Unix())
	}

	key := o.cfg.PoolKey(r.pair.ChainID, r.pair.PoolAddress)
	data, err := sdk.SwapCalldata(key, fromIdx, toIdx, r.dx, minDy, deadline)
	if err != nil {
		return r.fail(err, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}

	poolAddr := r.pair.PoolAddress
	req := wallet.TxRequest{
		ChainID: r.pair.ChainID,
		To:      &poolAddr,
		Data:    data,
	}

	gas, err := o.cfg.Signer.EstimateGas(ctx, req)
	if err != nil {
		return r.failProvider(err), nil
	}
	req.GasLimit = uint64(math.Round(float64(gas) * o.cfg.GasAdjustment))

	if _, ok := r.transition(types.PhaseSwapping, nil); !ok {
		return r.snapshot(), nil
	}

	txHash, err := o.cfg.Signer.SendTransaction(ctx, req)
	if err != nil {
		if wallet.IsUserRejection(err) {
			return r.abandon(), nil
		}
		return r.failProvider(err), nil
	}

	attempt, ok := r.transition(types.PhaseAwaitingSwapReceipt, func(a *types.TradeAttempt) {
		a.SwapTxHash = &txHash
	})
	if !ok {
		return attempt, nil
	}

	receipt, err := o.cfg.Signer.WaitForTransaction(ctx, r.pair.ChainID, txHash)
	if err != nil {
		return r.failProvider(err), nil
	}
	if !receipt.Succeeded() {
		return r.fail(wallet.ErrTransactionReverted, fmt.Sprintf(msgSwapFailedFmt, r.symbols)), nil
	}

	return r.succeed(txHash), nil
}

// transition moves the attempt to the next phase unless the run has been
// superseded by a reset or a newer commit.
func (r *commitRun) transition(phase types.Phase, mutate func(*types.TradeAttempt)) (types.TradeAttempt, bool) {
	o := r.o

	o.mu.Lock()
	if o.gen != r.gen || o.attempt == nil {
		var attempt types.TradeAttempt
		if o.attempt != nil {
			attempt = *o.attempt
		}
		o.mu.Unlock()
		return attempt, false
	}
	o.attempt.Phase = phase
	if mutate != nil {
		mutate(o.attempt)
	}
	attempt := *o.attempt
	o.mu.Unlock()

	o.logger.Debug().
		Str("attempt_id", attempt.ID.String()).
		Str("phase", string(phase)).
		Msg("Trade phase transition")

	r.persist(attempt)
	return attempt, true
}

// abandon handles a user rejection: the attempt quietly returns to idle with
// no alert and no failure record.
func (r *commitRun) abandon() types.TradeAttempt {
	o := r.o

	o.mu.Lock()
	if o.gen == r.gen && o.attempt != nil {
		o.attempt.Phase = types.PhaseIdle
		now := time.Now()
		o.attempt.CompletedAt = &now
		o.alert = nil
	}
	var attempt types.TradeAttempt
	if o.attempt != nil {
		attempt = *o.attempt
	}
	o.mu.Unlock()

	o.logger.Info().
		Str("attempt_id", attempt.ID.String()).
		Msg("Trade abandoned by user, resetting quietly")

	r.persist(attempt)
	return attempt
}

// failProvider classifies a provider error and rewrites the user-facing
// message for the known slippage shapes.
func (r *commitRun) failProvider(err error) types.TradeAttempt {
	pe := wallet.ParseProviderError(err)

	message := fmt.Sprintf(msgSwapFailedFmt, r.symbols)
	switch pe.Code {
	case wallet.CodeEstimateGasFailed:
		message = msgEstimateFailed
	case wallet.CodeSlippageExceeded:
		message = msgSlippageExceeded
	}
	return r.failWithCode(pe, message, string(pe.Code))
}

func (r *commitRun) fail(err error, message string) types.TradeAttempt {
	pe := wallet.ParseProviderError(err)
	return r.failWithCode(pe, message, string(pe.Code))
}

func (r *commitRun) failWithCode(cause error, message, code string) types.TradeAttempt {
	o := r.o

	o.mu.Lock()
	if o.gen == r.gen && o.attempt != nil {
		o.attempt.Phase = types.PhaseFailed
		o.attempt.ResultMessage = message
		o.attempt.ErrorCode = code
		now := time.Now()
		o.attempt.CompletedAt = &now
		o.alert = &types.Alert{Status: types.AlertFailed, Message: message}
	}
	var attempt types.TradeAttempt
	if o.attempt != nil {
		attempt = *o.attempt
	}
	o.mu.Unlock()

	o.logger.Error().
		Str("attempt_id", attempt.ID.String()).
		Str("pair_id", r.pair.ID).
		Err(cause).
		Msg(message)

	r.persist(attempt)
	return attempt
}

func (r *commitRun) succeed(txHash common.Hash) types.TradeAttempt {
	o := r.o
	message := fmt.Sprintf(msgSwapSucceededFmt, r.symbols)

	o.mu.Lock()
	superseded := o.gen != r.gen || o.attempt == nil
	if !superseded {
		o.attempt.Phase = types.PhaseSucceeded
		o.attempt.ResultMessage = message
		now := time.Now()
		o.attempt.CompletedAt = &now
		o.alert = &types.Alert{Status: types.AlertSuccess, Message: message, TxHash: &txHash}
	}
	var attempt types.TradeAttempt
	if o.attempt != nil {
		attempt = *o.attempt
	}
	o.mu.Unlock()

	o.logger.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("pair_id", r.pair.ID).
		Str("tx_hash", txHash.Hex()).
		Msg(message)

	r.persist(attempt)

	if !superseded && o.cfg.OnSettled != nil {
		chainID := r.pair.ChainID
		time.AfterFunc(o.cfg.SettleDelay, func() {
			o.cfg.OnSettled(chainID)
		})
	}
	return attempt
}

func (r *commitRun) snapshot() types.TradeAttempt {
	o := r.o
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt == nil {
		return types.TradeAttempt{}
	}
	return *o.attempt
}

func (r *commitRun) persist(attempt types.TradeAttempt) {
	o := r.o
	if o.cfg.Persist == nil {
		return
	}

	rec := state.TradeRecord{
		Attempt:         attempt,
		PairID:          r.pair.ID,
		Direction:       r.draft.Direction,
		AmountIn:        r.draft.Amount,
		MinAmountOut:    r.minOut,
		SlippagePercent: r.slippage,
	}
	if err := o.cfg.Persist(rec); err != nil {
		o.logger.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to persist trade attempt")
	}
}
