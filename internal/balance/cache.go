/*
Package balance keeps a periodically refreshed cache of the wallet's token
balances. Reads always serve the cached value; the chain is consulted on a
fixed cadence, on explicit invalidation, and never while a trade is mid-flight.
*/

package balance

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/sdk"
	"github.com/nexbridge/swapd/internal/types"
)

// DefaultRefreshInterval is the cadence of the background refresh loop.
const DefaultRefreshInterval = 15 * time.Second

type key struct {
	chainID uint64
	token   common.Address
}

// Cache tracks a set of (chain, token) entries for one wallet address.
type Cache struct {
	reader   sdk.Reader
	owner    common.Address
	interval time.Duration
	// suppress skips a periodic refresh, used while a trade is mid-flight so
	// a half-settled balance never flashes through the UI.
	suppress func() bool
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	tracked map[key]int // decimals per tracked entry
	entries map[key]types.BalanceEntry
}

// NewCache creates a cache for the owner's balances. suppress may be nil.
func NewCache(reader sdk.Reader, owner common.Address, suppress func() bool) *Cache {
	return &Cache{
		reader:   reader,
		owner:    owner,
		interval: DefaultRefreshInterval,
		suppress: suppress,
		now:      time.Now,
		logger:   logger.GetForComponent("balance_cache"),
		tracked:  make(map[key]int),
		entries:  make(map[key]types.BalanceEntry),
	}
}

// SetInterval overrides the refresh cadence.
func (c *Cache) SetInterval(interval time.Duration) {
	c.interval = interval
}

// SetNowFunc overrides the clock, for tests.
func (c *Cache) SetNowFunc(now func() time.Time) {
	c.now = now
}

// Track adds a (chain, token) entry to the refresh set. Tracking is
// idempotent; the first refresh fills the entry.
func (c *Cache) Track(chainID uint64, token common.Address, decimals int) {
	c.mu.Lock()
	c.tracked[key{chainID, token}] = decimals
	c.mu.Unlock()
}

// Untrack removes an entry and drops its cached value.
func (c *Cache) Untrack(chainID uint64, token common.Address) {
	k := key{chainID, token}
	c.mu.Lock()
	delete(c.tracked, k)
	delete(c.entries, k)
	c.mu.Unlock()
}

// Get returns the cached balance for a (chain, token), if observed yet.
func (c *Cache) Get(chainID uint64, token common.Address) (types.BalanceEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key{chainID, token}]
	return entry, ok
}

// Run refreshes tracked balances on the configured interval until ctx is
// cancelled.
func (c *Cache) Run(ctx context.Context) {
	c.logger.Info().Dur("interval", c.interval).Msg("Starting balance refresh loop")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Balance refresh loop stopped")
			return
		case <-ticker.C:
			if c.suppress != nil && c.suppress() {
				c.logger.Debug().Msg("Skipping balance refresh while a trade is in flight")
				continue
			}
			c.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every tracked entry.
func (c *Cache) RefreshAll(ctx context.Context) {
	c.refresh(ctx, func(key) bool { return true })
}

// Invalidate refreshes every tracked entry on the given chain immediately,
// bypassing the suppress hook. Called after a trade settles.
func (c *Cache) Invalidate(ctx context.Context, chainID uint64) {
	c.refresh(ctx, func(k key) bool { return k.chainID == chainID })
}

func (c *Cache) refresh(ctx context.Context, match func(key) bool) {
	c.mu.Lock()
	targets := make(map[key]int, len(c.tracked))
	for k, decimals := range c.tracked {
		if match(k) {
			targets[k] = decimals
		}
	}
	c.mu.Unlock()

	for k, decimals := range targets {
		amount, err := c.reader.TokenBalance(ctx, k.chainID, k.token, c.owner)
		if err != nil {
			// Keep the previous observation; a read blip must not zero out a
			// displayed balance.
			c.logger.Warn().
				Uint64("chain_id", k.chainID).
				Str("token", k.token.Hex()).
				Err(err).
				Msg("Balance read failed, keeping cached value")
			continue
		}

		entry := types.BalanceEntry{
			ChainID:      k.chainID,
			TokenAddress: k.token,
			Amount:       amount,
			Decimals:     decimals,
			ObservedAt:   c.now(),
		}

		c.mu.Lock()
		// Last write wins by observation time, so an overlapping slow refresh
		// never replaces a newer value with an older one.
		if existing, ok := c.entries[k]; !ok || !entry.ObservedAt.Before(existing.ObservedAt) {
			c.entries[k] = entry
		}
		c.mu.Unlock()
	}
}
