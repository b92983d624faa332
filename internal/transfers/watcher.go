/*
Package transfers polls an indexer for the wallet's cross-chain transfer
history and keeps a deduplicated, time-ordered view of it.
*/

package transfers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/types"
)

// DefaultPollInterval is the cadence of the history poll.
const DefaultPollInterval = 10 * time.Second

// Source fetches the raw transfer list for a user. Implementations talk to
// an external indexer; the watcher owns ordering and deduplication.
type Source interface {
	FetchTransfers(ctx context.Context, user common.Address) ([]types.Transfer, error)
}

// PersistFunc receives every observed transfer. Optional; failures are logged.
type PersistFunc func(transfer types.Transfer) error

// Watcher maintains the deduplicated transfer history for one user.
type Watcher struct {
	source   Source
	user     common.Address
	interval time.Duration
	persist  PersistFunc
	logger   zerolog.Logger

	mu        sync.Mutex
	transfers map[common.Hash]types.Transfer // keyed by origin tx hash
}

// NewWatcher creates a watcher for the user's history. persist may be nil.
func NewWatcher(source Source, user common.Address, persist PersistFunc) *Watcher {
	return &Watcher{
		source:    source,
		user:      user,
		interval:  DefaultPollInterval,
		persist:   persist,
		logger:    logger.GetForComponent("transfers"),
		transfers: make(map[common.Hash]types.Transfer),
	}
}

// SetInterval overrides the poll cadence.
func (w *Watcher) SetInterval(interval time.Duration) {
	w.interval = interval
}

// Run polls the source until ctx is cancelled. The first poll happens
// immediately so the history is not empty for a full interval after startup.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info().
		Str("user", w.user.Hex()).
		Dur("interval", w.interval).
		Msg("Starting transfer history poll")

	w.Poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Transfer history poll stopped")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll fetches once and merges the result into the history. A fetch failure
// keeps the existing view.
func (w *Watcher) Poll(ctx context.Context) {
	fetched, err := w.source.FetchTransfers(ctx, w.user)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Transfer fetch failed, keeping existing history")
		return
	}

	w.mu.Lock()
	for _, transfer := range fetched {
		existing, seen := w.transfers[transfer.OriginTxHash]
		if seen && existing.Status.Terminal() && !transfer.Status.Terminal() {
			// An indexer replaying an older status must not regress a
			// completed transfer.
			continue
		}
		w.transfers[transfer.OriginTxHash] = transfer
	}
	w.mu.Unlock()

	if w.persist != nil {
		for _, transfer := range fetched {
			if err := w.persist(transfer); err != nil {
				w.logger.Error().
					Err(err).
					Str("transfer_id", transfer.TransferID).
					Msg("Failed to persist transfer")
			}
		}
	}
}

// Latest returns up to n transfers, newest first. n <= 0 returns all.
func (w *Watcher) Latest(n int) []types.Transfer {
	w.mu.Lock()
	all := make([]types.Transfer, 0, len(w.transfers))
	for _, transfer := range w.transfers {
		all = append(all, transfer)
	}
	w.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
