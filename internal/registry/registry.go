/*
Package registry keeps the shared, most-recent view of every resolved pool
pair. Resolvers publish into it; the dashboard and persistence read from it.
*/

package registry

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/types"
)

// PersistFunc receives every successful upsert. Persistence failures are
// logged and do not block publication.
type PersistFunc func(pair types.ResolvedPair) error

// Registry is a concurrency-safe map of pair ID to the latest resolved state.
type Registry struct {
	mu      sync.RWMutex
	pairs   map[string]types.ResolvedPair
	persist PersistFunc
	logger  zerolog.Logger
}

// New creates an empty registry. persist may be nil.
func New(persist PersistFunc) *Registry {
	return &Registry{
		pairs:   make(map[string]types.ResolvedPair),
		persist: persist,
		logger:  logger.GetForComponent("registry"),
	}
}

// Upsert publishes the pair, replacing any previous snapshot with the same ID.
func (r *Registry) Upsert(pair types.ResolvedPair) {
	r.mu.Lock()
	r.pairs[pair.ID] = pair
	r.mu.Unlock()

	r.logger.Debug().
		Str("pair_id", pair.ID).
		Time("resolved_at", pair.ResolvedAt).
		Msg("Pair snapshot published")

	if r.persist != nil {
		if err := r.persist(pair); err != nil {
			r.logger.Error().Err(err).Str("pair_id", pair.ID).Msg("Failed to persist pair snapshot")
		}
	}
}

// Get returns the latest snapshot for the pair ID, if any.
func (r *Registry) Get(id string) (types.ResolvedPair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pair, ok := r.pairs[id]
	return pair, ok
}

// List returns all snapshots ordered by pair ID.
func (r *Registry) List() []types.ResolvedPair {
	r.mu.RLock()
	pairs := make([]types.ResolvedPair, 0, len(r.pairs))
	for _, pair := range r.pairs {
		pairs = append(pairs, pair)
	}
	r.mu.RUnlock()

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ID < pairs[j].ID })
	return pairs
}

// Len returns the number of distinct pairs published so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}
