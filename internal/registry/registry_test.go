package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexbridge/swapd/internal/types"
)

func pairAt(id string, resolvedAt time.Time) types.ResolvedPair {
	return types.ResolvedPair{ID: id, ResolvedAt: resolvedAt}
}

func TestUpsertReplacesByID(t *testing.T) {
	reg := New(nil)

	first := pairAt("5_TEST", time.Unix(100, 0))
	reg.Upsert(first)
	reg.Upsert(pairAt("5_TEST", time.Unix(200, 0)))

	got, ok := reg.Get("5_TEST")
	require.True(t, ok)
	assert.Equal(t, time.Unix(200, 0), got.ResolvedAt)
	assert.Equal(t, 1, reg.Len())
}

func TestListOrdered(t *testing.T) {
	reg := New(nil)
	reg.Upsert(pairAt("420_TEST", time.Now()))
	reg.Upsert(pairAt("5_TEST", time.Now()))
	reg.Upsert(pairAt("5_ALT", time.Now()))

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "420_TEST", list[0].ID)
	assert.Equal(t, "5_ALT", list[1].ID)
	assert.Equal(t, "5_TEST", list[2].ID)
}

func TestGetMissing(t *testing.T) {
	reg := New(nil)
	_, ok := reg.Get("5_TEST")
	assert.False(t, ok)
}

func TestPersistHookCalled(t *testing.T) {
	var mu sync.Mutex
	var persisted []string

	reg := New(func(pair types.ResolvedPair) error {
		mu.Lock()
		persisted = append(persisted, pair.ID)
		mu.Unlock()
		return nil
	})

	reg.Upsert(pairAt("5_TEST", time.Now()))
	reg.Upsert(pairAt("420_TEST", time.Now()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"5_TEST", "420_TEST"}, persisted)
}

func TestPersistFailureDoesNotBlockPublication(t *testing.T) {
	reg := New(func(types.ResolvedPair) error {
		return errors.New("db unavailable")
	})

	reg.Upsert(pairAt("5_TEST", time.Now()))

	_, ok := reg.Get("5_TEST")
	assert.True(t, ok)
}

func TestConcurrentUpserts(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			reg.Upsert(pairAt("5_TEST", time.Unix(int64(n), 0)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Len())
}
