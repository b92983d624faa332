package transfers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexbridge/swapd/internal/types"
)

var user = common.HexToAddress("0x00000000000000000000000000000000000000ee")

type fakeSource struct {
	mu        sync.Mutex
	transfers []types.Transfer
	err       error
	calls     int
}

func (f *fakeSource) FetchTransfers(context.Context, common.Address) ([]types.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.Transfer, len(f.transfers))
	copy(out, f.transfers)
	return out, nil
}

func (f *fakeSource) set(transfers []types.Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = transfers
}

func transferAt(hash byte, status types.TransferStatus, ts time.Time) types.Transfer {
	return types.Transfer{
		TransferID:   common.Hash{hash}.Hex(),
		OriginTxHash: common.Hash{hash},
		UserAddress:  user,
		AssetSymbol:  "TEST",
		Amount:       "100",
		Status:       status,
		Timestamp:    ts,
	}
}

func TestPollDedupesByOriginHash(t *testing.T) {
	source := &fakeSource{}
	watcher := NewWatcher(source, user, nil)

	source.set([]types.Transfer{
		transferAt(1, types.TransferPending, time.Unix(100, 0)),
	})
	watcher.Poll(context.Background())

	// The same transfer reported again with a newer status replaces the old
	// entry instead of duplicating it.
	source.set([]types.Transfer{
		transferAt(1, types.TransferExecuted, time.Unix(100, 0)),
	})
	watcher.Poll(context.Background())

	latest := watcher.Latest(0)
	require.Len(t, latest, 1)
	assert.Equal(t, types.TransferExecuted, latest[0].Status)
}

func TestPollNeverRegressesTerminalStatus(t *testing.T) {
	source := &fakeSource{}
	watcher := NewWatcher(source, user, nil)

	source.set([]types.Transfer{
		transferAt(1, types.TransferCompletedFast, time.Unix(100, 0)),
	})
	watcher.Poll(context.Background())

	source.set([]types.Transfer{
		transferAt(1, types.TransferPending, time.Unix(100, 0)),
	})
	watcher.Poll(context.Background())

	latest := watcher.Latest(0)
	require.Len(t, latest, 1)
	assert.Equal(t, types.TransferCompletedFast, latest[0].Status)
}

func TestLatestOrderAndLimit(t *testing.T) {
	source := &fakeSource{}
	watcher := NewWatcher(source, user, nil)

	source.set([]types.Transfer{
		transferAt(1, types.TransferExecuted, time.Unix(100, 0)),
		transferAt(2, types.TransferExecuted, time.Unix(300, 0)),
		transferAt(3, types.TransferExecuted, time.Unix(200, 0)),
		transferAt(4, types.TransferPending, time.Unix(400, 0)),
	})
	watcher.Poll(context.Background())

	latest := watcher.Latest(3)
	require.Len(t, latest, 3)
	assert.Equal(t, common.Hash{4}, latest[0].OriginTxHash)
	assert.Equal(t, common.Hash{2}, latest[1].OriginTxHash)
	assert.Equal(t, common.Hash{3}, latest[2].OriginTxHash)
}

func TestPollFailureKeepsHistory(t *testing.T) {
	source := &fakeSource{}
	watcher := NewWatcher(source, user, nil)

	source.set([]types.Transfer{
		transferAt(1, types.TransferExecuted, time.Unix(100, 0)),
	})
	watcher.Poll(context.Background())

	source.mu.Lock()
	source.err = errors.New("indexer unavailable")
	source.mu.Unlock()
	watcher.Poll(context.Background())

	assert.Len(t, watcher.Latest(0), 1)
}

func TestPollPersists(t *testing.T) {
	source := &fakeSource{}

	var mu sync.Mutex
	var persisted []string
	watcher := NewWatcher(source, user, func(transfer types.Transfer) error {
		mu.Lock()
		persisted = append(persisted, transfer.TransferID)
		mu.Unlock()
		return nil
	})

	source.set([]types.Transfer{
		transferAt(1, types.TransferExecuted, time.Unix(100, 0)),
	})
	watcher.Poll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{common.Hash{1}.Hex()}, persisted)
}

func TestRunPollsImmediatelyAndStops(t *testing.T) {
	source := &fakeSource{}
	watcher := NewWatcher(source, user, nil)
	watcher.SetInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watcher.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.calls > 0
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll loop did not stop on cancel")
	}
}
