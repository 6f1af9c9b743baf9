package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Walrus/internal/pkg/ingestion"
)

type fakeIngestor struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeIngestor) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeIngestor) CollectForMember(_ context.Context, memberID uint, days int) (*ingestion.CollectResult, error) {
	f.record("collect:%d:%d", memberID, days)
	return &ingestion.CollectResult{}, nil
}

func (f *fakeIngestor) CollectAll(_ context.Context, days int) (int, error) {
	f.record("collect_all:%d", days)
	return 0, nil
}

func (f *fakeIngestor) UpdateArtistDetails(_ context.Context, ids []uint, memberID uint) (int, error) {
	f.record("artists:%v:%d", ids, memberID)
	return len(ids), nil
}

func (f *fakeIngestor) UpdatePlaylistContextDetails(_ context.Context, ids []uint, memberID uint) (int, error) {
	f.record("contexts:%v:%d", ids, memberID)
	return len(ids), nil
}

func (f *fakeIngestor) SweepMissingArtistDetails(context.Context) (int, error) {
	f.record("sweep_artists")
	return 0, nil
}

func (f *fakeIngestor) SweepMissingPlaylistContextDetails(context.Context) (int, error) {
	f.record("sweep_contexts")
	return 0, nil
}

type countingFlusher struct {
	n atomic.Int32
}

func (c *countingFlusher) Flush(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestDefaultIntervals(t *testing.T) {
	in := DefaultIntervals()
	assert.Equal(t, time.Hour, in.CollectAll)
	assert.Equal(t, 4*time.Hour, in.ArtistSweep)
	assert.Equal(t, 4*time.Hour, in.ContextSweep)
	assert.Equal(t, 5*time.Second, in.CounterFlush)
	assert.Equal(t, ingestion.DefaultLookbackDays, in.CollectionDays)
}

func TestManager_StopWithoutStart(t *testing.T) {
	q, _ := newTestQueue(t)
	manager := NewManager(q, nil, DefaultIntervals())

	assert.Same(t, q, manager.GetQueue())
	assert.False(t, manager.IsRunning())
	manager.Stop()
	assert.False(t, manager.IsRunning())
}

func TestManager_TickersFeedQueue(t *testing.T) {
	q, _ := newTestQueue(t)
	ing := &fakeIngestor{}
	RegisterIngestion(q, ing)
	flusher := &countingFlusher{}

	manager := NewManager(q, flusher, Intervals{
		CollectAll:     20 * time.Millisecond,
		ArtistSweep:    20 * time.Millisecond,
		ContextSweep:   0,
		CounterFlush:   10 * time.Millisecond,
		CollectionDays: 2,
	})
	manager.Start()
	assert.True(t, manager.IsRunning())

	require.Eventually(t, func() bool {
		ing.mu.Lock()
		defer ing.mu.Unlock()
		var collect, sweep bool
		for _, c := range ing.calls {
			collect = collect || c == "collect_all:2"
			sweep = sweep || c == "sweep_artists"
		}
		return collect && sweep
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return flusher.n.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	manager.Stop()
	assert.False(t, manager.IsRunning())

	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.NotContains(t, ing.calls, "sweep_contexts", "disabled interval never fires")
}

func TestManager_StopFlushesCounters(t *testing.T) {
	q, _ := newTestQueue(t)
	flusher := &countingFlusher{}
	manager := NewManager(q, flusher, Intervals{CounterFlush: time.Hour})

	manager.Start()
	manager.Stop()
	assert.EqualValues(t, 1, flusher.n.Load())
}
