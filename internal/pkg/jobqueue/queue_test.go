package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, 2), mr
}

// immediateRetries makes retried jobs reappear in the queue without delay and
// records the requested delays.
func immediateRetries(q *Queue) *[]time.Duration {
	var delays []time.Duration
	q.after = func(d time.Duration, f func()) {
		delays = append(delays, d)
		f()
	}
	return &delays
}

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, DefaultWorkers},
		{"Negative workers", -1, DefaultWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(nil, tt.workers)

			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.processors)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestEnqueueAndDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobTypeCollectRecentlyPlayed, CollectJobPayload{MemberID: 1, Days: 3}.ToMap())
	require.NoError(t, err)
	assert.Equal(t, 3, job.MaxRetries)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)

	got, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobTypeCollectRecentlyPlayed, got.Type)

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, processing)
}

func TestProcessJobCompletes(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var gotMember uint
	q.Register(JobTypeCollectRecentlyPlayed, func(_ context.Context, job *Job) error {
		p, err := CollectJobPayloadFromMap(job.Payload)
		gotMember = p.MemberID
		return err
	})

	_, err := q.EnqueueJob(ctx, JobTypeCollectRecentlyPlayed, CollectJobPayload{MemberID: 42, Days: 3}.ToMap())
	require.NoError(t, err)
	job, err := q.dequeueJob(ctx)
	require.NoError(t, err)

	q.processJob(ctx, job)
	assert.Equal(t, uint(42), gotMember)

	_, err = q.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, redis.Nil, "completed jobs are removed")

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusCompleted])

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestProcessJobRetriesTransientErrors(t *testing.T) {
	q, _ := newTestQueue(t)
	delays := immediateRetries(q)
	ctx := context.Background()

	attempts := 0
	q.Register(JobTypeCollectRecentlyPlayed, func(context.Context, *Job) error {
		attempts++
		return provider.ExternalAPIError(503, nil, errors.New("unavailable"))
	})

	_, err := q.EnqueueJob(ctx, JobTypeCollectRecentlyPlayed, CollectJobPayload{MemberID: 1}.ToMap())
	require.NoError(t, err)

	for {
		size, err := q.GetQueueSize(ctx)
		require.NoError(t, err)
		if size == 0 {
			break
		}
		job, err := q.dequeueJob(ctx)
		require.NoError(t, err)
		q.processJob(ctx, job)
	}

	assert.Equal(t, 4, attempts, "one run plus three retries")
	assert.Equal(t, []time.Duration{time.Minute, time.Minute, time.Minute}, *delays)

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusFailed])
}

func TestProcessJobDoesNotRetryTerminalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"token unavailable", provider.AccessTokenUnavailable(provider.MemberOwner{Member: &models.Member{ID: 1}}, nil)},
		{"provider 404", provider.ExternalAPIError(404, map[string]any{"error": "not found"}, nil)},
		{"validation", provider.NewError(provider.CodeValidation, "bad", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue(t)
			delays := immediateRetries(q)
			ctx := context.Background()
			q.Register(JobTypeUpdateArtistsDetails, func(context.Context, *Job) error { return tt.err })

			_, err := q.EnqueueJob(ctx, JobTypeUpdateArtistsDetails, DetailsJobPayload{IDs: []uint{1}}.ToMap())
			require.NoError(t, err)
			job, err := q.dequeueJob(ctx)
			require.NoError(t, err)
			q.processJob(ctx, job)

			assert.Empty(t, *delays)
			stored, err := q.GetJob(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, JobStatusFailed, stored.Status)
			assert.NotEmpty(t, stored.ErrorMsg)
		})
	}
}

func TestProcessJobUnknownType(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.EnqueueJob(ctx, JobType("resize_image"), nil)
	require.NoError(t, err)
	job, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, job)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
}

func TestRecoverStuckJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.EnqueueJob(ctx, JobTypeSweepMissingArtistDetails, nil)
	require.NoError(t, err)
	job, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	require.NoError(t, q.recoverStuck(ctx, 10*time.Minute, time.Now()))
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, processing, "recent jobs stay in processing")

	require.NoError(t, q.recoverStuck(ctx, 10*time.Minute, time.Now().Add(11*time.Minute)))
	processing, err = q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}

func TestWorkersRunEnqueuedJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[uint]bool{}
	done := make(chan struct{}, 5)
	q.Register(JobTypeCollectRecentlyPlayed, func(_ context.Context, job *Job) error {
		p, err := CollectJobPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		mu.Lock()
		seen[p.MemberID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	q.Start()
	defer q.Stop()
	for i := uint(1); i <= 5; i++ {
		require.NoError(t, q.EnqueueCollect(ctx, i, 3))
	}

	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("jobs were not processed")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 5)
}

func TestRegisterIngestionDispatch(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	ing := &fakeIngestor{}
	RegisterIngestion(q, ing)

	require.NoError(t, q.EnqueueCollect(ctx, 3, 2))
	require.NoError(t, q.EnqueueCollectAll(ctx, 3))
	require.NoError(t, q.EnqueueArtistDetails(ctx, []uint{1, 2}, 9))
	require.NoError(t, q.EnqueuePlaylistContextDetails(ctx, []uint{5}, 9))
	_, err := q.EnqueueJob(ctx, JobTypeSweepMissingArtistDetails, nil)
	require.NoError(t, err)
	_, err = q.EnqueueJob(ctx, JobTypeSweepMissingPlaylistContextDetails, nil)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		job, err := q.dequeueJob(ctx)
		require.NoError(t, err)
		q.processJob(ctx, job)
	}

	assert.Equal(t, []string{
		"collect:3:2",
		"collect_all:3",
		"artists:[1 2]:9",
		"contexts:[5]:9",
		"sweep_artists",
		"sweep_contexts",
	}, ing.calls)
}

func TestInvalidPayloadIsTerminal(t *testing.T) {
	q, _ := newTestQueue(t)
	delays := immediateRetries(q)
	ctx := context.Background()
	RegisterIngestion(q, &fakeIngestor{})

	_, err := q.EnqueueJob(ctx, JobTypeUpdateArtistsDetails, map[string]interface{}{"ids": "nope"})
	require.NoError(t, err)
	job, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, job)

	assert.Empty(t, *delays)
	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMsg, "invalid job payload")
}
