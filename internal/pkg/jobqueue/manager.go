package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Walrus/internal/pkg/ingestion"
)

// Flusher moves buffered counters into the database.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Intervals configures the periodic tasks of the manager.
type Intervals struct {
	CollectAll     time.Duration
	ArtistSweep    time.Duration
	ContextSweep   time.Duration
	CounterFlush   time.Duration
	CollectionDays int
}

func DefaultIntervals() Intervals {
	return Intervals{
		CollectAll:     time.Hour,
		ArtistSweep:    4 * time.Hour,
		ContextSweep:   4 * time.Hour,
		CounterFlush:   5 * time.Second,
		CollectionDays: ingestion.DefaultLookbackDays,
	}
}

// Manager runs the job queue and the periodic tasks feeding it.
type Manager struct {
	queue     *Queue
	flusher   Flusher
	intervals Intervals
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// NewManager creates a manager. flusher may be nil.
func NewManager(queue *Queue, flusher Flusher, intervals Intervals) *Manager {
	return &Manager{
		queue:     queue,
		flusher:   flusher,
		intervals: intervals,
		stopCh:    make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	days := m.intervals.CollectionDays
	m.every("collect-all", m.intervals.CollectAll, func(ctx context.Context) error {
		return m.queue.EnqueueCollectAll(ctx, days)
	})
	m.every("artist-sweep", m.intervals.ArtistSweep, func(ctx context.Context) error {
		_, err := m.queue.EnqueueJob(ctx, JobTypeSweepMissingArtistDetails, nil)
		return err
	})
	m.every("context-sweep", m.intervals.ContextSweep, func(ctx context.Context) error {
		_, err := m.queue.EnqueueJob(ctx, JobTypeSweepMissingPlaylistContextDetails, nil)
		return err
	})
	if m.flusher != nil {
		m.every("counter-flush", m.intervals.CounterFlush, m.flusher.Flush)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// every runs fn on a ticker until Stop. A non-positive interval disables the task.
func (m *Manager) every(name string, interval time.Duration, fn func(ctx context.Context) error) {
	if interval <= 0 {
		log.Infof("[JobQueue Manager] %s disabled", name)
		return
	}
	stopCh := m.stopCh
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Infof("[JobQueue Manager] Started %s worker (interval: %s)", name, interval)
		for {
			select {
			case <-stopCh:
				log.Infof("[JobQueue Manager] %s worker stopping", name)
				return
			case <-ticker.C:
				if err := fn(context.Background()); err != nil {
					log.Errorf("[JobQueue Manager] %s error: %v", name, err)
				}
			}
		}
	}()
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	// flush what was buffered since the last tick
	if m.flusher != nil {
		if err := m.flusher.Flush(context.Background()); err != nil {
			log.Errorf("[JobQueue Manager] Final counter flush error: %v", err)
		}
	}
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
