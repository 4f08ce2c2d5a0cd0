package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaybot/models"
)

func TestProcessingQueue_NeverExceedsConcurrencyLimit(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 50, Concurrency: 3, MaxRetries: 0})
	defer q.Stop()

	var current, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		accepted := q.Submit(nil, func(ctx context.Context) error {
			defer wg.Done()
			running := atomic.AddInt64(&current, 1)
			for {
				observed := atomic.LoadInt64(&peak)
				if running <= observed || atomic.CompareAndSwapInt64(&peak, observed, running) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		}, models.PriorityNormal)
		require.True(t, accepted)
	}

	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
	assert.Equal(t, 20, q.Stats().Processed)
}

func TestProcessingQueue_HigherPriorityDrainsFirst(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 10, Concurrency: 1, MaxRetries: 0})
	defer q.Stop()

	release := make(chan struct{})
	var mu sync.Mutex
	var order []string

	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// Occupy the single worker so subsequent submissions queue up
	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		<-release
		return nil
	}, models.PriorityNormal))

	require.True(t, q.Submit(nil, record("background"), models.PriorityBackground))
	require.True(t, q.Submit(nil, record("low"), models.PriorityLow))
	require.True(t, q.Submit(nil, record("high"), models.PriorityHigh))
	require.True(t, q.Submit(nil, record("normal"), models.PriorityNormal))

	close(release)

	require.Eventually(t, func() bool {
		return q.Stats().Processed == 5
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high", "normal", "low", "background"}, order)
}

func TestProcessingQueue_FIFOWithinTier(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 10, Concurrency: 1, MaxRetries: 0})
	defer q.Stop()

	release := make(chan struct{})
	var mu sync.Mutex
	var order []string

	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		<-release
		return nil
	}, models.PriorityNormal))

	for _, name := range []string{"first", "second", "third"} {
		name := name
		require.True(t, q.Submit(nil, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}, models.PriorityNormal))
	}

	close(release)

	require.Eventually(t, func() bool {
		return q.Stats().Processed == 4
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestProcessingQueue_RejectsWhenFull(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 2, Concurrency: 1, MaxRetries: 0})
	defer q.Stop()

	release := make(chan struct{})
	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		<-release
		return nil
	}, models.PriorityNormal))

	// Wait until the blocker is in flight so it no longer counts as pending
	require.Eventually(t, func() bool {
		return q.Stats().InFlight == 1
	}, 2*time.Second, 5*time.Millisecond)

	noop := func(ctx context.Context) error { return nil }
	require.True(t, q.Submit(nil, noop, models.PriorityNormal))
	require.True(t, q.Submit(nil, noop, models.PriorityNormal))

	statsBefore := q.Stats()
	assert.False(t, q.Submit(nil, noop, models.PriorityHigh))
	assert.Equal(t, statsBefore, q.Stats())

	close(release)
}

func TestProcessingQueue_RetriesThenDrops(t *testing.T) {
	var droppedCount int64
	q := NewProcessingQueue(Config{
		MaxPending:  10,
		Concurrency: 1,
		MaxRetries:  2,
		OnDropped: func(item *models.QueueItem) {
			atomic.AddInt64(&droppedCount, 1)
		},
	})
	defer q.Stop()

	var attempts int64
	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		atomic.AddInt64(&attempts, 1)
		return assert.AnError
	}, models.PriorityNormal))

	require.Eventually(t, func() bool {
		return q.Stats().Failed == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Initial attempt plus two retries
	assert.Equal(t, int64(3), atomic.LoadInt64(&attempts))
	assert.Equal(t, int64(1), atomic.LoadInt64(&droppedCount))
	assert.Equal(t, 0, q.Stats().Processed)
	assert.Equal(t, 0, q.Stats().Pending)
}

func TestProcessingQueue_RetryRunsBeforeNewerSameTierWork(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 10, Concurrency: 1, MaxRetries: 1})
	defer q.Stop()

	release := make(chan struct{})
	var mu sync.Mutex
	var order []string

	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		<-release
		return nil
	}, models.PriorityNormal))

	var flakyAttempts int64
	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "flaky")
		mu.Unlock()
		if atomic.AddInt64(&flakyAttempts, 1) == 1 {
			return assert.AnError
		}
		return nil
	}, models.PriorityNormal))

	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "steady")
		mu.Unlock()
		return nil
	}, models.PriorityNormal))

	close(release)

	require.Eventually(t, func() bool {
		return q.Stats().Processed == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"flaky", "flaky", "steady"}, order)
}

func TestProcessingQueue_PanicIsContained(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 10, Concurrency: 1, MaxRetries: 0})
	defer q.Stop()

	require.True(t, q.Submit(nil, func(ctx context.Context) error {
		panic("handler bug")
	}, models.PriorityNormal))

	require.Eventually(t, func() bool {
		return q.Stats().Failed == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Queue still works after the panic
	require.True(t, q.Submit(nil, func(ctx context.Context) error { return nil }, models.PriorityNormal))
	require.Eventually(t, func() bool {
		return q.Stats().Processed == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestProcessingQueue_SubmitAfterStopIsRejected(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 10, Concurrency: 1, MaxRetries: 0})
	q.Stop()

	accepted := q.Submit(nil, func(ctx context.Context) error { return nil }, models.PriorityNormal)

	assert.False(t, accepted)
	assert.Equal(t, models.QueueStats{}, q.Stats())
}

func TestProcessingQueue_StopIsIdempotent(t *testing.T) {
	q := NewProcessingQueue(Config{MaxPending: 10, Concurrency: 1, MaxRetries: 0})

	require.True(t, q.Submit(nil, func(ctx context.Context) error { return nil }, models.PriorityNormal))
	require.Eventually(t, func() bool {
		return q.Stats().Processed == 1
	}, 2*time.Second, 5*time.Millisecond)

	q.Stop()
	q.Stop()
}
