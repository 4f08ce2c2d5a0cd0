package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/gammazero/workerpool"

	"relaybot/core"
	"relaybot/models"
	"relaybot/utils"
)

const tierCount = int(models.PriorityHigh) + 1

type Config struct {
	// MaxPending bounds the number of admitted-but-not-running items;
	// Submit rejects once the bound is reached
	MaxPending int
	// Concurrency bounds how many handler invocations run at the same time
	Concurrency int
	// MaxRetries is how many times a failed item is re-run before it is
	// dropped and counted as failed
	MaxRetries int
	// OnDropped, if set, is called after an item exhausts its retries
	OnDropped func(item *models.QueueItem)
}

// ProcessingQueue is a bounded, priority-ordered, concurrency-limited task
// runner. Items drain strictly by priority tier, FIFO within a tier; failed
// items are requeued at the front of their tier so retries run before newer
// work of the same priority.
type ProcessingQueue struct {
	mu        sync.Mutex
	tiers     [tierCount]*deque.Deque[*models.QueueItem]
	pending   int
	inFlight  int
	draining  bool
	stopped   bool
	processed int
	failed    int

	maxPending  int
	concurrency int
	maxRetries  int
	onDropped   func(item *models.QueueItem)

	pool    *workerpool.WorkerPool
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewProcessingQueue(cfg Config) *ProcessingQueue {
	utils.AssertInvariant(cfg.MaxPending > 0, "queue capacity must be positive")
	utils.AssertInvariant(cfg.Concurrency > 0, "queue concurrency must be positive")
	utils.AssertInvariant(cfg.MaxRetries >= 0, "max retries cannot be negative")

	ctx, cancel := context.WithCancel(context.Background())
	q := &ProcessingQueue{
		maxPending:  cfg.MaxPending,
		concurrency: cfg.Concurrency,
		maxRetries:  cfg.MaxRetries,
		onDropped:   cfg.OnDropped,
		pool:        workerpool.New(cfg.Concurrency),
		baseCtx:     ctx,
		cancel:      cancel,
	}
	for i := range q.tiers {
		q.tiers[i] = new(deque.Deque[*models.QueueItem])
	}
	return q
}

// SetOnDropped installs the retry-exhaustion callback. Called once at
// composition time, before any submissions.
func (q *ProcessingQueue) SetOnDropped(onDropped func(item *models.QueueItem)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDropped = onDropped
}

// Submit admits a unit of work at the given priority. It returns false when
// the queue already holds MaxPending items; a rejection has no side effects
// and the caller must treat it as a drop, not an error.
func (q *ProcessingQueue) Submit(payload any, handler func(ctx context.Context) error, priority models.Priority) bool {
	utils.AssertInvariant(handler != nil, "queue handler cannot be nil")
	utils.AssertInvariant(priority >= models.PriorityBackground && priority <= models.PriorityHigh,
		"priority out of range")

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		log.Printf("⚠️ Queue stopped, rejecting %s priority submission", priority)
		return false
	}
	if q.pending >= q.maxPending {
		q.mu.Unlock()
		log.Printf("⚠️ Queue full (%d pending), rejecting %s priority submission", q.maxPending, priority)
		return false
	}

	item := &models.QueueItem{
		ID:         core.NewID("qi"),
		Payload:    payload,
		Handler:    handler,
		Priority:   priority,
		EnqueuedAt: time.Now(),
	}
	q.tiers[priority].PushBack(item)
	q.pending++
	q.mu.Unlock()

	q.drain()
	return true
}

// drain moves eligible items into execution until the concurrency limit is
// hit or the queue is empty. A single draining flag makes re-entrant calls
// (from Submit and from item completion) no-ops while a drain is running.
func (q *ProcessingQueue) drain() {
	q.mu.Lock()
	if q.draining || q.stopped {
		q.mu.Unlock()
		return
	}
	q.draining = true

	for q.inFlight < q.concurrency {
		item := q.nextLocked()
		if item == nil {
			break
		}
		q.pending--
		q.inFlight++
		q.pool.Submit(func() {
			q.run(item)
		})
	}

	q.draining = false
	q.mu.Unlock()
}

// nextLocked pops the front of the highest non-empty tier. Caller holds q.mu.
func (q *ProcessingQueue) nextLocked() *models.QueueItem {
	for tier := tierCount - 1; tier >= 0; tier-- {
		if q.tiers[tier].Len() > 0 {
			return q.tiers[tier].PopFront()
		}
	}
	return nil
}

func (q *ProcessingQueue) run(item *models.QueueItem) {
	err := q.invoke(item)

	var dropped *models.QueueItem

	q.mu.Lock()
	q.inFlight--
	if err != nil {
		if item.Retries < q.maxRetries {
			item.Retries++
			item.EnqueuedAt = time.Now()
			// Requeue at the front so the retry is serviced before newer
			// arrivals in the same tier
			q.tiers[item.Priority].PushFront(item)
			q.pending++
			log.Printf("🔄 Item %s failed, requeued for retry %d/%d: %v", item.ID, item.Retries, q.maxRetries, err)
		} else {
			q.failed++
			dropped = item
			log.Printf("❌ Item %s exceeded max retries (%d), dropping: %v", item.ID, q.maxRetries, err)
		}
	} else {
		q.processed++
	}
	q.mu.Unlock()

	if dropped != nil && q.onDropped != nil {
		q.onDropped(dropped)
	}

	q.drain()
}

// invoke runs the item handler, converting a panic into an error so a
// misbehaving handler can never take down the queue
func (q *ProcessingQueue) invoke(item *models.QueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return item.Handler(q.baseCtx)
}

// Stats returns a snapshot of the running counters
func (q *ProcessingQueue) Stats() models.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return models.QueueStats{
		Processed: q.processed,
		Failed:    q.failed,
		Pending:   q.pending,
		InFlight:  q.inFlight,
	}
}

// Stop cancels the handler context and waits for in-flight work to finish.
// The stopped flag flips before the pool shuts down so a straggling Submit
// is rejected instead of reaching a closed pool; calling Stop again is a
// no-op.
func (q *ProcessingQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	log.Printf("📋 Starting to stop processing queue")
	q.cancel()
	q.pool.StopWait()
	log.Printf("📋 Completed successfully - stopped processing queue")
}
