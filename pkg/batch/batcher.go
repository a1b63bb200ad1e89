package batch

import (
	"sync"
	"time"

	"github.com/bft-labs/syncdispatch/pkg/clock"
	"github.com/bft-labs/syncdispatch/pkg/executor"
	"github.com/bft-labs/syncdispatch/pkg/log"
)

// Processor receives a group of items once the Batcher decides to deliver
// them. It is invoked from an executor goroutine, never from the goroutine
// that called Add.
type Processor[T any] interface {
	Process(items []T)
}

// ProcessorFunc adapts a plain function to a Processor.
type ProcessorFunc[T any] func(items []T)

// Process calls f(items).
func (f ProcessorFunc[T]) Process(items []T) { f(items) }

// Batcher queues up items until the queue reaches capacity or delay elapses,
// then delivers them, in groups no larger than capacity, to a processor.
//
// A Batcher is safe for concurrent use by multiple goroutines.
type Batcher[T any] struct {
	workExecutor executor.ScheduledExecutor
	capacity     int
	delay        time.Duration
	processor    Processor[T]
	clock        clock.Clock
	logger       log.Logger

	mu               sync.Mutex
	cond             *sync.Cond
	inbox            []T
	scheduled        bool
	scheduledDelay   time.Duration
	lastProcessed    time.Time
	pending          executor.ScheduledTask
}

// Option configures optional Batcher behavior.
type Option[T any] func(*Batcher[T])

// WithClock overrides the clock used to compute catch-up delivery. Intended
// for tests.
func WithClock[T any](c clock.Clock) Option[T] {
	return func(b *Batcher[T]) { b.clock = c }
}

// WithLogger attaches a structured logger. Defaults to a no-op logger.
func WithLogger[T any](l log.Logger) Option[T] {
	return func(b *Batcher[T]) { b.logger = l }
}

// NewBatcher creates a Batcher. capacity must be positive; delay must be
// non-negative.
func NewBatcher[T any](workExecutor executor.ScheduledExecutor, capacity int, delay time.Duration, processor Processor[T], opts ...Option[T]) *Batcher[T] {
	b := &Batcher[T]{
		workExecutor:  workExecutor,
		capacity:      capacity,
		delay:         delay,
		processor:     processor,
		clock:         clock.System,
		logger:        log.NewNoopLogger(),
		lastProcessed: time.Now(),
	}
	b.cond = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	b.lastProcessed = b.clock.Now()
	return b
}

// Capacity returns the configured capacity.
func (b *Batcher[T]) Capacity() int { return b.capacity }

// Delay returns the configured delay.
func (b *Batcher[T]) Delay() time.Duration { return b.delay }

// Count returns the number of items currently queued.
func (b *Batcher[T]) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inbox)
}

// Add queues a single item.
func (b *Batcher[T]) Add(item T) {
	b.AddAll([]T{item})
}

// AddAll queues multiple items at once.
func (b *Batcher[T]) AddAll(items []T) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	b.inbox = append(b.inbox, items...)
	b.logger.Debug("queued items", log.Int("count", len(items)), log.Int("inbox_size", len(b.inbox)))
	b.cond.Broadcast()
	b.scheduleBatchProcess(false)
	b.mu.Unlock()
}

// FlushAll schedules and delivers every item currently queued, in
// contiguous capacity-sized groups, including items added while earlier
// groups from this call are still being delivered. It blocks until the
// inbox this call observed is fully drained.
func (b *Batcher[T]) FlushAll() {
	b.mu.Lock()
	b.unschedule()
	b.mu.Unlock()

	for {
		b.mu.Lock()
		if len(b.inbox) == 0 {
			b.mu.Unlock()
			return
		}

		n := len(b.inbox)
		if n > b.capacity {
			n = b.capacity
		}
		toProcess := make([]T, n)
		copy(toProcess, b.inbox[:n])
		b.inbox = append(b.inbox[:0], b.inbox[n:]...)
		b.cond.Broadcast()

		task := b.workExecutor.Schedule(0, func() {
			b.processor.Process(toProcess)
			b.mu.Lock()
			b.lastProcessed = b.clock.Now()
			b.mu.Unlock()
		})
		b.mu.Unlock()

		b.awaitTask(task)
	}
}

// Clear empties the queue without delivering any of the items in it.
func (b *Batcher[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unschedule()
	b.inbox = b.inbox[:0]
	b.cond.Broadcast()
}

// WaitForPendingFutures blocks until every item currently in the queue has
// been handed to the processor.
func (b *Batcher[T]) WaitForPendingFutures() {
	for {
		b.mu.Lock()
		for len(b.inbox) > 0 {
			b.cond.Wait()
		}
		task := b.pending
		b.mu.Unlock()

		b.awaitTask(task)

		b.mu.Lock()
		empty := len(b.inbox) == 0
		b.mu.Unlock()
		if empty {
			return
		}
	}
}

// HasPending reports whether the queue is non-empty.
func (b *Batcher[T]) HasPending() bool {
	return b.Count() > 0
}

// Close releases resources. It does not wait for or deliver queued items;
// callers that need that should call FlushAll or WaitForPendingFutures
// first.
func (b *Batcher[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unschedule()
	return nil
}

// awaitTask blocks until task is done or cancelled, if it is still
// outstanding.
func (b *Batcher[T]) awaitTask(task executor.ScheduledTask) {
	if task == nil {
		return
	}
	if task.Done() || task.Cancelled() {
		return
	}
	task.Wait()
}

// scheduleBatchProcess decides the delay for the next delivery based on
// capacity, inbox size, and how long it has been since the last delivery.
// Must be called with b.mu held.
func (b *Batcher[T]) scheduleBatchProcess(immediate bool) {
	if len(b.inbox) == 0 {
		return
	}

	suggestedDelay := time.Duration(0)
	if !immediate && len(b.inbox) < b.capacity {
		// To improve latency, if we haven't delivered anything in at least
		// delay, rush these items through instead of waiting out the full
		// delay again.
		if b.clock.Now().Sub(b.lastProcessed) < b.delay {
			suggestedDelay = b.delay
		}
	}
	b.scheduleWithDelay(suggestedDelay)
}

// scheduleWithDelay schedules delivery after delay, unless a sooner delivery
// is already ready or in progress. Must be called with b.mu held.
func (b *Batcher[T]) scheduleWithDelay(delay time.Duration) {
	if b.scheduled && delay < b.scheduledDelay {
		if b.isPendingReadyOrInProcessing() {
			b.logger.Debug("scheduleWithDelay ignored, current batch ready or in process", log.Duration("delay", delay))
			return
		}
		b.unschedule()
	}

	if !b.scheduled {
		b.scheduled = true
		b.scheduledDelay = delay
		b.pending = b.workExecutor.Schedule(delay, b.processNow)
		return
	}
	b.logger.Debug("scheduleWithDelay ignored, already scheduled", log.Duration("delay", delay))
}

// unschedule cancels the pending scheduled delivery, if any. Must be called
// with b.mu held.
func (b *Batcher[T]) unschedule() {
	if b.pending != nil && !b.pending.Done() && !b.pending.Cancelled() {
		b.pending.Cancel()
	}
	b.scheduled = false
}

// isPendingReadyOrInProcessing reports whether the pending task has already
// fired (delay elapsed) but has not yet finished running. Must be called
// with b.mu held.
func (b *Batcher[T]) isPendingReadyOrInProcessing() bool {
	if b.pending != nil && !b.pending.Done() && !b.pending.Cancelled() {
		return b.pending.Remaining() <= 0
	}
	return false
}

// processNow is invoked by the executor. It removes up to capacity items
// from the front of the inbox, delivers them outside the lock, then
// reschedules if items remain.
func (b *Batcher[T]) processNow() {
	var toProcess []T
	scheduleNextImmediately := false

	b.mu.Lock()
	count := len(b.inbox)
	if count == 0 {
		b.mu.Unlock()
		return
	} else if count <= b.capacity {
		toProcess = make([]T, count)
		copy(toProcess, b.inbox)
		b.inbox = b.inbox[:0]
	} else {
		toProcess = make([]T, b.capacity)
		copy(toProcess, b.inbox[:b.capacity])
		b.inbox = append(b.inbox[:0], b.inbox[b.capacity:]...)
		scheduleNextImmediately = true
	}
	b.cond.Broadcast()
	b.mu.Unlock()

	if len(toProcess) > 0 {
		b.logger.Debug("delivering batch", log.Int("count", len(toProcess)))
		b.processor.Process(toProcess)
	}

	b.mu.Lock()
	b.lastProcessed = b.clock.Now()
	b.scheduled = false
	b.scheduleBatchProcess(scheduleNextImmediately)
	b.mu.Unlock()
}
