package retrieval

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/engram-ai/engram-go/pkg/storage"
)

// DefaultTouchQueueSize bounds the toucher's pending-update queue.
const DefaultTouchQueueSize = 256

// touchRetries is how many times a failed touch update is retried before
// being dropped with a log line.
const touchRetries = 3

// touchEvent records one retrieval hit awaiting its access-count update.
type touchEvent struct {
	id int64
	at time.Time
}

// Toucher applies post-retrieval access updates off the request path.
//
// Every search hit is enqueued here; a single worker goroutine drains the
// queue and increments the record's access count and last-access timestamp
// through the store. Delivery is at-least-once: a failed update is retried a
// bounded number of times, then logged and dropped. Enqueueing never blocks
// the caller; when the queue is full the worker applies the update inline on
// a short deadline instead of losing it.
type Toucher struct {
	store storage.Store

	// reinforcement, when > 0, also strengthens importance on each touch:
	// importance += reinforcement * (1 - importance), capped at 1.0.
	reinforcement float64

	events chan touchEvent
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewToucher creates a toucher with a worker goroutine already running.
// A queueSize of zero or less uses DefaultTouchQueueSize.
func NewToucher(store storage.Store, queueSize int) *Toucher {
	if queueSize <= 0 {
		queueSize = DefaultTouchQueueSize
	}

	t := &Toucher{
		store:  store,
		events: make(chan touchEvent, queueSize),
		done:   make(chan struct{}),
	}

	t.wg.Add(1)
	go t.worker()

	return t
}

// SetReinforcement enables importance reinforcement on touch. Must be called
// before the toucher receives events.
func (t *Toucher) SetReinforcement(factor float64) {
	t.reinforcement = factor
}

// Touch enqueues an access update for record id observed at time at.
// Never blocks; a full queue degrades to a synchronous best-effort apply.
func (t *Toucher) Touch(id int64, at time.Time) {
	select {
	case t.events <- touchEvent{id: id, at: at}:
	default:
		t.apply(touchEvent{id: id, at: at})
	}
}

// Close stops the worker after draining pending events.
func (t *Toucher) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
	})
}

// worker drains the queue until Close, then finishes whatever is still
// buffered.
func (t *Toucher) worker() {
	defer t.wg.Done()

	for {
		select {
		case ev := <-t.events:
			t.apply(ev)
		case <-t.done:
			for {
				select {
				case ev := <-t.events:
					t.apply(ev)
				default:
					return
				}
			}
		}
	}
}

// apply writes one touch update with bounded retries.
func (t *Toucher) apply(ev touchEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mut := &storage.Mutation{
		LastAccessedAt:   &ev.at,
		AccessCountDelta: 1,
	}

	if t.reinforcement > 0 {
		if record, err := t.store.Get(ctx, ev.id); err == nil {
			boosted := record.Importance + t.reinforcement*(1.0-record.Importance)
			if boosted > 1.0 {
				boosted = 1.0
			}
			mut.Importance = &boosted
		}
	}

	var err error
	for attempt := 0; attempt < touchRetries; attempt++ {
		if err = t.store.Update(ctx, ev.id, mut); err == nil {
			return
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}

	log.Printf("[touch] dropping access update for record %d after %d attempts: %v",
		ev.id, touchRetries, err)
}
