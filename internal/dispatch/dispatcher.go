// Package dispatch delivers balance events to subscribed handlers
// asynchronously, preserving per-account order: events for one account reach
// handlers in the order they were published, while different accounts drain
// concurrently on a shared worker pool.
package dispatch

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// Handler consumes one event. Handlers run on pool workers; a panicking
// handler is isolated and does not stop delivery to the others.
type Handler func(event domain.BalanceEvent)

// Token identifies a subscription for Unsubscribe.
type Token int64

const defaultWorkers = 8

// Dispatcher owns an arena of per-account FIFO queues. Each queue has a
// draining flag so at most one worker drains an account at a time; the flag
// is set and cleared under the same mutex as the queue's emptiness check,
// which rules out the lost-wakeup race between a publisher appending and a
// drainer observing an empty queue.
type Dispatcher struct {
	hmu       sync.RWMutex
	handlers  map[Token]Handler
	nextToken Token

	qmu    sync.Mutex
	queues map[uuid.UUID]*accountQueue

	work   chan *accountQueue
	stop   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

type accountQueue struct {
	mu       sync.Mutex
	pending  []domain.BalanceEvent
	draining bool
}

// New starts a dispatcher with the given pool size (defaultWorkers when
// non-positive).
func New(workers int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	d := &Dispatcher{
		handlers: make(map[Token]Handler),
		queues:   make(map[uuid.UUID]*accountQueue),
		work:     make(chan *accountQueue, 256),
		stop:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Subscribe registers a handler for every published event.
func (d *Dispatcher) Subscribe(h Handler) Token {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	d.nextToken++
	tok := d.nextToken
	d.handlers[tok] = h
	return tok
}

// Unsubscribe removes a handler. Events already queued may still reach it.
func (d *Dispatcher) Unsubscribe(tok Token) {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	delete(d.handlers, tok)
}

// Publish enqueues the event and returns immediately. After Close events are
// dropped.
func (d *Dispatcher) Publish(event domain.BalanceEvent) {
	if d.closed.Load() {
		return
	}
	q := d.queue(event.AccountID)

	q.mu.Lock()
	q.pending = append(q.pending, event)
	schedule := !q.draining
	if schedule {
		q.draining = true
	}
	q.mu.Unlock()

	if schedule {
		select {
		case d.work <- q:
		default:
			// Pool backlog full: spill onto a dedicated goroutine rather
			// than block the publisher.
			go d.drain(q)
		}
	}
}

// Close stops intake and drops all pending queues. In-flight handler calls
// are not waited for.
func (d *Dispatcher) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.qmu.Lock()
	d.queues = make(map[uuid.UUID]*accountQueue)
	d.qmu.Unlock()
	close(d.stop)
}

func (d *Dispatcher) queue(id uuid.UUID) *accountQueue {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	q, ok := d.queues[id]
	if !ok {
		q = &accountQueue{}
		d.queues[id] = q
	}
	return q
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case q := <-d.work:
			d.drain(q)
		case <-d.stop:
			return
		}
	}
}

// drain pops and delivers queued events for one account until the queue is
// empty. The draining flag is cleared under the queue mutex together with
// the final emptiness check, so a concurrent Publish either found the flag
// still set (its event gets popped here) or finds it cleared and schedules a
// fresh drain.
func (d *Dispatcher) drain(q *accountQueue) {
	for {
		if d.closed.Load() {
			q.mu.Lock()
			q.pending = nil
			q.draining = false
			q.mu.Unlock()
			return
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		event := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event domain.BalanceEvent) {
	d.hmu.RLock()
	toks := make([]Token, 0, len(d.handlers))
	for tok := range d.handlers {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool { return toks[i] < toks[j] })
	hs := make([]Handler, len(toks))
	for i, tok := range toks {
		hs[i] = d.handlers[tok]
	}
	d.hmu.RUnlock()

	for _, h := range hs {
		safeCall(h, event)
	}
}

func safeCall(h Handler, event domain.BalanceEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("account", event.AccountID.String()).
				Int64("seq", event.Seq).
				Msg("event handler panicked")
		}
	}()
	h(event)
}
