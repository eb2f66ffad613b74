package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock for tests. Timers and tickers fire
// synchronously inside Advance, in deadline order, so tests observe a
// deterministic interleaving.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	clock    *Fake
	deadline time.Time
	period   time.Duration // 0 for one-shot timers
	fn       func()        // one-shot callback
	ch       chan time.Time
	stopped  bool
}

// NewFake returns a fake clock pinned to the given start time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{clock: f, deadline: f.now.Add(d), fn: fn}
	f.waiters = append(f.waiters, w)
	return w
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{clock: f, deadline: f.now.Add(d), period: d, ch: make(chan time.Time, 1)}
	f.waiters = append(f.waiters, w)
	return fakeTicker{w}
}

// fakeTicker adapts fakeWaiter's Stop() bool to the Ticker interface's Stop().
type fakeTicker struct{ *fakeWaiter }

func (t fakeTicker) Stop() { t.fakeWaiter.Stop() }

// Advance moves the clock forward and fires every waiter whose deadline has
// passed. One-shot callbacks run in their own goroutine, matching
// time.AfterFunc semantics.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		w := f.nextDue(target)
		if w == nil {
			break
		}
		f.now = w.deadline
		if w.period > 0 {
			w.deadline = w.deadline.Add(w.period)
			select {
			case w.ch <- f.now:
			default: // ticker consumers that lag drop ticks
			}
		} else {
			w.stopped = true
			fn := w.fn
			f.mu.Unlock()
			done := make(chan struct{})
			go func() {
				defer close(done)
				fn()
			}()
			<-done
			f.mu.Lock()
		}
	}
	f.now = target
	f.compact()
	f.mu.Unlock()
}

// nextDue returns the unstopped waiter with the earliest deadline at or
// before target. Caller holds the lock.
func (f *Fake) nextDue(target time.Time) *fakeWaiter {
	var due *fakeWaiter
	for _, w := range f.waiters {
		if w.stopped || w.deadline.After(target) {
			continue
		}
		if due == nil || w.deadline.Before(due.deadline) {
			due = w
		}
	}
	return due
}

func (f *Fake) compact() {
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped {
			kept = append(kept, w)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].deadline.Before(kept[j].deadline) })
	f.waiters = kept
}

// PendingTimers returns the number of unstopped waiters, for test assertions.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.waiters {
		if !w.stopped {
			n++
		}
	}
	return n
}

func (w *fakeWaiter) Stop() bool {
	w.clock.mu.Lock()
	defer w.clock.mu.Unlock()
	if w.stopped {
		return false
	}
	w.stopped = true
	return true
}

func (w *fakeWaiter) Chan() <-chan time.Time { return w.ch }
