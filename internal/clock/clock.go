// Package clock abstracts the time sources the orchestration engine depends
// on so that tests can advance a virtual clock instead of sleeping.
package clock

import "time"

// Timer is a one-shot deferred trigger that can be stopped before firing.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer; false means the timer already fired or was stopped.
	Stop() bool
}

// Ticker delivers repeated ticks until stopped.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Clock is the engine's only view of time. The real implementation wraps the
// time package; the fake one is driven manually by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Real is the production clock.
type Real struct{}

// New returns the production clock.
func New() Clock { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

func (Real) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }

type realTicker struct{ t *time.Ticker }

func (r realTicker) Chan() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()                  { r.t.Stop() }
