// Package eventloop provides the single-threaded cooperative scheduler every
// run reacts on. Callbacks never run concurrently with each other: a handler
// that has started runs to completion before the next one is dequeued.
package eventloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending one-shot or periodic callback.
type Timer interface {
	// Stop cancels the timer. It returns false if the timer had already
	// fired (one-shot) or was already stopped.
	Stop() bool
}

// Scheduler arms callbacks that run on the loop. Implementations never run
// fn synchronously from AfterFunc or Every, even for a zero duration.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

// minPeriod bounds periodic timers so a zero interval cannot spin the loop.
const minPeriod = time.Millisecond

type periodic struct {
	stopped atomic.Bool
	mu      sync.Mutex
	next    Timer
}

// every re-arms a one-shot timer after each tick so that a slow handler
// delays the next tick instead of queueing a burst.
func every(after func(time.Duration, func()) Timer, d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = minPeriod
	}
	p := &periodic{}
	var tick func()
	tick = func() {
		if p.stopped.Load() {
			return
		}
		fn()
		if p.stopped.Load() {
			return
		}
		p.arm(after(d, tick))
	}
	p.arm(after(d, tick))
	return p
}

func (p *periodic) arm(t Timer) {
	p.mu.Lock()
	p.next = t
	p.mu.Unlock()
}

func (p *periodic) Stop() bool {
	if !p.stopped.CompareAndSwap(false, true) {
		return false
	}
	p.mu.Lock()
	t := p.next
	p.mu.Unlock()
	if t != nil {
		t.Stop()
	}
	return true
}
