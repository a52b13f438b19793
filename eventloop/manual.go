package eventloop

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a virtual-clock Scheduler. Time only moves when Advance is
// called, which makes timer-driven code deterministic under test.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue timerQueue
}

// NewManual returns a scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

type manualTimer struct {
	at     time.Time
	seq    uint64
	fn     func()
	done   bool
	index  int
	parent *Manual
}

func (t *manualTimer) Stop() bool {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	if t.index >= 0 {
		heap.Remove(&t.parent.queue, t.index)
	}
	return true
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{at: m.now.Add(d), seq: m.seq, fn: fn, parent: m}
	heap.Push(&m.queue, t)
	return t
}

func (m *Manual) Every(d time.Duration, fn func()) Timer {
	return every(m.AfterFunc, d, fn)
}

// Advance moves the clock forward by d, running every timer that falls due
// in order of deadline. Timers armed by callbacks run too if they fall due
// within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.queue) == 0 || m.queue[0].at.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := heap.Pop(&m.queue).(*manualTimer)
		t.done = true
		m.now = t.at
		m.mu.Unlock()

		t.fn()
	}
}

// Flush runs every timer that is already due without moving the clock.
func (m *Manual) Flush() {
	m.Advance(0)
}

// Pending returns the number of armed timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

type timerQueue []*manualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
