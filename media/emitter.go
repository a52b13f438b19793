package media

import (
	"slices"
	"sync"
)

// Emitter fans events out to zero or more handlers per kind. It is meant to
// be embedded by Element implementations.
type Emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[EventKind]map[int]Handler
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// Subscribe registers h for kind.
func (e *Emitter) Subscribe(kind EventKind, h Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[EventKind]map[int]Handler)
	}
	if e.subs[kind] == nil {
		e.subs[kind] = make(map[int]Handler)
	}
	e.nextID++
	id := e.nextID
	e.subs[kind][id] = h

	return &subscription{fn: func() {
		e.mu.Lock()
		delete(e.subs[kind], id)
		e.mu.Unlock()
	}}
}

// Emit delivers ev to the handlers subscribed at the time of the call, in
// subscription order.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.subs[ev.Kind]))
	for id := range e.subs[ev.Kind] {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, e.subs[ev.Kind][id])
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Listeners returns the number of handlers currently attached.
func (e *Emitter) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.subs {
		n += len(m)
	}
	return n
}
