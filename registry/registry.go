// Package registry owns the collection of runs shown on the dashboard.
package registry

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/perfgo/chaosplay/aggregate"
	"github.com/perfgo/chaosplay/model"
)

// ChangeKind identifies what happened to a run.
type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is published to subscribers after every successful mutation.
type Change struct {
	Kind ChangeKind
	Run  model.Run
}

// Registry is an insertion-ordered collection of runs. All writes go
// through Create, Update and Remove; readers get copies.
type Registry struct {
	mu      sync.RWMutex
	items   map[string]*model.Run
	ordered []string
	newID   func() string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the uuid generator used for new runs.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		items:   map[string]*model.Run{},
		ordered: make([]string, 0),
		newID:   uuid.NewString,
		subs:    map[int]func(Change){},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create appends a pending run and returns its id.
func (r *Registry) Create(cfg model.RunConfig) string {
	r.mu.Lock()
	id := r.newID()
	for _, exists := r.items[id]; exists; _, exists = r.items[id] {
		id = r.newID()
	}
	run := model.NewRun(id, cfg)
	r.items[id] = &run
	r.ordered = append(r.ordered, id)
	r.mu.Unlock()

	r.publish(Change{Kind: Created, Run: cloneRun(run)})
	return id
}

// Update applies u to the run with the given id. Identity and
// configuration are immutable and survive any update. Subscribers only hear
// about updates that changed the run. It returns false if no such run
// exists.
func (r *Registry) Update(id string, u aggregate.Update) bool {
	r.mu.Lock()
	cur, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	next := u(cloneRun(*cur))
	next.ID = cur.ID
	next.Config = cur.Config
	if next.Equal(*cur) {
		r.mu.Unlock()
		return true
	}
	*cur = next
	snapshot := cloneRun(next)
	r.mu.Unlock()

	r.publish(Change{Kind: Updated, Run: snapshot})
	return true
}

// Remove deletes the run with the given id. Subscribers are told about the
// removal; releasing the run's resources is their business.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	cur, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.items, id)
	for i, oid := range r.ordered {
		if oid == id {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	snapshot := cloneRun(*cur)
	r.mu.Unlock()

	r.publish(Change{Kind: Removed, Run: snapshot})
	return true
}

// Get returns a copy of the run with the given id.
func (r *Registry) Get(id string) (model.Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.items[id]
	if !ok {
		return model.Run{}, false
	}
	return cloneRun(*cur), true
}

// List returns copies of all runs in insertion order.
func (r *Registry) List() []model.Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Run, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, cloneRun(*r.items[id]))
	}
	return out
}

// Partition splits the runs into pinned (minimized) and active ones,
// keeping insertion order within each.
func (r *Registry) Partition() (pinned, active []model.Run) {
	pinned = make([]model.Run, 0)
	active = make([]model.Run, 0)
	for _, run := range r.List() {
		if run.Minimized {
			pinned = append(pinned, run)
		} else {
			active = append(active, run)
		}
	}
	return pinned, active
}

// Len returns the number of runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Subscribe registers fn for every future change. Call the returned func
// to stop receiving changes.
func (r *Registry) Subscribe(fn func(Change)) (cancel func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.nextID++
	id := r.nextID
	r.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
		})
	}
}

func (r *Registry) publish(c Change) {
	r.subMu.Lock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	r.subMu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		r.subMu.Lock()
		fn, ok := r.subs[id]
		r.subMu.Unlock()
		if ok {
			fn(c)
		}
	}
}

func cloneRun(in model.Run) model.Run {
	if in.Metrics.TTFF != nil {
		ttff := *in.Metrics.TTFF
		in.Metrics.TTFF = &ttff
	}
	return in
}
