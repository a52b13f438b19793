// Package aggregate folds media events into run state. Every change to a
// model.Run goes through an Update built here, which is where the run
// invariants are enforced: forward-only status, set-once timestamps and
// TTFF, monotonic counters and progress.
package aggregate

import (
	"math"
	"time"

	"github.com/perfgo/chaosplay/model"
)

// Update computes the next state of a run from its current state.
type Update func(model.Run) model.Run

// Chain applies updates in order.
func Chain(updates ...Update) Update {
	return func(r model.Run) model.Run {
		for _, u := range updates {
			if u != nil {
				r = u(r)
			}
		}
		return r
	}
}

// Transition moves the run to status if the ordering allows it.
func Transition(status model.Status) Update {
	return func(r model.Run) model.Run {
		if r.Status.CanTransition(status) {
			r.Status = status
		}
		return r
	}
}

// Activated records the start time of a run that has not started yet.
func Activated(at time.Time) Update {
	return func(r model.Run) model.Run {
		if r.StartTime.IsZero() {
			r.StartTime = at
		}
		return r
	}
}

// FirstFrame handles the first successful render. TTFF is recorded only
// when measure is set, the run is leaving pending and no TTFF exists yet.
func FirstFrame(at time.Time, measure bool) Update {
	return func(r model.Run) model.Run {
		if r.Status != model.StatusPending {
			return r
		}
		if measure && r.Metrics.TTFF == nil && !r.StartTime.IsZero() {
			ttff := at.Sub(r.StartTime)
			if ttff < 0 {
				ttff = 0
			}
			r.Metrics.TTFF = &ttff
		}
		r.Status = model.StatusRunning
		return r
	}
}

// Progress raises playback progress while the run is running.
func Progress(percent float64) Update {
	return func(r model.Run) model.Run {
		if r.Status != model.StatusRunning {
			return r
		}
		r.Metrics.PlaybackPercent = raise(r.Metrics.PlaybackPercent, percent)
		return r
	}
}

// ProgressAt derives progress from elapsed wall-clock time since the run
// started, relative to total.
func ProgressAt(now time.Time, total time.Duration) Update {
	return func(r model.Run) model.Run {
		if r.StartTime.IsZero() || total <= 0 {
			return r
		}
		elapsed := now.Sub(r.StartTime)
		return Progress(float64(elapsed) / float64(total) * 100)(r)
	}
}

// RebufferStarted counts a rebuffer event.
func RebufferStarted() Update {
	return func(r model.Run) model.Run {
		if r.Status.Terminal() {
			return r
		}
		r.Metrics.RebufferCount++
		return r
	}
}

// RebufferEnded adds the duration of a closed rebuffer interval.
func RebufferEnded(d time.Duration) Update {
	return func(r model.Run) model.Run {
		if d > 0 {
			r.Metrics.RebufferTime += d
		}
		return r
	}
}

// Fault counts an error reported by the media element and fails the run.
// Errors on a terminal run are ignored.
func Fault() Update {
	return func(r model.Run) model.Run {
		if r.Status.Terminal() {
			return r
		}
		r.Metrics.ErrorCount++
		r.Status = model.StatusFailed
		return r
	}
}

// Completed records the end of a run. A failed run keeps its status and
// partial progress.
func Completed(at time.Time) Update {
	return func(r model.Run) model.Run {
		if r.EndTime.IsZero() {
			r.EndTime = at
		}
		if r.Status == model.StatusFailed {
			return r
		}
		r.Metrics.PlaybackPercent = 100
		r.Status = model.StatusCompleted
		return r
	}
}

// Minimize sets the presentation-only visibility flag.
func Minimize(minimized bool) Update {
	return func(r model.Run) model.Run {
		r.Minimized = minimized
		return r
	}
}

func clampPercent(p float64) float64 {
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func raise(current, next float64) float64 {
	next = clampPercent(next)
	if next > current {
		return next
	}
	return current
}
