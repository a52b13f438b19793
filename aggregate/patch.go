package aggregate

import (
	"time"

	"github.com/perfgo/chaosplay/model"
)

// Patch replaces individual fields of a run. Nil fields are left alone.
// Each field goes through the same rules as the event updates, so a
// replacement that would break a run invariant is dropped:
//   - Status running is only reachable from pending, and TTFF is only
//     accepted together with that transition.
//   - Status completed completes the run as cleanup does: progress 100 and
//     EndTime stamped.
//   - Status failed counts a fault unless ErrorCount already raised it.
//   - Counters and progress only move while the run is not terminal, and
//     progress only while running.
//   - EndTime is only accepted on a terminal run.
type Patch struct {
	Status          *model.Status
	Minimized       *bool
	StartTime       *time.Time
	EndTime         *time.Time
	TTFF            *time.Duration
	RebufferCount   *int
	RebufferTime    *time.Duration
	ErrorCount      *int
	PlaybackPercent *float64
}

// Apply returns r with the patch applied. now stamps EndTime when the patch
// completes the run without an explicit EndTime.
func (p Patch) Apply(r model.Run, now time.Time) model.Run {
	if p.Minimized != nil {
		r.Minimized = *p.Minimized
	}
	if p.StartTime != nil {
		r = Activated(*p.StartTime)(r)
	}

	if !r.Status.Terminal() {
		if p.RebufferCount != nil && *p.RebufferCount > r.Metrics.RebufferCount {
			r.Metrics.RebufferCount = *p.RebufferCount
		}
		if p.RebufferTime != nil && *p.RebufferTime > r.Metrics.RebufferTime {
			r.Metrics.RebufferTime = *p.RebufferTime
		}
		if p.ErrorCount != nil && *p.ErrorCount > r.Metrics.ErrorCount {
			r.Metrics.ErrorCount = *p.ErrorCount
			r.Status = model.StatusFailed
		}
	}

	if p.Status != nil {
		r = p.transition(r, now)
	}
	if p.PlaybackPercent != nil {
		r = Progress(*p.PlaybackPercent)(r)
	}
	if p.EndTime != nil && r.Status.Terminal() && r.EndTime.IsZero() {
		r.EndTime = *p.EndTime
	}
	return r
}

func (p Patch) transition(r model.Run, now time.Time) model.Run {
	next := *p.Status
	if next == r.Status || !r.Status.CanTransition(next) {
		return r
	}

	switch next {
	case model.StatusRunning:
		if p.TTFF != nil && *p.TTFF >= 0 && r.Metrics.TTFF == nil {
			ttff := *p.TTFF
			r.Metrics.TTFF = &ttff
		}
		r.Status = model.StatusRunning
	case model.StatusCompleted:
		at := now
		if p.EndTime != nil {
			at = *p.EndTime
		}
		r = Completed(at)(r)
	case model.StatusFailed:
		r = Fault()(r)
	}
	return r
}

// Update returns the patch as an Update stamped with now.
func (p Patch) Update(now time.Time) Update {
	return func(r model.Run) model.Run {
		return p.Apply(r, now)
	}
}
