package model

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether the run is still pending or running.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next keeps the status
// ordering pending -> running -> {completed|failed}. Staying in the same
// status is allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	if s.Terminal() || next.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// RunConfig is the immutable configuration of a run.
type RunConfig struct {
	// Display name shown on the dashboard
	Name string `json:"name"`
	// Media source the run plays
	SourceURI string `json:"source_uri"`
	// Chaos preset applied at creation
	Preset Preset `json:"preset"`
}

// Metrics are the quality measurements derived from media events.
type Metrics struct {
	// Time to first frame, nil until the first frame rendered
	TTFF *time.Duration `json:"ttff,omitempty"`
	// Number of rebuffer intervals opened
	RebufferCount int `json:"rebuffer_count"`
	// Cumulative duration of closed rebuffer intervals
	RebufferTime time.Duration `json:"rebuffer_time"`
	// Number of errors reported by the media element
	ErrorCount int `json:"error_count"`
	// Playback progress, 0-100
	PlaybackPercent float64 `json:"playback_percent"`
}

// Run represents a single simulated playback test.
type Run struct {
	// Unique ID for this run
	ID string `json:"id"`
	// Configuration fixed at creation
	Config RunConfig `json:"config"`
	// Lifecycle status
	Status Status `json:"status"`
	// Pinned to the minimized strip of the dashboard. Presentation only.
	Minimized bool `json:"minimized"`
	// Set once when activation begins
	StartTime time.Time `json:"start_time,omitempty"`
	// Set once when the run is cleaned up
	EndTime time.Time `json:"end_time,omitempty"`
	Metrics Metrics   `json:"metrics"`
}

// NewRun returns a pending run with zeroed metrics.
func NewRun(id string, cfg RunConfig) Run {
	return Run{
		ID:     id,
		Config: cfg,
		Status: StatusPending,
	}
}

// RebufferSeconds returns the cumulative rebuffer time in seconds.
func (m Metrics) RebufferSeconds() float64 {
	return m.RebufferTime.Seconds()
}

// Equal reports whether two metric sets hold the same values.
func (m Metrics) Equal(o Metrics) bool {
	if (m.TTFF == nil) != (o.TTFF == nil) {
		return false
	}
	if m.TTFF != nil && *m.TTFF != *o.TTFF {
		return false
	}
	return m.RebufferCount == o.RebufferCount &&
		m.RebufferTime == o.RebufferTime &&
		m.ErrorCount == o.ErrorCount &&
		m.PlaybackPercent == o.PlaybackPercent
}

// Equal reports whether two runs hold the same state.
func (r Run) Equal(o Run) bool {
	return r.ID == o.ID &&
		r.Config == o.Config &&
		r.Status == o.Status &&
		r.Minimized == o.Minimized &&
		r.StartTime.Equal(o.StartTime) &&
		r.EndTime.Equal(o.EndTime) &&
		r.Metrics.Equal(o.Metrics)
}
