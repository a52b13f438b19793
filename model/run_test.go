package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "pending to running", from: StatusPending, to: StatusRunning, want: true},
		{name: "pending to failed", from: StatusPending, to: StatusFailed, want: true},
		{name: "pending to completed", from: StatusPending, to: StatusCompleted, want: true},
		{name: "running to completed", from: StatusRunning, to: StatusCompleted, want: true},
		{name: "running to failed", from: StatusRunning, to: StatusFailed, want: true},
		{name: "running to pending", from: StatusRunning, to: StatusPending, want: false},
		{name: "failed to completed", from: StatusFailed, to: StatusCompleted, want: false},
		{name: "completed to failed", from: StatusCompleted, to: StatusFailed, want: false},
		{name: "failed to running", from: StatusFailed, to: StatusRunning, want: false},
		{name: "same status", from: StatusRunning, to: StatusRunning, want: true},
		{name: "unknown target", from: StatusPending, to: Status("paused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestNewRun(t *testing.T) {
	p, ok := LookupPreset(PresetBaseline)
	require.True(t, ok)

	run := NewRun("abc", RunConfig{Name: "clip", SourceURI: "https://example.com/a.mp4", Preset: p})
	require.Equal(t, StatusPending, run.Status)
	require.Nil(t, run.Metrics.TTFF)
	require.Zero(t, run.Metrics.ErrorCount)
	require.True(t, run.StartTime.IsZero())
	require.False(t, run.Minimized)
}

func TestPresets(t *testing.T) {
	all := Presets()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].Key, all[i].Key)
	}

	for _, p := range all {
		require.GreaterOrEqual(t, p.FaultProbability, 0.0, p.Key)
		require.LessOrEqual(t, p.FaultProbability, 1.0, p.Key)
		if p.FaultProbability > 0 {
			require.True(t, p.Category.Injects(), p.Key)
		}
	}

	_, ok := LookupPreset("nope")
	require.False(t, ok)
}

func TestRun_Equal(t *testing.T) {
	base := NewRun("a", RunConfig{Name: "clip", SourceURI: "https://a/v.mp4"})
	ttff := 300 * time.Millisecond
	same := ttff
	base.Metrics.TTFF = &ttff

	other := base
	other.Metrics.TTFF = &same
	require.True(t, base.Equal(other), "ttff compared by value")

	other.Metrics.TTFF = nil
	require.False(t, base.Equal(other))

	other = base
	other.Minimized = true
	require.False(t, base.Equal(other))

	other = base
	other.Metrics.PlaybackPercent = 1
	require.False(t, base.Equal(other))
}
