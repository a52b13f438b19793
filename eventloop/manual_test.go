package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_AfterFuncOrdering(t *testing.T) {
	m := NewManual(epoch)
	var got []string

	m.AfterFunc(200*time.Millisecond, func() { got = append(got, "b") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(200*time.Millisecond, func() { got = append(got, "c") })

	m.Advance(150 * time.Millisecond)
	require.Equal(t, []string{"a"}, got)
	require.Equal(t, epoch.Add(150*time.Millisecond), m.Now())

	m.Advance(50 * time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestManual_ZeroDelayIsDeferred(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	m.AfterFunc(0, func() { fired = true })
	require.False(t, fired)

	m.Flush()
	require.True(t, fired)
}

func TestManual_CallbackSeesDeadline(t *testing.T) {
	m := NewManual(epoch)
	var at time.Time
	m.AfterFunc(time.Second, func() { at = m.Now() })
	m.Advance(5 * time.Second)
	require.Equal(t, epoch.Add(time.Second), at)
}

func TestManual_Stop(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	require.False(t, timer.Stop())
	m.Advance(2 * time.Second)
	require.False(t, fired)
	require.Zero(t, m.Pending())

	fireOnce := m.AfterFunc(time.Second, func() {})
	m.Advance(time.Second)
	require.False(t, fireOnce.Stop())
}

func TestManual_Every(t *testing.T) {
	m := NewManual(epoch)
	ticks := 0
	timer := m.Every(250*time.Millisecond, func() { ticks++ })

	m.Advance(time.Second)
	require.Equal(t, 4, ticks)

	require.True(t, timer.Stop())
	m.Advance(time.Second)
	require.Equal(t, 4, ticks)
	require.Zero(t, m.Pending())
}

func TestManual_EveryStoppedFromCallback(t *testing.T) {
	m := NewManual(epoch)
	ticks := 0
	var timer Timer
	timer = m.Every(time.Second, func() {
		ticks++
		if ticks == 2 {
			timer.Stop()
		}
	})

	m.Advance(10 * time.Second)
	require.Equal(t, 2, ticks)
}

func TestManual_TimersArmedByCallbacks(t *testing.T) {
	m := NewManual(epoch)
	var got []time.Duration
	m.AfterFunc(time.Second, func() {
		got = append(got, m.Now().Sub(epoch))
		m.AfterFunc(500*time.Millisecond, func() {
			got = append(got, m.Now().Sub(epoch))
		})
	})

	m.Advance(2 * time.Second)
	require.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond}, got)
}
