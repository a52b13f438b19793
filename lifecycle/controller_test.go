package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/perfgo/chaosplay/aggregate"
	"github.com/perfgo/chaosplay/chaos"
	"github.com/perfgo/chaosplay/eventloop"
	"github.com/perfgo/chaosplay/media"
	"github.com/perfgo/chaosplay/media/mediatest"
	"github.com/perfgo/chaosplay/model"
	"github.com/perfgo/chaosplay/registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = "https://cdn.example.com/video.mp4"

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	t       *testing.T
	sched   *eventloop.Manual
	reg     *registry.Registry
	element *mediatest.Element
	ctrl    *Controller
	id      string
}

func newHarness(t *testing.T, presetKey string, opts Options) *harness {
	t.Helper()
	p, ok := model.LookupPreset(presetKey)
	require.True(t, ok)

	h := &harness{
		t:       t,
		sched:   eventloop.NewManual(epoch),
		reg:     registry.New(),
		element: mediatest.New(),
	}
	h.id = h.reg.Create(model.RunConfig{Name: "clip", SourceURI: source, Preset: p})
	run, _ := h.reg.Get(h.id)
	h.ctrl = New(zerolog.Nop(), h.sched, h.element, h.reg, run, opts)
	return h
}

func (h *harness) run() model.Run {
	h.t.Helper()
	run, ok := h.reg.Get(h.id)
	require.True(h.t, ok)
	return run
}

func TestController_BaselineCompletes(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{TotalDuration: 10 * time.Second})
	h.ctrl.Start()

	require.Equal(t, epoch, h.run().StartTime)
	require.Zero(t, h.element.Loads(), "begin playback must be deferred")

	h.sched.Flush()
	require.Equal(t, source, h.element.Source())
	require.Equal(t, 1, h.element.Loads())
	require.Equal(t, 1, h.element.Plays())

	h.sched.Advance(400 * time.Millisecond)
	h.element.Signal(media.EventFirstFrame)
	run := h.run()
	require.Equal(t, model.StatusRunning, run.Status)
	require.NotNil(t, run.Metrics.TTFF)
	require.Equal(t, 400*time.Millisecond, *run.Metrics.TTFF)

	h.sched.Advance(5 * time.Second)
	require.InDelta(t, 54.0, h.run().Metrics.PlaybackPercent, 0.01)

	h.sched.Advance(5 * time.Second)
	run = h.run()
	require.Equal(t, model.StatusCompleted, run.Status)
	require.Equal(t, 100.0, run.Metrics.PlaybackPercent)
	require.Zero(t, run.Metrics.ErrorCount)
	require.Equal(t, epoch.Add(10*time.Second), run.EndTime)

	require.True(t, h.ctrl.Finished())
	require.Empty(t, h.element.Source())
	require.Zero(t, h.element.Listeners())
	require.Zero(t, h.sched.Pending())
}

func TestController_LatencyDefersPlayback(t *testing.T) {
	h := newHarness(t, model.PresetLatency, Options{TotalDuration: 10 * time.Second})
	h.ctrl.Start()

	require.Equal(t, epoch, h.run().StartTime)

	h.sched.Advance(999 * time.Millisecond)
	require.Zero(t, h.element.Loads())
	require.Empty(t, h.element.Source())

	h.sched.Advance(time.Millisecond)
	require.Equal(t, 1, h.element.Loads())
	require.Equal(t, source, h.element.Source())

	// Cleanup is armed for total + startup delay.
	h.element.Signal(media.EventFirstFrame)
	h.sched.Advance(10*time.Second - time.Millisecond)
	require.Equal(t, model.StatusRunning, h.run().Status)
	h.sched.Advance(time.Millisecond)
	require.Equal(t, model.StatusCompleted, h.run().Status)
}

func TestController_TTFFIncludesStartupDelay(t *testing.T) {
	h := newHarness(t, model.PresetLatency, Options{})
	h.ctrl.Start()

	h.sched.Advance(1300 * time.Millisecond)
	h.element.Signal(media.EventFirstFrame)
	require.Equal(t, 1300*time.Millisecond, *h.run().Metrics.TTFF)

	h.sched.Advance(time.Second)
	h.element.Signal(media.EventFirstFrame)
	require.Equal(t, 1300*time.Millisecond, *h.run().Metrics.TTFF)
}

func TestController_ErrorWhileRunningFails(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{TotalDuration: 10 * time.Second})
	h.ctrl.Start()
	h.sched.Flush()
	h.element.Signal(media.EventFirstFrame)
	h.sched.Advance(2 * time.Second)

	before := h.run().Metrics.PlaybackPercent
	require.Greater(t, before, 0.0)

	h.element.Fail(media.ErrCodeNetwork, "network error")
	run := h.run()
	require.Equal(t, model.StatusFailed, run.Status)
	require.Equal(t, 1, run.Metrics.ErrorCount)

	// The element is released right away; only cleanup stays armed.
	assert.Zero(t, h.element.Listeners())
	assert.True(t, h.element.Paused())
	assert.Empty(t, h.element.Source())
	assert.Equal(t, 1, h.element.Pauses())
	assert.Equal(t, 1, h.sched.Pending())
	assert.True(t, run.EndTime.IsZero())

	// Further signals and the cleanup action never revive the run.
	h.element.Fail(media.ErrCodeDecode, "decode error")
	h.element.Signal(media.EventFirstFrame)
	h.sched.Advance(time.Minute)

	run = h.run()
	require.Equal(t, model.StatusFailed, run.Status)
	require.Equal(t, 1, run.Metrics.ErrorCount)
	require.Equal(t, before, run.Metrics.PlaybackPercent)
	require.False(t, run.EndTime.IsZero())
	require.True(t, h.ctrl.Finished())
	require.Empty(t, h.element.Source())
	require.Equal(t, 1, h.element.Pauses(), "release happens once")
	require.Zero(t, h.sched.Pending())
}

func TestController_ErrorWhilePendingFails(t *testing.T) {
	h := newHarness(t, model.PresetLatency, Options{TotalDuration: 5 * time.Second})
	h.ctrl.Start()

	h.element.Fail(media.ErrCodeSrcNotSupported, "bad source")
	require.Equal(t, model.StatusFailed, h.run().Status)
	require.Zero(t, h.element.Listeners())
	require.Equal(t, 1, h.sched.Pending(), "begin playback is cancelled")

	// Begin playback no longer touches the element.
	h.sched.Advance(time.Second)
	require.Zero(t, h.element.Loads())
}

func TestController_RebufferInterval(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{})
	h.ctrl.Start()
	h.sched.Flush()
	h.element.Signal(media.EventFirstFrame)

	h.element.Signal(media.EventWaitingForData)
	h.sched.Advance(500 * time.Millisecond)
	h.element.Signal(media.EventCanResume)

	run := h.run()
	require.Equal(t, 1, run.Metrics.RebufferCount)
	require.InDelta(t, 0.5, run.Metrics.RebufferSeconds(), 1e-9)
}

func TestController_RebufferEdgeCases(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{})
	h.ctrl.Start()
	h.sched.Flush()
	h.element.Signal(media.EventFirstFrame)

	// An end with no open start changes nothing.
	h.element.Signal(media.EventCanResume)
	require.Zero(t, h.run().Metrics.RebufferTime)

	// Nested starts count but keep the first start time.
	h.element.Signal(media.EventWaitingForData)
	h.sched.Advance(200 * time.Millisecond)
	h.element.Signal(media.EventStalled)
	h.sched.Advance(300 * time.Millisecond)
	h.element.Signal(media.EventCanResume)
	h.element.Signal(media.EventCanResume)

	run := h.run()
	require.Equal(t, 2, run.Metrics.RebufferCount)
	require.Equal(t, 500*time.Millisecond, run.Metrics.RebufferTime)

	// An unmatched start contributes nothing.
	h.element.Signal(media.EventWaitingForData)
	h.sched.Advance(time.Second)
	require.Equal(t, 500*time.Millisecond, h.run().Metrics.RebufferTime)

	// A first frame closes the open interval.
	h.element.Signal(media.EventFirstFrame)
	require.Equal(t, 1500*time.Millisecond, h.run().Metrics.RebufferTime)
}

func TestController_InitialBufferingClosedByFirstFrame(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{})
	h.ctrl.Start()
	h.sched.Flush()

	h.element.Signal(media.EventWaitingForData)
	h.sched.Advance(250 * time.Millisecond)
	h.element.Signal(media.EventFirstFrame)

	run := h.run()
	require.Equal(t, model.StatusRunning, run.Status)
	require.Equal(t, 250*time.Millisecond, run.Metrics.RebufferTime)
}

func TestController_ProgressMonotonic(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{TotalDuration: 4 * time.Second, SampleInterval: 250 * time.Millisecond})
	h.ctrl.Start()
	h.sched.Flush()
	h.element.Signal(media.EventFirstFrame)

	last := 0.0
	for i := 0; i < 15; i++ {
		h.sched.Advance(250 * time.Millisecond)
		run := h.run()
		require.GreaterOrEqual(t, run.Metrics.PlaybackPercent, last)
		require.LessOrEqual(t, run.Metrics.PlaybackPercent, 100.0)
		last = run.Metrics.PlaybackPercent
	}
	require.Equal(t, model.StatusRunning, h.run().Status)
}

func TestController_PlayRejectionIsNonFatal(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{})
	h.element.SetPlayError(errors.New("NotAllowedError"))
	h.ctrl.Start()
	h.sched.Flush()

	run := h.run()
	require.Equal(t, model.StatusPending, run.Status)
	require.Zero(t, run.Metrics.ErrorCount)
	require.True(t, h.element.Paused())
}

func TestController_NeverPlaysStillCompletes(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{TotalDuration: time.Second})
	h.ctrl.Start()
	h.sched.Advance(time.Second)

	run := h.run()
	require.Equal(t, model.StatusCompleted, run.Status)
	require.Nil(t, run.Metrics.TTFF)
	require.Equal(t, 100.0, run.Metrics.PlaybackPercent)
}

func TestController_StartOnlyOnce(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{})
	h.ctrl.Start()
	h.sched.Advance(time.Second)
	h.ctrl.Start()

	require.Equal(t, epoch, h.run().StartTime)
	require.Equal(t, 1, h.element.Loads())
	require.Equal(t, 5, h.element.Listeners())
}

func TestController_TeardownCancelsEverything(t *testing.T) {
	h := newHarness(t, model.PresetSpikey, Options{TotalDuration: 20 * time.Second})
	h.ctrl.Start()
	h.sched.Advance(time.Second)
	h.element.Signal(media.EventFirstFrame)
	require.Positive(t, h.sched.Pending())

	h.ctrl.Teardown()
	h.ctrl.Teardown()
	snapshot := h.run()

	require.Zero(t, h.sched.Pending())
	require.Zero(t, h.element.Listeners())
	require.Empty(t, h.element.Source())
	require.True(t, h.element.Paused())

	h.sched.Advance(time.Minute)
	assert.Equal(t, snapshot, h.run())
}

func TestController_RemovedRunIgnoresLateEvents(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{})
	h.ctrl.Start()
	h.sched.Flush()

	require.True(t, h.reg.Remove(h.id))
	// Late events before teardown find no run and do nothing.
	h.element.Signal(media.EventFirstFrame)
	h.element.Fail(media.ErrCodeNetwork, "late")
	h.ctrl.Teardown()

	_, ok := h.reg.Get(h.id)
	require.False(t, ok)
}

// Injected chaos faults reach the controller as ordinary element errors, so
// they fail the run and count toward the error total just like organic
// faults. This coupling is intentional.
func TestController_ChaosFaultCountsAsFailure(t *testing.T) {
	h := newHarness(t, model.PresetSpikey, Options{
		TotalDuration: 30 * time.Second,
		Chaos: chaos.Options{
			Rand:  func() float64 { return 0 },
			Token: func() string { return "t" },
		},
	})
	h.ctrl.Start()
	h.sched.Advance(500 * time.Millisecond)
	h.element.Signal(media.EventFirstFrame)

	h.sched.Advance(chaos.DefaultInterval)
	require.Equal(t, 1, h.ctrl.Injector().Cycles())
	require.Equal(t, chaos.InvalidSource("t"), h.element.Source())
	require.Equal(t, model.StatusRunning, h.run().Status, "the injector never changes status itself")

	h.element.Fail(media.ErrCodeSrcNotSupported, "invalid source")
	run := h.run()
	require.Equal(t, model.StatusFailed, run.Status)
	require.Equal(t, 1, run.Metrics.ErrorCount)

	h.sched.Advance(time.Minute)
	require.Equal(t, 1, h.ctrl.Injector().Cycles())
	require.Equal(t, model.StatusFailed, h.run().Status)
}

func TestController_ChaosRecoversWithoutError(t *testing.T) {
	h := newHarness(t, model.PresetSpikey, Options{
		TotalDuration: 30 * time.Second,
		Chaos: chaos.Options{
			Rand:  func() float64 { return 0 },
			Token: func() string { return "t" },
		},
	})
	h.ctrl.Start()
	h.sched.Advance(500 * time.Millisecond)
	h.element.Signal(media.EventFirstFrame)

	h.sched.Advance(chaos.DefaultInterval + chaos.DefaultRecovery)
	require.Equal(t, source, h.element.Source())
	require.Equal(t, model.StatusRunning, h.run().Status)
	require.Zero(t, h.run().Metrics.ErrorCount)
}

func TestController_MinimizeDoesNotAffectLifecycle(t *testing.T) {
	h := newHarness(t, model.PresetBaseline, Options{TotalDuration: time.Second})
	h.reg.Update(h.id, aggregate.Minimize(true))
	h.ctrl.Start()
	h.sched.Flush()
	h.element.Signal(media.EventFirstFrame)
	h.sched.Advance(time.Second)

	run := h.run()
	require.True(t, run.Minimized)
	require.Equal(t, model.StatusCompleted, run.Status)
}
