// Package lifecycle drives a single run through pending -> running ->
// completed/failed using timers and media element events.
package lifecycle

import (
	"time"

	"github.com/perfgo/chaosplay/aggregate"
	"github.com/perfgo/chaosplay/chaos"
	"github.com/perfgo/chaosplay/eventloop"
	"github.com/perfgo/chaosplay/media"
	"github.com/perfgo/chaosplay/model"
	"github.com/rs/zerolog"
)

const (
	DefaultTotalDuration  = 30 * time.Second
	DefaultSampleInterval = 250 * time.Millisecond
)

// Store is the slice of the registry a controller needs.
type Store interface {
	Get(id string) (model.Run, bool)
	Update(id string, u aggregate.Update) bool
}

// Options tune a Controller. Zero values fall back to the defaults.
type Options struct {
	// Nominal playback length a run is measured against
	TotalDuration time.Duration
	// Cadence of progress sampling while running
	SampleInterval time.Duration
	Chaos          chaos.Options
}

// Controller owns one run's media element, timers and subscriptions. All
// methods and callbacks must run on the scheduler's loop.
type Controller struct {
	logger  zerolog.Logger
	sched   eventloop.Scheduler
	element media.Element
	store   Store
	id      string
	config  model.RunConfig
	opts    Options

	injector *chaos.Injector

	started  bool
	finished bool
	torn     bool
	released bool

	// first-frame marker, armed at activation and consumed by the first
	// render
	measureTTFF bool

	rebuffering   bool
	rebufferStart time.Time

	begin   eventloop.Timer
	cleanup eventloop.Timer
	sampler eventloop.Timer
	subs    []media.Subscription
}

// New creates a controller for run. Nothing happens until Start.
func New(logger zerolog.Logger, sched eventloop.Scheduler, element media.Element, store Store, run model.Run, opts Options) *Controller {
	if opts.TotalDuration <= 0 {
		opts.TotalDuration = DefaultTotalDuration
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}

	c := &Controller{
		logger: logger.With().
			Str("run", run.ID).
			Str("preset", run.Config.Preset.Key).
			Logger(),
		sched:   sched,
		element: element,
		store:   store,
		id:      run.ID,
		config:  run.Config,
		opts:    opts,
	}
	c.injector = chaos.New(c.logger, sched, element, run.Config.SourceURI, run.Config.Preset, c.injectorStatus, opts.Chaos)
	return c
}

// ID returns the run the controller drives.
func (c *Controller) ID() string {
	return c.id
}

// Injector exposes the run's chaos injector.
func (c *Controller) Injector() *chaos.Injector {
	return c.injector
}

// Finished reports whether the cleanup action has run.
func (c *Controller) Finished() bool {
	return c.finished
}

// Start activates a pending run that has not started yet: it records the
// start time, subscribes to the element and arms the begin-playback and
// cleanup actions.
func (c *Controller) Start() {
	if c.started || c.torn {
		return
	}
	run, ok := c.store.Get(c.id)
	if !ok || run.Status != model.StatusPending || !run.StartTime.IsZero() {
		return
	}
	c.started = true

	now := c.sched.Now()
	c.store.Update(c.id, aggregate.Activated(now))
	c.measureTTFF = true

	c.subscribe(media.EventFirstFrame, c.onFirstFrame)
	c.subscribe(media.EventWaitingForData, c.onRebufferStart)
	c.subscribe(media.EventStalled, c.onRebufferStart)
	c.subscribe(media.EventCanResume, c.onRebufferEnd)
	c.subscribe(media.EventError, c.onError)

	delay := c.config.Preset.StartupDelay
	c.begin = c.sched.AfterFunc(delay, c.beginPlayback)
	c.cleanup = c.sched.AfterFunc(c.opts.TotalDuration+delay, c.finish)

	c.logger.Info().
		Dur("startup_delay", delay).
		Dur("total", c.opts.TotalDuration).
		Msg("Run activated")
}

// Teardown cancels every timer and subscription and releases the element.
// It is safe to call more than once. No state change for the run happens
// afterwards.
func (c *Controller) Teardown() {
	if c.torn {
		return
	}
	c.torn = true

	stop(&c.begin)
	stop(&c.cleanup)
	c.halt()
	c.unsubscribe()
	c.release()
	c.logger.Debug().Msg("Run torn down")
}

func (c *Controller) subscribe(kind media.EventKind, h media.Handler) {
	c.subs = append(c.subs, c.element.Subscribe(kind, h))
}

func (c *Controller) unsubscribe() {
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
}

func (c *Controller) status() (model.Status, bool) {
	run, ok := c.store.Get(c.id)
	if !ok {
		return "", false
	}
	return run.Status, true
}

func (c *Controller) injectorStatus() model.Status {
	if c.torn {
		return ""
	}
	st, _ := c.status()
	return st
}

// live reports whether events may still change the run.
func (c *Controller) live() (model.Status, bool) {
	if c.torn {
		return "", false
	}
	st, ok := c.status()
	if !ok || st.Terminal() {
		return st, false
	}
	return st, true
}

func (c *Controller) beginPlayback() {
	c.begin = nil
	if _, ok := c.live(); !ok {
		return
	}

	c.logger.Debug().Str("source", c.config.SourceURI).Msg("Beginning playback")
	c.element.SetSource(c.config.SourceURI)
	c.element.Load()
	if err := c.element.Play(); err != nil {
		c.logger.Warn().Err(err).Msg("Playback start was rejected")
	}
}

func (c *Controller) onFirstFrame(media.Event) {
	st, ok := c.live()
	if !ok {
		return
	}
	now := c.sched.Now()
	closeOut := c.closeRebuffer(now)

	if st != model.StatusPending {
		if closeOut != nil {
			c.store.Update(c.id, closeOut)
		}
		return
	}

	c.store.Update(c.id, aggregate.Chain(closeOut, aggregate.FirstFrame(now, c.measureTTFF)))
	c.measureTTFF = false

	if next, _ := c.status(); next == model.StatusRunning {
		c.logger.Info().Msg("First frame rendered")
		c.sampler = c.sched.Every(c.opts.SampleInterval, c.sample)
		c.injector.Start()
	}
}

func (c *Controller) onRebufferStart(media.Event) {
	if _, ok := c.live(); !ok {
		return
	}
	if !c.rebuffering {
		c.rebuffering = true
		c.rebufferStart = c.sched.Now()
	}
	c.store.Update(c.id, aggregate.RebufferStarted())
}

func (c *Controller) onRebufferEnd(media.Event) {
	if _, ok := c.live(); !ok {
		return
	}
	if u := c.closeRebuffer(c.sched.Now()); u != nil {
		c.store.Update(c.id, u)
	}
}

// closeRebuffer closes the open rebuffer interval, if any, and returns the
// update that accounts for it.
func (c *Controller) closeRebuffer(now time.Time) aggregate.Update {
	if !c.rebuffering {
		return nil
	}
	c.rebuffering = false
	return aggregate.RebufferEnded(now.Sub(c.rebufferStart))
}

func (c *Controller) onError(ev media.Event) {
	if _, ok := c.live(); !ok {
		return
	}
	c.store.Update(c.id, aggregate.Fault())

	// Only cleanup stays armed, to stamp the end time.
	stop(&c.begin)
	c.halt()
	c.unsubscribe()
	c.release()
	c.logger.Warn().
		Int("code", ev.Code).
		Str("message", ev.Message).
		Msg("Media error, run failed")
}

func (c *Controller) sample() {
	if _, ok := c.live(); !ok {
		return
	}
	c.store.Update(c.id, aggregate.ProgressAt(c.sched.Now(), c.opts.TotalDuration))
}

// finish is the single cleanup action armed at activation. It releases the
// element and completes the run unless it already failed.
func (c *Controller) finish() {
	c.cleanup = nil
	if c.finished || c.torn {
		return
	}
	c.finished = true

	stop(&c.begin)
	c.halt()
	c.release()
	c.unsubscribe()
	c.store.Update(c.id, aggregate.Completed(c.sched.Now()))

	if st, ok := c.status(); ok {
		c.logger.Info().Str("status", string(st)).Msg("Run finished")
	}
}

// halt stops everything that produces further updates while running.
func (c *Controller) halt() {
	stop(&c.sampler)
	c.injector.Stop()
}

func (c *Controller) release() {
	if c.released {
		return
	}
	c.released = true
	c.element.Pause()
	c.element.ClearSource()
}

func stop(t *eventloop.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
