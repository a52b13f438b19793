// Package chaos simulates network faults by pointing a running run's media
// element at a source that cannot load, then restoring the original.
package chaos

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/perfgo/chaosplay/eventloop"
	"github.com/perfgo/chaosplay/media"
	"github.com/perfgo/chaosplay/model"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultRecovery = 500 * time.Millisecond

	// InvalidHost lives on the reserved .invalid TLD, so it never resolves.
	InvalidHost = "chaos.invalid"
)

// InvalidSource returns an unplayable URI. The token defeats caching.
func InvalidSource(token string) string {
	return "https://" + InvalidHost + "/" + token + ".m3u8"
}

// Options tune an Injector. Zero values fall back to the defaults.
type Options struct {
	// Time between draws
	Interval time.Duration
	// Time between breaking and restoring the source
	Recovery time.Duration
	// Source of uniform values in [0,1)
	Rand func() float64
	// Cache-busting token generator
	Token func() string
}

// Injector draws against a preset's fault probability on a fixed cadence
// and runs a fault cycle on a hit. It never changes run state itself: the
// element's error and recovery events do that through the run's handlers.
type Injector struct {
	logger  zerolog.Logger
	sched   eventloop.Scheduler
	element media.Element
	source  string
	preset  model.Preset
	status  func() model.Status
	opts    Options

	ticker  eventloop.Timer
	restore eventloop.Timer
	draws   int
	cycles  int
}

// New creates an injector for one run. status reports the run's current
// lifecycle status; draws only happen while it is running.
func New(logger zerolog.Logger, sched eventloop.Scheduler, element media.Element, source string, preset model.Preset, status func() model.Status, opts Options) *Injector {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Recovery <= 0 {
		opts.Recovery = DefaultRecovery
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Token == nil {
		opts.Token = uuid.NewString
	}
	return &Injector{
		logger:  logger,
		sched:   sched,
		element: element,
		source:  source,
		preset:  preset,
		status:  status,
		opts:    opts,
	}
}

// Start arms the draw ticker. It does nothing for presets without chaos or
// if the injector is already started.
func (i *Injector) Start() {
	if i.ticker != nil || !i.preset.Category.Injects() {
		return
	}
	i.ticker = i.sched.Every(i.opts.Interval, i.tick)
}

// Stop cancels the ticker and any pending restore.
func (i *Injector) Stop() {
	if i.ticker != nil {
		i.ticker.Stop()
		i.ticker = nil
	}
	if i.restore != nil {
		i.restore.Stop()
		i.restore = nil
	}
}

// Draws returns how many random draws were made.
func (i *Injector) Draws() int {
	return i.draws
}

// Cycles returns how many fault cycles were started.
func (i *Injector) Cycles() int {
	return i.cycles
}

func (i *Injector) tick() {
	if i.status() != model.StatusRunning || i.restore != nil {
		return
	}
	i.draws++
	if i.opts.Rand() >= i.preset.FaultProbability {
		return
	}
	i.inject()
}

func (i *Injector) inject() {
	i.cycles++
	bad := InvalidSource(i.opts.Token())
	i.logger.Info().
		Str("source", bad).
		Int("cycle", i.cycles).
		Msg("Injecting source fault")

	i.element.SetSource(bad)
	i.element.Load()

	i.restore = i.sched.AfterFunc(i.opts.Recovery, func() {
		i.restore = nil
		i.logger.Debug().Str("source", i.source).Msg("Restoring original source")
		i.element.SetSource(i.source)
		i.element.Load()
		if i.element.Paused() {
			if err := i.element.Play(); err != nil {
				i.logger.Warn().Err(err).Msg("Failed to resume playback after fault")
			}
		}
	})
}
