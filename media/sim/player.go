// Package sim implements a simulated media engine. It stands in for a real
// player when driving dashboard sessions from the command line: sources
// "load" after a fixed latency, playback stalls at random, and sources on
// the reserved .invalid TLD fail to load.
package sim

import (
	"errors"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/perfgo/chaosplay/eventloop"
	"github.com/perfgo/chaosplay/media"
	"github.com/rs/zerolog"
)

// ErrPlayRejected is returned by Play when autoplay rejection is simulated.
var ErrPlayRejected = errors.New("play() request was rejected by autoplay policy")

// Options tune the simulated engine.
type Options struct {
	// Time between Load and the source becoming playable
	LoadLatency time.Duration
	// Time between Load and the error event for an unplayable source
	ErrorLatency time.Duration
	// Probability per StallCheck that playback stalls
	StallProbability float64
	StallCheck       time.Duration
	StallDuration    time.Duration
	// Reject every Play request
	RejectPlay bool
	// Source of uniform values in [0,1); defaults to math/rand/v2
	Rand func() float64
}

// DefaultOptions returns the engine settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		LoadLatency:      300 * time.Millisecond,
		ErrorLatency:     50 * time.Millisecond,
		StallProbability: 0.05,
		StallCheck:       time.Second,
		StallDuration:    800 * time.Millisecond,
	}
}

// Player is a simulated media.Element. It must only be used from the
// scheduler's loop.
type Player struct {
	media.Emitter

	logger zerolog.Logger
	sched  eventloop.Scheduler
	opts   Options

	source   string
	paused   bool
	buffered bool
	playing  bool
	stalled  bool

	loadTimers []eventloop.Timer
	stallCheck eventloop.Timer
}

// New creates a paused player with no source.
func New(logger zerolog.Logger, sched eventloop.Scheduler, opts Options) *Player {
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Player{
		logger: logger,
		sched:  sched,
		opts:   opts,
		paused: true,
	}
}

// Playable reports whether the simulated engine can play uri.
func Playable(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "invalid" && !strings.HasSuffix(host, ".invalid")
}

func (p *Player) SetSource(uri string) {
	p.reset()
	p.source = uri
}

func (p *Player) ClearSource() {
	p.reset()
	p.source = ""
}

func (p *Player) Load() {
	p.reset()
	if p.source == "" {
		return
	}

	if !Playable(p.source) {
		src := p.source
		p.arm(p.opts.ErrorLatency, func() {
			p.logger.Debug().Str("source", src).Msg("Simulated source failed to load")
			p.Emit(media.Event{
				Kind:    media.EventError,
				Code:    media.ErrCodeSrcNotSupported,
				Message: "MEDIA_ERR_SRC_NOT_SUPPORTED: " + src,
			})
		})
		return
	}

	p.arm(p.opts.LoadLatency, func() {
		p.buffered = true
		p.Emit(media.Event{Kind: media.EventCanResume})
		if !p.paused {
			p.startPlaying()
		}
	})
}

func (p *Player) Play() error {
	if p.opts.RejectPlay {
		return ErrPlayRejected
	}
	p.paused = false
	if p.buffered && !p.playing && !p.stalled {
		p.arm(0, func() {
			if !p.paused && p.buffered && !p.playing {
				p.startPlaying()
			}
		})
	}
	return nil
}

func (p *Player) Pause() {
	p.paused = true
	p.playing = false
	p.stopStallCheck()
}

func (p *Player) Paused() bool {
	return p.paused
}

func (p *Player) startPlaying() {
	p.playing = true
	p.Emit(media.Event{Kind: media.EventFirstFrame})
	if p.stallCheck == nil && p.opts.StallProbability > 0 {
		p.stallCheck = p.sched.Every(p.opts.StallCheck, p.maybeStall)
	}
}

func (p *Player) maybeStall() {
	if !p.playing || p.opts.Rand() >= p.opts.StallProbability {
		return
	}
	p.playing = false
	p.stalled = true
	p.Emit(media.Event{Kind: media.EventWaitingForData})
	p.arm(p.opts.StallDuration, func() {
		p.stalled = false
		p.Emit(media.Event{Kind: media.EventCanResume})
		if !p.paused {
			p.playing = true
			p.Emit(media.Event{Kind: media.EventFirstFrame})
		}
	})
}

func (p *Player) arm(d time.Duration, fn func()) {
	p.loadTimers = append(p.loadTimers, p.sched.AfterFunc(d, fn))
}

func (p *Player) stopStallCheck() {
	if p.stallCheck != nil {
		p.stallCheck.Stop()
		p.stallCheck = nil
	}
}

// reset drops the current source state and any pending simulated events.
func (p *Player) reset() {
	for _, t := range p.loadTimers {
		t.Stop()
	}
	p.loadTimers = nil
	p.stopStallCheck()
	p.buffered = false
	p.playing = false
	p.stalled = false
}
