// Package dashboard is the in-process API the presentation layer talks to.
// It creates runs in the registry, gives each one a lifecycle controller and
// a media element, and tears the controller down when the run is removed.
//
// A Dashboard is not safe for concurrent use: call it from the scheduler's
// loop, the same goroutine every controller runs on.
package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/perfgo/chaosplay/aggregate"
	"github.com/perfgo/chaosplay/eventloop"
	"github.com/perfgo/chaosplay/lifecycle"
	"github.com/perfgo/chaosplay/media"
	"github.com/perfgo/chaosplay/model"
	"github.com/perfgo/chaosplay/registry"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrEmptySource   = errors.New("source uri is required")
)

// RunRequest is what the creation form submits.
type RunRequest struct {
	SourceURI   string `json:"source_uri"`
	PresetKey   string `json:"preset"`
	DisplayName string `json:"name"`
}

// Listing splits the runs into the minimized strip and the detailed view,
// both in insertion order.
type Listing struct {
	Pinned []model.Run `json:"pinned"`
	Active []model.Run `json:"active"`
}

// ElementFactory creates the media element a new run plays on.
type ElementFactory func(run model.Run) media.Element

type Dashboard struct {
	logger     zerolog.Logger
	sched      eventloop.Scheduler
	runs       *registry.Registry
	newElement ElementFactory
	opts       lifecycle.Options

	controllers map[string]*lifecycle.Controller
	unsubscribe func()
}

// New creates an empty dashboard.
func New(logger zerolog.Logger, sched eventloop.Scheduler, newElement ElementFactory, opts lifecycle.Options, regOpts ...registry.Option) *Dashboard {
	d := &Dashboard{
		logger:      logger,
		sched:       sched,
		runs:        registry.New(regOpts...),
		newElement:  newElement,
		opts:        opts,
		controllers: map[string]*lifecycle.Controller{},
	}
	d.unsubscribe = d.runs.Subscribe(d.onChange)
	return d
}

func (d *Dashboard) onChange(c registry.Change) {
	if c.Kind != registry.Removed {
		return
	}
	ctrl, ok := d.controllers[c.Run.ID]
	if !ok {
		return
	}
	delete(d.controllers, c.Run.ID)
	ctrl.Teardown()
	d.logger.Info().Str("run", c.Run.ID).Str("status", string(c.Run.Status)).Msg("Run removed")
}

// CreateRun registers a new pending run and activates it.
func (d *Dashboard) CreateRun(req RunRequest) (string, error) {
	source := strings.TrimSpace(req.SourceURI)
	if source == "" {
		return "", ErrEmptySource
	}
	preset, ok := model.LookupPreset(strings.TrimSpace(req.PresetKey))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, req.PresetKey)
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = preset.Name
	}

	id := d.runs.Create(model.RunConfig{
		Name:      name,
		SourceURI: source,
		Preset:    preset,
	})
	run, _ := d.runs.Get(id)

	ctrl := lifecycle.New(d.logger, d.sched, d.newElement(run), d.runs, run, d.opts)
	d.controllers[id] = ctrl
	ctrl.Start()

	d.logger.Info().
		Str("run", id).
		Str("name", name).
		Str("preset", preset.Key).
		Str("source", source).
		Msg("Run created")
	return id, nil
}

// UpdateRun applies a field patch. Unknown ids are ignored.
func (d *Dashboard) UpdateRun(id string, patch aggregate.Patch) bool {
	return d.runs.Update(id, patch.Update(d.sched.Now()))
}

// SetMinimized moves a run between the pinned strip and the detailed view.
func (d *Dashboard) SetMinimized(id string, minimized bool) bool {
	return d.runs.Update(id, aggregate.Minimize(minimized))
}

// RemoveRun deletes a run at any status. Unknown ids are ignored.
func (d *Dashboard) RemoveRun(id string) bool {
	return d.runs.Remove(id)
}

// ListRuns returns the current runs split for display.
func (d *Dashboard) ListRuns() Listing {
	pinned, active := d.runs.Partition()
	return Listing{Pinned: pinned, Active: active}
}

// Runs returns every run in insertion order.
func (d *Dashboard) Runs() []model.Run {
	return d.runs.List()
}

// Run returns a single run.
func (d *Dashboard) Run(id string) (model.Run, bool) {
	return d.runs.Get(id)
}

// Controller returns the controller driving a run.
func (d *Dashboard) Controller(id string) (*lifecycle.Controller, bool) {
	c, ok := d.controllers[id]
	return c, ok
}

// Presets lists the presets a run can be created with.
func (d *Dashboard) Presets() []model.Preset {
	return model.Presets()
}

// Done reports whether the run's cleanup has run. Unknown ids count as done.
func (d *Dashboard) Done(id string) bool {
	c, ok := d.controllers[id]
	return !ok || c.Finished()
}

// Settled reports whether every remaining run has finished its cleanup.
func (d *Dashboard) Settled() bool {
	for _, c := range d.controllers {
		if !c.Finished() {
			return false
		}
	}
	return true
}

// Close tears down every controller. Runs stay in the registry.
func (d *Dashboard) Close() {
	d.unsubscribe()
	for id, c := range d.controllers {
		c.Teardown()
		delete(d.controllers, id)
	}
}
