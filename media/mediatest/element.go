// Package mediatest provides a scripted media.Element for tests. Nothing
// happens on its own: tests drive playback by emitting events.
package mediatest

import (
	"sync"

	"github.com/perfgo/chaosplay/media"
)

// Element records the requests it receives.
type Element struct {
	media.Emitter

	mu      sync.Mutex
	source  string
	sources []string
	loads   int
	plays   int
	pauses  int
	clears  int
	paused  bool
	playErr error
}

// New returns a paused element with no source.
func New() *Element {
	return &Element{paused: true}
}

func (e *Element) SetSource(uri string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = uri
	e.sources = append(e.sources, uri)
}

func (e *Element) ClearSource() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = ""
	e.clears++
}

func (e *Element) Load() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads++
}

func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays++
	if e.playErr != nil {
		return e.playErr
	}
	e.paused = false
	return nil
}

func (e *Element) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	e.paused = true
}

func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// SetPlayError makes subsequent Play calls fail with err.
func (e *Element) SetPlayError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playErr = err
}

// SetPaused overrides the paused state.
func (e *Element) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
}

func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// Sources returns every URI passed to SetSource, in order.
func (e *Element) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sources...)
}

func (e *Element) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

func (e *Element) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

func (e *Element) Pauses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

func (e *Element) Clears() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clears
}

// Fail emits an error event.
func (e *Element) Fail(code int, msg string) {
	e.Emit(media.Event{Kind: media.EventError, Code: code, Message: msg})
}

// Signal emits a non-error event.
func (e *Element) Signal(kind media.EventKind) {
	e.Emit(media.Event{Kind: kind})
}
