// Package media defines the capability boundary to the media engine. The
// engine itself (decoding, buffering, fetching) lives behind Element.
package media

import "fmt"

// EventKind names a lifecycle signal emitted by an Element.
type EventKind string

const (
	// EventFirstFrame fires whenever playback (re)starts rendering frames.
	EventFirstFrame EventKind = "first-frame"
	// EventWaitingForData fires when playback halts for lack of data.
	EventWaitingForData EventKind = "waiting"
	// EventStalled fires when fetching data stops making progress.
	EventStalled EventKind = "stalled"
	// EventCanResume fires when enough data is buffered to continue.
	EventCanResume EventKind = "can-resume"
	// EventError fires when the element fails to load or decode its source.
	EventError EventKind = "error"
)

// Event is a signal delivered to subscribers.
type Event struct {
	Kind EventKind
	// Code and Message are only set for EventError
	Code    int
	Message string
}

func (e Event) String() string {
	if e.Kind == EventError {
		return fmt.Sprintf("%s(%d: %s)", e.Kind, e.Code, e.Message)
	}
	return string(e.Kind)
}

// Handler receives events from an Element.
type Handler func(Event)

// Subscription detaches a handler.
type Subscription interface {
	Unsubscribe()
}

// Element is a playable media handle. Requests are non-blocking; their
// outcome is reported through events.
type Element interface {
	SetSource(uri string)
	ClearSource()
	Load()
	// Play requests playback. An error means the request was rejected
	// (e.g. autoplay policy), not that the source is broken.
	Play() error
	Pause()
	Paused() bool
	Subscribe(kind EventKind, h Handler) Subscription
}

// Error codes mirroring the classic media error taxonomy.
const (
	ErrCodeAborted         = 1
	ErrCodeNetwork         = 2
	ErrCodeDecode          = 3
	ErrCodeSrcNotSupported = 4
)
