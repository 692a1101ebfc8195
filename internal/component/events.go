package component

import "sync"

// State represents instance lifecycle states.
type State string

const (
	StateConstructing State = "constructing"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateVisible      State = "visible"
	StateHidden       State = "hidden"
	StateClosing      State = "closing"
	StateDestroyed    State = "destroyed"
)

// CloseReason describes why an instance terminated.
type CloseReason string

const (
	// ReasonParentCall is a host-initiated close.
	ReasonParentCall CloseReason = "parent_call"
	// ReasonChildCall is a close requested by the remote side.
	ReasonChildCall CloseReason = "child_call"
	// ReasonCloseDetected means the close watchdog found the window gone.
	ReasonCloseDetected CloseReason = "close_detected"
	// ReasonUserClosed means the two-phase close check confirmed a user close.
	ReasonUserClosed CloseReason = "user_closed"
	// ReasonUnload means the host page is going away.
	ReasonUnload CloseReason = "host_unload"
	// ReasonError means teardown was forced by the error path.
	ReasonError CloseReason = "error"
)

// Event names the instance lifecycle notifications.
type Event string

const (
	EventRender   Event = "render"
	EventRendered Event = "rendered"
	EventDisplay  Event = "display"
	EventClose    Event = "close"
	EventDestroy  Event = "destroy"
	EventError    Event = "error"
	EventProps    Event = "props"
)

// Handler receives event arguments. CLOSE handlers receive the CloseReason,
// ERROR handlers the error.
type EventHandler func(args ...any)

type subscription struct {
	event   Event
	handler EventHandler
}

// emitter is a minimal in-process event surface. CLOSE is fired exactly
// once per instance; that guarantee lives in the memoized close path, not
// here.
type emitter struct {
	mu   sync.Mutex
	subs []*subscription
}

func newEmitter() *emitter {
	return &emitter{}
}

// On subscribes a handler and returns a cancel function.
func (e *emitter) On(event Event, handler EventHandler) func() {
	s := &subscription{event: event, handler: handler}
	e.mu.Lock()
	e.subs = append(e.subs, s)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, cur := range e.subs {
			if cur == s {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *emitter) emit(event Event, args ...any) {
	e.mu.Lock()
	handlers := make([]EventHandler, 0, len(e.subs))
	for _, s := range e.subs {
		if s.event == event {
			handlers = append(handlers, s.handler)
		}
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(args...)
	}
}
