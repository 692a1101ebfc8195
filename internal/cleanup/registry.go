// Package cleanup provides an ordered registry of idempotent teardown actions.
//
// Each acquired resource registers a release action, optionally under a tag.
// Running an action removes it from the registry first, so every action runs
// at most once no matter how many call sites trigger teardown concurrently.
package cleanup

import (
	"context"
	"errors"
	"sync"
)

// Action releases one resource. Actions must tolerate being the only
// teardown that runs; they are never invoked twice by the registry.
type Action func(ctx context.Context) error

type entry struct {
	tag string
	fn  Action
}

// Registry is an ordered collection of teardown actions.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register adds an anonymous teardown action and returns a handle for it.
func (r *Registry) Register(fn Action) *Handle {
	return r.RegisterTagged("", fn)
}

// RegisterTagged adds a teardown action under a tag. Tagged actions can be
// released early via Run without draining the whole registry.
func (r *Registry) RegisterTagged(tag string, fn Action) *Handle {
	e := &entry{tag: tag, fn: fn}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	return &Handle{registry: r, entry: e}
}

// Run executes and removes all actions registered under tag, in registration
// order. An empty tag matches only untagged actions. Running an already-run
// or canceled tag is a no-op.
func (r *Registry) Run(ctx context.Context, tag string) error {
	matched := r.take(func(e *entry) bool { return e.tag == tag })
	return invoke(ctx, matched)
}

// All executes every remaining action in registration order and clears the
// registry. Subsequent Run and All calls are no-ops until new actions are
// registered.
func (r *Registry) All(ctx context.Context) error {
	matched := r.take(func(*entry) bool { return true })
	return invoke(ctx, matched)
}

// HasTasks reports whether any actions remain registered.
func (r *Registry) HasTasks() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) > 0
}

// take removes matching entries under the lock and returns them. Removal
// before invocation is what makes concurrent teardown idempotent.
func (r *Registry) take(match func(*entry) bool) []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entry
	remaining := r.entries[:0]
	for _, e := range r.entries {
		if match(e) {
			matched = append(matched, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	r.entries = remaining
	return matched
}

func invoke(ctx context.Context, entries []*entry) error {
	var errs []error
	for _, e := range entries {
		if err := e.fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle refers to a single registered action.
type Handle struct {
	registry *Registry
	entry    *entry
}

// Release runs this action now if it is still registered, removing it first.
func (h *Handle) Release(ctx context.Context) error {
	matched := h.registry.take(func(e *entry) bool { return e == h.entry })
	return invoke(ctx, matched)
}

// Cancel removes this action without running it.
func (h *Handle) Cancel() {
	h.registry.take(func(e *entry) bool { return e == h.entry })
}
