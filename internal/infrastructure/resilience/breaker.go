// Package resilience provides a circuit breaker for calls into remote
// browsing contexts. A host page that stops answering would otherwise make
// every render step wait out its own timeout; the breaker fails those calls
// fast until a probe succeeds again.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("resilience: circuit open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// TripAfter is how many consecutive failures open the circuit.
	TripAfter int
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
	// Probes is how many calls may run concurrently in half-open state.
	Probes int
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

func (s Settings) withDefaults() Settings {
	if s.TripAfter <= 0 {
		s.TripAfter = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 10 * time.Second
	}
	if s.Probes <= 0 {
		s.Probes = 1
	}
	return s
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	inFlight int
	openedAt time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	return &Breaker{
		name:     name,
		settings: settings.withDefaults(),
		state:    StateClosed,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string { return b.name }

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observe(time.Now())
}

// Call runs fn if the breaker accepts it and records the outcome.
func (b *Breaker) Call(fn func() (any, error)) (any, error) {
	if err := b.admit(); err != nil {
		return nil, err
	}

	result, err := fn()
	b.record(err == nil)
	return result, err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.observe(time.Now()) {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.inFlight >= b.settings.Probes {
			return ErrOpen
		}
	}
	b.inFlight++
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.observe(now)
	b.inFlight--

	if success {
		b.failures = 0
		if state == StateHalfOpen {
			b.setState(StateClosed, now)
		}
		return
	}

	switch state {
	case StateClosed:
		b.failures++
		if b.failures >= b.settings.TripAfter {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		// The probe failed; back to waiting out the cooldown.
		b.setState(StateOpen, now)
	}
}

// observe returns the current state, moving open to half-open once the
// cooldown has elapsed. Callers hold the lock.
func (b *Breaker) observe(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.Cooldown {
		b.setState(StateHalfOpen, now)
	}
	return b.state
}

// setState changes the state of the circuit breaker
func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.failures = 0
	if state == StateOpen {
		b.openedAt = now
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
