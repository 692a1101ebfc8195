// Package component implements the parent-side orchestration engine: the
// component definition registry, the per-instance lifecycle state machine,
// the render pipeline, and the watchdogs that keep both sides honest.
package component

import (
	"time"

	"github.com/frameport/frameport/internal/async"
	"github.com/frameport/frameport/internal/bootstrap"
	"github.com/frameport/frameport/internal/cleanup"
	"github.com/frameport/frameport/internal/infrastructure/logging"
	"github.com/frameport/frameport/internal/infrastructure/monitoring"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/transport"
	"github.com/frameport/frameport/internal/window"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings tunes engine-wide lifecycle behavior.
type Settings struct {
	// RenderTimeout is the default init deadline for instances that do not
	// set their own. Zero disables the watchdog.
	RenderTimeout time.Duration
	// ClosePollInterval is how often the close watchdog probes the window.
	ClosePollInterval time.Duration
	// CloseCheckDebounce separates the phases of the user-close probe.
	CloseCheckDebounce time.Duration
	// CloseCheckPhases is how many probes must agree before a user close is
	// believed. Closed-state signals can be transiently wrong right after
	// window creation.
	CloseCheckPhases int
	// HostDomain is the host page's own resolvable origin, embedded in the
	// bootstrap payload and used for the remote-render origin guard.
	HostDomain string
}

func (s Settings) withDefaults() Settings {
	if s.ClosePollInterval <= 0 {
		s.ClosePollInterval = 3 * time.Second
	}
	if s.CloseCheckDebounce <= 0 {
		s.CloseCheckDebounce = 200 * time.Millisecond
	}
	if s.CloseCheckPhases <= 0 {
		s.CloseCheckPhases = 2
	}
	return s
}

// PeerDirectory reports what the host knows about other connected windows.
// Used to validate remote render targets before anything is opened.
type PeerDirectory interface {
	// SameTop reports whether target shares this page's top-level context.
	SameTop(target id.ContextID) (bool, error)
	// Origin returns target's origin.
	Origin(target id.ContextID) (string, error)
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Logger         *logging.Logger
	Metrics        *monitoring.Metrics
	Messenger      transport.Messenger
	Opener         WindowOpener
	ResolveElement ElementResolver
	Peers          PeerDirectory
	// WindowHandleFor adopts a context already opened elsewhere (delegated
	// renders). Optional.
	WindowHandleFor func(id.ContextID) window.Handle
	Definitions     *Registry
	Settings        Settings

	// PropsStore and WindowStore default to the process-wide stores.
	PropsStore  *bootstrap.PropsStore
	WindowStore *bootstrap.WindowStore
}

// Engine owns the shared collaborators and constructs instances.
type Engine struct {
	log             *logging.Logger
	metrics         *monitoring.Metrics
	messenger       transport.Messenger
	opener          WindowOpener
	resolveElement  ElementResolver
	peers           PeerDirectory
	windowHandleFor func(id.ContextID) window.Handle
	defs            *Registry
	instances       *Manager
	settings        Settings
	props           *bootstrap.PropsStore
	windows         *bootstrap.WindowStore
	unload          *async.Deferred[struct{}]
}

// NewEngine creates an engine from its collaborators.
func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNop()
	}
	defs := cfg.Definitions
	if defs == nil {
		defs = NewRegistry()
	}
	props := cfg.PropsStore
	if props == nil {
		props = bootstrap.Props()
	}
	windows := cfg.WindowStore
	if windows == nil {
		windows = bootstrap.Windows()
	}

	return &Engine{
		log:             log.Component("engine"),
		metrics:         cfg.Metrics,
		messenger:       cfg.Messenger,
		opener:          cfg.Opener,
		resolveElement:  cfg.ResolveElement,
		peers:           cfg.Peers,
		windowHandleFor: cfg.WindowHandleFor,
		defs:            defs,
		instances:       NewManager(),
		settings:        cfg.Settings.withDefaults(),
		props:           props,
		windows:         windows,
		unload:          async.NewDeferred[struct{}](),
	}
}

// Definitions returns the component definition registry.
func (e *Engine) Definitions() *Registry { return e.defs }

// Instances returns the live instance manager.
func (e *Engine) Instances() *Manager { return e.instances }

// NotifyUnload signals that the host page is going away. Every live
// instance is force-destroyed; no graceful close round trip is attempted
// because there is no one left to talk to.
func (e *Engine) NotifyUnload() {
	e.unload.Resolve(struct{}{})
}

// Instance constructs a lifecycle state machine for the given component tag.
func (e *Engine) Instance(tag string, opts Options) (*Instance, error) {
	def, ok := e.defs.Get(tag)
	if !ok {
		return nil, newError(KindValidation, "no component registered under tag %q", tag)
	}

	kind := def.kindOrDefault(opts.Context)
	driver, err := driverFor(kind)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		id:     id.NewInstanceID(),
		uid:    uuid.New().String(),
		def:    def,
		engine: e,
		driver: driver,
		opts:   opts,
		state:  StateConstructing,
		clean:  cleanup.New(),
		events: newEmitter(),
	}
	inst.log = def.logger().Component("instance").With(
		zap.String("tag", tag),
		zap.String("instance", inst.id.String()),
	)
	inst.initialized = async.NewDeferred[transport.ChildExports]()
	inst.initMemos()

	seed := map[string]any{
		PropEnv: opts.Env,
		PropUID: inst.uid,
		PropTag: tag,
	}
	if opts.Dimensions != nil {
		seed[PropDimensions] = *opts.Dimensions
	} else {
		seed[PropDimensions] = def.Dimensions
	}

	props, err := def.normalizeProps(seed, opts.Props, false)
	if err != nil {
		return nil, err
	}
	inst.props = props

	e.instances.Add(inst)
	if e.metrics != nil {
		e.metrics.InstancesActive.Inc()
	}
	return inst, nil
}

// renderTimeout resolves the effective init deadline for an instance.
func (e *Engine) renderTimeout(opts Options) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return e.settings.RenderTimeout
}

// Logger is a zap field helper alias kept local to the package.
type Logger = logging.Logger
