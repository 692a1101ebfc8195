package component

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frameport/frameport/internal/async"
	"github.com/frameport/frameport/internal/cleanup"
	"github.com/frameport/frameport/internal/infrastructure/logging"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/transport"
	"github.com/frameport/frameport/internal/window"
	"go.uber.org/zap"
)

// Cleanup tags. Partial closes release their own slice of the registry;
// Destroy drains whatever is left.
const (
	cleanupWatchdog  = "watchdog"
	cleanupWindow    = "window"
	cleanupContainer = "container"
)

// Instance is one live embedding of a component: a state machine around a
// child browsing context, its host-page elements, and the RPC channel
// between them. All terminal operations are memoized; calling them twice,
// concurrently or not, performs the work once.
type Instance struct {
	id     id.InstanceID
	uid    string
	def    *Definition
	engine *Engine
	driver ContextDriver
	opts   Options
	log    *logging.Logger

	mu        sync.RWMutex
	state     State
	props     map[string]any
	target    Element
	container Element
	prerender Element

	prerenderCleanup *cleanup.Handle
	proxy     *window.Proxy
	child     *transport.ChildExports
	delegate  *delegation

	renderStarted atomic.Bool
	errored       atomic.Bool
	destroying    atomic.Bool
	firstErr      error
	firstErrMu    sync.Mutex

	clean       *cleanup.Registry
	events      *emitter
	initialized *async.Deferred[transport.ChildExports]

	reasonOnce  sync.Once
	closeReason CloseReason

	closeOnce            *async.Once[struct{}]
	closeComponentOnce   *async.Once[struct{}]
	closeContainerOnce   *async.Once[struct{}]
	destroyContainerOnce *async.Once[struct{}]
	destroyOnce          sync.Once
}

// initMemos wires the memoized terminal operations. Split out of the
// constructor because the wrappers capture the receiver.
func (i *Instance) initMemos() {
	i.closeOnce = async.NewOnce(i.doClose)
	i.closeComponentOnce = async.NewOnce(i.doCloseComponent)
	i.closeContainerOnce = async.NewOnce(i.doCloseContainer)
	i.destroyContainerOnce = async.NewOnce(i.doDestroyContainer)
}

// ID returns the instance identifier.
func (i *Instance) ID() id.InstanceID { return i.id }

// UID returns the bootstrap identity shared with the child context.
func (i *Instance) UID() string { return i.uid }

// Tag returns the component tag this instance was built from.
func (i *Instance) Tag() string { return i.def.Tag }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Props returns a copy of the current prop set.
func (i *Instance) Props() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]any, len(i.props))
	for k, v := range i.props {
		out[k] = v
	}
	return out
}

// Err returns the instance's first error, if any.
func (i *Instance) Err() error {
	i.firstErrMu.Lock()
	defer i.firstErrMu.Unlock()
	return i.firstErr
}

// On subscribes to a lifecycle event. The returned function unsubscribes.
func (i *Instance) On(event Event, handler EventHandler) func() {
	return i.events.On(event, handler)
}

func (i *Instance) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

func (i *Instance) stateIn(states ...State) bool {
	cur := i.State()
	for _, s := range states {
		if cur == s {
			return true
		}
	}
	return false
}

// containerElement returns the mounted container, or the raw target when the
// definition has no container template.
func (i *Instance) containerElement() Element {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.container != nil {
		return i.container
	}
	return i.target
}

// proxyWindow returns the child window proxy. It exists from the moment the
// render pipeline runs the open node; before that it is nil.
func (i *Instance) proxyWindow() *window.Proxy {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.proxy
}

// childExports returns the remote export table once init has arrived.
func (i *Instance) childExports() *transport.ChildExports {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.child
}

// dimensions returns the instance's current size from the prop set.
func (i *Instance) dimensions() Dimensions {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if d, ok := i.props[PropDimensions].(Dimensions); ok {
		return d
	}
	return i.def.Dimensions
}

// Render drives the instance through its full startup pipeline. It resolves
// once the child has initialized, the component is visible, and the host's
// entry hook has completed. Any failure is routed through the error path,
// so OnError observes it before Render returns.
func (i *Instance) Render(ctx context.Context) error {
	if !i.renderStarted.CompareAndSwap(false, true) {
		return newError(KindInternal, "instance %s: render already started", i.id)
	}
	i.setState(StateInitializing)

	start := time.Now()
	if m := i.engine.metrics; m != nil {
		m.RendersStarted.Inc()
	}

	if err := i.runPipeline(ctx); err != nil {
		if rerr := i.Error(ctx, err); rerr != nil {
			return rerr
		}
		// The error path may have run already, e.g. from a watchdog. The
		// render itself still failed; report the recorded first error.
		if ferr := i.Err(); ferr != nil {
			return ferr
		}
		return err
	}

	if m := i.engine.metrics; m != nil {
		m.RenderDuration.Observe(time.Since(start).Seconds())
	}
	i.events.emit(EventRendered)
	if i.opts.OnRendered != nil {
		i.opts.OnRendered()
	}
	return nil
}

// initReceived is the parent half of the init handshake: the child announces
// its transport location and export table.
func (i *Instance) initReceived(child transport.ChildExports) {
	i.mu.Lock()
	i.child = &child
	// The component may already be showing; init must not regress that.
	if i.state == StateInitializing {
		i.state = StateReady
	}
	i.mu.Unlock()
	i.initialized.Resolve(child)
}

// SetProps validates and applies a prop update, then forwards the
// child-visible subset over the transport when the child is up.
func (i *Instance) SetProps(ctx context.Context, incoming map[string]any) error {
	i.mu.Lock()
	normalized, err := i.def.normalizeProps(i.props, incoming, true)
	if err != nil {
		i.mu.Unlock()
		return err
	}
	i.props = normalized
	child := i.child
	i.mu.Unlock()

	i.events.emit(EventProps, normalized)

	if child == nil {
		// Child not initialized yet; the bootstrap payload or the pending
		// init carries the latest props.
		return nil
	}
	if err := child.UpdateProps(ctx, i.engine.messenger, i.def.childProps(normalized)); err != nil {
		return wrapError(KindRemote, err)
	}
	return nil
}

// ResizeOptions controls Resize. WaitForTransition defaults to true: the
// call blocks until the container's CSS transition settles, with overflow
// clamped for the duration so intermediate frames do not spill.
type ResizeOptions struct {
	WaitForTransition *bool
}

// Bool is a pointer helper for ResizeOptions.
func Bool(b bool) *bool { return &b }

// Resize changes the rendered size.
func (i *Instance) Resize(ctx context.Context, width, height int, opts ResizeOptions) error {
	if target, ref, ok := i.overrideRef("resize"); ok {
		_, err := i.engine.messenger.Call(ctx, target, ref, width, height)
		return err
	}

	i.mu.Lock()
	if d, ok := i.props[PropDimensions].(Dimensions); ok {
		d.Width, d.Height = width, height
		i.props[PropDimensions] = d
	} else {
		i.props[PropDimensions] = Dimensions{Width: width, Height: height}
	}
	i.mu.Unlock()

	wait := opts.WaitForTransition == nil || *opts.WaitForTransition
	el := i.containerElement()

	if !wait || el == nil {
		return i.driver.Resize(ctx, i, width, height)
	}

	prev, err := el.SetOverflow(ctx, "hidden")
	if err != nil {
		return err
	}
	resizeErr := i.driver.Resize(ctx, i, width, height)
	if err := el.AwaitStill(ctx); err != nil && resizeErr == nil {
		resizeErr = err
	}
	if _, err := el.SetOverflow(ctx, prev); err != nil && resizeErr == nil {
		resizeErr = err
	}
	return resizeErr
}

// Show makes the component visible. Unlike the close family this is not
// memoized; show and hide toggle freely.
func (i *Instance) Show(ctx context.Context) error {
	if target, ref, ok := i.overrideRef("show"); ok {
		if _, err := i.engine.messenger.Call(ctx, target, ref); err != nil {
			return err
		}
	} else if err := i.driver.Show(ctx, i); err != nil {
		return err
	}
	i.setState(StateVisible)
	i.events.emit(EventDisplay)
	if i.opts.OnDisplay != nil {
		i.opts.OnDisplay()
	}
	return nil
}

// Hide removes the component from view without tearing anything down.
func (i *Instance) Hide(ctx context.Context) error {
	if target, ref, ok := i.overrideRef("hide"); ok {
		if _, err := i.engine.messenger.Call(ctx, target, ref); err != nil {
			return err
		}
	} else if err := i.driver.Hide(ctx, i); err != nil {
		return err
	}
	i.setState(StateHidden)
	return nil
}

// Close tears the instance down gracefully. The first caller's reason wins;
// every caller observes the same result. OnClose fires exactly once.
func (i *Instance) Close(ctx context.Context, reason CloseReason) error {
	i.reasonOnce.Do(func() { i.closeReason = reason })
	_, err := i.closeOnce.Do(ctx)
	return err
}

func (i *Instance) doClose(ctx context.Context) (struct{}, error) {
	// Error and unload tear down without consuming closeOnce, and draining
	// the cleanup registry closes the child window; the close watchdog can
	// observe that self-inflicted close and land here afterwards. Destroyed
	// is terminal: nothing is left to close and no close events may fire.
	if i.errored.Load() || i.destroying.Load() {
		return struct{}{}, nil
	}

	reason := i.closeReason
	i.setState(StateClosing)
	i.log.Info("closing instance", zap.String("reason", string(reason)))
	if m := i.engine.metrics; m != nil {
		m.ClosesTotal.WithLabelValues(string(reason)).Inc()
	}

	i.events.emit(EventClose, reason)
	if i.opts.OnClose != nil {
		i.opts.OnClose(reason)
	}

	var wg sync.WaitGroup
	var componentErr, containerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, componentErr = i.closeComponentOnce.Do(ctx)
	}()
	go func() {
		defer wg.Done()
		_, containerErr = i.closeContainerOnce.Do(ctx)
	}()
	wg.Wait()

	destroyErr := i.Destroy(ctx)

	switch {
	case componentErr != nil:
		return struct{}{}, componentErr
	case containerErr != nil:
		return struct{}{}, containerErr
	default:
		return struct{}{}, destroyErr
	}
}

// CloseComponent shuts down the child context only: the watchdog stops, the
// child gets a chance to clean up, the window closes.
func (i *Instance) CloseComponent(ctx context.Context) error {
	_, err := i.closeComponentOnce.Do(ctx)
	return err
}

func (i *Instance) doCloseComponent(ctx context.Context) (struct{}, error) {
	// Stop probing a window we are about to close on purpose.
	if err := i.clean.Run(ctx, cleanupWatchdog); err != nil {
		i.log.Warn("watchdog cleanup failed", zap.Error(err))
	}

	reason := i.closeReason
	child := i.childExports()
	if child != nil && reason != ReasonChildCall && reason != ReasonUnload {
		// Child-initiated closes already ran their own teardown, and on host
		// unload there is no time for a round trip.
		if err := child.Close(ctx, i.engine.messenger); err != nil {
			i.log.Debug("child close call failed", zap.Error(err))
		}
	}

	return struct{}{}, i.clean.Run(ctx, cleanupWindow)
}

// CloseContainer removes the host-page presence only.
func (i *Instance) CloseContainer(ctx context.Context) error {
	_, err := i.closeContainerOnce.Do(ctx)
	return err
}

func (i *Instance) doCloseContainer(ctx context.Context) (struct{}, error) {
	if err := i.driver.Hide(ctx, i); err != nil {
		i.log.Debug("hide before container close failed", zap.Error(err))
	}
	_, err := i.destroyContainerOnce.Do(ctx)
	return struct{}{}, err
}

// DestroyContainer removes the container elements without the hide step.
func (i *Instance) DestroyContainer(ctx context.Context) error {
	_, err := i.destroyContainerOnce.Do(ctx)
	return err
}

func (i *Instance) doDestroyContainer(ctx context.Context) (struct{}, error) {
	return struct{}{}, i.clean.Run(ctx, cleanupContainer)
}

// Destroy hard-tears the instance down, draining every remaining cleanup
// action. Safe to call at any point, any number of times.
func (i *Instance) Destroy(ctx context.Context) error {
	// Draining the registry closes the window; flag the teardown first so a
	// concurrent watchdog cannot run a graceful close over it.
	i.destroying.Store(true)
	var err error
	if i.clean.HasTasks() {
		err = i.clean.All(ctx)
	}
	i.destroyOnce.Do(func() {
		i.setState(StateDestroyed)
		i.events.emit(EventDestroy)
		i.engine.instances.Remove(i.id)
		if m := i.engine.metrics; m != nil {
			m.InstancesActive.Dec()
		}
	})
	return err
}

// Error is the instance's single error funnel. The first error wins: it is
// recorded, handlers fire, pending waiters unblock, and the instance is
// destroyed. Later calls are no-ops returning nil. The return value is what
// the caller should propagate: nil when the host's OnError swallowed the
// error, the original error when there is no handler, and a SecondaryError
// when the handler itself failed.
func (i *Instance) Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if !i.errored.CompareAndSwap(false, true) {
		return nil
	}

	i.firstErrMu.Lock()
	i.firstErr = err
	i.firstErrMu.Unlock()

	kind := KindOf(err)
	i.log.Error("instance failed", zap.String("kind", string(kind)), zap.Error(err))
	if m := i.engine.metrics; m != nil {
		m.ErrorsTotal.WithLabelValues(string(kind)).Inc()
		m.RendersFailed.WithLabelValues(string(kind)).Inc()
	}

	i.events.emit(EventError, err)
	i.initialized.Reject(err)

	i.reasonOnce.Do(func() { i.closeReason = ReasonError })
	if destroyErr := i.Destroy(ctx); destroyErr != nil {
		i.log.Warn("teardown after error failed", zap.Error(destroyErr))
	}

	if i.opts.OnError == nil {
		return err
	}
	if herr := i.opts.OnError(err); herr != nil {
		// Returning the original error is a rethrow, not a second failure.
		if errors.Is(herr, err) {
			return herr
		}
		return &SecondaryError{Original: err, Secondary: herr}
	}
	return nil
}

// CheckClose decides whether the user closed the window out from under us.
// Closed-state signals can be transiently wrong, so the probe runs in
// phases separated by a debounce; only if every phase agrees does the
// instance close with ReasonUserClosed.
func (i *Instance) CheckClose(ctx context.Context) error {
	win := i.proxyWindow()
	if win == nil {
		return nil
	}

	phases := i.engine.settings.CloseCheckPhases
	debounce := i.engine.settings.CloseCheckDebounce

	for p := 0; p < phases; p++ {
		if p > 0 {
			if err := async.Sleep(ctx, debounce); err != nil {
				return err
			}
		}
		if !win.IsClosed() {
			return nil
		}
	}

	return i.Close(ctx, ReasonUserClosed)
}

// overrideRef resolves a delegated method override, if this instance has
// been delegated and the driver permits overriding the method.
func (i *Instance) overrideRef(method string) (id.ContextID, string, bool) {
	i.mu.RLock()
	d := i.delegate
	i.mu.RUnlock()
	if d == nil {
		return "", "", false
	}
	ref, ok := d.overrides[method]
	if !ok {
		return "", "", false
	}
	return d.target, ref, true
}
