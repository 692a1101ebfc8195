package component

import (
	"context"

	"github.com/frameport/frameport/internal/bootstrap"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/task"
	"github.com/frameport/frameport/internal/window"
	"go.uber.org/zap"
)

// Render pipeline node names. Edges are declared where the nodes are
// assembled in runPipeline.
const (
	nodeOnRender        = "onRender"
	nodeGetDomain       = "getDomain"
	nodeElementReady    = "elementReady"
	nodeOpenContainer   = "openContainer"
	nodeOpen            = "open"
	nodeAwaitWindow     = "awaitWindow"
	nodeShowContainer   = "showContainer"
	nodeSetWindowName   = "setWindowName"
	nodeWatchForClose   = "watchForClose"
	nodePrerender       = "prerender"
	nodeOpenBridge      = "openBridge"
	nodeBuildURL        = "buildUrl"
	nodeLoadURL         = "loadUrl"
	nodeRunTimeout      = "runTimeout"
	nodeSwitchPrerender = "switchPrerender"
	nodeShowComponent   = "showComponent"
)

// runPipeline assembles and runs the render graph, then awaits the host's
// entry hook. Failed renders leave their side effects behind; the caller
// routes the error through the error path, which drains the cleanup
// registry.
func (i *Instance) runPipeline(ctx context.Context) error {
	g := task.New("render:" + i.def.Tag)

	g.Node(nodeOnRender, i.nodeOnRender)
	g.Node(nodeGetDomain, i.nodeGetDomain)
	g.Node(nodeElementReady, i.nodeElementReady)
	g.Node(nodeOpenContainer, i.nodeOpenContainer, nodeElementReady)
	g.Node(nodeBuildURL, i.nodeBuildURL)

	openDeps := []string{nodeOnRender}
	if i.driver.RendersInContainer() {
		openDeps = append(openDeps, nodeOpenContainer)
	}
	g.Node(nodeOpen, i.nodeOpen, openDeps...)

	g.Node(nodeAwaitWindow, i.nodeAwaitWindow, nodeOpen)
	g.Node(nodeShowContainer, i.nodeShowContainer, nodeOpenContainer)
	g.Node(nodeSetWindowName, i.nodeSetWindowName, nodeOpen, nodeGetDomain)
	g.Node(nodeWatchForClose, i.nodeWatchForClose, nodeAwaitWindow, nodeSetWindowName)
	g.Node(nodePrerender, i.nodePrerender, nodeOpen, nodeShowContainer)
	g.Node(nodeOpenBridge, i.nodeOpenBridge, nodeAwaitWindow, nodeGetDomain, nodeSetWindowName)
	g.Node(nodeLoadURL, i.nodeLoadURL, nodeBuildURL, nodeSetWindowName, nodeOpenBridge)
	g.Node(nodeRunTimeout, i.nodeRunTimeout, nodeLoadURL)
	g.Node(nodeSwitchPrerender, i.nodeSwitchPrerender, nodePrerender, nodeLoadURL)
	g.Node(nodeShowComponent, i.nodeShowComponent, nodePrerender)

	if _, err := g.Run(ctx); err != nil {
		return err
	}

	if i.opts.OnEnter != nil {
		if err := i.opts.OnEnter(ctx); err != nil {
			return wrapError(KindInternal, err)
		}
	}
	return nil
}

func (i *Instance) nodeOnRender(_ context.Context, _ task.Results) (any, error) {
	i.events.emit(EventRender)
	if i.opts.OnRender != nil {
		i.opts.OnRender()
	}
	return nil, nil
}

func (i *Instance) nodeGetDomain(_ context.Context, _ task.Results) (any, error) {
	return i.def.resolveDomain(i.Props())
}

func (i *Instance) nodeBuildURL(_ context.Context, _ task.Results) (any, error) {
	return i.def.resolveURL(i.Props())
}

// nodeElementReady resolves the host-page mount target. Delegated renders
// and container-less drivers have nothing to resolve.
func (i *Instance) nodeElementReady(ctx context.Context, _ task.Results) (any, error) {
	if i.delegated() {
		return nil, nil
	}
	if !i.driver.RendersInContainer() && i.opts.Container == "" {
		return nil, nil
	}
	if i.opts.Container == "" {
		return nil, newError(KindValidation,
			"component %q renders in a container but no render target was given", i.def.Tag)
	}
	if i.engine.resolveElement == nil {
		return nil, newError(KindEnvironment,
			"component %q: engine has no element resolver", i.def.Tag)
	}

	el, err := i.engine.resolveElement(ctx, i.opts.Container)
	if err != nil {
		return nil, wrapError(KindEnvironment, err)
	}
	i.mu.Lock()
	i.target = el
	i.mu.Unlock()
	return nil, nil
}

// nodeOpenContainer mounts the definition's container template under the
// target, registering its teardown.
func (i *Instance) nodeOpenContainer(ctx context.Context, _ task.Results) (any, error) {
	if target, ref, ok := i.overrideRef("openContainer"); ok {
		_, err := i.engine.messenger.Call(ctx, target, ref, i.def.delegableProps(i.Props()))
		return nil, err
	}
	if i.def.Container == nil {
		return nil, nil
	}

	i.mu.RLock()
	target := i.target
	i.mu.RUnlock()
	if target == nil {
		return nil, nil
	}

	container, err := i.def.Container(ctx, target)
	if err != nil {
		return nil, wrapError(KindEnvironment, err)
	}
	i.mu.Lock()
	i.container = container
	i.mu.Unlock()
	i.clean.RegisterTagged(cleanupContainer, container.Destroy)
	return nil, nil
}

// nodeOpen creates the child browsing context through the driver, or adopts
// one a delegate target opened for us.
func (i *Instance) nodeOpen(ctx context.Context, _ task.Results) (any, error) {
	var proxy *window.Proxy

	if target, ref, ok := i.overrideRef("open"); ok {
		result, err := i.engine.messenger.Call(ctx, target, ref, i.def.delegableProps(i.Props()))
		if err != nil {
			return nil, wrapError(KindDelegation, err)
		}
		ctxID, ok := result.(string)
		if !ok || i.engine.windowHandleFor == nil {
			return nil, newError(KindDelegation,
				"component %q: delegate open returned no adoptable context", i.def.Tag)
		}
		proxy = window.Attached(i.driver.Kind(), i.engine.windowHandleFor(id.ContextID(ctxID)))
	} else {
		var err error
		proxy, err = i.driver.Open(ctx, i)
		if err != nil {
			return nil, wrapError(KindEnvironment, err)
		}
	}

	i.mu.Lock()
	i.proxy = proxy
	i.mu.Unlock()
	i.clean.RegisterTagged(cleanupWindow, proxy.Close)
	return nil, nil
}

func (i *Instance) nodeAwaitWindow(ctx context.Context, _ task.Results) (any, error) {
	if _, err := i.proxyWindow().Await(ctx); err != nil {
		return nil, wrapError(KindEnvironment, err)
	}
	return nil, nil
}

func (i *Instance) nodeShowContainer(ctx context.Context, _ task.Results) (any, error) {
	if target, ref, ok := i.overrideRef("showContainer"); ok {
		_, err := i.engine.messenger.Call(ctx, target, ref)
		return nil, err
	}
	i.mu.RLock()
	container := i.container
	i.mu.RUnlock()
	if container == nil {
		return nil, nil
	}
	return nil, container.Show(ctx)
}

// nodeSetWindowName publishes the parent export table, builds the handshake
// payload, and writes it into the child's window name. Store entries are
// paired with cleanup deletions so nothing outlives the instance.
func (i *Instance) nodeSetWindowName(ctx context.Context, deps task.Results) (any, error) {
	domain := deps[nodeGetDomain].(string)

	desc, release := i.engine.messenger.RegisterExports(i.uid, i.parentExports())
	i.clean.Register(func(context.Context) error {
		release()
		return nil
	})

	bid := id.NewBootstrapID()
	payload := bootstrap.Payload{
		ID:      bid.String(),
		Context: i.driver.Kind(),
		Domain:  domain,
		UID:     i.uid,
		Tag:     i.def.Tag,
		Parent:  i.parentLocator(bid),
		Props:   i.propsRef(bid, domain),
		Exports: desc,
	}

	name, err := bootstrap.EncodeName(payload)
	if err != nil {
		return nil, wrapError(KindInternal, err)
	}
	if err := i.proxyWindow().SetName(ctx, name); err != nil {
		return nil, wrapError(KindEnvironment, err)
	}
	return nil, nil
}

// parentLocator tells the child how to find its logical parent. Delegated
// renders go through the global window store; popups reach back through
// their opener; framed contexts look up. Frames are always mounted directly
// under the top context, so RefParent with a hop count is never produced.
func (i *Instance) parentLocator(bid id.BootstrapID) bootstrap.ParentLocator {
	if i.delegated() {
		i.engine.windows.Put(bid, i.proxyWindow())
		i.clean.Register(func(context.Context) error {
			i.engine.windows.Delete(bid)
			return nil
		})
		return bootstrap.ParentLocator{Ref: bootstrap.RefGlobal, UID: i.uid}
	}
	if i.driver.Kind() == window.KindPopup {
		return bootstrap.ParentLocator{Ref: bootstrap.RefOpener}
	}
	return bootstrap.ParentLocator{Ref: bootstrap.RefTop}
}

// propsRef inlines the child props when the child lives on the host's own
// domain; otherwise it parks them in the props store and passes a reference.
func (i *Instance) propsRef(bid id.BootstrapID, domain string) bootstrap.PropsRef {
	childProps := i.def.childProps(i.Props())
	if domain == i.engine.settings.HostDomain && i.engine.settings.HostDomain != "" {
		return bootstrap.PropsRef{Type: bootstrap.PropsRaw, Value: childProps}
	}

	i.engine.props.Put(bid, childProps)
	i.clean.Register(func(context.Context) error {
		i.engine.props.Delete(bid)
		return nil
	})
	return bootstrap.PropsRef{Type: bootstrap.PropsUID, UID: bid.String()}
}

func (i *Instance) nodeWatchForClose(_ context.Context, _ task.Results) (any, error) {
	i.startCloseWatch()
	i.startUnloadWatch()
	return nil, nil
}

func (i *Instance) nodePrerender(ctx context.Context, _ task.Results) (any, error) {
	if i.delegated() {
		return nil, nil
	}
	el, err := i.driver.OpenPrerender(ctx, i)
	if err != nil {
		i.log.Warn("prerender failed, continuing without placeholder", zap.Error(err))
		return nil, nil
	}
	if el == nil {
		return nil, nil
	}
	h := i.clean.RegisterTagged(cleanupContainer, el.Destroy)
	i.mu.Lock()
	i.prerender = el
	i.prerenderCleanup = h
	i.mu.Unlock()
	return nil, nil
}

func (i *Instance) nodeOpenBridge(ctx context.Context, deps task.Results) (any, error) {
	domain := deps[nodeGetDomain].(string)

	needed, open, err := i.engine.messenger.NeedsBridge(domain, i.proxyWindow())
	if err != nil {
		return nil, wrapError(KindEnvironment, err)
	}
	if !needed || open {
		return nil, nil
	}

	url, bridgeDomain, err := i.def.resolveBridge(i.Props())
	if err != nil {
		return nil, err
	}
	if err := i.engine.messenger.OpenBridge(ctx, url, bridgeDomain); err != nil {
		return nil, wrapError(KindEnvironment, err)
	}
	return nil, nil
}

func (i *Instance) nodeLoadURL(ctx context.Context, deps task.Results) (any, error) {
	url := deps[nodeBuildURL].(string)
	if err := i.proxyWindow().Navigate(ctx, url); err != nil {
		return nil, wrapError(KindEnvironment, err)
	}
	return nil, nil
}

func (i *Instance) nodeRunTimeout(_ context.Context, _ task.Results) (any, error) {
	i.armInitTimeout()
	return nil, nil
}

// nodeSwitchPrerender waits for the child's init handshake, then swaps the
// placeholder out.
func (i *Instance) nodeSwitchPrerender(ctx context.Context, _ task.Results) (any, error) {
	if _, err := i.initialized.Await(ctx); err != nil {
		return nil, err
	}

	i.mu.Lock()
	h := i.prerenderCleanup
	i.prerender = nil
	i.prerenderCleanup = nil
	i.mu.Unlock()
	if h != nil {
		if err := h.Release(ctx); err != nil {
			i.log.Warn("prerender teardown failed", zap.Error(err))
		}
	}
	return nil, nil
}

func (i *Instance) nodeShowComponent(ctx context.Context, _ task.Results) (any, error) {
	return nil, i.Show(ctx)
}

// delegated reports whether this instance renders through a delegate target.
func (i *Instance) delegated() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.delegate != nil
}
