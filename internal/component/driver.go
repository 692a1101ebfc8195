package component

import (
	"context"

	"github.com/frameport/frameport/internal/window"
)

// ContextDriver is the per-render-mode strategy: how to open the browsing
// context, how to change its geometry and visibility, how to pre-render,
// and which exported methods a delegate target may override. Selected once
// at construction and immutable for the instance's lifetime.
type ContextDriver interface {
	Kind() window.Kind
	// RendersInContainer reports whether Open needs the host container to
	// exist first. This decides the open node's dependency edge.
	RendersInContainer() bool
	Open(ctx context.Context, inst *Instance) (*window.Proxy, error)
	Resize(ctx context.Context, inst *Instance, width, height int) error
	Show(ctx context.Context, inst *Instance) error
	Hide(ctx context.Context, inst *Instance) error
	// OpenPrerender shows placeholder content while the child loads. A nil
	// element means the mode has no prerender.
	OpenPrerender(ctx context.Context, inst *Instance) (Element, error)
	// DelegateOverrides lists the parent-exported method names a delegate
	// target may take over.
	DelegateOverrides() []string
}

var driverTable = map[window.Kind]ContextDriver{
	window.KindIFrame: iframeDriver{},
	window.KindPopup:  popupDriver{},
	window.KindModal:  modalDriver{},
}

// driverFor selects the strategy for a render mode.
func driverFor(kind window.Kind) (ContextDriver, error) {
	d, ok := driverTable[kind]
	if !ok {
		return nil, newError(KindEnvironment, "no context driver for render mode %q", kind)
	}
	return d, nil
}

// iframeDriver renders into an iframe mounted inside the host container.
type iframeDriver struct{}

func (iframeDriver) Kind() window.Kind        { return window.KindIFrame }
func (iframeDriver) RendersInContainer() bool { return true }

func (iframeDriver) Open(ctx context.Context, inst *Instance) (*window.Proxy, error) {
	return inst.engine.opener.OpenFrame(ctx, inst.containerElement())
}

func (iframeDriver) Resize(ctx context.Context, inst *Instance, width, height int) error {
	if el := inst.containerElement(); el != nil {
		return el.Resize(ctx, width, height)
	}
	return inst.proxyWindow().Resize(ctx, width, height)
}

func (iframeDriver) Show(ctx context.Context, inst *Instance) error {
	if el := inst.containerElement(); el != nil {
		return el.Show(ctx)
	}
	return nil
}

func (iframeDriver) Hide(ctx context.Context, inst *Instance) error {
	if el := inst.containerElement(); el != nil {
		return el.Hide(ctx)
	}
	return nil
}

func (iframeDriver) OpenPrerender(ctx context.Context, inst *Instance) (Element, error) {
	return inst.def.renderPrerender(ctx, inst.proxyWindow())
}

func (iframeDriver) DelegateOverrides() []string {
	return []string{"open", "openContainer", "showContainer", "hideContainer", "show", "hide", "resize"}
}

// popupDriver renders into a separate top-level window. There is no
// container; hide is meaningless and show focuses the window.
type popupDriver struct{}

func (popupDriver) Kind() window.Kind        { return window.KindPopup }
func (popupDriver) RendersInContainer() bool { return false }

func (popupDriver) Open(ctx context.Context, inst *Instance) (*window.Proxy, error) {
	dims := inst.dimensions()
	return inst.engine.opener.OpenPopup(ctx, dims.Width, dims.Height)
}

func (popupDriver) Resize(ctx context.Context, inst *Instance, width, height int) error {
	return inst.proxyWindow().Resize(ctx, width, height)
}

func (popupDriver) Show(ctx context.Context, inst *Instance) error {
	return inst.proxyWindow().Focus(ctx)
}

func (popupDriver) Hide(context.Context, *Instance) error {
	// A popup cannot be hidden by the host.
	return nil
}

func (popupDriver) OpenPrerender(ctx context.Context, inst *Instance) (Element, error) {
	return inst.def.renderPrerender(ctx, inst.proxyWindow())
}

func (popupDriver) DelegateOverrides() []string {
	return []string{"open", "resize"}
}

// modalDriver is the iframe strategy presented inside a host-page overlay.
// It shares the iframe mechanics but exposes visibility overrides so a
// delegate can run the overlay.
type modalDriver struct {
	iframeDriver
}

func (modalDriver) Kind() window.Kind { return window.KindModal }

func (modalDriver) DelegateOverrides() []string {
	return []string{"open", "openContainer", "showContainer", "hideContainer", "show", "hide", "resize"}
}
