package component

import (
	"context"

	"github.com/frameport/frameport/internal/window"
)

// Element is the boundary to a host-page DOM element. The engine only ever
// toggles visibility, geometry, and overflow, and waits for CSS transitions
// to settle; everything else belongs to the template renderer collaborator.
type Element interface {
	Show(ctx context.Context) error
	Hide(ctx context.Context) error
	Resize(ctx context.Context, width, height int) error
	// SetOverflow sets the element's overflow style, returning the previous
	// value so callers can restore it.
	SetOverflow(ctx context.Context, value string) (string, error)
	// AwaitStill resolves once the element has stopped moving, i.e. its
	// transition has settled.
	AwaitStill(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// ElementResolver locates the render target in the host page, polling until
// the element exists or ctx expires.
type ElementResolver func(ctx context.Context, target string) (Element, error)

// ContainerRenderer turns the component's container template into a concrete
// element mounted under the target.
type ContainerRenderer func(ctx context.Context, target Element) (Element, error)

// PrerenderRenderer renders the placeholder shown inside the child context
// before its real content loads.
type PrerenderRenderer func(ctx context.Context, win *window.Proxy) (Element, error)

// WindowOpener creates browsing contexts in the host page. Implemented at
// the transport boundary; the engine only sees proxies.
type WindowOpener interface {
	// OpenFrame creates an iframe inside container. A nil container is
	// allowed for drivers that mount the frame themselves.
	OpenFrame(ctx context.Context, container Element) (*window.Proxy, error)
	// OpenPopup creates a separate top-level window.
	OpenPopup(ctx context.Context, width, height int) (*window.Proxy, error)
}
