// Package window abstracts a browsing context reference that may not exist
// yet. A Proxy is handed out before the underlying context is physically
// created; operations on it are deferred until the context attaches.
package window

import (
	"context"
	"sync"

	"github.com/frameport/frameport/internal/async"
	"github.com/frameport/frameport/internal/shared/id"
)

// Kind is the flavor of browsing context a proxy points at.
type Kind string

const (
	KindIFrame Kind = "iframe"
	KindPopup  Kind = "popup"
	// KindModal is an iframe presented inside a host-page overlay.
	KindModal Kind = "modal"
)

// Handle is the narrow control surface a concrete browsing context exposes.
// Implementations live at the transport boundary; the engine never touches
// a context except through this interface.
type Handle interface {
	SetName(ctx context.Context, name string) error
	Navigate(ctx context.Context, url string) error
	Focus(ctx context.Context) error
	Resize(ctx context.Context, width, height int) error
	Closed() bool
	Close(ctx context.Context) error
}

// Proxy wraps a possibly-not-yet-existing browsing context and exposes
// deferred operations against it.
type Proxy struct {
	id   id.WindowID
	kind Kind

	mu      sync.Mutex
	current Handle
	arrived *async.Deferred[Handle]
}

// NewProxy creates a detached proxy for a context that is being opened.
func NewProxy(kind Kind) *Proxy {
	return &Proxy{
		id:      id.NewWindowID(),
		kind:    kind,
		arrived: async.NewDeferred[Handle](),
	}
}

// Attached creates a proxy over an already-existing context.
func Attached(kind Kind, h Handle) *Proxy {
	p := NewProxy(kind)
	p.Attach(h)
	return p
}

// ID returns the proxy's window ID.
func (p *Proxy) ID() id.WindowID { return p.id }

// Kind returns the context kind.
func (p *Proxy) Kind() Kind { return p.kind }

// Attach binds the physical context to the proxy, releasing every caller
// blocked in Await. Only the first attachment takes effect.
func (p *Proxy) Attach(h Handle) {
	p.mu.Lock()
	if p.current == nil {
		p.current = h
	}
	p.mu.Unlock()
	p.arrived.Resolve(h)
}

// Fail settles the proxy with an error when the context could not be opened.
func (p *Proxy) Fail(err error) {
	p.arrived.Reject(err)
}

// Await blocks until the underlying context exists.
func (p *Proxy) Await(ctx context.Context) (Handle, error) {
	return p.arrived.Await(ctx)
}

// SetName names the context once it exists. The name string is the bootstrap
// payload carrier, so this is on the render critical path.
func (p *Proxy) SetName(ctx context.Context, name string) error {
	h, err := p.Await(ctx)
	if err != nil {
		return err
	}
	return h.SetName(ctx, name)
}

// Navigate points the context at a URL once it exists.
func (p *Proxy) Navigate(ctx context.Context, url string) error {
	h, err := p.Await(ctx)
	if err != nil {
		return err
	}
	return h.Navigate(ctx, url)
}

// Focus raises the context once it exists.
func (p *Proxy) Focus(ctx context.Context) error {
	h, err := p.Await(ctx)
	if err != nil {
		return err
	}
	return h.Focus(ctx)
}

// Resize changes the context's outer dimensions once it exists.
func (p *Proxy) Resize(ctx context.Context, width, height int) error {
	h, err := p.Await(ctx)
	if err != nil {
		return err
	}
	return h.Resize(ctx, width, height)
}

// IsClosed reports whether the underlying context has been closed by the
// user or the platform. A proxy that has not attached yet reports false:
// a context that does not exist cannot have been closed.
func (p *Proxy) IsClosed() bool {
	p.mu.Lock()
	h := p.current
	p.mu.Unlock()

	if h == nil {
		return false
	}
	return h.Closed()
}

// Close closes the underlying context if it exists. Closing a detached
// proxy is a no-op.
func (p *Proxy) Close(ctx context.Context) error {
	p.mu.Lock()
	h := p.current
	p.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Close(ctx)
}
