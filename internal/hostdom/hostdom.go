// Package hostdom drives the connected host page's DOM over the transport.
// The host page connects like any other context, claims the host role, and
// exposes element and window primitives; this package adapts those remote
// primitives to the interfaces the engine renders through.
package hostdom

import (
	"context"
	"fmt"

	"github.com/frameport/frameport/internal/component"
	"github.com/frameport/frameport/internal/infrastructure/resilience"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/window"
)

// Caller is the slice of the transport hostdom needs. *wsbus.Bus satisfies
// it.
type Caller interface {
	Call(ctx context.Context, target id.ContextID, method string, args ...any) (any, error)
	Host() (id.ContextID, bool)
}

// DOM is the bus-backed DOM boundary. All calls run through a circuit
// breaker so an unresponsive host page fails renders fast instead of
// stalling every pipeline step on its own timeout.
type DOM struct {
	caller  Caller
	breaker *resilience.Breaker
}

// New creates a DOM boundary over the transport.
func New(caller Caller) *DOM {
	return &DOM{
		caller:  caller,
		breaker: resilience.New("hostdom", resilience.Settings{}),
	}
}

func (d *DOM) host() (id.ContextID, error) {
	host, ok := d.caller.Host()
	if !ok {
		return "", fmt.Errorf("hostdom: no host page connected")
	}
	return host, nil
}

func (d *DOM) call(ctx context.Context, method string, args ...any) (any, error) {
	host, err := d.host()
	if err != nil {
		return nil, err
	}
	return d.breaker.Call(func() (any, error) {
		return d.caller.Call(ctx, host, method, args...)
	})
}

func stringResult(v any, err error) (string, error) {
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("hostdom: host returned %T, want string key", v)
	}
	return s, nil
}

// ResolveElement locates a render target in the host page. The host polls
// until the selector matches or gives up.
func (d *DOM) ResolveElement(ctx context.Context, selector string) (component.Element, error) {
	key, err := stringResult(d.call(ctx, "element.resolve", selector))
	if err != nil {
		return nil, err
	}
	return &element{dom: d, key: key}, nil
}

// OpenFrame creates an iframe in the host page, inside container when one is
// given.
func (d *DOM) OpenFrame(ctx context.Context, container component.Element) (*window.Proxy, error) {
	var containerKey any
	if el, ok := container.(*element); ok {
		containerKey = el.key
	}
	key, err := stringResult(d.call(ctx, "dom.openFrame", containerKey))
	if err != nil {
		return nil, err
	}
	return window.Attached(window.KindIFrame, &remoteWindow{dom: d, key: key}), nil
}

// OpenPopup creates a separate top-level window from the host page.
func (d *DOM) OpenPopup(ctx context.Context, width, height int) (*window.Proxy, error) {
	key, err := stringResult(d.call(ctx, "dom.openPopup", width, height))
	if err != nil {
		return nil, err
	}
	return window.Attached(window.KindPopup, &remoteWindow{dom: d, key: key}), nil
}

// element is a host-page element addressed by the opaque key the host
// assigned it.
type element struct {
	dom *DOM
	key string
}

func (e *element) Show(ctx context.Context) error {
	_, err := e.dom.call(ctx, "element.show", e.key)
	return err
}

func (e *element) Hide(ctx context.Context) error {
	_, err := e.dom.call(ctx, "element.hide", e.key)
	return err
}

func (e *element) Resize(ctx context.Context, width, height int) error {
	_, err := e.dom.call(ctx, "element.resize", e.key, width, height)
	return err
}

func (e *element) SetOverflow(ctx context.Context, value string) (string, error) {
	v, err := e.dom.call(ctx, "element.setOverflow", e.key, value)
	if err != nil {
		return "", err
	}
	prev, _ := v.(string)
	return prev, nil
}

func (e *element) AwaitStill(ctx context.Context) error {
	_, err := e.dom.call(ctx, "element.awaitStill", e.key)
	return err
}

func (e *element) Destroy(ctx context.Context) error {
	_, err := e.dom.call(ctx, "element.destroy", e.key)
	return err
}

// remoteWindow is a browsing context the host page opened on our behalf.
type remoteWindow struct {
	dom *DOM
	key string
}

func (w *remoteWindow) SetName(ctx context.Context, name string) error {
	_, err := w.dom.call(ctx, "window.setName", w.key, name)
	return err
}

func (w *remoteWindow) Navigate(ctx context.Context, url string) error {
	_, err := w.dom.call(ctx, "window.navigate", w.key, url)
	return err
}

func (w *remoteWindow) Focus(ctx context.Context) error {
	_, err := w.dom.call(ctx, "window.focus", w.key)
	return err
}

func (w *remoteWindow) Resize(ctx context.Context, width, height int) error {
	_, err := w.dom.call(ctx, "window.resize", w.key, width, height)
	return err
}

// Closed asks the host whether the window is gone. A vanished host means
// every window it held is gone too.
func (w *remoteWindow) Closed() bool {
	v, err := w.dom.call(context.Background(), "window.closed", w.key)
	if err != nil {
		return true
	}
	closed, _ := v.(bool)
	return closed
}

func (w *remoteWindow) Close(ctx context.Context) error {
	if _, ok := w.dom.caller.Host(); !ok {
		// Nothing to close if the host page itself is gone.
		return nil
	}
	_, err := w.dom.call(ctx, "window.close", w.key)
	return err
}
