package wsbus

import (
	"context"
	"errors"

	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/transport"
	"github.com/frameport/frameport/internal/window"
)

// WindowHandle returns a window.Handle that drives a connected context
// through bus calls. The handle reports Closed once the peer disconnects.
func (b *Bus) WindowHandle(target id.ContextID) window.Handle {
	return &busHandle{bus: b, target: target}
}

type busHandle struct {
	bus    *Bus
	target id.ContextID
}

func (h *busHandle) SetName(ctx context.Context, name string) error {
	_, err := h.bus.Call(ctx, h.target, "window.setName", name)
	return err
}

func (h *busHandle) Navigate(ctx context.Context, url string) error {
	_, err := h.bus.Call(ctx, h.target, "window.navigate", url)
	return err
}

func (h *busHandle) Focus(ctx context.Context) error {
	_, err := h.bus.Call(ctx, h.target, "window.focus")
	return err
}

func (h *busHandle) Resize(ctx context.Context, width, height int) error {
	_, err := h.bus.Call(ctx, h.target, "window.resize", width, height)
	return err
}

func (h *busHandle) Closed() bool {
	return !h.bus.Connected(h.target)
}

func (h *busHandle) Close(ctx context.Context) error {
	_, err := h.bus.Call(ctx, h.target, "window.close")
	if errors.Is(err, transport.ErrPeerGone) {
		// Already gone is what close wants anyway.
		return nil
	}
	return err
}
