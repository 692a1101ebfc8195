// Package transport defines the cross-context messaging boundary the engine
// depends on. The engine never talks to a browsing context directly; it
// publishes export tables, invokes remote methods, and asks whether a
// (window, domain) pair needs an intermediary trust bridge.
package transport

import (
	"context"
	"errors"

	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/window"
)

// ErrPeerGone is returned when the target context is no longer connected.
var ErrPeerGone = errors.New("transport: peer context is not connected")

// Handler handles one exported method invocation arriving from a peer.
type Handler func(ctx context.Context, args []any) (any, error)

// Exports is a named set of RPC methods offered to a peer.
type Exports map[string]Handler

// Descriptor is the serializable reference to a published export table:
// method name to opaque call reference. It travels inside the bootstrap
// payload so the child can address calls back into the parent.
type Descriptor map[string]string

// Messenger is the low-level messaging transport. The engine holds exactly
// one; implementations decide how bytes move between contexts.
type Messenger interface {
	// RegisterExports publishes methods under uid and returns the
	// descriptor to embed in the bootstrap payload plus a release
	// function that unpublishes them.
	RegisterExports(uid string, exports Exports) (Descriptor, func())

	// Call invokes a method on a connected peer context and waits for the
	// result.
	Call(ctx context.Context, target id.ContextID, method string, args ...any) (any, error)

	// NeedsBridge reports whether messaging with win on the given domain
	// requires an intermediary trust bridge, and whether one is already
	// open for that domain.
	NeedsBridge(domain string, win *window.Proxy) (needed bool, open bool, err error)

	// OpenBridge opens the trust bridge context for a domain.
	OpenBridge(ctx context.Context, url, domain string) error
}

// ChildExports is what the remote side hands the parent in its init call:
// where the child lives on the transport and how to address its methods.
// The parent expects at least updateProps and close.
type ChildExports struct {
	Context id.ContextID `json:"context"`
	Methods Descriptor   `json:"methods"`
}

// UpdateProps forwards a new prop set to the child.
func (c ChildExports) UpdateProps(ctx context.Context, m Messenger, props map[string]any) error {
	ref, ok := c.Methods["updateProps"]
	if !ok {
		return errors.New("transport: child exports no updateProps method")
	}
	_, err := m.Call(ctx, c.Context, ref, props)
	return err
}

// Close asks the child to shut itself down.
func (c ChildExports) Close(ctx context.Context, m Messenger) error {
	ref, ok := c.Methods["close"]
	if !ok {
		return errors.New("transport: child exports no close method")
	}
	_, err := m.Call(ctx, c.Context, ref)
	return err
}
