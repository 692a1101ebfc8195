// Package bootstrap builds the handshake payload a newly created browsing
// context receives through its window name, and owns the process-wide
// stores used when payload data cannot be inlined across origins.
package bootstrap

import (
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/window"
)

// ParentRef describes how the remote side reaches its logical parent.
type ParentRef string

const (
	// RefOpener is used for popups: the parent is window.opener.
	RefOpener ParentRef = "opener"
	// RefTop is used for iframes rendered directly under the top context.
	RefTop ParentRef = "top"
	// RefParent is used for nested iframes; Distance counts the hops up.
	// Part of the wire contract for child runtimes; this engine mounts
	// frames directly under the top context and never emits it.
	RefParent ParentRef = "parent"
	// RefGlobal is used when the render target is a different, non-ancestor
	// window: the parent is looked up in the global window store by UID.
	RefGlobal ParentRef = "global"
)

// ParentLocator tells the child where its logical parent window lives.
type ParentLocator struct {
	Ref      ParentRef `msgpack:"ref"`
	UID      string    `msgpack:"uid,omitempty"`
	Distance int       `msgpack:"distance,omitempty"`
}

// PropsRefType selects between inlined and store-referenced initial props.
type PropsRefType string

const (
	// PropsRaw inlines the serialized props in the payload. Used when the
	// child domain matches and the payload stays within name-length limits.
	PropsRaw PropsRefType = "raw"
	// PropsUID references props registered in the global props store. Used
	// when cross-origin embedding makes inlining unsafe or oversized.
	PropsUID PropsRefType = "uid"
)

// PropsRef carries the initial props either by value or by reference.
type PropsRef struct {
	Type  PropsRefType   `msgpack:"type"`
	Value map[string]any `msgpack:"value,omitempty"`
	UID   string         `msgpack:"uid,omitempty"`
}

// Payload is the full handshake embedded in the child's window name.
type Payload struct {
	ID      string            `msgpack:"id"`
	Context window.Kind       `msgpack:"context"`
	Domain  string            `msgpack:"domain"`
	UID     string            `msgpack:"uid"`
	Tag     string            `msgpack:"tag"`
	Parent  ParentLocator     `msgpack:"componentParent"`
	Props   PropsRef          `msgpack:"props"`
	Exports map[string]string `msgpack:"exports"`
}

// BootstrapID returns the payload's bootstrap identity.
func (p Payload) BootstrapID() id.BootstrapID {
	return id.BootstrapID(p.ID)
}
