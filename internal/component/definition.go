package component

import (
	"context"

	"github.com/frameport/frameport/internal/infrastructure/logging"
	"github.com/frameport/frameport/internal/window"
)

// Resolver computes a URL or domain from the instance's current props.
type Resolver func(props map[string]any) (string, error)

// PropDef describes one prop in a component's schema.
type PropDef struct {
	// Required props fail validation when absent after defaulting.
	Required bool
	// Default supplies a value when the prop is absent. It sees the props
	// merged so far.
	Default func(props map[string]any) any
	// Validate rejects bad values. Run after defaulting.
	Validate func(value any) error
	// SendToChild marks the prop for inclusion in the bootstrap payload and
	// updateProps forwarding.
	SendToChild bool
	// AllowDelegate marks the prop as safe to hand to a delegate target.
	AllowDelegate bool
}

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Definition is the immutable template for one embeddable component. Owned
// by the embedding application; instances only read it.
type Definition struct {
	// Tag is the component's registry key, e.g. "checkout-button".
	Tag string

	// URL resolves the child content location.
	URL Resolver
	// Domain resolves the origin the child is trusted on.
	Domain Resolver
	// BridgeURL and BridgeDomain resolve the intermediary trust bridge,
	// required only when the transport reports one is needed.
	BridgeURL    Resolver
	BridgeDomain Resolver

	// Props is the prop schema keyed by prop name.
	Props map[string]*PropDef

	// ValidateProps inspects the whole prop set after per-prop validation.
	ValidateProps func(props map[string]any) error

	// DefaultContext selects the driver when the caller does not.
	DefaultContext window.Kind

	// Dimensions is the initial child size.
	Dimensions Dimensions

	// Container renders the host-page wrapper. Nil means the driver mounts
	// directly into the target element.
	Container ContainerRenderer
	// Prerender renders the placeholder shown while the child loads.
	Prerender PrerenderRenderer

	// Logger for definition-scoped logging; instances derive from it.
	Logger *logging.Logger
}

// Validate checks the definition is usable.
func (d *Definition) Validate() error {
	if d.Tag == "" {
		return newError(KindValidation, "component definition has no tag")
	}
	if d.URL == nil {
		return newError(KindValidation, "component %q has no url resolver", d.Tag)
	}
	if d.Domain == nil {
		return newError(KindValidation, "component %q has no domain resolver", d.Tag)
	}
	return nil
}

// resolveDomain resolves the child origin for the given props.
func (d *Definition) resolveDomain(props map[string]any) (string, error) {
	domain, err := d.Domain(props)
	if err != nil {
		return "", wrapError(KindResolution, err)
	}
	if domain == "" {
		return "", newError(KindResolution, "component %q resolved an empty domain", d.Tag)
	}
	return domain, nil
}

// resolveURL resolves the child content URL for the given props.
func (d *Definition) resolveURL(props map[string]any) (string, error) {
	url, err := d.URL(props)
	if err != nil {
		return "", wrapError(KindResolution, err)
	}
	if url == "" {
		return "", newError(KindResolution, "component %q resolved an empty url", d.Tag)
	}
	return url, nil
}

// resolveBridge resolves the trust bridge location. Both resolvers must be
// present once the transport asks for a bridge.
func (d *Definition) resolveBridge(props map[string]any) (url, domain string, err error) {
	if d.BridgeURL == nil || d.BridgeDomain == nil {
		return "", "", newError(KindResolution,
			"component %q needs a bridge but defines no bridge resolvers", d.Tag)
	}
	if url, err = d.BridgeURL(props); err != nil {
		return "", "", wrapError(KindResolution, err)
	}
	if domain, err = d.BridgeDomain(props); err != nil {
		return "", "", wrapError(KindResolution, err)
	}
	return url, domain, nil
}

// kindOrDefault picks the render context kind.
func (d *Definition) kindOrDefault(kind window.Kind) window.Kind {
	if kind != "" {
		return kind
	}
	if d.DefaultContext != "" {
		return d.DefaultContext
	}
	return window.KindIFrame
}

// logger returns the definition logger or a no-op fallback.
func (d *Definition) logger() *logging.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.NewNop()
}

// renderPrerender runs the prerender template if one is defined.
func (d *Definition) renderPrerender(ctx context.Context, win *window.Proxy) (Element, error) {
	if d.Prerender == nil {
		return nil, nil
	}
	return d.Prerender(ctx, win)
}
