package component

import (
	"context"
	"time"

	"github.com/frameport/frameport/internal/window"
)

// Built-in prop names. These are always present after normalization and are
// always part of the child-visible subset.
const (
	PropEnv        = "env"
	PropUID        = "uid"
	PropTag        = "tag"
	PropTimeout    = "timeout"
	PropDimensions = "dimensions"
)

// Options configures one instance at construction. Callbacks are typed here
// rather than living in the prop map; the prop map carries only data.
type Options struct {
	// Props are the caller's component props, validated against the
	// definition's schema.
	Props map[string]any

	// Context selects the render mode; empty falls back to the definition.
	Context window.Kind
	// Container is the host-page locator of the mount target. Optional for
	// popup rendering.
	Container string
	// Env tags the instance environment ("production", "sandbox", ...).
	Env string
	// Timeout bounds how long the remote side may take to call init. Zero
	// uses the engine default.
	Timeout time.Duration
	// Dimensions overrides the definition's initial size.
	Dimensions *Dimensions

	// OnRender fires when the render pipeline starts.
	OnRender func()
	// OnRendered fires when the render pipeline has fully resolved.
	OnRendered func()
	// OnDisplay fires when the component becomes visible.
	OnDisplay func()
	// OnEnter is awaited before the render resolves; it is the host's hook
	// to run entry animations.
	OnEnter func(ctx context.Context) error
	// OnClose receives the termination reason, exactly once.
	OnClose func(reason CloseReason)
	// OnError receives the instance's first error. A non-nil return is a
	// secondary failure and is surfaced together with the original.
	OnError func(err error) error
}

// normalizeProps merges incoming props over current, applies schema
// defaults, and validates. It returns a fresh map; inputs are not mutated.
func (d *Definition) normalizeProps(current, incoming map[string]any, isUpdate bool) (map[string]any, error) {
	merged := make(map[string]any, len(current)+len(incoming))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}

	for name, def := range d.Props {
		if _, ok := merged[name]; !ok && def.Default != nil {
			merged[name] = def.Default(merged)
		}
		value, present := merged[name]
		if !present {
			if def.Required && !isUpdate {
				return nil, newError(KindValidation, "component %q: missing required prop %q", d.Tag, name)
			}
			continue
		}
		if def.Validate != nil {
			if err := def.Validate(value); err != nil {
				return nil, newError(KindValidation, "component %q: invalid prop %q: %v", d.Tag, name, err)
			}
		}
	}

	if d.ValidateProps != nil {
		if err := d.ValidateProps(merged); err != nil {
			return nil, wrapError(KindValidation, err)
		}
	}
	return merged, nil
}

// childProps extracts the subset of props serialized to the remote side:
// schema props marked SendToChild plus the built-in identity props.
func (d *Definition) childProps(props map[string]any) map[string]any {
	out := make(map[string]any)
	for name, def := range d.Props {
		if !def.SendToChild {
			continue
		}
		if v, ok := props[name]; ok {
			out[name] = v
		}
	}
	for _, name := range []string{PropEnv, PropUID, PropTag, PropDimensions} {
		if v, ok := props[name]; ok {
			out[name] = v
		}
	}
	return out
}

// delegableProps extracts the subset a delegate target may receive: schema
// props explicitly marked AllowDelegate plus the fixed identity and
// dimension set.
func (d *Definition) delegableProps(props map[string]any) map[string]any {
	out := make(map[string]any)
	for name, def := range d.Props {
		if !def.AllowDelegate {
			continue
		}
		if v, ok := props[name]; ok {
			out[name] = v
		}
	}
	for _, name := range []string{PropEnv, PropUID, PropTag, PropDimensions} {
		if v, ok := props[name]; ok {
			out[name] = v
		}
	}
	return out
}
