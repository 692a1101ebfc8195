package component

import (
	"context"

	"github.com/frameport/frameport/internal/shared/id"
	"go.uber.org/zap"
)

// delegateMethod is the well-known export a window must offer to accept a
// delegated render on behalf of another window.
const delegateMethod = "frameport.delegate"

// delegation records an accepted delegated render: the target context and
// the method references it handed back for the overridable operations.
type delegation struct {
	target    id.ContextID
	overrides map[string]string
}

// RenderTo renders this instance into another window instead of the current
// page. The target must share our top-level window and must itself have a
// matching component loaded; the actual DOM work runs over there, driven by
// the override references it returns.
func (i *Instance) RenderTo(ctx context.Context, target id.ContextID) error {
	if err := i.delegateTo(ctx, target); err != nil {
		return i.Error(ctx, err)
	}
	return i.Render(ctx)
}

func (i *Instance) delegateTo(ctx context.Context, target id.ContextID) error {
	peers := i.engine.peers
	if peers == nil {
		return newError(KindDelegation,
			"component %q: engine has no peer directory, cannot render to another window", i.def.Tag)
	}

	sameTop, err := peers.SameTop(target)
	if err != nil {
		return wrapError(KindDelegation, err)
	}
	if !sameTop {
		return newError(KindValidation,
			"component %q: render target %s does not share this page's top-level window", i.def.Tag, target)
	}

	origin, err := peers.Origin(target)
	if err != nil {
		return wrapError(KindDelegation, err)
	}
	// A cross-origin target may only host components it is itself trusted
	// for: its origin must be the component's resolved domain.
	if host := i.engine.settings.HostDomain; origin != "" && origin != host {
		domain, derr := i.def.resolveDomain(i.Props())
		if derr != nil {
			return wrapError(KindResolution, derr)
		}
		if origin != domain {
			return newError(KindValidation,
				"component %q: render target %s lives on %s but the component resolves to %s",
				i.def.Tag, target, origin, domain)
		}
	}

	result, err := i.engine.messenger.Call(ctx, target, delegateMethod, map[string]any{
		"tag":       i.def.Tag,
		"uid":       i.uid,
		"context":   string(i.driver.Kind()),
		"overrides": i.driver.DelegateOverrides(),
		"props":     i.def.delegableProps(i.Props()),
	})
	if err != nil {
		if m := i.engine.metrics; m != nil {
			m.Delegations.WithLabelValues("failed").Inc()
		}
		return newError(KindDelegation,
			"component %q could not delegate its render to %s (origin %s): %v. "+
				"The target window must have loaded a matching component definition",
			i.def.Tag, target, origin, err)
	}

	overrides := make(map[string]string)
	if refs, ok := result.(map[string]any); ok {
		allowed := make(map[string]bool, len(i.driver.DelegateOverrides()))
		for _, name := range i.driver.DelegateOverrides() {
			allowed[name] = true
		}
		for name, ref := range refs {
			s, ok := ref.(string)
			if !ok || !allowed[name] {
				continue
			}
			overrides[name] = s
		}
	}

	i.mu.Lock()
	i.delegate = &delegation{target: target, overrides: overrides}
	i.mu.Unlock()

	if m := i.engine.metrics; m != nil {
		m.Delegations.WithLabelValues("ok").Inc()
	}
	i.log.Info("render delegated",
		zap.String("target", target.String()),
		zap.String("origin", origin))
	return nil
}
