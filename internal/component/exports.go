package component

import (
	"context"

	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/transport"
)

// parentExports is the method table published to the child under the
// instance UID. Arguments arrive as decoded JSON, so numbers are float64
// and structured values are generic maps.
func (i *Instance) parentExports() transport.Exports {
	return transport.Exports{
		"init": func(_ context.Context, args []any) (any, error) {
			child, err := decodeChildExports(args)
			if err != nil {
				return nil, err
			}
			i.initReceived(child)
			return nil, nil
		},

		"close": func(ctx context.Context, _ []any) (any, error) {
			return nil, i.Close(ctx, ReasonChildCall)
		},

		"checkClose": func(ctx context.Context, _ []any) (any, error) {
			return nil, i.CheckClose(ctx)
		},

		"resize": func(ctx context.Context, args []any) (any, error) {
			width, ok := intArg(args, 0)
			if !ok {
				return nil, newError(KindValidation, "resize: missing width")
			}
			height, ok := intArg(args, 1)
			if !ok {
				return nil, newError(KindValidation, "resize: missing height")
			}
			return nil, i.Resize(ctx, width, height, ResizeOptions{})
		},

		"show": func(ctx context.Context, _ []any) (any, error) {
			return nil, i.Show(ctx)
		},

		"hide": func(ctx context.Context, _ []any) (any, error) {
			return nil, i.Hide(ctx)
		},

		"error": func(ctx context.Context, args []any) (any, error) {
			msg, _ := stringArg(args, 0)
			if msg == "" {
				msg = "unspecified remote error"
			}
			return nil, i.Error(ctx, newError(KindRemote, "child error: %s", msg))
		},

		"trigger": func(_ context.Context, args []any) (any, error) {
			name, ok := stringArg(args, 0)
			if !ok {
				return nil, newError(KindValidation, "trigger: missing event name")
			}
			i.events.emit(Event(name), args[1:]...)
			return nil, nil
		},
	}
}

// decodeChildExports reads the init handshake argument: the child's
// transport context and export descriptor.
func decodeChildExports(args []any) (transport.ChildExports, error) {
	var child transport.ChildExports
	if len(args) == 0 {
		return child, newError(KindValidation, "init: missing child export table")
	}
	raw, ok := args[0].(map[string]any)
	if !ok {
		return child, newError(KindValidation, "init: malformed child export table")
	}

	ctxID, _ := raw["context"].(string)
	if ctxID == "" {
		return child, newError(KindValidation, "init: child export table has no context")
	}
	child.Context = id.ContextID(ctxID)

	child.Methods = make(transport.Descriptor)
	if methods, ok := raw["methods"].(map[string]any); ok {
		for name, ref := range methods {
			if s, ok := ref.(string); ok {
				child.Methods[name] = s
			}
		}
	}
	return child, nil
}

func intArg(args []any, idx int) (int, bool) {
	if idx >= len(args) {
		return 0, false
	}
	switch v := args[idx].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func stringArg(args []any, idx int) (string, bool) {
	if idx >= len(args) {
		return "", false
	}
	s, ok := args[idx].(string)
	return s, ok
}
