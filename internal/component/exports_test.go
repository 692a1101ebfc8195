package component

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportResizeCoercesWireNumbers(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())
	inst := rig.renderInstance(t, Options{})

	exports, ok := rig.msgr.exportsFor(inst.UID())
	require.True(t, ok)

	// JSON decoding hands numbers over as float64.
	_, err := exports["resize"](context.Background(), []any{float64(320), float64(480)})
	require.NoError(t, err)
	assert.Equal(t, Dimensions{Width: 320, Height: 480}, inst.dimensions())

	_, err = exports["resize"](context.Background(), []any{float64(320)})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestExportErrorRoutesThroughErrorPath(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	var seen atomic.Value
	inst := rig.renderInstance(t, Options{
		OnError: func(err error) error {
			seen.Store(err)
			return nil
		},
	})

	exports, ok := rig.msgr.exportsFor(inst.UID())
	require.True(t, ok)

	_, err := exports["error"](context.Background(), []any{"child exploded"})
	require.NoError(t, err, "a handled error is swallowed")

	require.NotNil(t, seen.Load())
	got := seen.Load().(error)
	assert.Equal(t, KindRemote, KindOf(got))
	assert.Contains(t, got.Error(), "child exploded")
	assert.Equal(t, StateDestroyed, inst.State())
}

func TestExportCloseCarriesChildReason(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	var reason atomic.Value
	inst := rig.renderInstance(t, Options{
		OnClose: func(r CloseReason) { reason.Store(r) },
	})

	exports, ok := rig.msgr.exportsFor(inst.UID())
	require.True(t, ok)

	_, err := exports["close"](context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonChildCall, reason.Load())
}

func TestExportTriggerEmitsEvents(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())
	inst := rig.renderInstance(t, Options{})

	var got atomic.Value
	cancel := inst.On(Event("payment"), func(args ...any) {
		got.Store(args)
	})
	defer cancel()

	exports, ok := rig.msgr.exportsFor(inst.UID())
	require.True(t, ok)

	_, err := exports["trigger"](context.Background(), []any{"payment", map[string]any{"status": "approved"}})
	require.NoError(t, err)

	require.NotNil(t, got.Load())
	args := got.Load().([]any)
	require.Len(t, args, 1)
	assert.Equal(t, map[string]any{"status": "approved"}, args[0])
}

func TestDecodeChildExportsValidation(t *testing.T) {
	_, err := decodeChildExports(nil)
	require.Error(t, err)

	_, err = decodeChildExports([]any{"not a map"})
	require.Error(t, err)

	_, err = decodeChildExports([]any{map[string]any{"methods": map[string]any{}}})
	require.Error(t, err, "context is mandatory")

	child, err := decodeChildExports([]any{map[string]any{
		"context": "ctx_ok",
		"methods": map[string]any{"close": "ref", "bogus": 42},
	}})
	require.NoError(t, err)
	assert.Equal(t, "ctx_ok", child.Context.String())
	assert.Equal(t, "ref", child.Methods["close"])
	_, hasBogus := child.Methods["bogus"]
	assert.False(t, hasBogus, "non-string refs are dropped")
}
