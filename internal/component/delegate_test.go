package component

import (
	"context"
	"errors"
	"testing"

	"github.com/frameport/frameport/internal/bootstrap"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderToRejectsForeignTopWindow(t *testing.T) {
	rig := newTestRig(t)
	rig.peers.sameTop = false
	rig.register(t, checkoutDef())

	inst, err := rig.engine.Instance("checkout", Options{
		Props: map[string]any{"amount": 1},
	})
	require.NoError(t, err)

	err = inst.RenderTo(context.Background(), id.ContextID("ctx_peer"))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	for _, c := range rig.msgr.recorded() {
		assert.NotEqual(t, delegateMethod, c.method,
			"the guard must reject before anything crosses the transport")
	}
	assert.Equal(t, StateDestroyed, inst.State())
}

func TestRenderToRejectsMismatchedOrigin(t *testing.T) {
	rig := newTestRig(t)
	rig.peers.origin = "https://elsewhere.example.com"
	rig.register(t, checkoutDef())

	inst, err := rig.engine.Instance("checkout", Options{
		Props: map[string]any{"amount": 1},
	})
	require.NoError(t, err)

	err = inst.RenderTo(context.Background(), id.ContextID("ctx_peer"))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "https://elsewhere.example.com")
	assert.Contains(t, err.Error(), testChildDomain)

	for _, c := range rig.msgr.recorded() {
		assert.NotEqual(t, delegateMethod, c.method,
			"the guard must reject before anything crosses the transport")
	}
}

func TestRenderToFailureNamesMissingDefinition(t *testing.T) {
	rig := newTestRig(t)
	rig.peers.origin = testChildDomain
	rig.msgr.callFn = func(_ id.ContextID, method string, _ []any) (any, error) {
		if method == delegateMethod {
			return nil, errors.New("no such method")
		}
		return nil, nil
	}
	rig.register(t, checkoutDef())

	inst, err := rig.engine.Instance("checkout", Options{
		Props: map[string]any{"amount": 1},
	})
	require.NoError(t, err)

	err = inst.RenderTo(context.Background(), id.ContextID("ctx_peer"))
	require.Error(t, err)
	assert.Equal(t, KindDelegation, KindOf(err))
	assert.Contains(t, err.Error(), "matching component definition")
	assert.Contains(t, err.Error(), testChildDomain)
}

func TestRenderToDelegatesThroughOverrides(t *testing.T) {
	rig := newTestRig(t)
	rig.msgr.callFn = func(_ id.ContextID, method string, _ []any) (any, error) {
		switch method {
		case delegateMethod:
			return map[string]any{
				"open":   "peer#open",
				"show":   "peer#show",
				"resize": "peer#resize",
				"spy":    "peer#spy",
			}, nil
		case "peer#open":
			return "ctx_adopted", nil
		default:
			return nil, nil
		}
	}
	rig.register(t, checkoutDef())

	inst, err := rig.engine.Instance("checkout", Options{
		Props: map[string]any{"amount": 1},
	})
	require.NoError(t, err)
	rig.answerInit(t, inst.UID())

	require.NoError(t, inst.RenderTo(context.Background(), id.ContextID("ctx_peer")))
	assert.Equal(t, StateVisible, inst.State())

	methods := make(map[string]int)
	for _, c := range rig.msgr.recorded() {
		methods[c.method]++
	}
	assert.Equal(t, 1, methods["peer#open"], "the peer opens the window")
	assert.Equal(t, 1, methods["peer#show"], "show runs through the override")

	require.NoError(t, inst.Resize(context.Background(), 500, 300, ResizeOptions{}))
	assert.Equal(t, 1, countCalls(rig, "peer#resize"), "resize runs through the override")

	// The peer-side parent is reached through the global window store.
	name, _, _, _ := rig.opener.handle.stats()
	payload, err := bootstrap.DecodeName(name)
	require.NoError(t, err)
	assert.Equal(t, bootstrap.RefGlobal, payload.Parent.Ref)
	assert.Equal(t, inst.UID(), payload.Parent.UID)

	// A method the driver never offered must not be adopted.
	_, _, spied := inst.overrideRef("spy")
	assert.False(t, spied)

	require.NoError(t, inst.Close(context.Background(), ReasonParentCall))
	assert.Equal(t, 0, rig.engine.windows.Len(), "window store entry released on teardown")
}

func countCalls(rig *testRig, method string) int {
	n := 0
	for _, c := range rig.msgr.recorded() {
		if c.method == method {
			n++
		}
	}
	return n
}
