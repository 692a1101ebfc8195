package component

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frameport/frameport/internal/bootstrap"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHappyPath(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	var order []string
	inst := rig.renderInstance(t, Options{
		OnRender:   func() { order = append(order, "render") },
		OnRendered: func() { order = append(order, "rendered") },
		OnDisplay:  func() { order = append(order, "display") },
	})

	assert.Equal(t, StateVisible, inst.State())
	assert.Equal(t, []string{"render", "display", "rendered"}, order)

	name, url, _, _ := rig.opener.handle.stats()
	assert.Equal(t, testChildURL, url)

	payload, err := bootstrap.DecodeName(name)
	require.NoError(t, err)
	assert.Equal(t, "checkout", payload.Tag)
	assert.Equal(t, inst.UID(), payload.UID)
	assert.Equal(t, testChildDomain, payload.Domain)
	assert.Equal(t, window.KindIFrame, payload.Context)
	assert.Equal(t, bootstrap.RefTop, payload.Parent.Ref)
	assert.Contains(t, payload.Exports, "init")
	assert.Contains(t, payload.Exports, "close")

	// Cross-origin child: props travel by store reference.
	require.Equal(t, bootstrap.PropsUID, payload.Props.Type)
	stored, ok := rig.engine.props.Get(id.BootstrapID(payload.Props.UID))
	require.True(t, ok)
	assert.Equal(t, 1999, stored["amount"])
	assert.Equal(t, "en_US", stored["locale"])

	assert.True(t, rig.target.snapshot().shown)
}

func TestRenderInlinesPropsForSameOriginChild(t *testing.T) {
	rig := newTestRig(t)
	def := checkoutDef()
	def.Domain = func(map[string]any) (string, error) { return testHostDomain, nil }
	rig.register(t, def)

	inst := rig.renderInstance(t, Options{})

	name, _, _, _ := rig.opener.handle.stats()
	payload, err := bootstrap.DecodeName(name)
	require.NoError(t, err)

	assert.Equal(t, bootstrap.PropsRaw, payload.Props.Type)
	assert.Equal(t, inst.UID(), payload.UID)
	assert.Equal(t, 0, rig.engine.props.Len(), "same-origin render must not touch the store")
}

func TestRenderFailsFastOnMissingTarget(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	inst, err := rig.engine.Instance("checkout", Options{
		Container: "#missing",
		Props:     map[string]any{"amount": 1},
	})
	require.NoError(t, err)

	err = inst.Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindEnvironment, KindOf(err))

	rig.opener.mu.Lock()
	frames := rig.opener.frames
	rig.opener.mu.Unlock()
	assert.Zero(t, frames, "downstream nodes must not run once a dependency failed")
	assert.Equal(t, StateDestroyed, inst.State())
}

func TestRenderRejectsMissingRequiredProp(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	_, err := rig.engine.Instance("checkout", Options{Props: map[string]any{}})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRenderTimeoutFires(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	var handled atomic.Value
	inst, err := rig.engine.Instance("checkout", Options{
		Container: "#mount",
		Props:     map[string]any{"amount": 1},
		Timeout:   40 * time.Millisecond,
		OnError: func(err error) error {
			handled.Store(err)
			return err
		},
	})
	require.NoError(t, err)

	// Never answer init.
	err = inst.Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	require.NotNil(t, handled.Load())
	assert.Equal(t, KindTimeout, KindOf(handled.Load().(error)))

	waitFor(t, "teardown after timeout", func() bool {
		return inst.State() == StateDestroyed
	})
	assert.Equal(t, 0, rig.engine.props.Len())
	assert.True(t, rig.msgr.releasedFor(inst.UID()))
}

func TestRenderTimeoutDisarmedByInit(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	var failed atomic.Bool
	inst, err := rig.engine.Instance("checkout", Options{
		Container: "#mount",
		Props:     map[string]any{"amount": 1},
		Timeout:   50 * time.Millisecond,
		OnError: func(err error) error {
			failed.Store(true)
			return err
		},
	})
	require.NoError(t, err)

	rig.answerInit(t, inst.UID())
	require.NoError(t, inst.Render(context.Background()))

	// Outlive the timeout; the armed timer must have been disarmed.
	time.Sleep(80 * time.Millisecond)
	assert.False(t, failed.Load(), "timeout must not fire after init arrived")
	assert.Equal(t, StateVisible, inst.State())
}

func TestRenderOpensBridgeWhenNeeded(t *testing.T) {
	rig := newTestRig(t)
	rig.msgr.needsBridge = true

	def := checkoutDef()
	def.BridgeURL = func(map[string]any) (string, error) {
		return "https://child.example.com/bridge", nil
	}
	def.BridgeDomain = func(map[string]any) (string, error) {
		return testChildDomain, nil
	}
	rig.register(t, def)

	rig.renderInstance(t, Options{})

	rig.msgr.mu.Lock()
	bridges := append([]string(nil), rig.msgr.bridges...)
	rig.msgr.mu.Unlock()
	assert.Equal(t, []string{"https://child.example.com/bridge"}, bridges)
}

func TestRenderFailsWhenBridgeUnresolvable(t *testing.T) {
	rig := newTestRig(t)
	rig.msgr.needsBridge = true
	rig.register(t, checkoutDef())

	inst, err := rig.engine.Instance("checkout", Options{
		Container: "#mount",
		Props:     map[string]any{"amount": 1},
	})
	require.NoError(t, err)
	rig.answerInit(t, inst.UID())

	err = inst.Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindResolution, KindOf(err))
}

func TestRenderSkipsBridgeAlreadyOpen(t *testing.T) {
	rig := newTestRig(t)
	rig.msgr.needsBridge = true
	rig.msgr.bridgeOpen = true
	rig.register(t, checkoutDef())

	rig.renderInstance(t, Options{})

	rig.msgr.mu.Lock()
	defer rig.msgr.mu.Unlock()
	assert.Empty(t, rig.msgr.bridges)
}

func TestRenderAwaitsEntryHook(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	var order []string
	rig.renderInstance(t, Options{
		OnEnter: func(context.Context) error {
			order = append(order, "enter")
			return nil
		},
		OnRendered: func() { order = append(order, "rendered") },
	})

	assert.Equal(t, []string{"enter", "rendered"}, order)
}

func TestRenderSwapsPrerenderAfterInit(t *testing.T) {
	rig := newTestRig(t)
	placeholder := &fakeElement{}

	def := checkoutDef()
	def.Prerender = func(context.Context, *window.Proxy) (Element, error) {
		return placeholder, nil
	}
	rig.register(t, def)

	rig.renderInstance(t, Options{})

	assert.True(t, placeholder.snapshot().destroyed, "placeholder must be removed once the child is live")
}

func TestCloseWatchStartsAfterWindowName(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())

	// The closed signal is unreliable while the window is still being set
	// up; the watcher must not start until naming has finished.
	handle := rig.opener.handle
	handle.setClosed(true)
	handle.mu.Lock()
	handle.nameHook = func() {
		time.Sleep(5 * rig.engine.settings.ClosePollInterval)
		handle.setClosed(false)
	}
	handle.mu.Unlock()

	var closes atomic.Int32
	inst := rig.renderInstance(t, Options{
		OnClose: func(CloseReason) { closes.Add(1) },
	})

	assert.Equal(t, StateVisible, inst.State())
	assert.Equal(t, int32(0), closes.Load(), "teardown must not race the naming step")
}

func TestRenderStartsOnlyOnce(t *testing.T) {
	rig := newTestRig(t)
	rig.register(t, checkoutDef())
	inst := rig.renderInstance(t, Options{})

	err := inst.Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestPopupRenderNeedsNoContainer(t *testing.T) {
	rig := newTestRig(t)
	def := checkoutDef()
	def.DefaultContext = window.KindPopup
	def.Dimensions = Dimensions{Width: 450, Height: 700}
	rig.register(t, def)

	inst, err := rig.engine.Instance("checkout", Options{
		Props: map[string]any{"amount": 1},
	})
	require.NoError(t, err)
	rig.answerInit(t, inst.UID())
	require.NoError(t, inst.Render(context.Background()))

	rig.opener.mu.Lock()
	popups := rig.opener.popups
	rig.opener.mu.Unlock()
	assert.Equal(t, 1, popups)

	name, _, _, focused := rig.opener.handle.stats()
	payload, err := bootstrap.DecodeName(name)
	require.NoError(t, err)
	assert.Equal(t, bootstrap.RefOpener, payload.Parent.Ref, "popups reach their parent through the opener")
	assert.Equal(t, window.KindPopup, payload.Context)
	assert.Equal(t, 1, focused, "showing a popup focuses it")
}
