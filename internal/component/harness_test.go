package component

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/frameport/frameport/internal/bootstrap"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/transport"
	"github.com/frameport/frameport/internal/window"
)

const (
	testHostDomain  = "https://host.example.com"
	testChildDomain = "https://child.example.com"
	testChildURL    = "https://child.example.com/checkout"
)

// fakeElement records the engine's DOM interactions.
type fakeElement struct {
	mu         sync.Mutex
	shown      bool
	hidden     bool
	destroyed  bool
	overflow   string
	overflows  []string
	resizes    [][2]int
	stillCalls int
}

func (f *fakeElement) Show(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown, f.hidden = true, false
	return nil
}

func (f *fakeElement) Hide(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = true
	return nil
}

func (f *fakeElement) Resize(_ context.Context, w, h int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]int{w, h})
	return nil
}

func (f *fakeElement) SetOverflow(_ context.Context, value string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.overflow
	f.overflow = value
	f.overflows = append(f.overflows, value)
	return prev, nil
}

func (f *fakeElement) AwaitStill(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stillCalls++
	return nil
}

func (f *fakeElement) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	return nil
}

func (f *fakeElement) snapshot() fakeElement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeElement{
		shown: f.shown, hidden: f.hidden, destroyed: f.destroyed,
		overflow: f.overflow, overflows: append([]string(nil), f.overflows...),
		resizes: append([][2]int(nil), f.resizes...), stillCalls: f.stillCalls,
	}
}

// fakeHandle is a controllable browsing context.
type fakeHandle struct {
	mu        sync.Mutex
	name      string
	url       string
	focused   int
	resizes   [][2]int
	closes    int
	closed    bool
	closedSeq []bool
	nameHook  func()
}

func (f *fakeHandle) SetName(_ context.Context, name string) error {
	f.mu.Lock()
	hook := f.nameHook
	f.name = name
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeHandle) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return nil
}

func (f *fakeHandle) Focus(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused++
	return nil
}

func (f *fakeHandle) Resize(_ context.Context, w, h int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]int{w, h})
	return nil
}

// Closed consumes the scripted sequence first, then falls back to the
// sticky closed flag.
func (f *fakeHandle) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closedSeq) > 0 {
		v := f.closedSeq[0]
		f.closedSeq = f.closedSeq[1:]
		return v
	}
	return f.closed
}

func (f *fakeHandle) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.closed = true
	return nil
}

func (f *fakeHandle) setClosed(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = v
}

func (f *fakeHandle) script(seq ...bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedSeq = append(f.closedSeq, seq...)
}

func (f *fakeHandle) stats() (name, url string, closes, focused int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name, f.url, f.closes, f.focused
}

// fakeOpener hands out proxies attached to a shared fake handle.
type fakeOpener struct {
	mu     sync.Mutex
	handle *fakeHandle
	frames int
	popups int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{handle: &fakeHandle{}}
}

func (f *fakeOpener) OpenFrame(_ context.Context, _ Element) (*window.Proxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	return window.Attached(window.KindIFrame, f.handle), nil
}

func (f *fakeOpener) OpenPopup(_ context.Context, _, _ int) (*window.Proxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.popups++
	return window.Attached(window.KindPopup, f.handle), nil
}

type recordedCall struct {
	target id.ContextID
	method string
	args   []any
}

// fakeMessenger implements transport.Messenger in memory.
type fakeMessenger struct {
	mu       sync.Mutex
	exports  map[string]transport.Exports
	released map[string]bool
	calls    []recordedCall

	callFn      func(target id.ContextID, method string, args []any) (any, error)
	needsBridge bool
	bridgeOpen  bool
	bridges     []string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		exports:  make(map[string]transport.Exports),
		released: make(map[string]bool),
	}
}

func (f *fakeMessenger) RegisterExports(uid string, exports transport.Exports) (transport.Descriptor, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports[uid] = exports

	desc := make(transport.Descriptor, len(exports))
	for name := range exports {
		desc[name] = uid + "#" + name
	}
	return desc, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.exports, uid)
		f.released[uid] = true
	}
}

func (f *fakeMessenger) Call(_ context.Context, target id.ContextID, method string, args ...any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{target: target, method: method, args: args})
	fn := f.callFn
	f.mu.Unlock()

	if fn != nil {
		return fn(target, method, args)
	}
	return nil, nil
}

func (f *fakeMessenger) NeedsBridge(string, *window.Proxy) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.needsBridge, f.bridgeOpen, nil
}

func (f *fakeMessenger) OpenBridge(_ context.Context, url, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bridges = append(f.bridges, url)
	return nil
}

func (f *fakeMessenger) exportsFor(uid string) (transport.Exports, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exports[uid]
	return e, ok
}

func (f *fakeMessenger) releasedFor(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[uid]
}

func (f *fakeMessenger) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

// fakePeers is a canned PeerDirectory.
type fakePeers struct {
	sameTop bool
	origin  string
}

func (f *fakePeers) SameTop(id.ContextID) (bool, error) { return f.sameTop, nil }
func (f *fakePeers) Origin(id.ContextID) (string, error) {
	return f.origin, nil
}

// testRig bundles an engine with its fakes and fast watchdog settings.
type testRig struct {
	engine *Engine
	msgr   *fakeMessenger
	opener *fakeOpener
	target *fakeElement
	peers  *fakePeers
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	msgr := newFakeMessenger()
	opener := newFakeOpener()
	target := &fakeElement{}
	peers := &fakePeers{sameTop: true, origin: testHostDomain}

	engine := NewEngine(EngineConfig{
		Messenger: msgr,
		Opener:    opener,
		Peers:     peers,
		WindowHandleFor: func(id.ContextID) window.Handle {
			return opener.handle
		},
		ResolveElement: func(_ context.Context, sel string) (Element, error) {
			if sel == "#missing" {
				return nil, fmt.Errorf("no element matches %q", sel)
			}
			return target, nil
		},
		Settings: Settings{
			RenderTimeout:      2 * time.Second,
			ClosePollInterval:  10 * time.Millisecond,
			CloseCheckDebounce: 25 * time.Millisecond,
			CloseCheckPhases:   2,
			HostDomain:         testHostDomain,
		},
		PropsStore:  bootstrap.NewPropsStore(),
		WindowStore: bootstrap.NewWindowStore(),
	})

	return &testRig{engine: engine, msgr: msgr, opener: opener, target: target, peers: peers}
}

// checkoutDef is a minimal cross-origin component definition.
func checkoutDef() *Definition {
	return &Definition{
		Tag:    "checkout",
		URL:    func(map[string]any) (string, error) { return testChildURL, nil },
		Domain: func(map[string]any) (string, error) { return testChildDomain, nil },
		Props: map[string]*PropDef{
			"amount": {Required: true, SendToChild: true, AllowDelegate: true},
			"locale": {
				Default:     func(map[string]any) any { return "en_US" },
				SendToChild: true,
			},
		},
	}
}

// register installs a definition in the rig's engine.
func (r *testRig) register(t *testing.T, def *Definition) {
	t.Helper()
	if err := r.engine.Definitions().Register(def); err != nil {
		t.Fatalf("register definition: %v", err)
	}
}

// answerInit waits for the instance's export table to be published and then
// plays the child's side of the init handshake.
func (r *testRig) answerInit(t *testing.T, uid string) {
	t.Helper()
	go func() {
		exports, ok := waitForExports(r.msgr, uid)
		if !ok {
			return
		}
		init := exports["init"]
		_, _ = init(context.Background(), []any{map[string]any{
			"context": "ctx_child",
			"methods": map[string]any{
				"updateProps": "child#updateProps",
				"close":       "child#close",
			},
		}})
	}()
}

func waitForExports(msgr *fakeMessenger, uid string) (transport.Exports, bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok := msgr.exportsFor(uid); ok {
			return e, true
		}
		time.Sleep(time.Millisecond)
	}
	return nil, false
}

// renderInstance builds and fully renders one instance, failing the test on
// any error.
func (r *testRig) renderInstance(t *testing.T, opts Options) *Instance {
	t.Helper()
	if opts.Container == "" {
		opts.Container = "#mount"
	}
	if opts.Props == nil {
		opts.Props = map[string]any{"amount": 1999}
	}

	inst, err := r.engine.Instance("checkout", opts)
	if err != nil {
		t.Fatalf("build instance: %v", err)
	}
	r.answerInit(t, inst.UID())
	if err := inst.Render(context.Background()); err != nil {
		t.Fatalf("render: %v", err)
	}
	return inst
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
