// Package wsbus implements the messaging transport over WebSocket. Each
// remote browsing context keeps one connection to the host; calls in both
// directions ride typed JSON envelopes correlated by ID.
package wsbus

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/frameport/frameport/internal/async"
	"github.com/frameport/frameport/internal/infrastructure/logging"
	"github.com/frameport/frameport/internal/infrastructure/monitoring"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/transport"
	"github.com/frameport/frameport/internal/window"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin trust is decided by the bootstrap handshake
	},
}

const (
	typeHello  = "hello"
	typeCall   = "call"
	typeResult = "result"
	typeError  = "error"
)

// envelope is the wire format for every bus message.
type envelope struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Target string `json:"target,omitempty"` // export ref: "<uid>#<method>"
	Method string `json:"method,omitempty"` // peer-local method, e.g. window.setName
	Args   []any  `json:"args,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	// hello fields
	Context string `json:"context,omitempty"`
	Origin  string `json:"origin,omitempty"`
	Top     string `json:"top,omitempty"`
	Role    string `json:"role,omitempty"`
}

type peer struct {
	id      id.ContextID
	conn    *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter
	gone    *async.Deferred[struct{}]

	metaMu sync.Mutex
	origin string
	top    string
}

func (p *peer) setMeta(origin, top string) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	p.origin, p.top = origin, top
}

func (p *peer) meta() (origin, top string) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	return p.origin, p.top
}

func (p *peer) send(e envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(e)
}

// Options tunes the bus.
type Options struct {
	// MessagesPerSecond and Burst rate-limit each connection's inbound
	// traffic. Zero disables limiting.
	MessagesPerSecond int
	Burst             int
	// BridgePolicy decides whether a domain needs a trust bridge. Nil means
	// no bridge is ever required.
	BridgePolicy func(domain string) bool
}

// Bus is the WebSocket Messenger implementation.
type Bus struct {
	log     *logging.Logger
	metrics *monitoring.Metrics
	opts    Options

	mu      sync.RWMutex
	peers   map[id.ContextID]*peer
	exports map[string]transport.Exports
	pending map[string]*async.Deferred[any]
	bridges map[string]bool
	hostTop string
	hostCtx id.ContextID
}

// New creates a bus.
func New(log *logging.Logger, metrics *monitoring.Metrics, opts Options) *Bus {
	return &Bus{
		log:     log.Component("wsbus"),
		metrics: metrics,
		opts:    opts,
		peers:   make(map[id.ContextID]*peer),
		exports: make(map[string]transport.Exports),
		pending: make(map[string]*async.Deferred[any]),
		bridges: make(map[string]bool),
	}
}

// HandleConnection upgrades an HTTP request to a bus connection and runs its
// read loop until the peer disconnects.
func (b *Bus) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctxID := id.NewContextID()
	p := &peer{
		id:   ctxID,
		conn: conn,
		gone: async.NewDeferred[struct{}](),
	}
	if b.opts.MessagesPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(b.opts.MessagesPerSecond), b.opts.Burst)
	}

	b.mu.Lock()
	b.peers[ctxID] = p
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.ContextsConnected.Inc()
	}

	_ = p.send(envelope{Type: typeHello, Context: ctxID.String()})
	b.log.Info("context connected", zap.String("context", ctxID.String()))

	b.readLoop(c.Request.Context(), p)

	b.mu.Lock()
	delete(b.peers, ctxID)
	b.mu.Unlock()
	p.gone.Resolve(struct{}{})
	if b.metrics != nil {
		b.metrics.ContextsConnected.Dec()
	}
	b.log.Info("context disconnected", zap.String("context", ctxID.String()))
}

func (b *Bus) readLoop(ctx context.Context, p *peer) {
	for {
		var e envelope
		if err := p.conn.ReadJSON(&e); err != nil {
			return
		}
		if p.limiter != nil && !p.limiter.Allow() {
			_ = p.send(envelope{Type: typeError, ID: e.ID, Error: "rate limit exceeded"})
			continue
		}
		if b.metrics != nil {
			b.metrics.MessagesTotal.WithLabelValues("in", e.Type).Inc()
		}

		switch e.Type {
		case typeHello:
			// The peer identifies itself: its origin and an opaque key for
			// its top-level window. The host page additionally claims the
			// host role, anchoring same-top checks.
			p.setMeta(e.Origin, e.Top)
			if e.Role == "host" {
				b.mu.Lock()
				b.hostTop = e.Top
				b.hostCtx = p.id
				b.mu.Unlock()
			}
		case typeCall:
			go b.dispatch(ctx, p, e)
		case typeResult, typeError:
			b.settle(e)
		default:
			_ = p.send(envelope{Type: typeError, ID: e.ID, Error: "unknown message type"})
		}
	}
}

// dispatch runs one inbound export invocation and replies with its outcome.
func (b *Bus) dispatch(ctx context.Context, p *peer, e envelope) {
	handler, err := b.resolve(e.Target)
	if err != nil {
		_ = p.send(envelope{Type: typeError, ID: e.ID, Error: err.Error()})
		return
	}

	result, err := handler(ctx, e.Args)
	if err != nil {
		_ = p.send(envelope{Type: typeError, ID: e.ID, Error: err.Error()})
		return
	}
	_ = p.send(envelope{Type: typeResult, ID: e.ID, Result: result})
}

func (b *Bus) resolve(target string) (transport.Handler, error) {
	uid, method, ok := strings.Cut(target, "#")
	if !ok {
		return nil, fmt.Errorf("wsbus: malformed call target %q", target)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	exports, ok := b.exports[uid]
	if !ok {
		return nil, fmt.Errorf("wsbus: no exports registered under %q", uid)
	}
	handler, ok := exports[method]
	if !ok {
		return nil, fmt.Errorf("wsbus: export %q has no method %q", uid, method)
	}
	return handler, nil
}

func (b *Bus) settle(e envelope) {
	b.mu.Lock()
	d, ok := b.pending[e.ID]
	delete(b.pending, e.ID)
	b.mu.Unlock()
	if !ok {
		return
	}
	if e.Type == typeError {
		d.Reject(fmt.Errorf("wsbus: remote error: %s", e.Error))
		return
	}
	d.Resolve(e.Result)
}

// RegisterExports publishes an export table under uid.
func (b *Bus) RegisterExports(uid string, exports transport.Exports) (transport.Descriptor, func()) {
	b.mu.Lock()
	b.exports[uid] = exports
	b.mu.Unlock()

	desc := make(transport.Descriptor, len(exports))
	for method := range exports {
		desc[method] = uid + "#" + method
	}

	release := func() {
		b.mu.Lock()
		delete(b.exports, uid)
		b.mu.Unlock()
	}
	return desc, release
}

// Call invokes a method on a connected peer and waits for the reply.
func (b *Bus) Call(ctx context.Context, target id.ContextID, method string, args ...any) (any, error) {
	b.mu.RLock()
	p, ok := b.peers[target]
	b.mu.RUnlock()
	if !ok {
		return nil, transport.ErrPeerGone
	}

	callID := id.Default().GenerateString()
	d := async.NewDeferred[any]()
	b.mu.Lock()
	b.pending[callID] = d
	b.mu.Unlock()

	e := envelope{Type: typeCall, ID: callID, Args: args}
	if strings.Contains(method, "#") {
		e.Target = method
	} else {
		e.Method = method
		e.Target = method
	}
	if err := p.send(e); err != nil {
		b.mu.Lock()
		delete(b.pending, callID)
		b.mu.Unlock()
		return nil, fmt.Errorf("wsbus: send to %s: %w", target, err)
	}
	if b.metrics != nil {
		b.metrics.MessagesTotal.WithLabelValues("out", typeCall).Inc()
	}

	select {
	case <-d.Done():
		return d.Await(ctx)
	case <-p.gone.Done():
		return nil, transport.ErrPeerGone
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, callID)
		b.mu.Unlock()
		return nil, ctx.Err()
	}
}

// NeedsBridge reports whether a domain requires the intermediary trust
// bridge and whether one is already open.
func (b *Bus) NeedsBridge(domain string, _ *window.Proxy) (bool, bool, error) {
	if b.opts.BridgePolicy == nil || !b.opts.BridgePolicy(domain) {
		return false, false, nil
	}
	b.mu.RLock()
	open := b.bridges[domain]
	b.mu.RUnlock()
	return true, open, nil
}

// OpenBridge marks the bridge for a domain open. The bridge context itself
// connects like any other peer; the URL is what the host page loads.
func (b *Bus) OpenBridge(_ context.Context, url, domain string) error {
	if url == "" {
		return fmt.Errorf("wsbus: no bridge url for domain %s", domain)
	}
	b.mu.Lock()
	b.bridges[domain] = true
	b.mu.Unlock()
	b.log.Info("bridge opened", zap.String("domain", domain), zap.String("url", url))
	return nil
}

// Connected reports whether a context is currently connected.
func (b *Bus) Connected(target id.ContextID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.peers[target]
	return ok
}

// Host returns the context that claimed the host-page role, if any is
// connected.
func (b *Bus) Host() (id.ContextID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.hostCtx == "" {
		return "", false
	}
	_, connected := b.peers[b.hostCtx]
	return b.hostCtx, connected
}

// PeerCount reports the number of connected contexts.
func (b *Bus) PeerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// SameTop reports whether target shares the host page's top-level window,
// based on the top keys both sides announced in their hello.
func (b *Bus) SameTop(target id.ContextID) (bool, error) {
	b.mu.RLock()
	p, ok := b.peers[target]
	hostTop := b.hostTop
	b.mu.RUnlock()
	if !ok {
		return false, transport.ErrPeerGone
	}
	_, top := p.meta()
	return top != "" && top == hostTop, nil
}

// Origin returns the origin a connected context announced.
func (b *Bus) Origin(target id.ContextID) (string, error) {
	b.mu.RLock()
	p, ok := b.peers[target]
	b.mu.RUnlock()
	if !ok {
		return "", transport.ErrPeerGone
	}
	origin, _ := p.meta()
	return origin, nil
}
