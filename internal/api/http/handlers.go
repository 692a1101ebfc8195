// Package http exposes the embedding engine over REST: component discovery,
// instance lifecycle, and health. The actual cross-context traffic rides the
// WebSocket bus; these endpoints are the embedding application's control
// plane.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frameport/frameport/internal/component"
	"github.com/frameport/frameport/internal/infrastructure/logging"
	"github.com/frameport/frameport/internal/infrastructure/monitoring"
	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/transport"
	"github.com/frameport/frameport/internal/window"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	engine  *component.Engine
	peers   interface{ PeerCount() int }
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(engine *component.Engine, peers interface{ PeerCount() int }, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{engine: engine, peers: peers, metrics: metrics, log: log.Component("http")}
}

// Root reports basic service identity.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "frameport",
		"version": "0.3.0",
	})
}

// Health reports liveness and engine counters.
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":     "healthy",
		"components": h.engine.Definitions().Len(),
		"instances":  h.engine.Instances().Count(),
	}
	if h.peers != nil {
		body["contexts"] = h.peers.PeerCount()
	}
	if h.metrics != nil {
		body["uptime_seconds"] = int(h.metrics.Uptime().Seconds())
	}
	c.JSON(http.StatusOK, body)
}

// ListComponents lists registered component tags.
func (h *Handlers) ListComponents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"components": h.engine.Definitions().Tags()})
}

type renderRequest struct {
	Props     map[string]any `json:"props"`
	Container string         `json:"container"`
	Context   string         `json:"context"`
	Env       string         `json:"env"`
	TimeoutMS int            `json:"timeout_ms"`
	// Target renders into another connected window instead of the host page.
	Target string `json:"target"`
}

// RenderComponent builds an instance and starts its render. The render
// itself completes asynchronously once the child context connects; the
// response carries the instance ID to follow up with.
func (h *Handlers) RenderComponent(c *gin.Context) {
	tag := c.Param("tag")

	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := component.Options{
		Props:     req.Props,
		Container: req.Container,
		Context:   window.Kind(req.Context),
		Env:       req.Env,
	}
	if req.TimeoutMS > 0 {
		opts.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	inst, err := h.engine.Instance(tag, opts)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	go func() {
		// The render outlives this request; it completes when the child
		// context connects and initializes.
		ctx := context.Background()
		var rerr error
		if req.Target != "" {
			rerr = inst.RenderTo(ctx, id.ContextID(req.Target))
		} else {
			rerr = inst.Render(ctx)
		}
		if rerr != nil {
			h.log.Warn("render failed",
				zap.String("tag", tag),
				zap.String("instance", inst.ID().String()),
				zap.Error(rerr))
		}
	}()

	c.JSON(http.StatusAccepted, instanceBody(inst))
}

// ListInstances lists live instances.
func (h *Handlers) ListInstances(c *gin.Context) {
	instances := h.engine.Instances().List()
	out := make([]gin.H, 0, len(instances))
	for _, inst := range instances {
		out = append(out, instanceBody(inst))
	}
	c.JSON(http.StatusOK, gin.H{"instances": out})
}

// GetInstance reports one instance.
func (h *Handlers) GetInstance(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}
	body := instanceBody(inst)
	if err := inst.Err(); err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// UpdateProps applies a prop update and forwards it to the child.
func (h *Handlers) UpdateProps(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	var props map[string]any
	if err := c.ShouldBindJSON(&props); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := inst.SetProps(c.Request.Context(), props); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, instanceBody(inst))
}

type resizeRequest struct {
	Width             int   `json:"width"`
	Height            int   `json:"height"`
	WaitForTransition *bool `json:"wait_for_transition"`
}

// ResizeInstance changes an instance's rendered size.
func (h *Handlers) ResizeInstance(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := inst.Resize(c.Request.Context(), req.Width, req.Height, component.ResizeOptions{
		WaitForTransition: req.WaitForTransition,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, instanceBody(inst))
}

// ShowInstance makes an instance visible.
func (h *Handlers) ShowInstance(c *gin.Context) {
	h.visibility(c, (*component.Instance).Show)
}

// HideInstance hides an instance.
func (h *Handlers) HideInstance(c *gin.Context) {
	h.visibility(c, (*component.Instance).Hide)
}

// CloseInstance tears an instance down.
func (h *Handlers) CloseInstance(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}
	if err := inst.Close(c.Request.Context(), component.ReasonParentCall); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, instanceBody(inst))
}

func (h *Handlers) visibility(c *gin.Context, op func(*component.Instance, context.Context) error) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}
	if err := op(inst, c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, instanceBody(inst))
}

func (h *Handlers) instance(c *gin.Context) (*component.Instance, bool) {
	inst, ok := h.engine.Instances().Get(id.InstanceID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such instance"})
		return nil, false
	}
	return inst, true
}

func instanceBody(inst *component.Instance) gin.H {
	return gin.H{
		"id":    inst.ID().String(),
		"uid":   inst.UID(),
		"tag":   inst.Tag(),
		"state": string(inst.State()),
	}
}

// statusFor maps engine error kinds to HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, transport.ErrPeerGone) {
		return http.StatusBadGateway
	}
	switch component.KindOf(err) {
	case component.KindValidation:
		return http.StatusBadRequest
	case component.KindResolution:
		return http.StatusUnprocessableEntity
	case component.KindEnvironment:
		return http.StatusConflict
	case component.KindTimeout:
		return http.StatusGatewayTimeout
	case component.KindRemote, component.KindDelegation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
