// README: Courier surface: available pool, claim race, delivery progress.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/http/middleware"
	"github.com/MetricCode/yetueats-orders/internal/maps"
	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/projection"
	"github.com/MetricCode/yetueats-orders/internal/modules/tracking"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

type Courier struct {
	orders  *order.Service
	store   order.Store
	eta     *maps.ETAService  // optional, decorates the available pool
	tracker *tracking.Tracker // optional, live position updates
}

func NewCourier(orders *order.Service, store order.Store, eta *maps.ETAService, tracker *tracking.Tracker) *Courier {
	return &Courier{orders: orders, store: store, eta: eta, tracker: tracker}
}

type availableOrder struct {
	*order.Order
	ETA *maps.Estimate `json:"eta,omitempty"`
}

// Available lists the unclaimed ready-for-pickup pool. With ?origin=<address>
// and a configured maps client each entry carries a pickup ETA; estimate
// failures degrade to entries without one.
func (h *Courier) Available(c *gin.Context) {
	list, err := h.orders.List(c.Request.Context(), order.Query{
		Statuses:       []order.Status{order.StatusReadyForPickup},
		UnassignedOnly: true,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	origin := c.Query("origin")
	out := make([]availableOrder, 0, len(list))
	for _, o := range list {
		entry := availableOrder{Order: o}
		if h.eta != nil && origin != "" {
			if est, err := h.eta.PickupEstimate(c.Request.Context(), origin, deliveryAddress(o)); err == nil {
				entry.ETA = &est
			}
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

type claimRequest struct {
	ExpectedVersion int64 `json:"expectedVersion"`
}

// Claim is the pickup race: the first courier whose conditional write lands
// owns the order, everyone else gets a 409.
func (h *Courier) Claim(c *gin.Context) {
	var req claimRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID:         types.ID(c.Param("id")),
		Target:          order.StatusPickedUp,
		Actor:           h.actor(c),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// UpdateStatus advances a claimed order (on_the_way, delivered).
func (h *Courier) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID:         types.ID(c.Param("id")),
		Target:          req.Status,
		Actor:           h.actor(c),
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// Mine lists the orders this courier has claimed.
func (h *Courier) Mine(c *gin.Context) {
	list, err := h.orders.List(c.Request.Context(), order.Query{
		CourierID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// StreamAvailable pushes the live unclaimed pool over SSE.
func (h *Courier) StreamAvailable(c *gin.Context) {
	streamView(c, func() (*projection.View, error) {
		return projection.ForCourierCandidates(c.Request.Context(), h.store)
	})
}

// StreamMine pushes the courier's claimed orders over SSE.
func (h *Courier) StreamMine(c *gin.Context) {
	courierID := types.ID(middleware.CallerUID(c))
	streamView(c, func() (*projection.View, error) {
		return projection.ForCourier(c.Request.Context(), h.store, courierID)
	})
}

// UpdateLocation records the courier's current position for customer-facing
// delivery maps. High-frequency writes go straight to RTDB; the order store
// is never touched.
func (h *Courier) UpdateLocation(c *gin.Context) {
	if h.tracker == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "courier tracking not available"})
		return
	}
	var pos tracking.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.tracker.Update(c.Request.Context(), types.ID(middleware.CallerUID(c)), pos); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Courier) actor(c *gin.Context) order.Actor {
	return order.Actor{
		Role:  order.RoleCourier,
		ID:    types.ID(middleware.CallerUID(c)),
		Name:  middleware.CallerName(c),
		Phone: middleware.CallerPhone(c),
	}
}

func deliveryAddress(o *order.Order) string {
	parts := []string{o.DeliveryAddress.Street, o.DeliveryAddress.City, o.DeliveryAddress.Country}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
