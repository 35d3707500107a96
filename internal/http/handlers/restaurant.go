// README: Restaurant surface: incoming orders, status advancement, stats, auto-accept.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/http/middleware"
	"github.com/MetricCode/yetueats-orders/internal/modules/autoaccept"
	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/projection"
	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
	"github.com/MetricCode/yetueats-orders/internal/modules/stats"
	"github.com/MetricCode/yetueats-orders/internal/modules/tracking"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

// flagWriter is the optional profile mutation the auto-accept toggle uses.
// The static reader implements it; with Firestore profiles the flag is
// written by the restaurant app and only the watcher is toggled here.
type flagWriter interface {
	SetAutoAccept(restaurantID types.ID, enabled bool) error
}

type Restaurant struct {
	orders     *order.Service
	store      order.Store
	profiles   restaurant.Reader
	autoAccept *autoaccept.Actor // optional
	tracker    *tracking.Tracker // optional
}

func NewRestaurant(orders *order.Service, store order.Store, profiles restaurant.Reader, aa *autoaccept.Actor, tracker *tracking.Tracker) *Restaurant {
	return &Restaurant{orders: orders, store: store, profiles: profiles, autoAccept: aa, tracker: tracker}
}

func (h *Restaurant) ListOrders(c *gin.Context) {
	q := order.Query{RestaurantID: types.ID(middleware.CallerUID(c))}
	if s := c.Query("status"); s != "" {
		q.Statuses = []order.Status{order.Status(s)}
	}
	list, err := h.orders.List(c.Request.Context(), q)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

type statusRequest struct {
	Status          order.Status `json:"status" binding:"required"`
	Reason          string       `json:"reason"`
	ExpectedVersion int64        `json:"expectedVersion"`
}

// UpdateStatus advances one order along the restaurant-owned edges
// (confirmed, preparing, ready_for_pickup, cancelled).
func (h *Restaurant) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		Target:  req.Status,
		Actor: order.Actor{
			Role: order.RoleRestaurant,
			ID:   types.ID(middleware.CallerUID(c)),
			Name: middleware.CallerName(c),
		},
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// Stats aggregates the restaurant's order history into dashboard metrics.
func (h *Restaurant) Stats(c *gin.Context) {
	list, err := h.orders.List(c.Request.Context(), order.Query{
		RestaurantID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats.Aggregate(list, time.Now()))
}

// NearbyCouriers lists online couriers around the restaurant so staff can
// judge pickup coverage before marking orders ready.
func (h *Restaurant) NearbyCouriers(c *gin.Context) {
	if h.tracker == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "courier tracking not available"})
		return
	}
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return
	}
	radius := 5.0
	if r := c.Query("radiusKm"); r != "" {
		if v, err := strconv.ParseFloat(r, 64); err == nil && v > 0 {
			radius = v
		}
	}

	couriers, err := h.tracker.Nearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"couriers": couriers})
}

type autoAcceptRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAutoAccept flips the restaurant's auto-accept opt-in and starts or stops
// its watcher.
func (h *Restaurant) SetAutoAccept(c *gin.Context) {
	var req autoAcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if h.autoAccept == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "auto-accept not available"})
		return
	}

	restaurantID := types.ID(middleware.CallerUID(c))
	if fw, ok := h.profiles.(flagWriter); ok {
		if err := fw.SetAutoAccept(restaurantID, *req.Enabled); err != nil {
			abortError(c, err)
			return
		}
	}

	if *req.Enabled {
		if err := h.autoAccept.Enable(c.Request.Context(), restaurantID); err != nil {
			abortError(c, err)
			return
		}
	} else {
		h.autoAccept.Disable(restaurantID)
	}
	c.JSON(http.StatusOK, gin.H{"autoAcceptOrders": *req.Enabled})
}

// StreamOrders pushes the restaurant's live incoming-order list over SSE.
func (h *Restaurant) StreamOrders(c *gin.Context) {
	restaurantID := types.ID(middleware.CallerUID(c))
	streamView(c, func() (*projection.View, error) {
		return projection.ForRestaurant(c.Request.Context(), h.store, restaurantID)
	})
}
