// README: Customer surface: place, track, cancel and rate orders.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/http/middleware"
	"github.com/MetricCode/yetueats-orders/internal/modules/history"
	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/projection"
	"github.com/MetricCode/yetueats-orders/internal/modules/tracking"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

type Customer struct {
	orders  *order.Service
	store   order.Store
	journal *history.Journal  // optional, nil disables the timeline endpoint
	tracker *tracking.Tracker // optional, nil disables courier tracking
}

func NewCustomer(orders *order.Service, store order.Store, journal *history.Journal, tracker *tracking.Tracker) *Customer {
	return &Customer{orders: orders, store: store, journal: journal, tracker: tracker}
}

type createOrderRequest struct {
	RestaurantID         types.ID         `json:"restaurantId" binding:"required"`
	Items                []order.LineItem `json:"items" binding:"required"`
	DeliveryAddress      order.Address    `json:"deliveryAddress"`
	DeliveryInstructions string           `json:"deliveryInstructions"`
	CustomerEmail        string           `json:"customerEmail"`
}

func (h *Customer) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:           types.ID(middleware.CallerUID(c)),
		CustomerName:         middleware.CallerName(c),
		CustomerEmail:        req.CustomerEmail,
		RestaurantID:         req.RestaurantID,
		Items:                req.Items,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryInstructions: req.DeliveryInstructions,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o, "orderNumber": o.Number()})
}

func (h *Customer) ListOrders(c *gin.Context) {
	list, err := h.orders.List(c.Request.Context(), order.Query{
		CustomerID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Customer) GetOrder(c *gin.Context) {
	o, ok := h.ownOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

type cancelRequest struct {
	Reason          string `json:"reason"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

func (h *Customer) CancelOrder(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		Target:  order.StatusCancelled,
		Actor: order.Actor{
			Role: order.RoleCustomer,
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

type rateRequest struct {
	Rating float64 `json:"rating" binding:"required"`
}

func (h *Customer) RateOrder(c *gin.Context) {
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orders.Rate(c.Request.Context(),
		types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)), req.Rating)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// Timeline returns the order's audit trail from the journal.
func (h *Customer) Timeline(c *gin.Context) {
	if h.journal == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "timeline not available"})
		return
	}
	o, ok := h.ownOrder(c)
	if !ok {
		return
	}
	events, err := h.journal.ListByOrder(c.Request.Context(), o.ID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// CourierLocation returns the live position of the courier carrying the
// order, for the delivery map screen.
func (h *Customer) CourierLocation(c *gin.Context) {
	if h.tracker == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "courier tracking not available"})
		return
	}
	o, ok := h.ownOrder(c)
	if !ok {
		return
	}
	if o.CourierID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no courier assigned yet"})
		return
	}

	loc, err := h.tracker.Get(c.Request.Context(), o.CourierID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "courier location unknown"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc})
}

// StreamOrders pushes the customer's live order list over SSE.
func (h *Customer) StreamOrders(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	streamView(c, func() (*projection.View, error) {
		return projection.ForCustomer(c.Request.Context(), h.store, uid)
	})
}

// ownOrder loads the path order and enforces that the caller placed it.
func (h *Customer) ownOrder(c *gin.Context) (*order.Order, bool) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		abortError(c, err)
		return nil, false
	}
	if o.CustomerID != types.ID(middleware.CallerUID(c)) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not your order"})
		return nil, false
	}
	return o, true
}
