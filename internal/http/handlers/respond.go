// README: Shared response helpers: error taxonomy to HTTP status mapping.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/pricing"
	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
)

// abortError translates a domain error into the HTTP surface. Conflicts are
// 409 so clients know to re-read and retry with fresh state.
func abortError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, restaurant.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, order.ErrConflict), errors.Is(err, order.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, order.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrBelowMinimum),
		errors.Is(err, order.ErrRestaurantInactive),
		errors.Is(err, pricing.ErrEmptyOrder),
		errors.Is(err, pricing.ErrInvalidLineItem):
		status = http.StatusBadRequest
	case errors.Is(err, order.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
