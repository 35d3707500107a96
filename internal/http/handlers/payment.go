// README: Internal payment callback: flips the payment axis only.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

type Payment struct {
	orders *order.Service
}

func NewPayment(orders *order.Service) *Payment {
	return &Payment{orders: orders}
}

type paymentRequest struct {
	PaymentStatus order.PaymentStatus `json:"paymentStatus" binding:"required"`
}

// Update is called by the payment collaborator when a charge settles. It
// never touches the lifecycle status.
func (h *Payment) Update(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orders.SetPaymentStatus(c.Request.Context(), types.ID(c.Param("id")), req.PaymentStatus)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}
