// README: HTTP server assembly: routes per role surface.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/http/handlers"
	"github.com/MetricCode/yetueats-orders/internal/http/middleware"
	"github.com/MetricCode/yetueats-orders/internal/infra"
	"github.com/MetricCode/yetueats-orders/internal/maps"
	"github.com/MetricCode/yetueats-orders/internal/modules/autoaccept"
	"github.com/MetricCode/yetueats-orders/internal/modules/history"
	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
	"github.com/MetricCode/yetueats-orders/internal/modules/tracking"
)

// Deps wires the handlers. Verifier, AutoAccept, Journal, ETA and Tracker
// are all optional; absent collaborators disable their endpoints or fall
// back to dev-mode behavior.
type Deps struct {
	Orders     *order.Service
	Store      order.Store
	Profiles   restaurant.Reader
	AutoAccept *autoaccept.Actor
	Journal    *history.Journal
	ETA        *maps.ETAService
	Tracker    *tracking.Tracker
	Verifier   infra.TokenVerifier
}

// Router builds the gin engine with all role surfaces mounted.
func Router(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.Auth(d.Verifier)

	customer := handlers.NewCustomer(d.Orders, d.Store, d.Journal, d.Tracker)
	cg := r.Group("/api/customer", auth)
	{
		cg.POST("/orders", customer.CreateOrder)
		cg.GET("/orders", customer.ListOrders)
		cg.GET("/orders/stream", customer.StreamOrders)
		cg.GET("/orders/:id", customer.GetOrder)
		cg.GET("/orders/:id/events", customer.Timeline)
		cg.GET("/orders/:id/courier", customer.CourierLocation)
		cg.POST("/orders/:id/cancel", customer.CancelOrder)
		cg.POST("/orders/:id/rating", customer.RateOrder)
	}

	rest := handlers.NewRestaurant(d.Orders, d.Store, d.Profiles, d.AutoAccept, d.Tracker)
	rg := r.Group("/api/restaurant", auth)
	{
		rg.GET("/orders", rest.ListOrders)
		rg.GET("/orders/stream", rest.StreamOrders)
		rg.POST("/orders/:id/status", rest.UpdateStatus)
		rg.GET("/stats", rest.Stats)
		rg.GET("/couriers/nearby", rest.NearbyCouriers)
		rg.PUT("/auto-accept", rest.SetAutoAccept)
	}

	courier := handlers.NewCourier(d.Orders, d.Store, d.ETA, d.Tracker)
	kg := r.Group("/api/courier", auth)
	{
		kg.GET("/orders/available", courier.Available)
		kg.GET("/orders/available/stream", courier.StreamAvailable)
		kg.GET("/orders/mine", courier.Mine)
		kg.GET("/orders/mine/stream", courier.StreamMine)
		kg.POST("/orders/:id/claim", courier.Claim)
		kg.POST("/orders/:id/status", courier.UpdateStatus)
		kg.PUT("/location", courier.UpdateLocation)
	}

	payment := handlers.NewPayment(d.Orders)
	r.PUT("/internal/orders/:id/payment", payment.Update)

	return r
}

// Server wraps http.Server with sane timeouts. Write timeout is left at zero
// so SSE streams are not cut off.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
