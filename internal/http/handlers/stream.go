// README: Server-sent-events bridge from projection views to HTTP clients.
package handlers

import (
	"io"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/modules/projection"
)

// streamView pushes every snapshot a view publishes to the client as an SSE
// "orders" event until the client disconnects or the view dies. The view's
// latest-value channel means a slow client skips intermediate snapshots and
// still converges on current state.
func streamView(c *gin.Context, open func() (*projection.View, error)) {
	view, err := open()
	if err != nil {
		abortError(c, err)
		return
	}
	defer view.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case list, ok := <-view.Updates():
			if !ok {
				return false
			}
			c.SSEvent("orders", list)
			return true
		case <-clientGone:
			return false
		}
	})

	if err := view.Err(); err != nil {
		log.Printf("http: order stream for %s ended: %v", c.Request.URL.Path, err)
	}
}
