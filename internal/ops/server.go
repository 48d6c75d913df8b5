package ops

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the operational HTTP surface shared by the bot and the
// worker: a health probe plus the Prometheus scrape endpoint.
func NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Run serves the ops router on the configured port. Blocks until the server
// stops; callers run it on its own goroutine.
func Run(port int) error {
	return NewRouter().Run(fmt.Sprintf(":%d", port))
}
