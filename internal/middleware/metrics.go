package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/service"
)

// Metrics records one HTTP observation per request. Routes are labelled by
// gin's route template so path parameters do not explode the cardinality;
// unmatched requests fall back to the raw path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
