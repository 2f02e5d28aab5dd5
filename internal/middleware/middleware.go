package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_http_request_count",
			Help: "The total number of requests served by the HTTP server.",
		},
		[]string{"method", "path", "status"},
	)

	httpResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboarding_api_http_response_time",
			Help:    "The response time distribution of the HTTP server.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)
)

// HTTPMetricsMiddleware records request counts and latencies per route.
// The route pattern is used rather than the raw path so parameterized
// routes do not explode the label space.
func HTTPMetricsMiddleware(c *fiber.Ctx) error {
	startTime := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}

	path := c.Route().Path
	labels := prometheus.Labels{
		"method": c.Method(),
		"path":   path,
		"status": strconv.Itoa(status),
	}
	httpRequestCount.With(labels).Inc()
	httpResponseTime.With(labels).Observe(time.Since(startTime).Seconds())

	return err
}
