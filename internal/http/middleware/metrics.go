package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	appmetrics "github.com/sifan077/CloudShare/internal/infra/prometheus"
)

// Metrics records request latency labelled by the matched route pattern,
// which keeps record ids out of the label set.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}

		appmetrics.HTTPRequestDuration.
			WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
