package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/theplug/backend/internal/metrics"
	"go.uber.org/zap"
)

// LoggerMiddleware logs every request and records it in the HTTP metrics,
// labelled by route pattern rather than raw path.
func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Let fiber's error handler pick the status before we read it.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		status := c.Response().StatusCode()
		latency := time.Since(start)
		// Label values outlive the request, fasthttp reuses the bytes behind c.Method and c.Path.
		metrics.RecordHTTPRequest(utils.CopyString(c.Method()), routePattern(c), status, latency)

		reqID, _ := c.Locals(CtxRequestID).(string)
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.IP()),
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("request", fields...)
		} else {
			log.Info("request", fields...)
		}

		return err
	}
}

// routePattern prefers the registered route path. Without a matched route
// fiber reports the raw request path, which must be copied.
func routePattern(c *fiber.Ctx) string {
	path := c.Path()
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		path = r.Path
	}
	return utils.CopyString(path)
}
