package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with status and latency.
// It runs after requestid so the id is already on the response.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Let the app error handler write the response first so the status is final.
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		}

		switch status := c.Response().StatusCode(); {
		case status >= fiber.StatusInternalServerError:
			log.Error("request failed", append(fields, zap.Error(err))...)
		case status >= fiber.StatusBadRequest:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request completed", fields...)
		}
		return nil
	}
}
