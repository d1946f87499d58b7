package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"

	"github.com/ashmitsharp/receivables-api/internal/utils"
)

// RateLimit rejects requests beyond rps (with the given burst) with 429.
// The limiter is shared by every route it is mounted on.
func RateLimit(rps float64, burst int, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c fiber.Ctx) error {
		if !limiter.Allow() {
			logger.Warn("Rate limit exceeded",
				"method", c.Method(),
				"path", c.Path(),
				"ip", c.IP(),
			)
			return utils.NewTooManyRequestsError()
		}
		return c.Next()
	}
}
