package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/services"
)

// RateLimit allows max successful requests per window for each user. Counters
// live in storage, which may be nil for the in-memory default.
func RateLimit(name string, max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	message := fmt.Sprintf("You have been ratelimited (max: %d request%s per %s).", max, plural(max), describeWindow(window))

	return limiter.New(limiter.Config{
		Max:                max,
		Expiration:         window,
		LimiterMiddleware:  limiter.FixedWindow{},
		SkipFailedRequests: true,
		Storage:            storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if p, err := identity.Get(c); err == nil {
				return name + ":" + p.ID
			}
			return name + ":ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error:   true,
				Code:    services.CodeRateLimit,
				Message: message,
			})
		},
	})
}

func describeWindow(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		n := int(d / time.Minute)
		return fmt.Sprintf("%d minute%s", n, plural(n))
	}
	n := int(d / time.Second)
	return fmt.Sprintf("%d second%s", n, plural(n))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
