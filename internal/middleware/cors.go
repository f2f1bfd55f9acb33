package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/tcn-network/banshare-api/internal/config"
)

// Headers set by the limiter; the dashboard reads them to show cooldowns.
var rateLimitHeaders = []string{
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	fiber.HeaderRetryAfter,
}

func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: strings.Join([]string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAuthorization,
			fiber.HeaderAccept,
			"X-Audit-Log-Reason",
		}, ", "),
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, OPTIONS",
		ExposeHeaders: strings.Join(rateLimitHeaders, ", "),
		MaxAge:        600,
	})
}
