package middleware

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tcn-network/banshare-api/internal/config"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/services"
)

// JWTProtected verifies the bearer token and stores the caller's principal.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, _ := c.Locals("user").(*jwt.Token)
			p, err := identity.FromToken(token)
			if err != nil {
				return unauthorized(c)
			}
			identity.Set(c, p)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c)
		},
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Code:    services.CodeUnauthorized,
		Message: "You must be signed in to access this route.",
	})
}
