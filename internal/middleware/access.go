package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/services"
)

// RequireScope rejects tokens that were not granted scope or a parent of it.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := identity.Get(c)
		if err != nil {
			return unauthorized(c)
		}
		if p.HasScope(scope) {
			return c.Next()
		}

		message := "API key is missing the " + scope + " scope."
		if p.Internal {
			message = "This request is missing the required scope. This error should never occur; please contact a developer."
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error:   true,
			Code:    services.CodeMissingScope,
			Message: message,
		})
	}
}

// RequireObserver allows only global observers.
func RequireObserver(perms *services.PermissionService) fiber.Handler {
	return requirePrincipal(perms.RequireObserver)
}

// RequireCouncil allows only owners and advisors of member guilds.
func RequireCouncil(perms *services.PermissionService) fiber.Handler {
	return requirePrincipal(perms.RequireCouncil)
}

// RequireGuildExecutor allows callers who may enforce banshares in the :guild
// of the route.
func RequireGuildExecutor(perms *services.PermissionService) fiber.Handler {
	return requireGuild(perms.CanExecute)
}

// RequireGuildOwner allows observers and the owner of the route's :guild.
func RequireGuildOwner(perms *services.PermissionService) fiber.Handler {
	return requireGuild(perms.CanManageSettings)
}

func requireGuild(check func(ctx context.Context, p *identity.Principal, guild string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := identity.Get(c)
		if err != nil {
			return unauthorized(c)
		}
		if err := check(c.UserContext(), p, c.Params("guild")); err != nil {
			return deny(c, err)
		}
		return c.Next()
	}
}

func requirePrincipal(check func(ctx context.Context, p *identity.Principal) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := identity.Get(c)
		if err != nil {
			return unauthorized(c)
		}
		if err := check(c.UserContext(), p); err != nil {
			return deny(c, err)
		}
		return c.Next()
	}
}

func deny(c *fiber.Ctx, err error) error {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		switch {
		case errors.Is(apiErr, services.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Code: apiErr.Code, Message: apiErr.Message,
			})
		case errors.Is(apiErr, services.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Code: apiErr.Code, Message: apiErr.Message,
			})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Code: services.CodeInternal, Message: "An unexpected error occurred.",
	})
}
