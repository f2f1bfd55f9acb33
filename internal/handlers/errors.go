package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/services"
)

// respondError writes a service error as a dto.ErrorResponse.
func respondError(c *fiber.Ctx, err error) error {
	var apiErr *services.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unhandled service error", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Code: services.CodeInternal, Message: "An unexpected error occurred.",
		})
	}

	status := statusFor(apiErr)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "code", apiErr.Code, "error", apiErr)
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: true, Code: apiErr.Code, Message: apiErr.Message,
	})
}

func statusFor(err *services.APIError) int {
	switch {
	case errors.Is(err.Kind, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err.Kind, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err.Kind, services.ErrDuplicate), errors.Is(err.Kind, services.ErrLimitReached):
		return fiber.StatusConflict
	case errors.Is(err.Kind, services.ErrValidation),
		errors.Is(err.Kind, services.ErrInvalidState),
		errors.Is(err.Kind, services.ErrNotModified),
		errors.Is(err.Kind, services.ErrFeatureDisabled):
		return fiber.StatusBadRequest
	case err.Code == services.CodeBotOffline:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Code: services.CodeInvalidBody, Message: "Invalid request body",
	})
}
