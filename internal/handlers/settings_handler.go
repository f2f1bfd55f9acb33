package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/services"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	resolved, err := h.settings.Get(c.UserContext(), c.Params("guild"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resolved)
}

// List returns the resolved settings of every guild that saved any.
func (h *SettingsHandler) List(c *fiber.Ctx) error {
	all, err := h.settings.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(all)
}

func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req dto.UpdateBanshareSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resolved, err := h.settings.Update(c.UserContext(), p.ID, p.Internal, c.Params("guild"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resolved)
}

func (h *SettingsHandler) Logs(c *fiber.Ctx) error {
	logs, err := h.settings.Logs(c.UserContext(), c.Params("guild"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(logs)
}

func (h *SettingsHandler) AddLog(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	if err := h.settings.AddLog(c.UserContext(), p.ID, p.Internal, c.Params("guild"), c.Params("channel")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SettingsHandler) RemoveLog(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	if err := h.settings.RemoveLog(c.UserContext(), p.ID, c.Params("guild"), c.Params("channel")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
