package handlers

import (
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/services"
)

const maxAuditReasonLength = 256

type BanshareHandler struct {
	banshares *services.BanshareService
	perms     *services.PermissionService
}

func NewBanshareHandler(banshares *services.BanshareService, perms *services.PermissionService) *BanshareHandler {
	return &BanshareHandler{banshares: banshares, perms: perms}
}

func (h *BanshareHandler) Create(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req dto.CreateBanshareRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.perms.CanSubmit(c.UserContext(), p, req.Server); err != nil {
		return respondError(c, err)
	}

	message, err := h.banshares.Create(c.UserContext(), p.ID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreateBanshareResponse{Message: message})
}

func (h *BanshareHandler) Get(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	viewer, err := h.perms.Viewer(c.UserContext(), p)
	if err != nil {
		return respondError(c, err)
	}

	banshare, err := h.banshares.Get(c.UserContext(), viewer, c.Params("message"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(banshare)
}

func (h *BanshareHandler) Pending(c *fiber.Ctx) error {
	messages, err := h.banshares.Pending(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(messages)
}

func (h *BanshareHandler) ChangeSeverity(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	if err := h.banshares.ChangeSeverity(c.UserContext(), p.ID, c.Params("message"), c.Params("severity")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BanshareHandler) Reject(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	if err := h.banshares.Reject(c.UserContext(), p.ID, c.Params("message")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BanshareHandler) Publish(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	if err := h.banshares.Publish(c.UserContext(), p.ID, c.Params("message")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BanshareHandler) Rescind(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req dto.RescindBanshareRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.banshares.Rescind(c.UserContext(), p.ID, c.Params("message"), req.Explanation); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Execute records a ban in the route's guild. ?auto=true marks an execution
// the bot already carried out under the guild's autoban policy.
func (h *BanshareHandler) Execute(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	auto := c.Query("auto") == "true"
	if auto {
		if err := h.perms.RequireObserver(c.UserContext(), p); err != nil {
			return respondError(c, err)
		}
	}

	if err := h.banshares.Execute(c.UserContext(), p.ID, c.Params("message"), c.Params("guild"), auto); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BanshareHandler) Crossposts(c *fiber.Ctx) error {
	crossposts, err := h.banshares.Crossposts(c.UserContext(), c.Params("message"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(crossposts)
}

func (h *BanshareHandler) Crosspost(c *fiber.Ctx) error {
	location, err := h.banshares.Crosspost(c.UserContext(), c.Params("message"), c.Params("guild"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(location)
}

func (h *BanshareHandler) RegisterCrossposts(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req dto.RegisterCrosspostsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	added, err := h.banshares.RegisterCrossposts(c.UserContext(), p.ID, c.Params("message"), req.Crossposts)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"added": added})
}

func (h *BanshareHandler) Report(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	if err := h.perms.CanReportAbuse(c.UserContext(), p); err != nil {
		return respondError(c, err)
	}

	var req dto.ReportBanshareRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.banshares.Report(c.UserContext(), p.ID, c.Params("message"), req.Reason); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Delete archives a banshare. The reason comes from the X-Audit-Log-Reason
// header.
func (h *BanshareHandler) Delete(c *fiber.Ctx) error {
	p, err := identity.Get(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	reason := c.Get("X-Audit-Log-Reason")
	if utf8.RuneCountInString(reason) > maxAuditReasonLength {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Code: services.CodeInvalidBody, Message: "Audit log reason must be at most 256 characters.",
		})
	}

	if err := h.banshares.Delete(c.UserContext(), p.ID, c.Params("message"), reason); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Autoban tells the bot whether the route's guild enforces the banshare
// automatically. ?member=true asks about targets already in the guild.
func (h *BanshareHandler) Autoban(c *fiber.Ctx) error {
	resp, err := h.banshares.Autoban(c.UserContext(), c.Params("message"), c.Params("guild"), c.Query("member") == "true")
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func respondUnauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Code: services.CodeUnauthorized, Message: "You must be signed in to access this route.",
	})
}
