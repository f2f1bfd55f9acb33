package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tcn-network/banshare-api/internal/database"
	"github.com/tcn-network/banshare-api/internal/dto"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status, dbStatus := "ok", "ok"
	if err := database.Ping(h.db); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}
