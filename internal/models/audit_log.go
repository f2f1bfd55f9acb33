package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is an immutable record of a committed banshare action.
type AuditLog struct {
	ID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Time    time.Time      `gorm:"not null;index" json:"time"`
	Actor   string         `gorm:"size:20;not null;index" json:"actor"`
	Action  string         `gorm:"size:64;not null;index" json:"action"`
	Subject string         `gorm:"size:20;index" json:"subject"`
	Data    datatypes.JSON `json:"data"`
	Reason  *string        `gorm:"size:256" json:"reason,omitempty"`
}
