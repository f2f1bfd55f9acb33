package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog stores ERROR+ log records, most importantly failed compensations
// that need manual reconciliation.
type SystemLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Level     string         `gorm:"size:10;not null;index" json:"level"`
	Message   string         `gorm:"type:text" json:"message"`
	TraceID   string         `gorm:"size:36;index" json:"trace_id"`
	Banshare  string         `gorm:"size:20;index" json:"banshare"`
	Guild     string         `gorm:"size:20" json:"guild"`
	Actor     *string        `gorm:"size:20" json:"actor"`
	Action    string         `gorm:"size:100" json:"action"`
	Error     string         `gorm:"type:text" json:"error"`
	Extra     datatypes.JSON `json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
}
