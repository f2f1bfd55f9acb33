package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions.
const (
	AuditBanshareCreate     = "banshares/create"
	AuditBanshareSeverity   = "banshares/severity"
	AuditBanshareReject     = "banshares/reject"
	AuditBansharePublish    = "banshares/publish"
	AuditBanshareRescind    = "banshares/rescind"
	AuditBanshareExecute    = "banshares/execute"
	AuditBanshareCrosspost  = "banshares/crosspost"
	AuditBanshareReport     = "banshares/report"
	AuditBanshareDelete     = "banshares/delete"
	AuditBanshareSettings   = "banshares/settings"
	AuditBanshareLogsAdd    = "banshares/logs-add"
	AuditBanshareLogsRemove = "banshares/logs-remove"
)

// maxAuditReasonLength matches the reason column, which counts characters.
const maxAuditReasonLength = 256

type AuditEntry struct {
	Actor   string
	Action  string
	Subject string
	Before  interface{}
	After   interface{}
	Data    map[string]interface{}
	Reason  string
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record stores one audit entry. The action it describes has already been
// committed, so a failure here is logged and never returned.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	data := make(map[string]interface{}, len(entry.Data)+2)
	for k, v := range entry.Data {
		data[k] = v
	}
	if entry.Before != nil {
		data["before"] = entry.Before
	}
	if entry.After != nil {
		data["after"] = entry.After
	}

	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode audit data", "action", entry.Action, "banshare", entry.Subject, "error", err)
		raw = []byte("{}")
	}

	log := models.AuditLog{
		ID:      uuid.New(),
		Time:    time.Now(),
		Actor:   entry.Actor,
		Action:  entry.Action,
		Subject: entry.Subject,
		Data:    datatypes.JSON(raw),
	}
	if entry.Reason != "" {
		reason := truncateRunes(entry.Reason, maxAuditReasonLength)
		log.Reason = &reason
	}

	// Detached so a cancelled request still leaves its audit trail.
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(&log).Error; err != nil {
		slog.Error("failed to record audit log", "action", entry.Action, "banshare", entry.Subject, "actor", entry.Actor, "error", err)
	}
}

// List returns the audit trail of one subject, oldest first.
func (s *AuditService) List(ctx context.Context, subject string) ([]models.AuditLog, error) {
	logs := []models.AuditLog{}
	err := s.db.WithContext(ctx).Where("subject = ?", subject).Order("time ASC").Find(&logs).Error
	return logs, err
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
