package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	pgBatchSize     = 50
	pgFlushInterval = 5 * time.Second
)

// PGHandler is an slog.Handler that batches ERROR+ records into system_logs,
// where failed compensations wait for manual reconciliation.
type PGHandler struct {
	sink  *pgSink
	attrs []slog.Attr
}

type pgSink struct {
	db     *gorm.DB
	mu     sync.Mutex
	buffer []models.SystemLog
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewPGHandler(db *gorm.DB) *PGHandler {
	sink := &pgSink{
		db:     db,
		buffer: make([]models.SystemLog, 0, pgBatchSize),
		ticker: time.NewTicker(pgFlushInterval),
		done:   make(chan struct{}),
	}
	sink.wg.Add(1)
	go sink.flushLoop()
	return &PGHandler{sink: sink}
}

func (s *pgSink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *pgSink) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]models.SystemLog, 0, pgBatchSize)
	s.mu.Unlock()

	if err := s.db.CreateInBatches(batch, pgBatchSize).Error; err != nil {
		// Not slog.Error: that would feed the failure back into this handler.
		slog.Warn("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop flushes what is buffered and ends the flush loop.
func (h *PGHandler) Stop() {
	h.sink.ticker.Stop()
	close(h.sink.done)
	h.sink.wg.Wait()
}

// Flush writes buffered records now.
func (h *PGHandler) Flush() {
	h.sink.flush()
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "trace_id", "requestid":
			entry.TraceID = a.Value.String()
		case "banshare":
			entry.Banshare = a.Value.String()
		case "guild":
			entry.Guild = a.Value.String()
		case "actor":
			s := a.Value.String()
			entry.Actor = &s
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	h.sink.mu.Lock()
	h.sink.buffer = append(h.sink.buffer, entry)
	needFlush := len(h.sink.buffer) >= pgBatchSize
	h.sink.mu.Unlock()

	if needFlush {
		go h.sink.flush()
	}
	return nil
}

// WithAttrs keeps attributes such as subsystem loggers' fields for every
// record written through the returned handler.
func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{sink: h.sink, attrs: merged}
}

// WithGroup is a no-op: system_logs columns are flat.
func (h *PGHandler) WithGroup(string) slog.Handler {
	return h
}
