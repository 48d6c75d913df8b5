package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"roastbot/internal/bot"
	"roastbot/internal/tasks"
)

const (
	roastFileName     = "roast.txt"
	roastReadyCaption = "Your roast is ready 🔥"
)

// NotifyTaskHandler delivers terminal outcomes back to the originating chat.
// It only ever reads records; delivery and persistence are not
// transactionally linked, so the record is loaded as a separate step before
// any outbound call.
type NotifyTaskHandler struct {
	db      *gorm.DB
	gateway bot.Gateway
	logger  *slog.Logger
	// attachmentThreshold is the result length above which the roast is sent
	// as a file instead of an inline message.
	attachmentThreshold int
}

// NewNotifyTaskHandler creates the notification task handler.
func NewNotifyTaskHandler(db *gorm.DB, gateway bot.Gateway, logger *slog.Logger, attachmentThreshold int) *NotifyTaskHandler {
	return &NotifyTaskHandler{
		db:                  db,
		gateway:             gateway,
		logger:              logger,
		attachmentThreshold: attachmentThreshold,
	}
}

// ProcessResult handles notify:result tasks.
func (h *NotifyTaskHandler) ProcessResult(ctx context.Context, t *asynq.Task) error {
	var payload tasks.NotifyResultPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal notify payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("record_id", uint64(payload.RecordID)),
	)

	record, found, err := loadRecord(ctx, h.db, payload.RecordID)
	if err != nil {
		log.Error("query record failed", slog.Any("error", err))
		return err
	}
	if !found {
		log.Warn("record not found, skipping notification")
		return nil
	}
	if record.RoastResult == "" {
		log.Warn("record has no result to deliver, skipping notification")
		return nil
	}

	if len(record.RoastResult) > h.attachmentThreshold {
		err = h.gateway.SendDocument(ctx, record.TelegramChatID, roastFileName, roastReadyCaption, []byte(record.RoastResult))
	} else {
		err = h.gateway.SendMessage(ctx, record.TelegramChatID, record.RoastResult)
	}
	if err != nil {
		// Terminal step: log and hand the task back to the queue. A repeat
		// attempt may double-send; that is a documented trade-off.
		log.Error("deliver roast result failed", slog.Any("error", err))
		return err
	}

	log.Info("roast result delivered", slog.Int("result_chars", len(record.RoastResult)))
	return nil
}

// ProcessError handles notify:error tasks.
func (h *NotifyTaskHandler) ProcessError(ctx context.Context, t *asynq.Task) error {
	var payload tasks.NotifyErrorPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal notify payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("record_id", uint64(payload.RecordID)),
	)

	record, found, err := loadRecord(ctx, h.db, payload.RecordID)
	if err != nil {
		log.Error("query record failed", slog.Any("error", err))
		return err
	}
	if !found {
		log.Warn("record not found, skipping notification")
		return nil
	}

	if err := h.gateway.SendMessage(ctx, record.TelegramChatID, "An error occurred: "+payload.Message); err != nil {
		log.Error("deliver error notification failed", slog.Any("error", err))
		return err
	}

	log.Info("error notification delivered")
	return nil
}
