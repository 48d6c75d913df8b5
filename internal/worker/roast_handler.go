package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"roastbot/internal/database"
	"roastbot/internal/failure"
	"roastbot/internal/roast"
	"roastbot/internal/tasks"
)

// Roaster produces the critique for a resume text. *roast.Client satisfies
// it; tests plug in stubs.
type Roaster interface {
	Roast(ctx context.Context, resumeText string) (roast.Review, error)
}

// RoastTaskHandler consumes resume:roast tasks: it calls the completion
// provider and drives the record to its terminal status.
type RoastTaskHandler struct {
	db      *gorm.DB
	queue   tasks.Enqueuer
	roaster Roaster
	logger  *slog.Logger
}

// NewRoastTaskHandler creates the roast task handler.
func NewRoastTaskHandler(db *gorm.DB, queue tasks.Enqueuer, roaster Roaster, logger *slog.Logger) *RoastTaskHandler {
	return &RoastTaskHandler{db: db, queue: queue, roaster: roaster, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *RoastTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.RoastPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal roast payload failed", slog.Any("error", err))
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
		log.Warn("record not found, skipping task")
		return nil
	}
	if record.IsTerminal() {
		// At-least-once delivery: the previous attempt already finished this
		// record. Re-notifying here would duplicate the terminal message.
		log.Info("record already terminal, skipping roast", slog.String("status", record.Status))
		return nil
	}

	if err := markProcessing(ctx, h.db, record); err != nil {
		log.Error("mark record processing failed", slog.Any("error", err))
		return err
	}

	resumeText := payload.ResumeText
	if resumeText == "" {
		resumeText = record.ResumeText
	}
	if resumeText == "" {
		log.Error("roast task without resume text")
		return h.failRecord(ctx, log, record, failure.KindValidation, "resume text is empty", payload.CorrelationID)
	}

	review, err := h.roaster.Roast(ctx, resumeText)
	if err != nil {
		kind, detail := classifyRoastError(err)
		log.Error("roast failed",
			slog.String("failure_kind", string(kind)),
			slog.Any("error", err),
		)
		return h.failRecord(ctx, log, record, kind, detail, payload.CorrelationID)
	}

	update := map[string]any{
		"roast_result": review.Text,
		"status":       database.StatusCompleted,
	}
	if len(review.Raw) > 0 {
		update["provider_response"] = datatypes.JSON(review.Raw)
	}
	if err := h.db.WithContext(ctx).Model(record).Updates(update).Error; err != nil {
		log.Error("persist roast result failed", slog.Any("error", err))
		return err
	}

	task, err := tasks.NewNotifyResultTask(record.ID, payload.CorrelationID)
	if err == nil {
		_, err = h.queue.Enqueue(task, asynq.MaxRetry(5))
	}
	if err != nil {
		log.Error("enqueue result notification failed", slog.Any("error", err))
		return err
	}

	log.Info("roast completed", slog.Int("result_chars", len(review.Text)))
	return nil
}

// failRecord marks the record failed and schedules the error notification.
// Provider failures are terminal for the record; retry policy lives in the
// queue, not here.
func (h *RoastTaskHandler) failRecord(
	ctx context.Context,
	log *slog.Logger,
	record *database.ResumeProcessing,
	kind failure.Kind,
	detail string,
	correlationID string,
) error {
	if err := markFailed(ctx, h.db, record, kind, detail); err != nil {
		log.Error("mark record failed failed", slog.Any("error", err))
		return err
	}

	task, err := tasks.NewNotifyErrorTask(record.ID, record.ErrorMessage, correlationID)
	if err == nil {
		_, err = h.queue.Enqueue(task, asynq.MaxRetry(5))
	}
	if err != nil {
		log.Error("enqueue error notification failed", slog.Any("error", err))
		return err
	}
	return nil
}
