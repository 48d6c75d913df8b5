package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"roastbot/internal/database"
	"roastbot/internal/extract"
	"roastbot/internal/failure"
	"roastbot/internal/tasks"
)

// ExtractTaskHandler consumes resume:extract tasks: it pulls the text out of
// the submitted PDF and hands the record over to the roast stage.
type ExtractTaskHandler struct {
	db     *gorm.DB
	queue  tasks.Enqueuer
	logger *slog.Logger
}

// NewExtractTaskHandler creates the extraction task handler.
func NewExtractTaskHandler(db *gorm.DB, queue tasks.Enqueuer, logger *slog.Logger) *ExtractTaskHandler {
	return &ExtractTaskHandler{db: db, queue: queue, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *ExtractTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ExtractPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal extract payload failed", slog.Any("error", err))
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
		// Redelivered after the record already finished elsewhere.
		log.Info("record already terminal, skipping extraction")
		return nil
	}

	if err := markProcessing(ctx, h.db, record); err != nil {
		log.Error("mark record processing failed", slog.Any("error", err))
		return err
	}

	// Redelivery after a crash between persisting the text and enqueueing
	// the roast job: re-derive from the record instead of re-parsing.
	if record.ResumeText != "" {
		return h.enqueueRoast(log, record.ID, record.ResumeText, payload.CorrelationID)
	}

	text, err := extract.Text(payload.PDFData)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			log.Info("document has no extractable text")
			return h.failRecord(ctx, log, record, failure.KindExtractionEmpty,
				"could not extract any text from the PDF, make sure it contains a text layer and not just a scan",
				payload.CorrelationID)
		}
		// Parser detail stays in the logs; the user gets a readable summary.
		log.Error("pdf parsing failed", slog.Any("error", err))
		return h.failRecord(ctx, log, record, failure.KindExtractionFailed,
			"could not read the PDF file", payload.CorrelationID)
	}

	if err := h.db.WithContext(ctx).Model(record).Updates(map[string]any{
		"resume_text": text,
	}).Error; err != nil {
		log.Error("persist extracted text failed", slog.Any("error", err))
		return err
	}

	return h.enqueueRoast(log, record.ID, text, payload.CorrelationID)
}

// failRecord marks the record failed and schedules the error notification.
// Extraction failures are terminal user-facing outcomes, so the task itself
// succeeds and is never retried.
func (h *ExtractTaskHandler) failRecord(
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

func (h *ExtractTaskHandler) enqueueRoast(log *slog.Logger, recordID uint, text, correlationID string) error {
	task, err := tasks.NewResumeRoastTask(recordID, text, correlationID)
	if err == nil {
		_, err = h.queue.Enqueue(task, asynq.MaxRetry(5))
	}
	if err != nil {
		log.Error("enqueue roast task failed", slog.Any("error", err))
		return err
	}
	log.Info("extraction finished, roast enqueued")
	return nil
}
