package worker

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"roastbot/internal/database"
	"roastbot/internal/failure"
	"roastbot/internal/metrics"
	"roastbot/internal/roast"
)

// Record writes are set-based so that redelivered jobs can repeat them
// without corrupting anything; the status column is the source of truth.

func loadRecord(ctx context.Context, db *gorm.DB, id uint) (*database.ResumeProcessing, bool, error) {
	var record database.ResumeProcessing
	if err := db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &record, true, nil
}

func markProcessing(ctx context.Context, db *gorm.DB, record *database.ResumeProcessing) error {
	if record.Status == database.StatusProcessing {
		return nil
	}
	if err := db.WithContext(ctx).Model(record).Updates(map[string]any{
		"status": database.StatusProcessing,
	}).Error; err != nil {
		return err
	}
	record.Status = database.StatusProcessing
	return nil
}

func markFailed(ctx context.Context, db *gorm.DB, record *database.ResumeProcessing, kind failure.Kind, detail string) error {
	summary := failure.Summary(kind, detail)
	if err := db.WithContext(ctx).Model(record).Updates(map[string]any{
		"status":        database.StatusFailed,
		"error_message": summary,
	}).Error; err != nil {
		return err
	}
	record.Status = database.StatusFailed
	record.ErrorMessage = summary
	metrics.RecordFailed(kind)
	return nil
}

// classifyRoastError maps a roast client failure onto the taxonomy. The
// detail becomes the persisted error message and, through the notify job,
// the text the user eventually sees.
func classifyRoastError(err error) (failure.Kind, string) {
	switch {
	case errors.Is(err, roast.ErrMissingAPIKey):
		return failure.KindConfiguration, "roast service is not configured"
	case errors.Is(err, roast.ErrEmptyCompletion):
		return failure.KindProtocol, "provider returned an unusable response"
	}

	var providerErr *roast.ProviderError
	if errors.As(err, &providerErr) {
		return failure.KindProvider, providerErr.Error()
	}

	return failure.KindTransport, err.Error()
}
