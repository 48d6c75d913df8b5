package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Processing record statuses. Transitions only move forward:
// pending -> processing -> completed | failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ResumeProcessing tracks one resume submission through the pipeline.
// Created by intake, mutated only by workers, never deleted by the core.
type ResumeProcessing struct {
	gorm.Model
	TelegramUserID    int64  `gorm:"index"`
	TelegramChatID    int64
	TelegramMessageID int
	// FileID is the Telegram file reference of the original document.
	// Exactly one of FileID and a non-empty ResumeText is set at creation.
	FileID     string `gorm:"size:255"`
	// ArchiveKey points at the archived original in object storage. Best
	// effort: empty when archiving failed or the input was plain text.
	ArchiveKey string `gorm:"size:512"`
	ResumeText string `gorm:"type:text"`
	// RoastResult is set iff Status is completed.
	RoastResult string `gorm:"type:text"`
	// ProviderResponse keeps the raw completion response for debugging.
	ProviderResponse datatypes.JSON `gorm:"type:jsonb"`
	Status           string         `gorm:"size:20;index;default:pending"`
	// ErrorMessage is set iff Status is failed.
	ErrorMessage string `gorm:"type:text"`
}

// IsTerminal reports whether the record already reached a final status.
func (r *ResumeProcessing) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
