package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants keep queue producers and consumers in sync.
const (
	TypeResumeExtract = "resume:extract"
	TypeResumeRoast   = "resume:roast"
	TypeNotifyResult  = "notify:result"
	TypeNotifyError   = "notify:error"
)

// Enqueuer is the producer-side queue surface. *asynq.Client satisfies it;
// tests substitute an in-memory recorder.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExtractPayload carries the raw document bytes to the extraction worker.
type ExtractPayload struct {
	RecordID      uint   `json:"record_id"`
	PDFData       []byte `json:"pdf_data"`
	CorrelationID string `json:"correlation_id"`
}

// RoastPayload carries resume text to the roast worker.
type RoastPayload struct {
	RecordID      uint   `json:"record_id"`
	ResumeText    string `json:"resume_text"`
	CorrelationID string `json:"correlation_id"`
}

// NotifyResultPayload addresses a completed record for delivery.
type NotifyResultPayload struct {
	RecordID      uint   `json:"record_id"`
	CorrelationID string `json:"correlation_id"`
}

// NotifyErrorPayload addresses a failed record plus the user-facing summary.
type NotifyErrorPayload struct {
	RecordID      uint   `json:"record_id"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// NewResumeExtractTask builds the extraction task for a document submission.
func NewResumeExtractTask(recordID uint, pdfData []byte, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExtractPayload{
		RecordID:      recordID,
		PDFData:       pdfData,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResumeExtract, payload), nil
}

// NewResumeRoastTask builds the roast task for already-extracted text.
func NewResumeRoastTask(recordID uint, resumeText, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RoastPayload{
		RecordID:      recordID,
		ResumeText:    resumeText,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResumeRoast, payload), nil
}

// NewNotifyResultTask builds the result delivery task.
func NewNotifyResultTask(recordID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(NotifyResultPayload{
		RecordID:      recordID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifyResult, payload), nil
}

// NewNotifyErrorTask builds the error delivery task.
func NewNotifyErrorTask(recordID uint, message, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(NotifyErrorPayload{
		RecordID:      recordID,
		Message:       message,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifyError, payload), nil
}
