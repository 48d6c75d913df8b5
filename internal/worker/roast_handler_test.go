package worker

import (
	"context"
	"strings"
	"testing"

	"roastbot/internal/database"
	"roastbot/internal/roast"
	"roastbot/internal/tasks"
)

func TestRoastHandler_Success(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}
	roaster := &stubRoaster{review: roast.Review{Text: "Too generic.", Raw: []byte(`{"id":"cmpl-1"}`)}}

	record := seedRecord(t, db, database.ResumeProcessing{
		TelegramUserID: 42,
		TelegramChatID: 4242,
		ResumeText:     "Senior Engineer, 10 YOE...",
	})

	task, err := tasks.NewResumeRoastTask(record.ID, record.ResumeText, "corr-1")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewRoastTaskHandler(db, queue, roaster, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.Status != database.StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.RoastResult != "Too generic." {
		t.Fatalf("roast result = %q", got.RoastResult)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("error message should stay empty, got %q", got.ErrorMessage)
	}

	if want := []string{tasks.TypeNotifyResult}; len(queue.tasks) != 1 || queue.types()[0] != want[0] {
		t.Fatalf("enqueued %v, want %v", queue.types(), want)
	}
	var notify tasks.NotifyResultPayload
	decodePayload(t, queue.tasks[0], &notify)
	if notify.RecordID != record.ID {
		t.Fatalf("notify record id = %d, want %d", notify.RecordID, record.ID)
	}
}

func TestRoastHandler_ProviderFailure(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}
	roaster := &stubRoaster{err: &roast.ProviderError{StatusCode: 500, Message: "upstream exploded"}}

	record := seedRecord(t, db, database.ResumeProcessing{
		TelegramChatID: 4242,
		ResumeText:     "some resume",
	})

	task, err := tasks.NewResumeRoastTask(record.ID, record.ResumeText, "corr-2")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewRoastTaskHandler(db, queue, roaster, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.Status != database.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "500") {
		t.Fatalf("error message %q should mention the provider status", got.ErrorMessage)
	}
	if got.RoastResult != "" {
		t.Fatalf("roast result must stay empty on failure, got %q", got.RoastResult)
	}

	if len(queue.tasks) != 1 || queue.tasks[0].Type() != tasks.TypeNotifyError {
		t.Fatalf("enqueued %v, want a single notify:error", queue.types())
	}
	var notify tasks.NotifyErrorPayload
	decodePayload(t, queue.tasks[0], &notify)
	if notify.Message != got.ErrorMessage {
		t.Fatalf("notify message = %q, want %q", notify.Message, got.ErrorMessage)
	}
}

func TestRoastHandler_MissingAPIKey(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}
	roaster := &stubRoaster{err: roast.ErrMissingAPIKey}

	record := seedRecord(t, db, database.ResumeProcessing{ResumeText: "some resume"})

	task, err := tasks.NewResumeRoastTask(record.ID, record.ResumeText, "corr-3")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewRoastTaskHandler(db, queue, roaster, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.Status != database.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "configuration") {
		t.Fatalf("error message %q should carry the configuration kind", got.ErrorMessage)
	}
}

// Redelivering a roast task for an already-completed record must neither
// change the result nor enqueue a second notification.
func TestRoastHandler_IdempotentOnCompletedRecord(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}
	roaster := &stubRoaster{review: roast.Review{Text: "a different roast"}}

	record := seedRecord(t, db, database.ResumeProcessing{
		ResumeText:  "some resume",
		RoastResult: "the original roast",
		Status:      database.StatusCompleted,
	})

	task, err := tasks.NewResumeRoastTask(record.ID, record.ResumeText, "corr-4")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewRoastTaskHandler(db, queue, roaster, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.RoastResult != "the original roast" {
		t.Fatalf("roast result changed to %q", got.RoastResult)
	}
	if got.Status != database.StatusCompleted {
		t.Fatalf("status changed to %q", got.Status)
	}
	if roaster.calls != 0 {
		t.Fatalf("roaster was called %d times, want 0", roaster.calls)
	}
	if len(queue.tasks) != 0 {
		t.Fatalf("enqueued %v, want nothing", queue.types())
	}
}
