package worker

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"roastbot/internal/database"
	"roastbot/internal/tasks"
)

// buildTestPDF assembles a minimal valid PDF with one text run per page.
// Empty strings produce pages without a text layer.
func buildTestPDF(t *testing.T, pages []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), len(pages)))
	writeObj("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, text := range pages {
		pageNum := 4 + 2*i
		contentNum := pageNum + 1

		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>\nendobj\n",
			pageNum, contentNum))

		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			contentNum, len(stream), stream))
	}

	xrefPos := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefPos))

	return buf.Bytes()
}

func TestExtractHandler_Success(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}

	record := seedRecord(t, db, database.ResumeProcessing{
		TelegramChatID: 4242,
		FileID:         "file-1",
	})

	pdf := buildTestPDF(t, []string{"page1 text", "page2 text"})
	task, err := tasks.NewResumeExtractTask(record.ID, pdf, "corr-1")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewExtractTaskHandler(db, queue, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.Status != database.StatusProcessing {
		t.Fatalf("status = %q, want processing", got.Status)
	}
	if got.ResumeText != "page1 text\n\npage2 text" {
		t.Fatalf("resume text = %q", got.ResumeText)
	}

	if len(queue.tasks) != 1 || queue.tasks[0].Type() != tasks.TypeResumeRoast {
		t.Fatalf("enqueued %v, want a single resume:roast", queue.types())
	}
	var roastPayload tasks.RoastPayload
	decodePayload(t, queue.tasks[0], &roastPayload)
	if roastPayload.RecordID != record.ID || roastPayload.ResumeText != got.ResumeText {
		t.Fatalf("roast payload = %+v", roastPayload)
	}
}

// A document without a text layer fails the record and never reaches the
// roast stage.
func TestExtractHandler_NoTextLayer(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}

	record := seedRecord(t, db, database.ResumeProcessing{
		TelegramChatID: 4242,
		FileID:         "file-2",
	})

	pdf := buildTestPDF(t, []string{"", ""})
	task, err := tasks.NewResumeExtractTask(record.ID, pdf, "corr-2")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewExtractTaskHandler(db, queue, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.Status != database.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "text") {
		t.Fatalf("error message %q should explain the missing text layer", got.ErrorMessage)
	}

	if len(queue.tasks) != 1 || queue.tasks[0].Type() != tasks.TypeNotifyError {
		t.Fatalf("enqueued %v, want a single notify:error", queue.types())
	}
}

func TestExtractHandler_MalformedDocument(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}

	record := seedRecord(t, db, database.ResumeProcessing{FileID: "file-3"})

	task, err := tasks.NewResumeExtractTask(record.ID, []byte("not a pdf"), "corr-3")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewExtractTaskHandler(db, queue, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.Status != database.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if len(queue.tasks) != 1 || queue.tasks[0].Type() != tasks.TypeNotifyError {
		t.Fatalf("enqueued %v, want a single notify:error", queue.types())
	}
}

// A redelivered extract task for a record that already finished must no-op.
func TestExtractHandler_SkipsTerminalRecord(t *testing.T) {
	db := newTestDB(t)
	queue := &fakeEnqueuer{}

	record := seedRecord(t, db, database.ResumeProcessing{
		FileID:      "file-4",
		ResumeText:  "already extracted",
		RoastResult: "already roasted",
		Status:      database.StatusCompleted,
	})

	pdf := buildTestPDF(t, []string{"new content"})
	task, err := tasks.NewResumeExtractTask(record.ID, pdf, "corr-4")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	handler := NewExtractTaskHandler(db, queue, testLogger())
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got := reloadRecord(t, db, record.ID)
	if got.ResumeText != "already extracted" {
		t.Fatalf("resume text changed to %q", got.ResumeText)
	}
	if len(queue.tasks) != 0 {
		t.Fatalf("enqueued %v, want nothing", queue.types())
	}
}
