package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"roastbot/internal/database"
	"roastbot/internal/roast"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.ResumeProcessing{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func seedRecord(t *testing.T, db *gorm.DB, record database.ResumeProcessing) database.ResumeProcessing {
	t.Helper()
	if record.Status == "" {
		record.Status = database.StatusPending
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

func reloadRecord(t *testing.T, db *gorm.DB, id uint) database.ResumeProcessing {
	t.Helper()
	var record database.ResumeProcessing
	if err := db.First(&record, id).Error; err != nil {
		t.Fatalf("reload record %d: %v", id, err)
	}
	return record
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "fake", Type: task.Type()}, nil
}

func (f *fakeEnqueuer) types() []string {
	out := make([]string, 0, len(f.tasks))
	for _, task := range f.tasks {
		out = append(out, task.Type())
	}
	return out
}

func decodePayload(t *testing.T, task *asynq.Task, dst any) {
	t.Helper()
	if err := json.Unmarshal(task.Payload(), dst); err != nil {
		t.Fatalf("decode %s payload: %v", task.Type(), err)
	}
}

type stubRoaster struct {
	review roast.Review
	err    error
	calls  int
}

func (s *stubRoaster) Roast(_ context.Context, _ string) (roast.Review, error) {
	s.calls++
	return s.review, s.err
}

type sentMessage struct {
	chatID int64
	text   string
}

type sentDocument struct {
	chatID   int64
	filename string
	caption  string
	data     []byte
}

type fakeGateway struct {
	messages  []sentMessage
	documents []sentDocument
	files     map[string][]byte
	sendErr   error
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID int64, text string) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.messages = append(g.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (g *fakeGateway) SendDocument(_ context.Context, chatID int64, filename, caption string, data []byte) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.documents = append(g.documents, sentDocument{chatID: chatID, filename: filename, caption: caption, data: data})
	return nil
}

func (g *fakeGateway) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	data, ok := g.files[fileID]
	if !ok {
		return nil, fmt.Errorf("unknown file %q", fileID)
	}
	return data, nil
}
