package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"roastbot/internal/database"
	"roastbot/internal/metrics"
	"roastbot/internal/tasks"
)

// User-facing replies. The ack goes out before the job is enqueued; it is
// best-effort and not required for correctness.
const (
	welcomeReply = "Send me a resume as a PDF file and I will read it and roast it, hard but fair.\n\n" +
		"Plain text works too: just paste the resume as a message."
	notPDFReply       = "Please send the resume as a PDF file."
	noSenderReply     = "Could not determine the sender."
	documentAckReply  = "Got the file, reading the resume and heating up the roast... 🔥"
	textAckReply      = "Got the text. Preparing the roast... 🔥"
	genericFailReply  = "An error occurred while processing your resume. Please try again later."
	rateLimitedReply  = "Daily roast limit reached. Try again tomorrow."
	infectedFileReply = "The file failed the malware scan and was rejected."
)

// Archiver stores a copy of the original document. *storage.Client satisfies it.
type Archiver interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// Intake validates inbound chat messages, creates processing records and
// enqueues the first pipeline job. It must never block on extraction, LLM
// calls or result delivery; all of that belongs to the workers.
type Intake struct {
	db         *gorm.DB
	queue      tasks.Enqueuer
	gateway    Gateway
	archive    Archiver
	counter    rateCounter
	logger     *slog.Logger
	clamdAddr  string
	dailyLimit int
}

// NewIntake wires the intake handler. archive and counter may be nil; the
// corresponding steps (document archiving, daily rate limiting) are then
// skipped. A dailyLimit of 0 disables the limit as well.
func NewIntake(
	db *gorm.DB,
	queue tasks.Enqueuer,
	gateway Gateway,
	archive Archiver,
	counter rateCounter,
	logger *slog.Logger,
	clamdAddr string,
	dailyLimit int,
) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		db:         db,
		queue:      queue,
		gateway:    gateway,
		archive:    archive,
		counter:    counter,
		logger:     logger,
		clamdAddr:  strings.TrimSpace(clamdAddr),
		dailyLimit: dailyLimit,
	}
}

// messageKind is the closed set of inbound message variants.
type messageKind int

const (
	kindIgnore messageKind = iota
	kindCommand
	kindDocument
	kindText
)

func classify(msg *tgbotapi.Message) messageKind {
	if msg.Document != nil {
		return kindDocument
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return kindIgnore
	}
	if strings.HasPrefix(text, "/") {
		return kindCommand
	}
	return kindText
}

// HandleUpdate routes one inbound update. Errors never escape: rejections
// and failures are reported to the chat, everything else is logged.
func (i *Intake) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	switch classify(msg) {
	case kindCommand:
		i.handleCommand(ctx, msg)
	case kindDocument:
		i.handleDocument(ctx, msg)
	case kindText:
		i.handleText(ctx, msg)
	}
}

func (i *Intake) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/start") {
		i.reply(ctx, msg.Chat.ID, welcomeReply)
	}
	// Other commands are not roast material.
}

func (i *Intake) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document

	if !isPDF(doc) {
		metrics.SubmissionRejected("not_pdf")
		i.reply(ctx, msg.Chat.ID, notPDFReply)
		return
	}
	if msg.From == nil {
		metrics.SubmissionRejected("no_sender")
		i.reply(ctx, msg.Chat.ID, noSenderReply)
		return
	}

	log := i.logger.With(
		slog.Int64("telegram_user_id", msg.From.ID),
		slog.Int64("telegram_chat_id", msg.Chat.ID),
	)

	i.reply(ctx, msg.Chat.ID, documentAckReply)

	data, err := i.gateway.DownloadFile(ctx, doc.FileID)
	if err != nil {
		log.Error("download document failed", slog.Any("error", err))
		i.reply(ctx, msg.Chat.ID, genericFailReply)
		return
	}

	if i.clamdAddr != "" {
		infected, err := i.scanForMalware(data)
		if err != nil {
			log.Error("malware scan failed", slog.Any("error", err))
			i.reply(ctx, msg.Chat.ID, genericFailReply)
			return
		}
		if infected {
			metrics.SubmissionRejected("infected")
			log.Warn("document rejected by malware scan")
			i.reply(ctx, msg.Chat.ID, infectedFileReply)
			return
		}
	}

	if limited := i.checkDailyLimit(ctx, msg.From.ID); limited {
		metrics.SubmissionRejected("rate_limited")
		i.reply(ctx, msg.Chat.ID, rateLimitedReply)
		return
	}

	archiveKey := i.archiveOriginal(ctx, log, msg.From.ID, data)

	record := database.ResumeProcessing{
		TelegramUserID:    msg.From.ID,
		TelegramChatID:    msg.Chat.ID,
		TelegramMessageID: msg.MessageID,
		FileID:            doc.FileID,
		ArchiveKey:        archiveKey,
		Status:            database.StatusPending,
	}
	if err := i.db.WithContext(ctx).Create(&record).Error; err != nil {
		log.Error("create processing record failed", slog.Any("error", err))
		i.reply(ctx, msg.Chat.ID, genericFailReply)
		return
	}

	correlationID := uuid.NewString()
	task, err := tasks.NewResumeExtractTask(record.ID, data, correlationID)
	if err == nil {
		_, err = i.queue.Enqueue(task, asynq.MaxRetry(5))
	}
	if err != nil {
		// Known best-effort boundary: the pending record stays behind.
		log.Error("enqueue extract task failed",
			slog.Uint64("record_id", uint64(record.ID)),
			slog.Any("error", err),
		)
		i.reply(ctx, msg.Chat.ID, genericFailReply)
		return
	}

	metrics.SubmissionAccepted("document")
	log.Info("document submission accepted",
		slog.Uint64("record_id", uint64(record.ID)),
		slog.String("correlation_id", correlationID),
	)
}

func (i *Intake) handleText(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)

	if msg.From == nil {
		metrics.SubmissionRejected("no_sender")
		i.reply(ctx, msg.Chat.ID, noSenderReply)
		return
	}

	log := i.logger.With(
		slog.Int64("telegram_user_id", msg.From.ID),
		slog.Int64("telegram_chat_id", msg.Chat.ID),
	)

	i.reply(ctx, msg.Chat.ID, textAckReply)

	if limited := i.checkDailyLimit(ctx, msg.From.ID); limited {
		metrics.SubmissionRejected("rate_limited")
		i.reply(ctx, msg.Chat.ID, rateLimitedReply)
		return
	}

	record := database.ResumeProcessing{
		TelegramUserID:    msg.From.ID,
		TelegramChatID:    msg.Chat.ID,
		TelegramMessageID: msg.MessageID,
		ResumeText:        text,
		Status:            database.StatusPending,
	}
	if err := i.db.WithContext(ctx).Create(&record).Error; err != nil {
		log.Error("create processing record failed", slog.Any("error", err))
		i.reply(ctx, msg.Chat.ID, genericFailReply)
		return
	}

	correlationID := uuid.NewString()
	task, err := tasks.NewResumeRoastTask(record.ID, text, correlationID)
	if err == nil {
		_, err = i.queue.Enqueue(task, asynq.MaxRetry(5))
	}
	if err != nil {
		log.Error("enqueue roast task failed",
			slog.Uint64("record_id", uint64(record.ID)),
			slog.Any("error", err),
		)
		i.reply(ctx, msg.Chat.ID, genericFailReply)
		return
	}

	metrics.SubmissionAccepted("text")
	log.Info("text submission accepted",
		slog.Uint64("record_id", uint64(record.ID)),
		slog.String("correlation_id", correlationID),
	)
}

func isPDF(doc *tgbotapi.Document) bool {
	if doc.MimeType == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
}

// checkDailyLimit counts this submission against the user's daily quota.
// Returns true when the quota is exhausted.
func (i *Intake) checkDailyLimit(ctx context.Context, userID int64) bool {
	if i.counter == nil || i.dailyLimit <= 0 {
		return false
	}

	key := fmt.Sprintf("roast_quota:%d:%s", userID, time.Now().UTC().Format("2006-01-02"))
	count, err := incrWithTTL(ctx, i.counter, key, 24*time.Hour)
	if err != nil {
		// Redis being down must not block intake.
		i.logger.Warn("rate counter unavailable", slog.Any("error", err))
		return false
	}
	return count > int64(i.dailyLimit)
}

func (i *Intake) scanForMalware(data []byte) (bool, error) {
	clamdClient := clamd.NewClamd(i.clamdAddr)

	abort := make(chan bool)
	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return false, fmt.Errorf("scan stream: %w", err)
	}
	defer close(abort)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return true, nil
		}
	}
	return false, nil
}

// archiveOriginal keeps a copy of the submitted PDF for retention. Failures
// are logged and ignored; the pipeline runs off the in-payload bytes.
func (i *Intake) archiveOriginal(ctx context.Context, log *slog.Logger, userID int64, data []byte) string {
	if i.archive == nil {
		return ""
	}

	key := fmt.Sprintf("resume-originals/%d/%s.pdf", userID, uuid.NewString())
	if _, err := i.archive.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		log.Warn("archive original document failed", slog.Any("error", err))
		return ""
	}
	return key
}

func (i *Intake) reply(ctx context.Context, chatID int64, text string) {
	if err := i.gateway.SendMessage(ctx, chatID, text); err != nil {
		i.logger.Warn("send reply failed",
			slog.Int64("telegram_chat_id", chatID),
			slog.Any("error", err),
		)
	}
}
