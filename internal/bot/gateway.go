package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Gateway is the outbound/inbound boundary to the chat transport. Intake and
// the notify workers depend on this interface only; tests substitute fakes.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename, caption string, data []byte) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// TelegramGateway implements Gateway on top of the Telegram Bot API.
type TelegramGateway struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

// NewTelegramGateway authenticates against the Bot API with the given token.
func NewTelegramGateway(token string) (*TelegramGateway, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot api: %w", err)
	}
	return &TelegramGateway{
		api:        api,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// API exposes the underlying client for the polling loop.
func (g *TelegramGateway) API() *tgbotapi.BotAPI {
	return g.api
}

// SendMessage delivers an inline text reply.
func (g *TelegramGateway) SendMessage(_ context.Context, chatID int64, text string) error {
	if _, err := g.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendDocument delivers a downloadable file attachment with a caption.
func (g *TelegramGateway) SendDocument(_ context.Context, chatID int64, filename, caption string, data []byte) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	if _, err := g.api.Send(doc); err != nil {
		return fmt.Errorf("send document to chat %d: %w", chatID, err)
	}
	return nil
}

// DownloadFile fetches the raw bytes of a file previously attached to a message.
func (g *TelegramGateway) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := g.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolve file %q: %w", fileID, err)
	}

	link := file.Link(g.api.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %q: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("download file %q status %d: %s", fileID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", fileID, err)
	}
	return data, nil
}
