package roast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"roastbot/internal/config"
)

// systemPrompt fixes the reviewer persona for every request.
const systemPrompt = "You are an experienced career consultant and HR reviewer."

var (
	// ErrMissingAPIKey is returned before any call when no provider
	// credential is configured.
	ErrMissingAPIKey = errors.New("provider api key is not configured")

	// ErrEmptyCompletion is returned for 2xx responses without usable content.
	ErrEmptyCompletion = errors.New("provider returned no completion content")
)

// ProviderError reports a non-success response from the completion provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// Review is a single successful roast.
type Review struct {
	Text string
	// Raw keeps the provider response for the record's debug column.
	Raw []byte
}

// Client wraps a chat-completion provider. It performs exactly one request
// per call; retry policy belongs to the task queue, not here.
type Client struct {
	api    *openai.Client
	apiKey string
	model  string
	prompt string
}

// NewClient builds a roast client against an OpenAI-compatible base URL.
func NewClient(cfg config.ProviderConfig, prompt string) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		prompt: prompt,
	}
}

// Roast sends the resume text for review and returns the critique.
func (c *Client) Roast(ctx context.Context, resumeText string) (Review, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Review{}, ErrMissingAPIKey
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: c.prompt + "\n\n" + resumeText},
		},
	})
	if err != nil {
		return Review{}, classifyCallError(err)
	}

	if len(resp.Choices) == 0 {
		return Review{}, ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Review{}, ErrEmptyCompletion
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		// The critique is still usable without the debug copy.
		raw = nil
	}

	return Review{Text: content, Raw: raw}, nil
}

// classifyCallError separates provider rejections (carrying an HTTP status)
// from plain transport failures.
func classifyCallError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}

	return fmt.Errorf("call roast provider: %w", err)
}
