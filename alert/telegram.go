package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTelegramURL is the public Bot API endpoint.
	DefaultTelegramURL = "https://api.telegram.org"

	defaultTelegramTimeout = 10 * time.Second

	// Bot API rejects longer texts.
	maxTelegramText = 4096
)

// TelegramConfig configures a TelegramAlerter.
type TelegramConfig struct {
	BaseURL    string
	Token      string
	ChatID     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// TelegramAlerter posts alerts to a Telegram chat through the Bot API.
type TelegramAlerter struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	logger  *slog.Logger
}

// NewTelegramAlerter creates a Telegram alerter.
func NewTelegramAlerter(cfg TelegramConfig) (*TelegramAlerter, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTelegramTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TelegramAlerter{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NotifyOperators sends the message followed by one detail per line.
func (t *TelegramAlerter) NotifyOperators(ctx context.Context, message string, details []string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID: t.chatID,
		Text:   FormatText(message, details),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The url carries the token; keep it out of the error.
		return fmt.Errorf("telegram request failed: %w", redactToken(err, t.token))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed sendMessageResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusOK || !parsed.OK {
		desc := parsed.Description
		if desc == "" {
			desc = strings.TrimSpace(string(respBody))
		}
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, desc)
	}

	t.logger.Debug("Telegram alert sent", "chat", t.chatID)
	return nil
}

// FormatText joins the message and details into one text, truncated to what
// Telegram accepts.
func FormatText(message string, details []string) string {
	var sb strings.Builder
	sb.WriteString(message)
	for _, d := range details {
		sb.WriteString("\n")
		sb.WriteString(d)
	}
	text := sb.String()
	if r := []rune(text); len(r) > maxTelegramText {
		text = string(r[:maxTelegramText-1]) + "…"
	}
	return text
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redactToken(err error, token string) error {
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}
