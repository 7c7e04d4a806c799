package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oddsmith/platform/internal/domain"
)

// TelegramSender posts validated copy to a Telegram channel. It implements
// the publisher's Sender interface.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	logger  *slog.Logger
}

// NewTelegramSender creates the sender.
func NewTelegramSender(token, chatID string, logger *slog.Logger) *TelegramSender {
	return &TelegramSender{
		baseURL: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts one message and returns the provider message id.
func (t *TelegramSender) Send(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.ErrTransportTimeout("telegram", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode telegram response: %w", err)
	}
	if !tr.OK {
		return "", fmt.Errorf("telegram send failed: %s", tr.Description)
	}
	return strconv.FormatInt(tr.Result.MessageID, 10), nil
}
