package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type telegramMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// telegramResponse is the Bot API envelope. Errors arrive as ok=false with a
// description, sometimes on a 200.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// TelegramSender delivers alerts through the Telegram Bot API.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		baseURL: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a to the chat as HTML. Successful runs are delivered silently.
func (t *TelegramSender) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:              t.chatID,
		Text:                telegramText(a),
		ParseMode:           "HTML",
		DisableNotification: a.Event == EventRunSucceeded,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal message: %w", err)
	}

	endpoint := t.baseURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The request URL embeds the bot token; keep it out of the error.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram: order %d: %w", a.Summary.OrderID, err)
	}
	defer resp.Body.Close()

	var out telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram: order %d: status %d: decode response: %w", a.Summary.OrderID, resp.StatusCode, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: order %d: status %d: %s", a.Summary.OrderID, resp.StatusCode, out.Description)
	}
	return nil
}

// telegramText renders the bold title followed by one escaped line per field.
func telegramText(a Alert) string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(a.Title) + "</b>")
	for _, f := range runFields(a.Summary) {
		fmt.Fprintf(&b, "\n%s: <code>%s</code>", f.name, html.EscapeString(f.value))
	}
	return b.String()
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string { return "telegram" }
