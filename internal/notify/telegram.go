package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramService posts notifications to a Telegram chat through a bot
type TelegramService struct {
	token   string
	chatID  string
	apiBase string
	http    *resty.Client
}

// NewTelegramService creates a Telegram channel. apiBase may be empty.
func NewTelegramService(token, chatID, apiBase string, httpClient *resty.Client) *TelegramService {
	if apiBase == "" {
		apiBase = defaultTelegramAPI
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &TelegramService{token: token, chatID: chatID, apiBase: apiBase, http: httpClient}
}

func (t *TelegramService) Name() string { return "telegram" }

func (t *TelegramService) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Deliver sends subject and body as one message
func (t *TelegramService) Deliver(ctx context.Context, subject, body string) error {
	if !t.Enabled() {
		return ErrNotConfigured
	}

	var out telegramResponse
	res, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id":                  t.chatID,
			"text":                     subject + "\n\n" + body,
			"disable_web_page_preview": true,
		}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token))
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	if res.StatusCode() != 200 || !out.OK {
		return fmt.Errorf("telegram: status %d: %s", res.StatusCode(), out.Description)
	}
	return nil
}
