package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultBarkServer = "https://api.day.app"

// BarkService handles Bark push notifications
type BarkService struct {
	key    string
	server string
	http   *resty.Client
}

// NewBarkService creates a new Bark notification service
func NewBarkService(key, server string, httpClient *resty.Client) *BarkService {
	if server == "" {
		server = defaultBarkServer
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &BarkService{key: key, server: strings.TrimRight(server, "/"), http: httpClient}
}

func (b *BarkService) Name() string { return "bark" }

// Enabled reports whether a usable device key is configured
func (b *BarkService) Enabled() bool {
	return ValidateBarkKey(b.key)
}

// Deliver pushes GET {server}/{key}/{title}/{body}
func (b *BarkService) Deliver(ctx context.Context, subject, body string) error {
	if !b.Enabled() {
		return ErrNotConfigured
	}

	barkURL := fmt.Sprintf("%s/%s/%s/%s", b.server,
		url.PathEscape(b.key), url.PathEscape(subject), url.PathEscape(body))

	res, err := b.http.R().
		SetContext(ctx).
		Get(barkURL)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	if res.StatusCode() != 200 {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode())
	}
	return nil
}

// ValidateBarkKey validates a Bark key
func ValidateBarkKey(key string) bool {
	// keys are alphanumeric and vary in length, but never contain spaces
	return key != "" && !strings.ContainsAny(key, " /")
}
