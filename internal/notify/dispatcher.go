package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stock-watch/internal/model"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned by a channel that lacks credentials
var ErrNotConfigured = errors.New("channel not configured")

// Channel delivers a rendered message over one medium
type Channel interface {
	Name() string
	Enabled() bool
	Deliver(ctx context.Context, subject, body string) error
}

// NewHTTPClient is the resty client shared by the HTTP based channels
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
	})
	return client
}

// Dispatcher fans a notification out to every channel
type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over channels
func NewDispatcher(logger *slog.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{channels: channels, logger: logger}
}

// Channels returns the configured channels
func (d *Dispatcher) Channels() []Channel {
	return d.channels
}

// Deliver renders ev and sends it over every channel
func (d *Dispatcher) Deliver(ctx context.Context, ev model.NotificationEvent) []model.Delivery {
	subject, body := Render(ev)
	return d.Send(ctx, subject, body)
}

// Send delivers subject and body on all channels concurrently. A failing
// channel never stops the others; the outcome of each is returned in
// channel order.
func (d *Dispatcher) Send(ctx context.Context, subject, body string) []model.Delivery {
	out := make([]model.Delivery, len(d.channels))

	var wg sync.WaitGroup
	for i, ch := range d.channels {
		out[i] = model.Delivery{Channel: ch.Name()}
		if !ch.Enabled() {
			out[i].Status = model.DeliverySkipped
			continue
		}

		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.ErrorContext(ctx, "notification channel panicked", "channel", ch.Name(), "panic", r)
					out[i].Status = model.DeliveryFailed
					out[i].Error = "channel panicked"
				}
			}()

			if err := ch.Deliver(ctx, subject, body); err != nil {
				d.logger.WarnContext(ctx, "notification failed", "channel", ch.Name(), "err", err)
				out[i].Status = model.DeliveryFailed
				out[i].Error = err.Error()
				return
			}
			d.logger.InfoContext(ctx, "notification sent", "channel", ch.Name(), "subject", subject)
			out[i].Status = model.DeliverySent
		}(i, ch)
	}
	wg.Wait()

	return out
}
