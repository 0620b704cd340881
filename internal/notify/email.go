package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"
)

const defaultSendGridURL = "https://api.sendgrid.com/v3/mail/send"

// EmailConfig holds the email channel settings.
// SendGrid is tried first when an API key is set, SMTP otherwise or on failure.
type EmailConfig struct {
	To   []string
	From string

	SendGridAPIKey string
	SendGridURL    string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

// EmailService delivers notifications by email
type EmailService struct {
	cfg  EmailConfig
	http *resty.Client

	// sendMail is swapped in tests
	sendMail func(e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error
}

// NewEmailService creates a new email notification service
func NewEmailService(cfg EmailConfig, httpClient *resty.Client) *EmailService {
	if cfg.SendGridURL == "" {
		cfg.SendGridURL = defaultSendGridURL
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.SMTPUser
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &EmailService{cfg: cfg, http: httpClient, sendMail: sendSMTP}
}

func (e *EmailService) Name() string { return "email" }

// Enabled returns whether a recipient and at least one transport are configured
func (e *EmailService) Enabled() bool {
	return len(e.cfg.To) > 0 && e.cfg.From != "" && (e.sendGridReady() || e.smtpReady())
}

func (e *EmailService) sendGridReady() bool {
	return e.cfg.SendGridAPIKey != ""
}

func (e *EmailService) smtpReady() bool {
	return e.cfg.SMTPHost != "" && e.cfg.SMTPUser != "" && e.cfg.SMTPPassword != ""
}

// Deliver sends a plain text email
func (e *EmailService) Deliver(ctx context.Context, subject, body string) error {
	if !e.Enabled() {
		return ErrNotConfigured
	}

	if e.sendGridReady() {
		err := e.sendGrid(ctx, subject, body)
		if err == nil {
			return nil
		}
		if !e.smtpReady() {
			return err
		}
		slog.WarnContext(ctx, "sendgrid failed, falling back to smtp", "err", err)
	}
	return e.sendSMTP(subject, body)
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridMessage struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

func (e *EmailService) sendGrid(ctx context.Context, subject, body string) error {
	to := make([]sendGridAddress, 0, len(e.cfg.To))
	for _, addr := range e.cfg.To {
		to = append(to, sendGridAddress{Email: addr})
	}
	msg := sendGridMessage{
		Personalizations: []sendGridPersonalization{{To: to}},
		From:             sendGridAddress{Email: e.cfg.From},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: body}},
	}

	res, err := e.http.R().
		SetContext(ctx).
		SetAuthToken(e.cfg.SendGridAPIKey).
		SetHeader("content-type", "application/json").
		SetBody(msg).
		Post(e.cfg.SendGridURL)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode() >= 300 {
		return fmt.Errorf("sendgrid: unexpected status code: %d", res.StatusCode())
	}
	return nil
}

func (e *EmailService) sendSMTP(subject, body string) error {
	if !e.smtpReady() {
		return ErrNotConfigured
	}

	m := email.NewEmail()
	m.From = e.cfg.From
	m.To = e.cfg.To
	m.Subject = subject
	m.Text = []byte(body)

	addr := e.cfg.SMTPHost + ":" + strconv.Itoa(e.cfg.SMTPPort)
	auth := smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPassword, e.cfg.SMTPHost)

	var tlsConfig *tls.Config
	if e.cfg.SMTPPort == 465 {
		tlsConfig = &tls.Config{ServerName: e.cfg.SMTPHost}
	}
	if err := e.sendMail(m, addr, auth, tlsConfig); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// sendSMTP uses implicit TLS when tlsConfig is set, STARTTLS otherwise
func sendSMTP(m *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error {
	if tlsConfig != nil {
		return m.SendWithTLS(addr, auth, tlsConfig)
	}
	return m.Send(addr, auth)
}
