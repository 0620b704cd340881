package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stock-watch/internal/model"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// FileConfig is the JSON5 configuration file layout. Every field is
// optional; set fields override the environment.
type FileConfig struct {
	Products []model.Product `json:"products"`

	PollInterval   string `json:"poll_interval"`
	PollJitter     string `json:"poll_jitter"`
	DedupWindow    string `json:"dedup_window"`
	ProbeCeiling   int    `json:"probe_ceiling"`
	FirstNotify    *bool  `json:"first_notify"`
	QuantityPolicy string `json:"quantity_policy"`
	CartProbe      *bool  `json:"cart_probe"`

	UserAgent        string `json:"user_agent"`
	HTTPTimeout      string `json:"http_timeout"`
	HTTPRetries      *int   `json:"http_retries"`
	BypassCloudflare *bool  `json:"bypass_cloudflare"`

	StoreBackend string `json:"store_backend"`
	DataDir      string `json:"data_dir"`

	Email struct {
		To             []string `json:"to"`
		From           string   `json:"from"`
		SendGridAPIKey string   `json:"sendgrid_api_key"`
		SMTPHost       string   `json:"smtp_host"`
		SMTPPort       int      `json:"smtp_port"`
		SMTPUser       string   `json:"smtp_user"`
		SMTPPassword   string   `json:"smtp_password"`
	} `json:"email"`

	Telegram struct {
		BotToken string `json:"bot_token"`
		ChatID   string `json:"chat_id"`
		APIBase  string `json:"api_base"`
	} `json:"telegram"`

	Bark struct {
		Key    string `json:"key"`
		Server string `json:"server"`
	} `json:"bark"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

// ReadFile reads name and merges <name>.local.<ext> over it when present.
// It returns os.ErrNotExist when neither file exists.
func ReadFile(name string) (FileConfig, error) {
	var out FileConfig
	found := false

	data, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, err
		}
		found = true
	}

	prefix, ext := splitExt(name)
	localName := fmt.Sprintf("%s.local.%s", prefix, ext)
	local, err := os.ReadFile(localName)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(local) > 0 {
		var override FileConfig
		if err := json5.Unmarshal(local, &override); err != nil {
			return out, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		// mergo dereferences pointers and skips false or zero targets
		if override.FirstNotify != nil {
			out.FirstNotify = override.FirstNotify
		}
		if override.CartProbe != nil {
			out.CartProbe = override.CartProbe
		}
		if override.BypassCloudflare != nil {
			out.BypassCloudflare = override.BypassCloudflare
		}
		if override.HTTPRetries != nil {
			out.HTTPRetries = override.HTTPRetries
		}
		slog.Info("merging config with local overrides", "local", localName)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// Apply merges the set fields of fc over cfg
func (fc FileConfig) Apply(cfg *Config) error {
	overlay := Config{
		Products:       fc.Products,
		ProbeCeiling:   fc.ProbeCeiling,
		QuantityPolicy: fc.QuantityPolicy,
		UserAgent:      fc.UserAgent,
		StoreBackend:   fc.StoreBackend,
		DataDir:        fc.DataDir,
		Email: EmailConfig{
			To:             fc.Email.To,
			From:           fc.Email.From,
			SendGridAPIKey: fc.Email.SendGridAPIKey,
			SMTPHost:       fc.Email.SMTPHost,
			SMTPPort:       fc.Email.SMTPPort,
			SMTPUser:       fc.Email.SMTPUser,
			SMTPPassword:   fc.Email.SMTPPassword,
		},
		Telegram: TelegramConfig{
			BotToken: fc.Telegram.BotToken,
			ChatID:   fc.Telegram.ChatID,
			APIBase:  fc.Telegram.APIBase,
		},
		Bark: BarkConfig{
			Key:    fc.Bark.Key,
			Server: fc.Bark.Server,
		},
		LogLevel:  fc.LogLevel,
		LogFormat: fc.LogFormat,
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"poll_interval", fc.PollInterval, &overlay.PollInterval},
		{"poll_jitter", fc.PollJitter, &overlay.PollJitter},
		{"dedup_window", fc.DedupWindow, &overlay.DedupWindow},
		{"http_timeout", fc.HTTPTimeout, &overlay.HTTPTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
		return err
	}

	// zero values never override in mergo, so explicit flags are applied by hand
	if fc.FirstNotify != nil {
		cfg.FirstNotify = *fc.FirstNotify
	}
	if fc.CartProbe != nil {
		cfg.CartProbe = *fc.CartProbe
	}
	if fc.BypassCloudflare != nil {
		cfg.BypassCloudflare = *fc.BypassCloudflare
	}
	if fc.HTTPRetries != nil {
		cfg.HTTPRetries = *fc.HTTPRetries
	}
	return nil
}
