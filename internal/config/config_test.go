package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stock-watch/internal/detect"
	"stock-watch/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENVIRONMENT", "HOST", "PORT", "PRODUCT_URL", "PRODUCT_NAME", "POLL_INTERVAL", "POLL_JITTER",
		"DEDUP_WINDOW", "PROBE_CEILING", "FIRST_NOTIFY", "QUANTITY_POLICY", "CART_PROBE", "USER_AGENT",
		"HTTP_TIMEOUT", "HTTP_RETRIES", "BYPASS_CLOUDFLARE", "STORE_BACKEND", "DATA_DIR", "EMAIL_TO",
		"EMAIL_FROM", "SENDGRID_API_KEY", "SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "TELEGRAM_API_BASE", "BARK_KEY", "BARK_SERVER",
		"LOG_LEVEL", "LOG_FORMAT", "CONFIG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRODUCT_URL", "https://shop.test/products/bar")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, []model.Product{{Key: "https://shop.test/products/bar", URL: "https://shop.test/products/bar"}}, cfg.Products)
	require.Equal(t, 120*time.Second, cfg.PollInterval)
	require.Equal(t, 5*time.Second, cfg.PollJitter)
	require.Equal(t, 30*time.Minute, cfg.DedupWindow)
	require.Equal(t, 999, cfg.ProbeCeiling)
	require.False(t, cfg.FirstNotify)
	require.True(t, cfg.CartProbe)
	require.Equal(t, 3, cfg.HTTPRetries)
	require.Equal(t, "file", cfg.StoreBackend)
	require.Equal(t, 587, cfg.Email.SMTPPort)
	require.Equal(t, "smtp.gmail.com", cfg.Email.SMTPHost)
	require.Equal(t, "https://api.day.app", cfg.Bark.Server)
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
	require.Equal(t, detect.Policy{DedupWindow: 30 * time.Minute, Quantity: detect.QuantityAny}, cfg.Policy())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRODUCT_URL", "https://shop.test/products/bar")
	t.Setenv("PRODUCT_NAME", "Gold Bar")
	t.Setenv("POLL_INTERVAL", "45")
	t.Setenv("DEDUP_WINDOW", "1h")
	t.Setenv("FIRST_NOTIFY", "true")
	t.Setenv("CART_PROBE", "false")
	t.Setenv("QUANTITY_POLICY", "increase")
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com,")
	t.Setenv("STORE_BACKEND", "sqlite")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "Gold Bar", cfg.Products[0].Name)
	require.Equal(t, 45*time.Second, cfg.PollInterval)
	require.Equal(t, time.Hour, cfg.DedupWindow)
	require.True(t, cfg.FirstNotify)
	require.False(t, cfg.CartProbe)
	require.Equal(t, detect.QuantityIncrease, cfg.Policy().Quantity)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.To)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("SMTP_PORT", "smtp")
	t.Setenv("FIRST_NOTIFY", "maybe")

	_, err := FromEnv()
	require.ErrorContains(t, err, "POLL_INTERVAL")
	require.ErrorContains(t, err, "SMTP_PORT")
	require.ErrorContains(t, err, "FIRST_NOTIFY")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "no product configured")

	cfg.Products = []model.Product{
		{URL: "ftp://shop.test/products/bar"},
		{Key: "a", URL: "https://shop.test/products/a"},
		{Key: "a", URL: "https://shop.test/products/b"},
	}
	cfg.PollInterval = 5 * time.Second
	cfg.ProbeCeiling = 1
	cfg.StoreBackend = "redis"
	cfg.QuantityPolicy = "decrease"

	err = cfg.Validate()
	for _, want := range []string{"invalid product URL", "duplicate product key", "POLL_INTERVAL", "PROBE_CEILING", "STORE_BACKEND", "quantity policy"} {
		require.ErrorContains(t, err, want)
	}
}

func TestLoadMergesConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "stockwatch.json5")

	require.NoError(t, os.WriteFile(path, []byte(`{
		// two products
		products: [
			{key: "bar", name: "Gold Bar", url: "https://shop.test/products/bar"},
			{url: "https://shop.test/en-us/products/coin"},
		],
		poll_interval: "90s",
		cart_probe: false,
		telegram: {bot_token: "t", chat_id: "1"},
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stockwatch.local.json5"), []byte(`{
		poll_interval: "3m",
		first_notify: true,
	}`), 0644))

	t.Setenv("PRODUCT_URL", "https://shop.test/products/ignored")
	t.Setenv("DEDUP_WINDOW", "10m")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	want := []model.Product{
		{Key: "bar", Name: "Gold Bar", URL: "https://shop.test/products/bar"},
		{Key: "https://shop.test/en-us/products/coin", URL: "https://shop.test/en-us/products/coin"},
	}
	if diff := cmp.Diff(want, cfg.Products); diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, 3*time.Minute, cfg.PollInterval)
	require.Equal(t, 10*time.Minute, cfg.DedupWindow)
	require.False(t, cfg.CartProbe)
	require.True(t, cfg.FirstNotify)
	require.Equal(t, "t", cfg.Telegram.BotToken)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
