package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"stock-watch/internal/detect"
	"stock-watch/internal/model"
	"stock-watch/internal/store"

	"github.com/joho/godotenv"
)

// MinPollInterval is the shortest allowed delay between cycles
const MinPollInterval = 10 * time.Second

type EmailConfig struct {
	To             []string
	From           string
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIBase  string
}

type BarkConfig struct {
	Key    string
	Server string
}

type Config struct {
	Environment string
	Port        string
	Host        string

	Products []model.Product

	PollInterval   time.Duration
	PollJitter     time.Duration
	DedupWindow    time.Duration
	ProbeCeiling   int
	FirstNotify    bool
	QuantityPolicy string
	CartProbe      bool

	UserAgent        string
	HTTPTimeout      time.Duration
	HTTPRetries      int
	BypassCloudflare bool

	StoreBackend string
	DataDir      string

	Email    EmailConfig
	Telegram TelegramConfig
	Bark     BarkConfig

	LogLevel  string
	LogFormat string

	// ConfigFile is the optional JSON5 file merged over the environment
	ConfigFile string
}

// Load reads .env, the environment and the optional CONFIG_FILE, in that order
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		fc, err := ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", cfg.ConfigFile, err)
		}
		if err := fc.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", cfg.ConfigFile, err)
		}
	}

	for i := range cfg.Products {
		if cfg.Products[i].Key == "" {
			cfg.Products[i].Key = cfg.Products[i].URL
		}
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		Port:           getEnv("PORT", "8080"),
		Host:           getEnv("HOST", "0.0.0.0"),
		QuantityPolicy: getEnv("QUANTITY_POLICY", string(detect.QuantityAny)),
		UserAgent:      getEnv("USER_AGENT", ""),
		StoreBackend:   getEnv("STORE_BACKEND", store.BackendFile),
		DataDir:        getEnv("DATA_DIR", "./data"),
		Email: EmailConfig{
			To:             splitList(getEnv("EMAIL_TO", "")),
			From:           getEnv("EMAIL_FROM", ""),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			APIBase:  getEnv("TELEGRAM_API_BASE", ""),
		},
		Bark: BarkConfig{
			Key:    getEnv("BARK_KEY", ""),
			Server: getEnv("BARK_SERVER", "https://api.day.app"),
		},
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		ConfigFile: getEnv("CONFIG_FILE", ""),
	}

	if u := getEnv("PRODUCT_URL", ""); u != "" {
		cfg.Products = []model.Product{{
			Key:  u,
			Name: getEnv("PRODUCT_NAME", ""),
			URL:  u,
		}}
	}

	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", 120*time.Second)
	collect(err)
	cfg.PollJitter, err = getEnvDuration("POLL_JITTER", 5*time.Second)
	collect(err)
	cfg.DedupWindow, err = getEnvDuration("DEDUP_WINDOW", 30*time.Minute)
	collect(err)
	cfg.HTTPTimeout, err = getEnvDuration("HTTP_TIMEOUT", 30*time.Second)
	collect(err)

	cfg.ProbeCeiling, err = getEnvInt("PROBE_CEILING", 999)
	collect(err)
	cfg.HTTPRetries, err = getEnvInt("HTTP_RETRIES", 3)
	collect(err)
	cfg.Email.SMTPPort, err = getEnvInt("SMTP_PORT", 587)
	collect(err)

	cfg.FirstNotify, err = getEnvBool("FIRST_NOTIFY", false)
	collect(err)
	cfg.CartProbe, err = getEnvBool("CART_PROBE", true)
	collect(err)
	cfg.BypassCloudflare, err = getEnvBool("BYPASS_CLOUDFLARE", false)
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	var errs []error

	if len(c.Products) == 0 {
		errs = append(errs, errors.New("no product configured: set PRODUCT_URL or list products in CONFIG_FILE"))
	}
	seen := map[string]bool{}
	for _, p := range c.Products {
		u, err := url.Parse(p.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid product URL %q", p.URL))
		}
		key := p.Key
		if key == "" {
			key = p.URL
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate product key %q", key))
		}
		seen[key] = true
	}

	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be at least %s, got %s", MinPollInterval, c.PollInterval))
	}
	if c.PollJitter < 0 {
		errs = append(errs, errors.New("POLL_JITTER must not be negative"))
	}
	if c.DedupWindow < 0 {
		errs = append(errs, errors.New("DEDUP_WINDOW must not be negative"))
	}
	if c.ProbeCeiling < 2 {
		errs = append(errs, fmt.Errorf("PROBE_CEILING must be at least 2, got %d", c.ProbeCeiling))
	}
	if c.HTTPRetries < 0 {
		errs = append(errs, errors.New("HTTP_RETRIES must not be negative"))
	}
	if _, err := detect.ParseQuantityPolicy(c.QuantityPolicy); err != nil {
		errs = append(errs, err)
	}
	switch c.StoreBackend {
	case store.BackendFile, store.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	return errors.Join(errs...)
}

// Policy returns the detector policy described by the config
func (c *Config) Policy() detect.Policy {
	q, _ := detect.ParseQuantityPolicy(c.QuantityPolicy)
	return detect.Policy{DedupWindow: c.DedupWindow, Quantity: q}
}

// IsProduction reports whether gin should run in release mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr is the health server listen address
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
