// Package config loads settings from flags, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mathsnap/api/internal/util"
)

const EnvPrefix = "MATHSNAP"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Port        string
	DatabaseURL string

	LogLevel  string
	LogFormat string

	Recognizer     string // mock | tesseract | gemini | openai | yandex
	Translator     string // phrasebook | gemini | none
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIModel    string
	YandexOAuth    string
	YandexFolderID string
	TesseractLangs []string

	TelegramBotToken string
	WebhookURL       string

	CameraFrontURL     string
	CameraBackURL      string
	SessionIdleTimeout time.Duration
	RequestTimeout     time.Duration
	MaxUploadBytes     int64
}

// SetDefaults registers defaults and environment bindings on v. Each key
// reads MATHSNAP_<KEY> first, then the plain variable deploy platforms set.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("database.url", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("recognizer", "mock")
	v.SetDefault("translator", "phrasebook")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("tesseract.langs", []string{"eng"})
	v.SetDefault("camera.front_url", "")
	v.SetDefault("camera.back_url", "")
	v.SetDefault("session.idle_timeout", 10*time.Minute)
	v.SetDefault("http.request_timeout", 180*time.Second)
	v.SetDefault("http.max_upload_bytes", int64(20<<20))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("gemini.model", EnvPrefix+"_GEMINI_MODEL", "GEMINI_MODEL")
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.model", EnvPrefix+"_OPENAI_MODEL", "OPENAI_MODEL")
	_ = v.BindEnv("yandex.oauth_token", EnvPrefix+"_YANDEX_OAUTH_TOKEN", "YC_OAUTH_TOKEN")
	_ = v.BindEnv("yandex.folder_id", EnvPrefix+"_YANDEX_FOLDER_ID", "YC_FOLDER_ID")
	_ = v.BindEnv("telegram.token", EnvPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.webhook_url", EnvPrefix+"_WEBHOOK_URL", "WEBHOOK_URL")
}

// Load reads v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        strings.TrimSpace(v.GetString("port")),
		DatabaseURL: strings.TrimSpace(v.GetString("database.url")),

		LogLevel:  strings.ToLower(v.GetString("logging.level")),
		LogFormat: strings.ToLower(v.GetString("logging.format")),

		Recognizer:     strings.ToLower(strings.TrimSpace(v.GetString("recognizer"))),
		Translator:     strings.ToLower(strings.TrimSpace(v.GetString("translator"))),
		GeminiAPIKey:   strings.TrimSpace(v.GetString("gemini.api_key")),
		GeminiModel:    strings.TrimSpace(v.GetString("gemini.model")),
		OpenAIAPIKey:   strings.TrimSpace(v.GetString("openai.api_key")),
		OpenAIModel:    strings.TrimSpace(v.GetString("openai.model")),
		YandexOAuth:    strings.TrimSpace(v.GetString("yandex.oauth_token")),
		YandexFolderID: strings.TrimSpace(v.GetString("yandex.folder_id")),
		TesseractLangs: v.GetStringSlice("tesseract.langs"),

		TelegramBotToken: strings.TrimSpace(v.GetString("telegram.token")),
		WebhookURL:       strings.TrimSpace(v.GetString("telegram.webhook_url")),

		CameraFrontURL:     strings.TrimSpace(v.GetString("camera.front_url")),
		CameraBackURL:      strings.TrimSpace(v.GetString("camera.back_url")),
		SessionIdleTimeout: v.GetDuration("session.idle_timeout"),
		RequestTimeout:     v.GetDuration("http.request_timeout"),
		MaxUploadBytes:     v.GetInt64("http.max_upload_bytes"),
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = resolveDSN()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := util.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format: %s", c.LogFormat))
	}
	switch c.Recognizer {
	case "mock", "tesseract":
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("recognizer gemini requires GEMINI_API_KEY"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("recognizer openai requires OPENAI_API_KEY"))
		}
	case "yandex":
		if c.YandexOAuth == "" || c.YandexFolderID == "" {
			errs = append(errs, errors.New("recognizer yandex requires YC_OAUTH_TOKEN and YC_FOLDER_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown recognizer %q (mock, tesseract, gemini, openai, yandex)", c.Recognizer))
	}
	switch c.Translator {
	case "phrasebook", "none":
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("translator gemini requires GEMINI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown translator %q (phrasebook, gemini, none)", c.Translator))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("http.max_upload_bytes must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("http.request_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// RequireBot checks the settings only the Telegram bot needs.
func (c *Config) RequireBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is required for the bot", ErrInvalid)
	}
	return nil
}

// resolveDSN builds a PostgreSQL DSN from POSTGRES_*/PG* variables when any
// is set; otherwise it falls back to a local SQLite file.
func resolveDSN() string {
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := strings.TrimSpace(os.Getenv("PGHOST"))
	if pass == "" && host == "" {
		return "data/mathsnap.db"
	}
	user := getenvDefault("POSTGRES_USER", "mathsnap")
	if host == "" {
		host = "db"
	}
	port := getenvDefault("PGPORT", "5432")
	db := getenvDefault("POSTGRES_DB", "mathsnap")

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
