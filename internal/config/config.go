package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "CHANGE_ME_PRODUCTION_JWT_SECRET"

type Config struct {
	ListenAddr string
	PublicURL  string

	DBDriver          string
	DBPath            string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret   string
	JWTTTLHours int
	JWTIssuer   string

	TrustProxy         bool
	CORSAllowedOrigins []string

	CaptchaEnabled   bool
	CaptchaProvider  string
	CaptchaVerifyURL string
	CaptchaSecret    string

	PasswordMinLength int
	PasswordMaxLength int

	ListingApprovalRequired bool

	UploadDir           string
	UploadURLPrefix     string
	MaxImagesPerListing int
	MaxImageBytes       int64

	NotifySinks            []string
	NotifyMaxAttempts      int
	NotifyInitialBackoffMS int
	TelegramAPIBase        string
	TelegramBotToken       string
	TelegramChatID         string
	AMQPURL                string
	AMQPExchange           string
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	SMTPFrom               string

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int
	ShutdownTimeoutSec       int

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string
}

func Load() (Config, error) {
	files := envCSV("ENV_FILE")
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		ListenAddr:               env("LISTEN_ADDR", ":4000"),
		PublicURL:                env("PUBLIC_URL", "http://localhost:4000"),
		DBDriver:                 strings.ToLower(env("DB_DRIVER", "sqlite")),
		DBPath:                   env("APP_DB_PATH", "./data/carmarket.db"),
		DBDSN:                    env("DB_DSN", ""),
		DBMaxOpenConns:           envInt("APP_DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           envInt("APP_DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(envInt("APP_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		JWTSecret:                env("JWT_SECRET", defaultJWTSecret),
		JWTTTLHours:              envInt("JWT_TTL_HOURS", 24),
		JWTIssuer:                env("JWT_ISSUER", "carmarket"),
		TrustProxy:               envBool("TRUST_PROXY", false),
		CORSAllowedOrigins:       envCSV("CORS_ALLOWED_ORIGINS"),
		CaptchaEnabled:           envBool("CAPTCHA_ENABLED", false),
		CaptchaProvider:          strings.ToLower(env("CAPTCHA_PROVIDER", "turnstile")),
		CaptchaVerifyURL:         env("CAPTCHA_VERIFY_URL", ""),
		CaptchaSecret:            env("CAPTCHA_SECRET", ""),
		PasswordMinLength:        envInt("PASSWORD_MIN_LENGTH", 8),
		PasswordMaxLength:        envInt("PASSWORD_MAX_LENGTH", 128),
		ListingApprovalRequired:  envBool("LISTING_APPROVAL_REQUIRED", true),
		UploadDir:                env("UPLOAD_DIR", "./data/uploads"),
		UploadURLPrefix:          env("UPLOAD_URL_PREFIX", "/uploads"),
		MaxImagesPerListing:      envInt("MAX_IMAGES_PER_LISTING", 10),
		MaxImageBytes:            int64(envInt("MAX_IMAGE_BYTES", 5<<20)),
		NotifySinks:              envCSV("NOTIFY_SINKS"),
		NotifyMaxAttempts:        envInt("NOTIFY_MAX_ATTEMPTS", 3),
		NotifyInitialBackoffMS:   envInt("NOTIFY_INITIAL_BACKOFF_MS", 1000),
		TelegramAPIBase:          env("TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramBotToken:         env("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:           env("TELEGRAM_CHAT_ID", ""),
		AMQPURL:                  env("NOTIFY_AMQP_URL", ""),
		AMQPExchange:             env("NOTIFY_AMQP_EXCHANGE", "carmarket.events"),
		SMTPHost:                 env("SMTP_HOST", ""),
		SMTPPort:                 envInt("SMTP_PORT", 587),
		SMTPUsername:             env("SMTP_USERNAME", ""),
		SMTPPassword:             env("SMTP_PASSWORD", ""),
		SMTPFrom:                 env("SMTP_FROM", ""),
		HTTPReadTimeoutSec:       envInt("HTTP_READ_TIMEOUT_SEC", 15),
		HTTPReadHeaderTimeoutSec: envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      envInt("HTTP_WRITE_TIMEOUT_SEC", 60),
		HTTPIdleTimeoutSec:       envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		ShutdownTimeoutSec:       envInt("SHUTDOWN_TIMEOUT_SEC", 15),
		BootstrapAdminEmail:      env("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword:   env("BOOTSTRAP_ADMIN_PASSWORD", ""),
		BootstrapAdminName:       env("BOOTSTRAP_ADMIN_NAME", "Administrator"),
	}
	if len(cfg.NotifySinks) == 0 {
		cfg.NotifySinks = []string{"log"}
	}
	for i, s := range cfg.NotifySinks {
		cfg.NotifySinks[i] = strings.ToLower(s)
	}
	if envBool("TELEGRAM_ENABLED", false) && !cfg.HasSink("telegram") {
		cfg.NotifySinks = append(cfg.NotifySinks, "telegram")
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres", "mysql":
		if strings.TrimSpace(cfg.DBDSN) == "" {
			return Config{}, fmt.Errorf("DB_DSN is required when DB_DRIVER=%s", cfg.DBDriver)
		}
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be one of: sqlite, postgres, mysql")
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return Config{}, fmt.Errorf("invalid DB pool config")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" || cfg.JWTSecret == defaultJWTSecret || len(cfg.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be set to a strong non-default value (>=32 chars)")
	}
	if cfg.JWTTTLHours <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if cfg.PasswordMinLength < 6 {
		return Config{}, fmt.Errorf("password min length must be >= 6")
	}
	if cfg.PasswordMaxLength < cfg.PasswordMinLength {
		return Config{}, fmt.Errorf("password max length must be >= min length")
	}
	if cfg.MaxImagesPerListing <= 0 || cfg.MaxImageBytes <= 0 {
		return Config{}, fmt.Errorf("image limits must be positive")
	}
	if cfg.NotifyMaxAttempts <= 0 || cfg.NotifyInitialBackoffMS < 0 {
		return Config{}, fmt.Errorf("invalid notification retry config")
	}
	for _, s := range cfg.NotifySinks {
		switch s {
		case "log":
		case "telegram":
			if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
				return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the telegram sink")
			}
		case "amqp":
			if cfg.AMQPURL == "" {
				return Config{}, fmt.Errorf("NOTIFY_AMQP_URL is required for the amqp sink")
			}
		case "smtp":
			if cfg.SMTPHost == "" || cfg.SMTPFrom == "" || cfg.SMTPPort <= 0 {
				return Config{}, fmt.Errorf("SMTP_HOST, SMTP_PORT and SMTP_FROM are required for the smtp sink")
			}
		default:
			return Config{}, fmt.Errorf("unsupported notify sink: %s", s)
		}
	}
	if cfg.CaptchaEnabled {
		if strings.TrimSpace(cfg.CaptchaSecret) == "" {
			return Config{}, fmt.Errorf("CAPTCHA_SECRET is required when CAPTCHA_ENABLED=true")
		}
		if strings.TrimSpace(cfg.CaptchaVerifyURL) == "" {
			switch cfg.CaptchaProvider {
			case "turnstile", "":
				cfg.CaptchaVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
			case "hcaptcha":
				cfg.CaptchaVerifyURL = "https://hcaptcha.com/siteverify"
			default:
				return Config{}, fmt.Errorf("unsupported CAPTCHA_PROVIDER: %s", cfg.CaptchaProvider)
			}
		}
	}
	return cfg, nil
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c Config) NotifyInitialBackoff() time.Duration {
	return time.Duration(c.NotifyInitialBackoffMS) * time.Millisecond
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.NotifySinks {
		if s == name {
			return true
		}
	}
	return false
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
