package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testSecret = "this_is_a_valid_long_jwt_signing_secret_123456"

func TestLoadRejectsDefaultJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "CHANGE_ME_PRODUCTION_JWT_SECRET")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail with default jwt secret")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected sqlite default, got %q", cfg.DBDriver)
	}
	if !cfg.ListingApprovalRequired {
		t.Fatalf("expected listing approval to be required by default")
	}
	if len(cfg.NotifySinks) != 1 || cfg.NotifySinks[0] != "log" {
		t.Fatalf("expected log sink default, got %v", cfg.NotifySinks)
	}
	if cfg.NotifyMaxAttempts != 3 || cfg.NotifyInitialBackoffMS != 1000 {
		t.Fatalf("unexpected retry defaults: %d %d", cfg.NotifyMaxAttempts, cfg.NotifyInitialBackoffMS)
	}
}

func TestLoadRequiresDSNForServerDrivers(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail without DB_DSN")
	}
	t.Setenv("DB_DSN", "postgres://u:p@localhost:5432/cars?sslmode=disable")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail for unknown driver")
	}
}

func TestLoadPasswordBounds(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PASSWORD_MIN_LENGTH", "16")
	t.Setenv("PASSWORD_MAX_LENGTH", "12")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail for invalid password bounds")
	}
}

func TestLoadNotifySinkRequirements(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("NOTIFY_SINKS", "log,telegram")
	if _, err := Load(); err == nil {
		t.Fatalf("expected telegram sink to require a token")
	}
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.HasSink("telegram") {
		t.Fatalf("expected telegram sink, got %v", cfg.NotifySinks)
	}

	t.Setenv("NOTIFY_SINKS", "pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown sink to fail")
	}
}

func TestLoadTelegramEnabledAddsSink(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TELEGRAM_ENABLED", "true")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.HasSink("log") || !cfg.HasSink("telegram") {
		t.Fatalf("expected log and telegram sinks, got %v", cfg.NotifySinks)
	}
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "CARMARKET_TEST_UPLOAD_DIR=/from/file\nUPLOAD_URL_PREFIX=/from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("CARMARKET_TEST_UPLOAD_DIR") })
	t.Setenv("ENV_FILE", path)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("UPLOAD_URL_PREFIX", "/from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("CARMARKET_TEST_UPLOAD_DIR"); got != "/from/file" {
		t.Fatalf("expected env file value to be loaded, got %q", got)
	}
	if cfg.UploadURLPrefix != "/from-env" {
		t.Fatalf("expected process env to win, got %q", cfg.UploadURLPrefix)
	}
}

func TestLoadCaptchaDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("CAPTCHA_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Fatalf("expected captcha to require a secret")
	}
	t.Setenv("CAPTCHA_SECRET", "s3cret")
	t.Setenv("CAPTCHA_PROVIDER", "hcaptcha")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CaptchaVerifyURL != "https://hcaptcha.com/siteverify" {
		t.Fatalf("unexpected verify url %q", cfg.CaptchaVerifyURL)
	}
}
