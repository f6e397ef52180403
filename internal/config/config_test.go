package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"basement-monitor/internal/alerting"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := alerting.Config{
		Temperature:   alerting.Range{Min: 50, Max: 80},
		Humidity:      alerting.Range{Min: 20, Max: 60},
		WindowSize:    4,
		RenotifyDelay: time.Hour,
	}
	if diff := cmp.Diff(want, cfg.Alerting); diff != "" {
		t.Errorf("alerting (-want +got):\n%s", diff)
	}
	if cfg.Addr() != ":8000" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.Email.Enabled() || cfg.Telegram.Enabled() {
		t.Error("channels enabled without settings")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "MEMORY")
	t.Setenv("API_PORT", "9191")
	t.Setenv("ALERTING_TEMPERATURE_MIN", "45")
	t.Setenv("ALERTING_WINDOW_SIZE", "6")
	t.Setenv("ALERTING_RENOTIFY_DELAY", "30m")
	t.Setenv("EMAIL_SMTP_SERVER", "smtp.example.com")
	t.Setenv("EMAIL_USERNAME", "monitor@example.com")
	t.Setenv("EMAIL_RECIPIENTS", "a@example.com, b@example.com")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_IDS", "1, -1002")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Addr() != ":9191" {
		t.Errorf("backend %q addr %q", cfg.Storage.Backend, cfg.Addr())
	}
	if cfg.Alerting.Temperature.Min != 45 || cfg.Alerting.WindowSize != 6 || cfg.Alerting.RenotifyDelay != 30*time.Minute {
		t.Errorf("alerting = %+v", cfg.Alerting)
	}
	if diff := cmp.Diff([]string{"a@example.com", "b@example.com"}, cfg.Email.Recipients); diff != "" {
		t.Errorf("recipients (-want +got):\n%s", diff)
	}
	if !cfg.Email.Enabled() {
		t.Error("email should be enabled")
	}
	if diff := cmp.Diff([]int64{1, -1002}, cfg.Telegram.ChatIDs); diff != "" {
		t.Errorf("chat ids (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	yaml := "storage:\n  backend: memory\nalerting:\n  humidity:\n    min: 30\n    max: 55\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ALERTING_HUMIDITY_MAX", "58")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// env wins over the file
	if cfg.Alerting.Humidity != (alerting.Range{Min: 30, Max: 58}) {
		t.Errorf("humidity = %s", cfg.Alerting.Humidity)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]map[string]string{
		"postgres without dsn": {"STORAGE_BACKEND": "postgres", "DB_DSN": ""},
		"mongo without uri":    {"STORAGE_BACKEND": "mongo", "MONGO_URI": ""},
		"unknown backend":      {"STORAGE_BACKEND": "sqlite"},
		"inverted range":       {"STORAGE_BACKEND": "memory", "ALERTING_TEMPERATURE_MIN": "90"},
		"bad chat id":          {"STORAGE_BACKEND": "memory", "TELEGRAM_CHAT_IDS": "abc"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
