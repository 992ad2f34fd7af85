package config

import (
	"testing"
	"time"
)

func TestParseAdminIDs(t *testing.T) {
	ids, err := ParseAdminIDs("101, 202;303 404")
	if err != nil {
		t.Fatalf("ParseAdminIDs: %v", err)
	}
	want := []int64{101, 202, 303, 404}
	if len(ids) != len(want) {
		t.Fatalf("got %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}

	if ids, err := ParseAdminIDs(""); err != nil || len(ids) != 0 {
		t.Fatalf("expected empty list, got %v %v", ids, err)
	}
	if _, err := ParseAdminIDs("12,abc"); err == nil {
		t.Fatalf("expected error for non numeric id")
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("ADMIN_IDS", "42")
	t.Setenv("CHALLENGE_TIMEZONE", "UTC")
	t.Setenv("NOTIFY_POLL_INTERVAL", "250ms")
	t.Setenv("NOTIFY_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("MEDIA_BUCKET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Admin.IDs) != 1 || cfg.Admin.IDs[0] != 42 {
		t.Fatalf("admin ids: %v", cfg.Admin.IDs)
	}
	if cfg.Challenge.Location != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Challenge.Location)
	}
	if cfg.Notification.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval: %v", cfg.Notification.PollInterval)
	}
	if cfg.Notification.MaxAttempts != 5 {
		t.Fatalf("expected fallback max attempts, got %d", cfg.Notification.MaxAttempts)
	}
	if cfg.Storage.Enabled() {
		t.Fatalf("storage must be disabled without bucket")
	}
}

func TestAppConfig_AddrAndTimeout(t *testing.T) {
	app := AppConfig{Host: "127.0.0.1", Port: "9000", RequestTimeoutSeconds: 3}
	if app.Addr() != "127.0.0.1:9000" {
		t.Fatalf("addr: %s", app.Addr())
	}
	if app.RequestTimeout() != 3*time.Second {
		t.Fatalf("timeout: %v", app.RequestTimeout())
	}
	app.RequestTimeoutSeconds = 0
	if app.RequestTimeout() != 0 {
		t.Fatalf("expected disabled timeout")
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("CHALLENGE_TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatalf("expected timezone error")
	}
}
