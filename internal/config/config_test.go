package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadReturnsDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envConfigDir, dir)

	if got := Path(); got != filepath.Join(dir, "config.toml") {
		t.Fatalf("Path() = %q", got)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Color != ColorAuto || !strings.HasSuffix(cfg.ScratchDir, "rested-scratch") {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.TelemetryConfig().Enabled() {
		t.Fatalf("telemetry must be off by default")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv(envConfigDir, filepath.Join(t.TempDir(), "nested"))

	want := Config{
		ScratchDir: "/tmp/scratch",
		Namespace:  "prod",
		Timeout:    "5s",
		Color:      ColorNever,
		Telemetry:  Telemetry{Endpoint: "localhost:4317", Insecure: true},
	}
	if err := Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	if d, _ := got.TimeoutDuration(); d != 5*time.Second {
		t.Fatalf("timeout = %v", d)
	}
	tc := got.TelemetryConfig()
	if !tc.Enabled() || !tc.Insecure {
		t.Fatalf("telemetry = %+v", tc)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cases := map[string]string{
		"syntax":  "scratch_dir = ",
		"color":   `color = "purple"`,
		"timeout": `timeout = "soon"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("timeout", "250ms"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("telemetry.insecure", "yes"); err == nil {
		t.Fatalf("expected bool parse error")
	}
	if err := cfg.Set("color", "neon"); err == nil {
		t.Fatalf("expected color validation error")
	}
	if cfg.Color != ColorAuto {
		t.Fatalf("failed Set must not modify the config, color = %q", cfg.Color)
	}
	if err := cfg.Set("nope", "x"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	for _, key := range Keys() {
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
	}
	if v, _ := cfg.Get("timeout"); v != "250ms" {
		t.Fatalf("timeout = %q", v)
	}
}
