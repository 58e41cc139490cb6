package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseZone(t *testing.T) {
	tests := []struct {
		in     string
		offset int
	}{
		{"+08:00", 8 * 3600},
		{"+0800", 8 * 3600},
		{"-05:30", -(5*3600 + 30*60)},
		{"+09", 9 * 3600},
		{"UTC", 0},
		{"", 0},
	}
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			loc, err := ParseZone(tt.in)
			if err != nil {
				t.Fatalf("ParseZone(%q): %v", tt.in, err)
			}
			if _, off := ref.In(loc).Zone(); off != tt.offset {
				t.Errorf("offset = %d, want %d", off, tt.offset)
			}
		})
	}

	for _, bad := range []string{"+25:00", "+8:0:0", "Mars/Olympus"} {
		if _, err := ParseZone(bad); err == nil {
			t.Errorf("ParseZone(%q) accepted", bad)
		}
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, ConfigFileName)
	content := "base_url: https://tasks.example.com\nsearch_debounce: 150ms\ndisplay_timezone: UTC\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKTRACK_DISPLAY_TIMEZONE", "+02:00")
	t.Setenv("TASKTRACK_LOG_JSON", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://tasks.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Debounce() != 150*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Debounce())
	}
	if cfg.Timeout() != 15*time.Second {
		t.Errorf("Timeout default = %v", cfg.Timeout())
	}
	if cfg.DisplayTimezone != "+02:00" {
		t.Errorf("env override lost: %q", cfg.DisplayTimezone)
	}
	if !cfg.LogJSON {
		t.Error("LogJSON not set from env")
	}
	if cfg.Path() != path {
		t.Errorf("Path = %q", cfg.Path())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TASKTRACK_BASE_URL=http://10.0.0.5:5000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TASKTRACK_BASE_URL") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://10.0.0.5:5000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Path() != "" {
		t.Errorf("Path = %q for missing default file", cfg.Path())
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.BaseURL = "ftp://x" }},
		{"bad timeout", func(c *Config) { c.RequestTimeout = "soon" }},
		{"zero debounce", func(c *Config) { c.SearchDebounce = "0s" }},
		{"bad zone", func(c *Config) { c.DisplayTimezone = "+99:00" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
	}
	if err := NewDefault().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDefault()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)
	c := NewDefault()
	c.SessionCookie = "session=abc"
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != fileMode {
		t.Errorf("mode = %v", info.Mode().Perm())
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SessionCookie != "session=abc" {
		t.Errorf("SessionCookie = %q", got.SessionCookie)
	}
}
