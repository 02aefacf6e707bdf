package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/popdeck/internal/tiling"
)

func writeConfig(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.LayoutOptions() != nil {
		t.Fatalf("expected full-screen default layout")
	}
	if len(cfg.Channel.ResendDelays) != 3 || cfg.Channel.ResendDelays[2] != 1500*time.Millisecond {
		t.Fatalf("unexpected resend delays %v", cfg.Channel.ResendDelays)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.DashboardURL != DefaultConfig().DashboardURL {
		t.Fatalf("expected default dashboard url, got %q", res.Config.DashboardURL)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.RoleStore.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout, got %v", res.Config.RoleStore.Timeout)
	}
}

func TestLoadFromPath_OverridesAndDurations(t *testing.T) {
	data := strings.Join([]string{
		"dashboard_url: https://ops.example.com",
		"theme: dark",
		"role_store:",
		"  url: https://ops.example.com/api",
		"  timeout: 3s",
		"placement:",
		"  verify_delay: 250ms",
		"  move_delays: [50ms, 150ms]",
		"layout:",
		"  mode: grid",
		"  total_slots: 4",
		"  padding_px: 8",
		"store_server:",
		"  tokens: [abc]",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Theme != "dark" {
		t.Fatalf("expected dark theme, got %q", cfg.Theme)
	}
	if cfg.RoleStore.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.RoleStore.Timeout)
	}
	if cfg.Placement.VerifyDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms verify delay, got %v", cfg.Placement.VerifyDelay)
	}
	if len(cfg.Placement.MoveDelays) != 2 || cfg.Placement.MoveDelays[1] != 150*time.Millisecond {
		t.Fatalf("unexpected move delays %v", cfg.Placement.MoveDelays)
	}
	if cfg.Browser.Command != "chromium" {
		t.Fatalf("expected untouched browser default, got %q", cfg.Browser.Command)
	}

	opts := cfg.LayoutOptions()
	if opts == nil || opts.Mode != tiling.ModeGrid || opts.TotalSlots != 4 || opts.PaddingPx != 8 {
		t.Fatalf("unexpected layout options %+v", opts)
	}
	if src, ok := res.Sources["placement.verify_delay"]; !ok || src.Line != 7 {
		t.Fatalf("expected source for placement.verify_delay at line 7, got %+v", src)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "theme: light\nlog_level: loud\n")

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Path != "log_level" {
		t.Fatalf("expected log_level path, got %q", verr.Path)
	}
	if !strings.HasPrefix(err.Error(), path+":2:") {
		t.Fatalf("expected file:line prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, configD, "10-base.yaml", "theme: dark\nrelay:\n  listen: 127.0.0.1:4000\n")
	writeConfig(t, configD, "20-override.yaml", "theme: light\n")

	main := strings.Join([]string{
		"include:",
		"  - config.d",
		"theme: system",
		"",
	}, "\n")
	path := writeConfig(t, dir, "config.yaml", main)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Theme != "system" {
		t.Fatalf("expected main file to win, got %q", res.Config.Theme)
	}
	if res.Config.Relay.Listen != "127.0.0.1:4000" {
		t.Fatalf("expected included relay address, got %q", res.Config.Relay.Listen)
	}
	if len(res.Files) != 3 || !strings.HasSuffix(res.Files[2], "config.yaml") {
		t.Fatalf("unexpected load order %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := writeConfig(t, dir, "a.yaml", "include: b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"dashboard_url":          func(c *Config) { c.DashboardURL = "ftp://x" },
		"role_store.url":         func(c *Config) { c.RoleStore.URL = "localhost" },
		"role_store.timeout":     func(c *Config) { c.RoleStore.Timeout = 0 },
		"placement.move_delays":  func(c *Config) { c.Placement.MoveDelays = nil },
		"channel.resend_delays":  func(c *Config) { c.Channel.ResendDelays = []time.Duration{-time.Second} },
		"layout":                 func(c *Config) { c.Layout = LayoutConfig{Mode: "rows"} },
		"layout.mode":            func(c *Config) { c.Layout = LayoutConfig{Mode: "custom", TotalSlots: 1} },
		"fallback_screen":        func(c *Config) { c.FallbackScreen.Width = 0 },
		"store_server.tokens":    func(c *Config) { c.StoreServer.Tokens = []string{" "} },
		"browser.window_timeout": func(c *Config) { c.Browser.WindowTimeout = 0 },
		"daemon.display_watch_interval": func(c *Config) {
			c.Daemon.DisplayWatchInterval = -time.Second
		},
		"hotkeys[0].view": func(c *Config) { c.Hotkeys = []HotkeyConfig{{Keys: "Mod4-r", View: "radar"}} },
		"hotkeys[0]":      func(c *Config) { c.Hotkeys = []HotkeyConfig{{Keys: "Mod4-f", View: "flight"}} },
		"hotkeys[1].keys": func(c *Config) {
			c.Hotkeys = []HotkeyConfig{{Keys: "Mod4-a", View: "alerts"}, {Keys: "Mod4-a", View: "metrics"}}
		},
	}
	for path, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		err := cfg.Validate()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", path, err)
		}
		if verr.Path != path {
			t.Fatalf("%s: got path %q", path, verr.Path)
		}
	}
}

func TestResolveToken(t *testing.T) {
	dir := t.TempDir()
	tokenFile := writeConfig(t, dir, "token", "from-file\n")

	cfg := DefaultConfig()
	cfg.RoleStore.TokenFile = tokenFile
	t.Setenv(TokenEnv, "")

	tok, err := cfg.ResolveToken()
	if err != nil || tok != "from-file" {
		t.Fatalf("expected token from file, got %q, %v", tok, err)
	}

	cfg.RoleStore.Token = "from-config"
	if tok, _ := cfg.ResolveToken(); tok != "from-config" {
		t.Fatalf("expected config token, got %q", tok)
	}

	t.Setenv(TokenEnv, "from-env")
	if tok, _ := cfg.ResolveToken(); tok != "from-env" {
		t.Fatalf("expected env token, got %q", tok)
	}

	t.Setenv(TokenEnv, "")
	cfg.RoleStore.Token = ""
	cfg.RoleStore.TokenFile = filepath.Join(dir, "absent")
	if _, err := cfg.ResolveToken(); err == nil {
		t.Fatalf("expected error for missing token file")
	}

	cfg.RoleStore.TokenFile = ""
	if tok, err := cfg.ResolveToken(); err != nil || tok != "" {
		t.Fatalf("expected empty token, got %q, %v", tok, err)
	}
}
